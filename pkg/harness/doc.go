// Package harness renders components of pkg/engine in isolation and
// inspects the result.
//
// A Harness attaches to an engine, registers itself as the engine's batch
// handler and serializes every engine access on a Dispatcher. Rendering a
// component returns a RenderedView whose markup is serialized and parsed
// on demand, cached, and invalidated by the render events that touch the
// component or anything nested in it.
//
//	h := harness.New(engine.New())
//	defer h.Close()
//
//	view, err := harness.RenderComponent[*Counter](h, harness.Param("Start", 3))
//	if err != nil {
//		return err
//	}
//	button, _ := view.Find("button")
//	...
//
// # Failures
//
// Errors and panics raised by component code while the dispatcher runs a
// callback are returned as *UnhandledRenderError to the caller that
// submitted the callback. Failures of callbacks nobody waits for, such as
// those queued with Post, are reported by the next call that crosses the
// dispatcher. Each failure is reported exactly once.
//
// # Render events
//
// Every completed render batch is published as a RenderEvent. Views
// subscribe through a Filter that forwards only the events relevant to
// them; Watch attaches side effects the same way.
package harness
