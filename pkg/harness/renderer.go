package harness

import (
	"errors"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/vango-dev/vharness/pkg/engine"
	"github.com/vango-dev/vharness/pkg/htmldiff"
	"github.com/vango-dev/vharness/pkg/markup"
	"github.com/vango-dev/vharness/pkg/vdom"
)

// Engine is the rendering engine under test.
type Engine interface {
	AssignRoot(c vdom.Component) int
	RenderRoot(id int, fragment vdom.RenderFragment) error
	Frames(id int) ([]vdom.Frame, error)
	DispatchEvent(handlerID uint64, field engine.EventFieldInfo, args any) error
	SetBatchHandler(h engine.BatchHandler)
}

// Serializer turns a component's frames into markup.
type Serializer interface {
	Render(frames vdom.FrameSource, rootID int) (string, error)
}

// Parser turns markup into nodes.
type Parser interface {
	Parse(markup string) (markup.NodeList, error)
}

// Differ compares two node lists.
type Differ interface {
	Diff(control, test markup.NodeList) []htmldiff.Difference
}

// Harness attaches to an engine and renders components for tests.
// It is safe for use from multiple goroutines.
type Harness struct {
	engine     Engine
	dispatcher *Dispatcher
	publisher  *Publisher
	serializer Serializer
	parser     Parser
	differ     Differ
	logger     *slog.Logger

	eventSeq atomic.Uint64
	closed   atomic.Bool
}

// New attaches a harness to eng. The harness becomes the engine's batch
// handler.
func New(eng Engine, opts ...Option) *Harness {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	h := &Harness{
		engine:     eng,
		publisher:  NewPublisher(),
		serializer: o.serializer,
		parser:     o.parser,
		differ:     o.differ,
	}
	h.dispatcher = NewDispatcher(o.logger, o.queueSize, o.middleware...)
	h.logger = h.dispatcher.logger
	for _, s := range o.subscribers {
		h.publisher.Subscribe(s)
	}

	_ = h.dispatcher.Invoke(func() error {
		eng.SetBatchHandler(h)
		return nil
	})
	return h
}

// Dispatcher returns the harness's dispatcher.
func (h *Harness) Dispatcher() *Dispatcher { return h.dispatcher }

// Events returns the stream of every render event.
func (h *Harness) Events() EventSource { return h.publisher }

// OnBatchComplete implements engine.BatchHandler. The engine calls it on
// the dispatcher goroutine.
func (h *Harness) OnBatchComplete(batch *engine.Batch) {
	e := newRenderEvent(h.eventSeq.Add(1), h.dispatcher.ID(), batch, h.frameSource())
	h.logger.Debug("render batch",
		"seq", e.Seq,
		"updated", batch.UpdatedComponents,
		"disposed", batch.DisposedComponents)
	h.publisher.Publish(e)
}

// RenderComponent renders a new T with params and returns a view over it.
// T is usually a pointer to a component struct; a fresh zero value is
// created for it.
func RenderComponent[T any](h *Harness, params ...Parameter) (*RenderedComponent[T], error) {
	comp, err := newComponent[T]()
	if err != nil {
		return nil, err
	}
	fragment, err := BuildFragment(comp, params...)
	if err != nil {
		return nil, err
	}

	var (
		view  *RenderedComponent[T]
		inner error
	)
	err = h.dispatcher.Invoke(func() error {
		rootID, err := h.renderRoot(fragment)
		if err != nil {
			return err
		}
		refs := searchComponents[T](h.frameSource(), rootID, true)
		if len(refs) == 0 {
			inner = &ComponentNotFoundError{Type: typeOf[T]()}
			return nil
		}
		base, err := h.newView(refs[0].ID)
		if err != nil {
			inner = err
			return nil
		}
		view = &RenderedComponent[T]{
			RenderedView: base,
			instance:     refs[0].Instance,
			rootID:       rootID,
			params:       params,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, inner
}

// RenderFragment renders fragment under a new root and returns a view over
// the root.
func (h *Harness) RenderFragment(fragment vdom.RenderFragment) (*RenderedView, error) {
	var (
		view  *RenderedView
		inner error
	)
	err := h.dispatcher.Invoke(func() error {
		rootID, err := h.renderRoot(fragment)
		if err != nil {
			return err
		}
		view, inner = h.newView(rootID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, inner
}

// View returns a new view over the mounted component id. Its first markup
// is the component's markup at the time of the call.
func (h *Harness) View(id int) (*RenderedView, error) {
	var (
		view  *RenderedView
		inner error
	)
	err := h.dispatcher.Invoke(func() error {
		if _, err := h.engine.Frames(id); err != nil {
			inner = ErrComponentNotFound.WithDetail("no component with id %d", id).Wrap(err)
			return nil
		}
		view, inner = h.newView(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, inner
}

// DispatchEvent delivers a UI event to the handler with the given id and
// waits for the resulting render. A failure of the handler or of the
// render is returned to this caller only.
func (h *Harness) DispatchEvent(handlerID uint64, field engine.EventFieldInfo, args any) error {
	return h.dispatchEvent(handlerID, field, args, true).await()
}

// DispatchEventAsync is DispatchEvent without waiting.
func (h *Harness) DispatchEventAsync(handlerID uint64, field engine.EventFieldInfo, args any) *Completion {
	return h.dispatchEvent(handlerID, field, args, false)
}

func (h *Harness) dispatchEvent(handlerID uint64, field engine.EventFieldInfo, args any, waiting bool) *Completion {
	return h.dispatcher.submit(DispatchEvent, handlerID, func() error {
		return h.engine.DispatchEvent(handlerID, field, args)
	}, waiting)
}

// Invoke runs fn on the dispatcher and waits for it, so fn may touch
// component state and call StateHasChanged. An error or panic in fn is
// returned as *UnhandledRenderError.
func (h *Harness) Invoke(fn func() error) error {
	return h.dispatcher.Invoke(fn)
}

// InvokeAsync is Invoke without waiting.
func (h *Harness) InvokeAsync(fn func() error) *Completion {
	return h.dispatcher.InvokeAsync(fn)
}

// Post runs fn on the dispatcher without waiting. Its failure surfaces at
// the next harness call.
func (h *Harness) Post(fn func() error) error {
	return h.dispatcher.Post(fn)
}

// Close disposes the engine's components, completes the event stream and
// stops the dispatcher. It returns any failure not yet reported.
func (h *Harness) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := h.dispatcher.Invoke(func() error {
		if d, ok := h.engine.(interface{ Dispose() }); ok {
			d.Dispose()
		}
		return nil
	})
	h.publisher.Complete()
	if closeErr := h.dispatcher.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// renderRoot mounts a wrapper root and renders fragment into it.
// Runs on the dispatcher.
func (h *Harness) renderRoot(fragment vdom.RenderFragment) (int, error) {
	rootID := h.engine.AssignRoot(rootComponent{})
	h.logger.Debug("render root", "root_id", rootID)
	return rootID, h.engine.RenderRoot(rootID, fragment)
}

// frameSource returns the engine's frames, treating unknown ids as empty.
func (h *Harness) frameSource() vdom.FrameSource {
	return missingAsEmpty{h}
}

type missingAsEmpty struct{ h *Harness }

func (m missingAsEmpty) Frames(id int) ([]vdom.Frame, error) {
	frames, err := m.h.engine.Frames(id)
	if err != nil {
		m.h.logger.Debug("frames for unknown component", "component_id", id, "error", err)
		return nil, nil
	}
	return frames, nil
}

// rootComponent wraps each rendered fragment. Its output is set with
// RenderRoot, never with parameters.
type rootComponent struct{}

func (rootComponent) Render() *vdom.VNode { return nil }

// SetParameters implements engine.ParameterReceiver.
func (rootComponent) SetParameters(p engine.Parameters) error {
	if p.Len() == 0 {
		return nil
	}
	return invalidOperation("the root wrapper does not accept parameters")
}

// newComponent creates a zero T and checks that it is a component. The
// instance the engine mounts is read back after the first render.
func newComponent[T any]() (vdom.Component, error) {
	rt := typeOf[T]()

	var v reflect.Value
	switch rt.Kind() {
	case reflect.Pointer:
		v = reflect.New(rt.Elem())
	case reflect.Interface:
		return nil, invalidOperation("cannot instantiate interface type %s", rt)
	default:
		v = reflect.New(rt).Elem()
	}

	comp, ok := v.Interface().(vdom.Component)
	if !ok {
		return nil, invalidOperation("%s does not implement vdom.Component", rt)
	}
	return comp, nil
}
