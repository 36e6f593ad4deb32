package harness

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/vango-dev/vharness/pkg/htmldiff"
	"github.com/vango-dev/vharness/pkg/markup"
	"github.com/vango-dev/vharness/pkg/vdom"
)

// RenderedView is a live view over one rendered component. Its markup is
// computed on demand and invalidated whenever a render event touches the
// component or anything nested in it.
type RenderedView struct {
	h  *Harness
	id int

	events *Filter
	watch  Subscription

	mu          sync.Mutex
	markup      string
	markupValid bool
	nodes       markup.NodeList
	nodesValid  bool
	firstMarkup string
	firstNodes  markup.NodeList
	snapshot    markup.NodeList
	hasSnapshot bool
	renders     int
	changed     chan struct{}
	disposed    bool
}

// newView creates a view over component id and records its first render.
// Runs on the dispatcher.
func (h *Harness) newView(id int) (*RenderedView, error) {
	v := &RenderedView{
		h:       h,
		id:      id,
		renders: 1,
		changed: make(chan struct{}),
	}
	predicate := func(e *RenderEvent) bool { return e.HasChangesTo(id) }

	first, err := v.computeMarkup()
	if err != nil {
		return nil, err
	}
	nodes, err := h.parser.Parse(first)
	if err != nil {
		return nil, fmt.Errorf("harness: parse markup of component %d: %w", id, err)
	}
	v.firstMarkup, v.firstNodes = first, nodes
	v.markup, v.markupValid = first, true
	v.nodes, v.nodesValid = nodes, true

	v.watch = Watch(h.publisher, predicate, v.invalidate)
	v.events = NewFilter(h.publisher, predicate)
	return v, nil
}

// ID returns the component id the view renders.
func (v *RenderedView) ID() int { return v.id }

// Harness returns the harness the view belongs to.
func (v *RenderedView) Harness() *Harness { return v.h }

// Events returns the render events relevant to this view.
func (v *RenderedView) Events() EventSource { return v.events }

// RenderCount returns how many times the view has rendered, counting the
// first render. It is a plain counter and stays readable after Dispose.
func (v *RenderedView) RenderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.renders
}

// FirstMarkup returns the markup of the first render.
func (v *RenderedView) FirstMarkup() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return "", invalidOperation("view of component %d is disposed", v.id)
	}
	return v.firstMarkup, nil
}

// Markup returns the current markup.
func (v *RenderedView) Markup() (string, error) {
	var (
		out   string
		inner error
	)
	if err := v.h.dispatcher.Invoke(func() error {
		out, inner = v.currentMarkup()
		return nil
	}); err != nil {
		return "", err
	}
	return out, inner
}

// Nodes returns the current markup parsed into nodes. The list must not be
// modified.
func (v *RenderedView) Nodes() (markup.NodeList, error) {
	var (
		out   markup.NodeList
		inner error
	)
	if err := v.h.dispatcher.Invoke(func() error {
		out, inner = v.currentNodes()
		return nil
	}); err != nil {
		return nil, err
	}
	return out, inner
}

// SaveSnapshot records the current nodes as the baseline for
// ChangesSinceSnapshot.
func (v *RenderedView) SaveSnapshot() error {
	return v.onDispatcher(func() error {
		nodes, err := v.currentNodes()
		if err != nil {
			return err
		}
		v.mu.Lock()
		v.snapshot, v.hasSnapshot = nodes, true
		v.mu.Unlock()
		return nil
	})
}

// ChangesSinceSnapshot diffs the current nodes against the last snapshot.
// It fails with ErrInvalidOperation when no snapshot was saved.
func (v *RenderedView) ChangesSinceSnapshot() ([]htmldiff.Difference, error) {
	var diffs []htmldiff.Difference
	err := v.onDispatcher(func() error {
		v.mu.Lock()
		snapshot, ok := v.snapshot, v.hasSnapshot
		v.mu.Unlock()
		if !ok {
			return invalidOperation("no snapshot has been saved for component %d", v.id)
		}
		current, err := v.currentNodes()
		if err != nil {
			return err
		}
		diffs = v.h.differ.Diff(snapshot, current)
		return nil
	})
	return diffs, err
}

// ChangesSinceFirstRender diffs the current nodes against the first render.
func (v *RenderedView) ChangesSinceFirstRender() ([]htmldiff.Difference, error) {
	var diffs []htmldiff.Difference
	err := v.onDispatcher(func() error {
		current, err := v.currentNodes()
		if err != nil {
			return err
		}
		diffs = v.h.differ.Diff(v.firstNodes, current)
		return nil
	})
	return diffs, err
}

// Find returns the first element matching selector.
func (v *RenderedView) Find(selector string) (*html.Node, error) {
	all, err := v.FindAll(selector)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrElementNotFound.WithDetail("no element matches %q", selector)
	}
	return all[0], nil
}

// FindAll returns every element matching selector in document order. The
// result is empty when nothing matches.
func (v *RenderedView) FindAll(selector string) (markup.NodeList, error) {
	sel, err := markup.Compile(selector)
	if err != nil {
		return nil, ErrInvalidSelector.Wrap(err)
	}
	nodes, err := v.Nodes()
	if err != nil {
		return nil, err
	}
	return sel.QueryAll(nodes), nil
}

// WaitForRender blocks until the view's RenderCount reaches count, ctx is
// done, or a dispatched callback fails.
func (v *RenderedView) WaitForRender(ctx context.Context, count int) error {
	return v.WaitForState(ctx, func(v *RenderedView) bool {
		return v.RenderCount() >= count
	})
}

// WaitForState blocks until predicate holds. The predicate runs on the
// caller's goroutine, once immediately and again after each render of the
// view. Failures of dispatched callbacks end the wait.
func (v *RenderedView) WaitForState(ctx context.Context, predicate func(*RenderedView) bool) error {
	for {
		v.mu.Lock()
		changed, disposed := v.changed, v.disposed
		v.mu.Unlock()
		if disposed {
			return invalidOperation("view of component %d is disposed", v.id)
		}

		// Surfaces failures of callbacks that nobody waited for.
		if err := v.h.dispatcher.Invoke(func() error { return nil }); err != nil {
			return err
		}
		if predicate(v) {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("harness: wait for component %d: %w", v.id, ctx.Err())
		}
	}
}

// Dispose detaches the view from render events. Later calls that read
// the view fail with ErrInvalidOperation.
func (v *RenderedView) Dispose() {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return
	}
	v.disposed = true
	close(v.changed)
	v.mu.Unlock()

	v.h.publisher.Unsubscribe(v.watch)
	v.events.Close()
}

// onDispatcher runs fn on the dispatcher and returns either the dispatch
// failure or fn's own error.
func (v *RenderedView) onDispatcher(fn func() error) error {
	var inner error
	if err := v.h.dispatcher.Invoke(func() error {
		inner = fn()
		return nil
	}); err != nil {
		return err
	}
	return inner
}

// invalidate is the watch effect. Runs on the dispatcher.
func (v *RenderedView) invalidate(*RenderEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return
	}
	v.markupValid = false
	v.nodesValid = false
	v.renders++
	close(v.changed)
	v.changed = make(chan struct{})
}

// currentMarkup returns the cached markup, recomputing it when invalid.
// Runs on the dispatcher.
func (v *RenderedView) currentMarkup() (string, error) {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return "", invalidOperation("view of component %d is disposed", v.id)
	}
	if v.markupValid {
		defer v.mu.Unlock()
		return v.markup, nil
	}
	v.mu.Unlock()

	out, err := v.computeMarkup()
	if err != nil {
		return "", err
	}
	v.mu.Lock()
	v.markup, v.markupValid = out, true
	v.mu.Unlock()
	return out, nil
}

// currentNodes returns the cached nodes, reparsing when invalid.
// Runs on the dispatcher.
func (v *RenderedView) currentNodes() (markup.NodeList, error) {
	v.mu.Lock()
	if v.nodesValid && !v.disposed {
		defer v.mu.Unlock()
		return v.nodes, nil
	}
	v.mu.Unlock()

	src, err := v.currentMarkup()
	if err != nil {
		return nil, err
	}
	nodes, err := v.h.parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("harness: parse markup of component %d: %w", v.id, err)
	}
	v.mu.Lock()
	v.nodes, v.nodesValid = nodes, true
	v.mu.Unlock()
	return nodes, nil
}

func (v *RenderedView) computeMarkup() (string, error) {
	out, err := v.h.serializer.Render(v.h.frameSource(), v.id)
	if err != nil {
		return "", fmt.Errorf("harness: serialize component %d: %w", v.id, err)
	}
	return out, nil
}

// RenderedComponent is a view over a component of type T.
type RenderedComponent[T any] struct {
	*RenderedView

	instMu   sync.Mutex
	instance T
	rootID   int

	paramsMu sync.Mutex
	params   []Parameter
}

// Instance returns the component instance the engine mounted.
func (c *RenderedComponent[T]) Instance() T {
	c.instMu.Lock()
	defer c.instMu.Unlock()
	return c.instance
}

// SetParametersAndRender re-renders the component with params merged into
// the parameters it was rendered with. Cascading values cannot change.
func (c *RenderedComponent[T]) SetParametersAndRender(params ...Parameter) error {
	c.paramsMu.Lock()
	defer c.paramsMu.Unlock()

	merged, err := mergeParameters(c.params, params)
	if err != nil {
		return err
	}
	inst := c.Instance()
	comp, ok := any(inst).(vdom.Component)
	if !ok {
		return invalidOperation("%T is not a component", inst)
	}
	fragment, err := BuildFragment(comp, merged...)
	if err != nil {
		return err
	}

	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return invalidOperation("view of component %d is disposed", c.id)
	}

	if err := c.h.dispatcher.Invoke(func() error {
		if err := c.h.engine.RenderRoot(c.rootID, fragment); err != nil {
			return err
		}
		// Value components are copied on mount; read back the mounted one.
		if refs := searchComponents[T](c.h.frameSource(), c.rootID, true); len(refs) > 0 {
			c.instMu.Lock()
			c.instance = refs[0].Instance
			c.instMu.Unlock()
		}
		return nil
	}); err != nil {
		return err
	}
	c.params = merged
	return nil
}

// FindComponentIn returns the first component of type T nested in v.
func FindComponentIn[T any](v *RenderedView) (ComponentRef[T], error) {
	return FindComponent[T](v.h, v.id)
}

// FindComponentsIn returns every component of type T nested in v.
func FindComponentsIn[T any](v *RenderedView) ([]ComponentRef[T], error) {
	return FindComponents[T](v.h, v.id)
}
