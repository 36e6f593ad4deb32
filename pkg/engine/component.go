package engine

import (
	"reflect"

	"github.com/vango-dev/vharness/pkg/vdom"
)

// Attacher is implemented by components that want their Handle.
// Attach is called once, when the component is mounted.
type Attacher interface {
	Attach(h *Handle)
}

// ParameterReceiver is implemented by components that accept parameters.
// SetParameters is called before the first render and again whenever the
// parent re-renders with different parameters.
type ParameterReceiver interface {
	SetParameters(p Parameters) error
}

// Disposer is implemented by components that hold resources.
type Disposer interface {
	Dispose()
}

// Handle connects a mounted component to its renderer.
type Handle struct {
	r    *Renderer
	inst *instance
}

// ComponentID returns the id assigned to the component.
func (h *Handle) ComponentID() int {
	return h.inst.id
}

// StateHasChanged queues the component for re-rendering. Outside a render
// pass the queue is processed before StateHasChanged returns, and any
// failure of that pass is returned. Inside a pass or an event handler the
// component is rendered by the enclosing call and nil is returned.
func (h *Handle) StateHasChanged() error {
	if h.inst.disposed {
		return nil
	}
	h.r.enqueue(h.inst)
	return h.r.processQueue()
}

// Render replaces the component's output with fragment and renders it.
func (h *Handle) Render(fragment vdom.RenderFragment) error {
	h.inst.fragment = fragment
	return h.StateHasChanged()
}

// IsDisposed reports whether the component has been unmounted.
func (h *Handle) IsDisposed() bool {
	return h.inst.disposed
}

// instance is a mounted component.
type instance struct {
	id       int
	comp     vdom.Component
	parent   *instance
	scope    *cascadeScope
	params   Parameters
	fragment vdom.RenderFragment
	h        *Handle

	children []*instance
	frames   []vdom.Frame
	handlers []uint64

	queued   bool
	disposed bool
}

// childScope returns the cascading scope visible to this instance's children.
func (inst *instance) childScope() *cascadeScope {
	if cv, ok := inst.comp.(*CascadingValue); ok {
		return &cascadeScope{parent: inst.scope, name: cv.Name, value: cv.Value}
	}
	return inst.scope
}

// output evaluates the instance's render tree.
func (inst *instance) output() *vdom.VNode {
	if inst.fragment != nil {
		return inst.fragment()
	}
	if inst.comp == nil {
		return nil
	}
	return inst.comp.Render()
}

// fixedCascade reports whether descendants may skip re-rendering when the
// cascaded value is unchanged.
func (inst *instance) fixedCascade() bool {
	cv, ok := inst.comp.(*CascadingValue)
	return !ok || cv.IsFixed
}

func sameType(a, b vdom.Component) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}
