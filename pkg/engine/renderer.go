package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sort"

	"github.com/vango-dev/vharness/pkg/vdom"
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBatchHandler registers the handler for completed render batches.
func WithBatchHandler(h BatchHandler) Option {
	return func(r *Renderer) {
		r.batchHandler = h
	}
}

type handlerEntry struct {
	owner *instance
	event string
	fn    any
}

// Renderer mounts components and renders them into frames.
type Renderer struct {
	logger       *slog.Logger
	batchHandler BatchHandler

	components map[int]*instance
	handlers   map[uint64]handlerEntry

	nextComponentID int
	nextHandlerID   uint64

	queue     []*instance
	batch     *Batch
	rendering bool
	inEvent   bool
	disposed  bool
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		components: make(map[int]*instance),
		handlers:   make(map[uint64]handlerEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetBatchHandler registers the handler for completed render batches,
// replacing any previous one.
func (r *Renderer) SetBatchHandler(h BatchHandler) {
	r.batchHandler = h
}

// AssignRoot mounts c as a root component without rendering it.
func (r *Renderer) AssignRoot(c vdom.Component) int {
	inst := r.mount(c, nil, nil)
	r.logger.Debug("root assigned", "component_id", inst.id, "type", fmt.Sprintf("%T", c))
	return inst.id
}

// RenderRoot renders fragment as the output of root id.
func (r *Renderer) RenderRoot(id int, fragment vdom.RenderFragment) error {
	if r.disposed {
		return ErrDisposed
	}
	inst, ok := r.components[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownComponent, id)
	}
	return inst.h.Render(fragment)
}

// Frames returns the current frames of component id.
// The returned slice must not be modified.
func (r *Renderer) Frames(id int) ([]vdom.Frame, error) {
	inst, ok := r.components[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownComponent, id)
	}
	return inst.frames, nil
}

// Component returns the live instance of component id.
func (r *Renderer) Component(id int) (vdom.Component, error) {
	inst, ok := r.components[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownComponent, id)
	}
	return inst.comp, nil
}

// DispatchEvent invokes the handler registered under handlerID, re-renders
// the component that owns it and processes any other queued renders.
// args is passed to handlers that take an argument; when nil, the field
// value is passed instead.
func (r *Renderer) DispatchEvent(handlerID uint64, field EventFieldInfo, args any) error {
	if r.disposed {
		return ErrDisposed
	}
	entry, ok := r.handlers[handlerID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandler, handlerID)
	}
	if args == nil {
		args = field.FieldValue
	}

	r.logger.Debug("dispatch event",
		"handler_id", handlerID,
		"event", entry.event,
		"component_id", entry.owner.id)

	r.inEvent = true
	handlerErr := r.invokeHandler(entry, args)
	r.inEvent = false
	if !entry.owner.disposed {
		r.enqueue(entry.owner)
	}
	renderErr := r.processQueue()
	return errors.Join(handlerErr, renderErr)
}

// Dispose unmounts every component. The final batch lists all of them.
func (r *Renderer) Dispose() {
	if r.disposed {
		return
	}
	var roots []int
	for id, inst := range r.components {
		if inst.parent == nil {
			roots = append(roots, id)
		}
	}
	sort.Ints(roots)

	batch := &Batch{}
	for _, id := range roots {
		r.dispose(r.components[id], batch)
	}
	r.disposed = true
	r.queue = nil
	r.complete(batch)
}

// invokeHandler calls an event handler, recovering panics.
func (r *Renderer) invokeHandler(entry handlerEntry, args any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{ComponentID: entry.owner.id, Op: "event", Value: p, Stack: debug.Stack()}
		}
	}()

	switch fn := entry.fn.(type) {
	case func():
		fn()
	case func(any):
		fn(args)
	case func() error:
		return fn()
	case func(any) error:
		return fn(args)
	default:
		return fmt.Errorf("engine: unsupported handler type %T", entry.fn)
	}
	return nil
}

// mount creates and registers an instance.
func (r *Renderer) mount(c vdom.Component, parent *instance, scope *cascadeScope) *instance {
	r.nextComponentID++
	inst := &instance{
		id:     r.nextComponentID,
		comp:   c,
		parent: parent,
		scope:  scope,
	}
	inst.h = &Handle{r: r, inst: inst}
	r.components[inst.id] = inst
	if a, ok := c.(Attacher); ok {
		a.Attach(inst.h)
	}
	return inst
}

// enqueue schedules inst for rendering in the current or next pass.
func (r *Renderer) enqueue(inst *instance) {
	if inst.queued || inst.disposed {
		return
	}
	inst.queued = true
	r.queue = append(r.queue, inst)
}

// processQueue renders queued components until the queue is empty, then
// reports the batch. Calls made during a pass or an event handler return
// immediately; the outer call picks up their work.
func (r *Renderer) processQueue() error {
	if r.rendering || r.inEvent || r.disposed {
		return nil
	}
	r.rendering = true
	r.batch = &Batch{}

	var errs []error
	for len(r.queue) > 0 {
		inst := r.queue[0]
		r.queue = r.queue[1:]
		if err := r.renderInstance(inst); err != nil {
			errs = append(errs, err)
		}
	}

	batch := r.batch
	r.batch = nil
	r.rendering = false
	r.complete(batch)
	return errors.Join(errs...)
}

// complete hands a finished batch to the batch handler.
func (r *Renderer) complete(batch *Batch) {
	if batch.Empty() {
		return
	}
	r.logger.Debug("render batch",
		"updated", len(batch.UpdatedComponents),
		"disposed", len(batch.DisposedComponents),
		"disposed_handlers", len(batch.DisposedHandlers))
	if r.batchHandler != nil {
		r.batchHandler.OnBatchComplete(batch)
	}
}

// renderInstance renders one component and reconciles its children.
func (r *Renderer) renderInstance(inst *instance) error {
	inst.queued = false
	if inst.disposed {
		return nil
	}

	tree, err := r.safeRender(inst)
	if err != nil {
		return err
	}

	for _, id := range inst.handlers {
		delete(r.handlers, id)
		r.batch.DisposedHandlers = append(r.batch.DisposedHandlers, id)
	}
	inst.handlers = inst.handlers[:0]

	var (
		errs        []error
		previous    = inst.children
		reused      = make(map[*instance]bool, len(previous))
		children    []*instance
		childScope  = inst.childScope()
		forceRender = !inst.fixedCascade()
	)

	frames := vdom.Flatten(tree, vdom.FlattenHooks{
		Component: func(index int, node *vdom.VNode) (int, vdom.Component) {
			params := Parameters{params: normalizeParams(node.Params), scope: childScope}

			if index < len(previous) {
				old := previous[index]
				if !old.disposed && sameType(old.comp, node.Comp) {
					reused[old] = true
					children = append(children, old)
					old.scope = childScope
					if forceRender || !old.params.equal(params) {
						if err := r.setParameters(old, params); err != nil {
							errs = append(errs, err)
						} else {
							r.enqueue(old)
						}
					}
					return old.id, old.comp
				}
			}

			child := r.mount(node.Comp, inst, childScope)
			children = append(children, child)
			if err := r.setParameters(child, params); err != nil {
				errs = append(errs, err)
			} else {
				r.enqueue(child)
			}
			return child.id, child.comp
		},
		Handler: func(event string, fn any) uint64 {
			r.nextHandlerID++
			id := r.nextHandlerID
			r.handlers[id] = handlerEntry{owner: inst, event: event, fn: fn}
			inst.handlers = append(inst.handlers, id)
			return id
		},
	})

	for _, old := range previous {
		if !reused[old] {
			r.dispose(old, r.batch)
		}
	}

	inst.children = children
	inst.frames = frames
	r.batch.UpdatedComponents = append(r.batch.UpdatedComponents, inst.id)
	return errors.Join(errs...)
}

// safeRender evaluates inst's output, recovering panics.
func (r *Renderer) safeRender(inst *instance) (tree *vdom.VNode, err error) {
	defer func() {
		if p := recover(); p != nil {
			stack := debug.Stack()
			r.logger.Error("component render panic",
				"component_id", inst.id,
				"panic", p)
			err = &PanicError{ComponentID: inst.id, Op: "render", Value: p, Stack: stack}
		}
	}()
	return inst.output(), nil
}

// setParameters delivers params to inst, recovering panics.
func (r *Renderer) setParameters(inst *instance, params Parameters) (err error) {
	inst.params = params
	receiver, ok := inst.comp.(ParameterReceiver)
	if !ok {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{ComponentID: inst.id, Op: "parameters", Value: p, Stack: debug.Stack()}
		}
	}()
	if err := receiver.SetParameters(params); err != nil {
		return fmt.Errorf("component %d: set parameters: %w", inst.id, err)
	}
	return nil
}

// dispose unmounts inst and its descendants, children first.
func (r *Renderer) dispose(inst *instance, batch *Batch) {
	if inst.disposed {
		return
	}
	for i := len(inst.children) - 1; i >= 0; i-- {
		r.dispose(inst.children[i], batch)
	}
	inst.children = nil
	inst.disposed = true

	for _, id := range inst.handlers {
		delete(r.handlers, id)
		batch.DisposedHandlers = append(batch.DisposedHandlers, id)
	}
	inst.handlers = nil
	delete(r.components, inst.id)
	batch.DisposedComponents = append(batch.DisposedComponents, inst.id)

	if d, ok := inst.comp.(Disposer); ok {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("component dispose panic", "component_id", inst.id, "panic", p)
				}
			}()
			d.Dispose()
		}()
	}
}
