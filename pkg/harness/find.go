package harness

import (
	"reflect"

	"github.com/vango-dev/vharness/pkg/vdom"
)

// ComponentRef is a component found in the render tree.
type ComponentRef[T any] struct {
	ID       int
	Instance T
}

// FindComponent returns the first component of type T below rootID, in
// pre-order. T may be a concrete type or an interface.
func FindComponent[T any](h *Harness, rootID int) (ComponentRef[T], error) {
	var refs []ComponentRef[T]
	err := h.dispatcher.Invoke(func() error {
		refs = searchComponents[T](h.frameSource(), rootID, true)
		return nil
	})
	if err != nil {
		return ComponentRef[T]{}, err
	}
	if len(refs) == 0 {
		return ComponentRef[T]{}, &ComponentNotFoundError{Type: typeOf[T]()}
	}
	return refs[0], nil
}

// FindComponents returns every component of type T below rootID, in
// pre-order. Matches nested inside other matches are included. The result
// is empty, not an error, when nothing matches.
func FindComponents[T any](h *Harness, rootID int) ([]ComponentRef[T], error) {
	var refs []ComponentRef[T]
	err := h.dispatcher.Invoke(func() error {
		refs = searchComponents[T](h.frameSource(), rootID, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []ComponentRef[T]{}
	}
	return refs, nil
}

// cursor is a position in one component's frames.
type cursor struct {
	frames []vdom.Frame
	index  int
}

// searchComponents walks the tree below rootID depth-first with an explicit
// stack. A component frame is tested, then its own frames are searched
// before the frames that follow it. Every component is descended into,
// matching or not. Runs on the dispatcher.
func searchComponents[T any](src vdom.FrameSource, rootID int, single bool) []ComponentRef[T] {
	var out []ComponentRef[T]

	rootFrames, _ := src.Frames(rootID)
	stack := []cursor{{frames: rootFrames}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.index >= len(top.frames) {
			stack = stack[:len(stack)-1]
			continue
		}
		f := top.frames[top.index]
		top.index++
		if f.Kind != vdom.FrameComponent {
			continue
		}

		if inst, ok := f.Component.(T); ok {
			out = append(out, ComponentRef[T]{ID: f.ComponentID, Instance: inst})
			if single {
				return out
			}
		}

		childFrames, _ := src.Frames(f.ComponentID)
		stack = append(stack, cursor{frames: childFrames})
	}
	return out
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
