package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownComponent is returned for ids the renderer does not own,
	// including ids of components that were already disposed.
	ErrUnknownComponent = errors.New("engine: unknown component")

	// ErrUnknownHandler is returned when dispatching to a handler id that
	// is not registered, usually because its element was re-rendered away.
	ErrUnknownHandler = errors.New("engine: unknown event handler")

	// ErrDisposed is returned by a renderer after Dispose.
	ErrDisposed = errors.New("engine: renderer disposed")
)

// PanicError wraps a panic recovered while running component code.
type PanicError struct {
	ComponentID int
	Op          string // "render", "parameters", "event", "dispose"
	Value       any
	Stack       []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("engine: component %d panicked during %s: %v", e.ComponentID, e.Op, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
