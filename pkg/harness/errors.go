package harness

import (
	"errors"
	"fmt"
	"reflect"

	errs "github.com/vango-dev/vharness/internal/errors"
)

var (
	// ErrComponentNotFound matches every *ComponentNotFoundError.
	ErrComponentNotFound = errs.New(errs.CodeComponentNotFound)

	// ErrInvalidOperation reports a call that is not valid in the current
	// state: a diff without a snapshot, a nil cascading value, a disposed
	// view or parameters sent to the root wrapper.
	ErrInvalidOperation = errs.New(errs.CodeInvalidOperation)

	// ErrUnhandledRender matches every *UnhandledRenderError.
	ErrUnhandledRender = errs.New(errs.CodeUnhandledRender)

	// ErrDispatcherClosed is returned for work submitted after Close.
	ErrDispatcherClosed = errs.New(errs.CodeDispatcherClosed)

	// ErrElementNotFound is returned by Find when no element matches.
	ErrElementNotFound = errs.New(errs.CodeNoMatch)

	// ErrInvalidSelector wraps selector syntax errors.
	ErrInvalidSelector = errs.New(errs.CodeInvalidSelector)

	// ErrQueueFull is returned by Post when the dispatch queue is full.
	ErrQueueFull = errors.New("harness: dispatch queue full")
)

// ComponentNotFoundError is returned when a single-match search finds no
// component of the requested type.
type ComponentNotFoundError struct {
	Type reflect.Type
}

func (e *ComponentNotFoundError) Error() string {
	return fmt.Sprintf("%s: component not found: %s", errs.CodeComponentNotFound, e.Type)
}

// Code returns the registered error code.
func (e *ComponentNotFoundError) Code() string { return errs.CodeComponentNotFound }

// Is matches ErrComponentNotFound.
func (e *ComponentNotFoundError) Is(target error) bool {
	return target == error(ErrComponentNotFound)
}

// UnhandledRenderError carries a failure raised by a dispatched callback or
// the render pass it triggered. Exactly one of Cause and Panic is usually
// set; engine panics recovered by the engine itself arrive as a Cause with
// Panic and Stack copied from it.
type UnhandledRenderError struct {
	Cause error
	Panic any
	Stack []byte
}

func (e *UnhandledRenderError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s: unhandled render error: %v", errs.CodeUnhandledRender, e.Cause)
	default:
		return fmt.Sprintf("%s: unhandled render error: panic: %v", errs.CodeUnhandledRender, e.Panic)
	}
}

// Code returns the registered error code.
func (e *UnhandledRenderError) Code() string { return errs.CodeUnhandledRender }

// Unwrap returns the cause.
func (e *UnhandledRenderError) Unwrap() error { return e.Cause }

// Is matches ErrUnhandledRender.
func (e *UnhandledRenderError) Is(target error) bool {
	return target == error(ErrUnhandledRender)
}

// invalidOperation builds an ErrInvalidOperation occurrence.
func invalidOperation(format string, args ...any) error {
	return ErrInvalidOperation.WithDetail(format, args...)
}
