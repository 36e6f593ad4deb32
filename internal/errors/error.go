package errors

import (
	"errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryRuntime Category = "runtime"
	CategoryQuery   Category = "query"
	CategoryConfig  Category = "config"
	CategoryCLI     Category = "cli"
)

// HarnessError is a structured error with a stable code.
type HarnessError struct {
	// Code is a unique error identifier (e.g., "H001").
	Code string

	// Category is the error type (runtime, query, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail describes this occurrence.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *HarnessError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *HarnessError) Unwrap() error {
	return e.Wrapped
}

// Is matches any HarnessError carrying the same code, so a sentinel created
// with New matches every occurrence built from the same code.
func (e *HarnessError) Is(target error) bool {
	t, ok := target.(*HarnessError)
	if !ok || t.Code == "" {
		return false
	}
	return e.Code == t.Code
}

// WithDetail returns a copy of the error describing one occurrence.
func (e *HarnessError) WithDetail(format string, args ...any) *HarnessError {
	c := *e
	c.Detail = fmt.Sprintf(format, args...)
	return &c
}

// WithSuggestion adds a fix suggestion to the error.
func (e *HarnessError) WithSuggestion(s string) *HarnessError {
	c := *e
	c.Suggestion = s
	return &c
}

// Wrap returns a copy of the error wrapping err.
func (e *HarnessError) Wrap(err error) *HarnessError {
	c := *e
	c.Wrapped = err
	return &c
}

// New creates a HarnessError from a registered error code.
func New(code string) *HarnessError {
	template, ok := registry[code]
	if !ok {
		return &HarnessError{
			Code:    code,
			Message: "unknown error",
		}
	}
	return &HarnessError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
	}
}

// Newf creates a new HarnessError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *HarnessError {
	return &HarnessError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a HarnessError.
func FromError(err error, code string) *HarnessError {
	if err == nil {
		return nil
	}
	var he *HarnessError
	if errors.As(err, &he) {
		return he
	}
	return New(code).Wrap(err)
}

// Code returns the code of the first HarnessError in err's chain, or "".
func Code(err error) string {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Code
	}
	if c, ok := err.(interface{ Code() string }); ok {
		return c.Code()
	}
	return ""
}
