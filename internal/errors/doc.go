// Package errors provides the coded errors used across vharness.
//
// Every error the harness returns to test code carries a stable code from
// the registry:
//
//	H001  component not found
//	H002  invalid operation
//	H003  unhandled render error
//	H004  dispatcher closed
//
// Codes in the H01x range belong to markup queries, C00x to configuration
// and X00x to the command line tool.
//
// Errors built from the same code match each other with errors.Is, so a
// sentinel and an occurrence carrying detail compare equal:
//
//	var ErrInvalidOperation = errors.New(errors.CodeInvalidOperation)
//
//	err := ErrInvalidOperation.WithDetail("no snapshot saved")
//	stderrors.Is(err, ErrInvalidOperation) // true
package errors
