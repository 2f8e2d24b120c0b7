package compiler

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ParseError is a single syntax error with its source location.
type ParseError struct {
	Location Span
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Location.Start.Line+1, e.Location.Start.Column+1, e.Message)
}

// ParseErrors holds every syntax error found in one parse, in source order.
type ParseErrors struct {
	multi *multierror.Error
}

func newParseErrors(errs []*ParseError) *ParseErrors {
	pe := &ParseErrors{multi: &multierror.Error{ErrorFormat: formatParseErrors}}
	for _, e := range errs {
		pe.multi = multierror.Append(pe.multi, e)
	}
	return pe
}

func formatParseErrors(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msg := fmt.Sprintf("%d parse errors:", len(errs))
	for _, e := range errs {
		msg += "\n\t" + e.Error()
	}
	return msg
}

// Error implements error.
func (e *ParseErrors) Error() string {
	return e.multi.Error()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *ParseErrors) Unwrap() []error {
	return e.multi.WrappedErrors()
}

// Errors returns the individual parse errors in source order.
func (e *ParseErrors) Errors() []*ParseError {
	out := make([]*ParseError, 0, e.multi.Len())
	for _, err := range e.multi.WrappedErrors() {
		out = append(out, err.(*ParseError))
	}
	return out
}

// Len returns the number of parse errors.
func (e *ParseErrors) Len() int {
	return e.multi.Len()
}

// CompileError is the single semantic or code generation error a
// compilation can report.
type CompileError struct {
	Location Span
	Message  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Location.Start.Line+1, e.Location.Start.Column+1, e.Message)
}
