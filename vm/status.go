package vm

import "fmt"

// Status is the outcome of a protected call. The set is closed: these are
// the only results RawRunProtected can produce.
type Status int

const (
	StatusOk        Status = 0 // Completed normally
	StatusYield     Status = 1 // Thread yielded
	StatusErrRun    Status = 2 // Runtime error
	StatusErrSyntax Status = 3 // Bytecode could not be loaded
	StatusErrMem    Status = 4 // Memory limit reached
	StatusErrErr    Status = 5 // Error while running the error handler
	StatusBreak     Status = 6 // Debugger break
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusYield:
		return "yield"
	case StatusErrRun:
		return "runtime error"
	case StatusErrSyntax:
		return "syntax error"
	case StatusErrMem:
		return "memory error"
	case StatusErrErr:
		return "error in error handling"
	case StatusBreak:
		return "break"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsError reports whether the status is an abnormal termination.
func (s Status) IsError() bool {
	return s != StatusOk && s != StatusYield && s != StatusBreak
}
