package vm

import (
	"fmt"
	"runtime"
	"strings"
)

// ---------------------------------------------------------------------------
// Error signaling (Go panic/recover, caught only by the protected barrier)
// ---------------------------------------------------------------------------

// throw is the panic payload for a raised VM error.
type throw struct {
	status Status
	value  Value
}

// Error is a VM error surfaced to Go callers.
type Error struct {
	Status Status
	Value  Value // The error value raised by the script or the VM
}

func (e *Error) Error() string {
	if s, ok := e.Value.(*String); ok {
		return s.s
	}
	if e.Value == nil {
		return e.Status.String()
	}
	return fmt.Sprintf("(error object is a %s value)", TypeName(e.Value))
}

// throw raises a VM error. It never returns.
func (L *State) throw(status Status, v Value) {
	panic(&throw{status: status, value: v})
}

// runError raises a runtime error whose message is prefixed with the
// current script position.
func (L *State) runError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	L.throw(StatusErrRun, L.intern(L.where(1)+msg))
}

// Errorf raises a runtime error from a host function.
func (L *State) Errorf(format string, args ...any) {
	L.runError(format, args...)
}

// where returns "chunk:line: " for the script frame level levels up, or ""
// when that frame has no line information.
func (L *State) where(level int) string {
	fr := L.ci
	for i := 1; i < level && fr != nil; i++ {
		fr = fr.parent
	}
	if fr == nil {
		return ""
	}
	line := fr.cl.proto.lineAt(fr.pc)
	if line < 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d: ", fr.cl.proto.source, line+1)
}

// RawRunProtected runs fn and converts any VM error raised inside it into
// a status. Panics that are not VM errors become StatusErrRun with the
// panic text as the error value, so nothing unwinds past this call. The
// thread's call state is restored on failure.
func RawRunProtected(L *State, fn func()) (status Status) {
	ci, depth := L.ci, L.depth
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		L.ci, L.depth = ci, depth

		switch t := r.(type) {
		case *throw:
			L.lastErr = &Error{Status: t.status, Value: t.value}
			status = t.status
		case runtime.Error:
			L.lastErr = &Error{Status: StatusErrRun, Value: L.safeString("internal error: " + t.Error())}
			status = StatusErrRun
		default:
			L.lastErr = &Error{Status: StatusErrRun, Value: L.safeString(fmt.Sprint(r))}
			status = StatusErrRun
		}
		log.Debugf("protected call failed: %s: %s", status, L.lastErr)
	}()
	fn()
	L.lastErr = nil
	return StatusOk
}

// safeString interns s when memory allows, otherwise returns an
// unaccounted string.
func (L *State) safeString(s string) *String {
	if str, ok := L.g.strings[s]; ok {
		return str
	}
	return &String{s: s}
}

// LastError returns the error recorded by the most recent failed
// protected call on this thread, or nil.
func (L *State) LastError() *Error {
	return L.lastErr
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// Call invokes fn with args. Errors are raised, not returned; use PCall
// outside a protected region.
func (L *State) Call(fn Value, args ...Value) Value {
	return L.call(fn, args)
}

// PCall invokes fn with args under protection.
func (L *State) PCall(fn Value, args ...Value) (Value, error) {
	var result Value
	if status := RawRunProtected(L, func() { result = L.call(fn, args) }); status != StatusOk {
		return nil, L.lastErr
	}
	return result, nil
}

// XPCall is PCall with an error handler. The handler receives the error
// value and its result becomes the error value. If the handler itself
// fails the status is StatusErrErr.
func (L *State) XPCall(fn Value, handler Value, args ...Value) (Value, error) {
	result, err := L.PCall(fn, args...)
	if err == nil {
		return result, nil
	}
	e := err.(*Error)
	if e.Status == StatusErrMem {
		return nil, e
	}
	var handled Value
	if status := RawRunProtected(L, func() { handled = L.call(handler, []Value{e.Value}) }); status != StatusOk {
		return nil, &Error{Status: StatusErrErr, Value: L.lastErr.Value}
	}
	return nil, &Error{Status: e.Status, Value: handled}
}

// Traceback formats the active script frames, innermost first.
func (L *State) Traceback() string {
	var sb strings.Builder
	for fr := L.ci; fr != nil; fr = fr.parent {
		p := fr.cl.proto
		name := p.name
		if name == "" {
			name = "?"
		}
		if line := p.lineAt(fr.pc); line >= 0 {
			fmt.Fprintf(&sb, "%s:%d function %s\n", p.source, line+1, name)
		} else {
			fmt.Fprintf(&sb, "%s function %s\n", p.source, name)
		}
	}
	return sb.String()
}
