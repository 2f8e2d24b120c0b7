package vm

import (
	"strings"
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusOk, "ok"},
		{StatusYield, "yield"},
		{StatusErrRun, "runtime error"},
		{StatusErrSyntax, "syntax error"},
		{StatusErrMem, "memory error"},
		{StatusErrErr, "error in error handling"},
		{StatusBreak, "break"},
		{Status(42), "Status(42)"},
	}
	for _, tc := range tests {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tc.s), got, tc.want)
		}
	}
	if StatusOk.IsError() || StatusYield.IsError() || !StatusErrMem.IsError() {
		t.Error("IsError classification is wrong")
	}
}

func TestRawRunProtectedForeignPanics(t *testing.T) {
	L := NewState()

	status := RawRunProtected(L, func() {
		var m map[string]int
		m["x"] = 1
	})
	if status != StatusErrRun {
		t.Fatalf("runtime panic status = %v", status)
	}
	if msg := L.LastError().Error(); !strings.HasPrefix(msg, "internal error: ") {
		t.Errorf("runtime panic message = %q", msg)
	}

	status = RawRunProtected(L, func() { panic("host failure") })
	if status != StatusErrRun || L.LastError().Error() != "host failure" {
		t.Errorf("string panic = %v, %v", status, L.LastError())
	}

	if status := RawRunProtected(L, func() {}); status != StatusOk || L.LastError() != nil {
		t.Errorf("clean run = %v, last error %v", status, L.LastError())
	}
}

func TestXPCall(t *testing.T) {
	L := NewState()
	fail := load(t, L, "error('boom')")
	ok := load(t, L, "return 7")

	wrap := &GoFunction{Name: "wrap", Fn: func(L *State, args []Value) Value {
		return L.NewString("handled: " + ToString(arg(args, 0)))
	}}
	broken := &GoFunction{Name: "broken", Fn: func(L *State, args []Value) Value {
		L.Errorf("handler failed")
		return nil
	}}

	if got, err := L.XPCall(ok, wrap); err != nil || got != 7.0 {
		t.Errorf("success = %v, %v", got, err)
	}

	_, err := L.XPCall(fail, wrap)
	e, isErr := err.(*Error)
	if !isErr || e.Status != StatusErrRun || e.Error() != "handled: test:1: boom" {
		t.Errorf("handled error = %v", err)
	}

	_, err = L.XPCall(fail, broken)
	e, isErr = err.(*Error)
	if !isErr || e.Status != StatusErrErr {
		t.Errorf("failing handler = %v, want %v", err, StatusErrErr)
	}
}

func TestErrorMessageForms(t *testing.T) {
	L := NewState()
	tests := []struct {
		e    *Error
		want string
	}{
		{&Error{Status: StatusErrRun, Value: L.NewString("plain")}, "plain"},
		{&Error{Status: StatusErrMem}, "memory error"},
		{&Error{Status: StatusErrRun, Value: 3.0}, "(error object is a number value)"},
	}
	for _, tc := range tests {
		if got := tc.e.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}

func TestTraceback(t *testing.T) {
	L := NewState()
	var trace string
	L.Register("capture", func(L *State, args []Value) Value {
		trace = L.Traceback()
		return nil
	})
	if _, err := runScript(t, L, "local function inner()\n  capture()\nend\ninner()"); err != nil {
		t.Fatalf("error: %v", err)
	}
	if !strings.Contains(trace, "function inner") {
		t.Errorf("traceback = %q, want inner frame", trace)
	}
}
