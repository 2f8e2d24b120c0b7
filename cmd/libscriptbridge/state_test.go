package main

import (
	"testing"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/vm"
)

// stateCalls runs every status-returning state export against h and
// reports each status by export name.
func stateCalls(h stateHandle) map[string]vm.Status {
	return map[string]vm.Status{
		"SB_Ref":           vm.Status(SB_Ref(h, 1, nil)),
		"SB_NewLString":    vm.Status(SB_NewLString(h, nil, 0, nil)),
		"SB_NewTable":      vm.Status(SB_NewTable(h, 0, 0, nil)),
		"SB_NewUserdata":   vm.Status(SB_NewUserdata(h, 8, 0, nil)),
		"SB_NewThread":     vm.Status(SB_NewThread(h, nil)),
		"SB_NewBuffer":     vm.Status(SB_NewBuffer(h, 8, nil)),
		"SB_Sandbox":       vm.Status(SB_Sandbox(h)),
		"SB_SandboxThread": vm.Status(SB_SandboxThread(h)),
		"SB_Load":          vm.Status(SB_Load(h, nil, SB_LastError(0), nil)),
		"SB_Call":          vm.Status(SB_Call(h, 1, nil)),
	}
}

func checkNoState(t *testing.T, h stateHandle) {
	t.Helper()
	for name, status := range stateCalls(h) {
		if status != vm.Status(statusNoState) {
			t.Errorf("%s = %s, want %s", name, status, vm.Status(statusNoState))
		}
	}

	SB_SetMemoryLimit(h, 1<<20)
	SB_Unref(h, 1)
	if b := SB_LastError(h); b.data != nil || b.len != 0 {
		t.Errorf("SB_LastError returned a %d byte buffer", b.len)
	}
	SB_CloseState(h)
}

func TestStateExportsNullHandle(t *testing.T) {
	checkNoState(t, 0)
}

func TestStateExportsClosedHandle(t *testing.T) {
	h := SB_NewState()
	if stateOf(h) == nil {
		t.Fatal("new state handle does not resolve")
	}
	SB_CloseState(h)
	if stateOf(h) != nil {
		t.Fatal("closed handle still resolves")
	}
	checkNoState(t, h)
}

func TestStateLoadAndCall(t *testing.T) {
	h := SB_NewState()
	defer SB_CloseState(h)

	src := bufferToC(glue.StringBuffer("local a, b = 1, 2\nreturn a + b"))
	defer SB_FreeBuffer(src)
	code := SB_CompileUnchecked(src, SB_DefaultCompileOpts(), SB_DefaultParseOpts())
	defer SB_FreeBuffer(code)

	fn := SB_CompileOptsVersion()
	if status := vm.Status(SB_Load(h, nil, code, &fn)); status != vm.StatusOk {
		t.Fatalf("SB_Load = %s: %s", status, bufferFromC(SB_LastError(h)).String())
	}
	out := fn
	if status := vm.Status(SB_Call(h, fn, &out)); status != vm.StatusOk {
		t.Fatalf("SB_Call = %s: %s", status, bufferFromC(SB_LastError(h)).String())
	}
	if got := stateOf(h).GetRef(int(out)); got != 3.0 {
		t.Errorf("call result = %v, want 3", got)
	}
	SB_Unref(h, fn)
	SB_Unref(h, out)
}

func TestStateLoadRejectsCompileError(t *testing.T) {
	h := SB_NewState()
	defer SB_CloseState(h)

	src := bufferToC(glue.StringBuffer("local x = 1\nbreak"))
	defer SB_FreeBuffer(src)
	code := SB_CompileUnchecked(src, SB_DefaultCompileOpts(), SB_DefaultParseOpts())
	defer SB_FreeBuffer(code)

	if status := vm.Status(SB_Load(h, nil, code, nil)); status != vm.StatusErrSyntax {
		t.Fatalf("SB_Load = %s, want %s", status, vm.StatusErrSyntax)
	}
	msg := SB_LastError(h)
	defer SB_FreeBuffer(msg)
	if got := bufferFromC(msg).String(); got == "" {
		t.Error("no error message after a failed load")
	}
}

func TestStateNewThread(t *testing.T) {
	h := SB_NewState()
	defer SB_CloseState(h)

	th := SB_NewState()
	parent := th
	if status := vm.Status(SB_NewThread(h, &th)); status != vm.StatusOk {
		t.Fatalf("SB_NewThread = %s", status)
	}
	SB_CloseState(parent)
	defer SB_CloseState(th)

	if th == parent || stateOf(th) == nil {
		t.Fatal("SB_NewThread did not hand out a new state handle")
	}
	if status := vm.Status(SB_SandboxThread(th)); status != vm.StatusOk {
		t.Errorf("SB_SandboxThread = %s", status)
	}
}
