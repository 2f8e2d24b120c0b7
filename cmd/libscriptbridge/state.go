package main

/*
#include "scriptbridge.h"
*/
import "C"
import (
	"runtime/cgo"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/vm"
)

// ============================================================================
// VM states
// ============================================================================

// VM values never cross the boundary. Results of the protected primitives
// are pinned in the registry and handed out as reference numbers; threads
// are handed out as state handles.

// stateHandle is a cgo.Handle to a *vm.State. Zero is the null handle.
type stateHandle = C.SBState

// statusNoState is returned by every state export given the null handle
// or a closed one.
var statusNoState = C.SBStatus(C.SB_ERRRUN)

// stateOf resolves a state handle, or returns nil for the null handle and
// for handles that were never issued or are already closed.
func stateOf(h stateHandle) (L *vm.State) {
	if h == 0 {
		return nil
	}
	defer func() {
		if recover() != nil {
			L = nil
		}
	}()
	L, _ = cgo.Handle(h).Value().(*vm.State)
	return L
}

func newStateHandle(L *vm.State) stateHandle {
	return stateHandle(cgo.NewHandle(L))
}

// pin stores v in the registry and writes its reference to result.
func pin(L *vm.State, v vm.Value, result *C.int) C.SBStatus {
	status, ref := glue.Ref(L, v)
	if r, ok := ref.Get(); ok && result != nil {
		*result = C.int(r)
	}
	return C.SBStatus(status)
}

// pinResult pins the result of a protected primitive when it succeeded.
func pinResult[T any](L *vm.State, status vm.Status, v glue.Optional[T], result *C.int) C.SBStatus {
	got, ok := v.Get()
	if !ok {
		return C.SBStatus(status)
	}
	return pin(L, got, result)
}

//export SB_NewState
func SB_NewState() C.SBState {
	return newStateHandle(vm.NewState())
}

//export SB_CloseState
func SB_CloseState(state C.SBState) {
	if stateOf(state) != nil {
		cgo.Handle(state).Delete()
	}
}

//export SB_SetMemoryLimit
func SB_SetMemoryLimit(state C.SBState, limit C.int64_t) {
	if L := stateOf(state); L != nil {
		L.Global().SetMemoryLimit(int64(limit))
	}
}

//export SB_LastError
func SB_LastError(state C.SBState) C.SBBuffer {
	L := stateOf(state)
	if L == nil || L.LastError() == nil {
		return C.SBBuffer{}
	}
	return bufferToC(glue.StringBuffer(L.LastError().Error()))
}

// ============================================================================
// Protected primitives
// ============================================================================

//export SB_Ref
func SB_Ref(state C.SBState, ref C.int, result *C.int) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	return pin(L, L.GetRef(int(ref)), result)
}

//export SB_Unref
func SB_Unref(state C.SBState, ref C.int) {
	if L := stateOf(state); L != nil {
		L.Unref(int(ref))
	}
}

//export SB_NewLString
func SB_NewLString(state C.SBState, str *C.char, n C.size_t, result *C.int) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	status, s := glue.NewLString(L, cBytes(str, n))
	return pinResult(L, status, s, result)
}

//export SB_NewTable
func SB_NewTable(state C.SBState, narray, lnhash C.int, result *C.int) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	status, t := glue.NewTable(L, int(narray), int(lnhash))
	return pinResult(L, status, t, result)
}

//export SB_NewUserdata
func SB_NewUserdata(state C.SBState, size C.size_t, tag C.int, result *C.int) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	status, ud := glue.NewUserdata(L, int(size), int(tag))
	return pinResult(L, status, ud, result)
}

//export SB_NewThread
func SB_NewThread(state C.SBState, result *C.SBState) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	status, th := glue.NewThread(L)
	if t, ok := th.Get(); ok && result != nil {
		*result = newStateHandle(t)
	}
	return C.SBStatus(status)
}

//export SB_NewBuffer
func SB_NewBuffer(state C.SBState, n C.size_t, result *C.int) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	status, b := glue.NewBuffer(L, int(n))
	return pinResult(L, status, b, result)
}

//export SB_Sandbox
func SB_Sandbox(state C.SBState) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	return C.SBStatus(glue.Sandbox(L))
}

//export SB_SandboxThread
func SB_SandboxThread(state C.SBState) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	return C.SBStatus(glue.SandboxThread(L))
}

// ============================================================================
// Loading and calling
// ============================================================================

//export SB_Load
func SB_Load(state C.SBState, chunkname *C.char, bytecode C.SBBuffer, result *C.int) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	fn, err := L.Load(C.GoString(chunkname), cBytes(bytecode.data, bytecode.len))
	if err != nil {
		return C.SBStatus(err.(*vm.Error).Status)
	}
	return pin(L, fn, result)
}

//export SB_Call
func SB_Call(state C.SBState, fnRef C.int, result *C.int) C.SBStatus {
	L := stateOf(state)
	if L == nil {
		return statusNoState
	}
	status, v := glue.Call(L, L.GetRef(int(fnRef)))
	return pinResult(L, status, v, result)
}
