package glue

import "github.com/chazu/scriptbridge/vm"

// ---------------------------------------------------------------------------
// Protected calls
// ---------------------------------------------------------------------------

// Protect runs op under the VM's protected-call barrier. Any error the VM
// raises during op, including memory exhaustion, is caught and returned as
// a status. The result is present only when the status is vm.StatusOk.
func Protect[T any](L *vm.State, op func() T) (vm.Status, Optional[T]) {
	var result T
	status := vm.RawRunProtected(L, func() { result = op() })
	if status != vm.StatusOk {
		log.Debugf("protected call: %s: %s", status, L.LastError())
		return status, None[T]()
	}
	return status, Some(result)
}

// ProtectVoid is Protect for operations without a result.
func ProtectVoid(L *vm.State, op func()) vm.Status {
	status, _ := Protect(L, func() struct{} {
		op()
		return struct{}{}
	})
	return status
}

// Ref pins v in the registry and returns its reference.
func Ref(L *vm.State, v vm.Value) (vm.Status, Optional[int]) {
	return Protect(L, func() int { return L.Ref(v) })
}

// NewLString interns data as a string.
func NewLString(L *vm.State, data []byte) (vm.Status, Optional[*vm.String]) {
	return Protect(L, func() *vm.String { return L.NewLString(data) })
}

// NewTable creates a table with array and hash size hints.
func NewTable(L *vm.State, narray, lnhash int) (vm.Status, Optional[*vm.Table]) {
	return Protect(L, func() *vm.Table { return L.NewTable(narray, lnhash) })
}

// NewUserdata allocates a tagged userdata block of size bytes.
func NewUserdata(L *vm.State, size, tag int) (vm.Status, Optional[*vm.Userdata]) {
	return Protect(L, func() *vm.Userdata { return L.NewUserdata(size, tag) })
}

// NewThread creates a thread sharing L's global state.
func NewThread(L *vm.State) (vm.Status, Optional[*vm.State]) {
	return Protect(L, func() *vm.State { return L.NewThread() })
}

// NewBuffer allocates a zeroed VM buffer of n bytes.
func NewBuffer(L *vm.State, n int) (vm.Status, Optional[*vm.Buffer]) {
	return Protect(L, func() *vm.Buffer { return L.NewBuffer(n) })
}

// Sandbox freezes the global environment of L's global state.
func Sandbox(L *vm.State) vm.Status {
	return ProtectVoid(L, L.Sandbox)
}

// SandboxThread gives L a private, writable global table layered over the
// shared one.
func SandboxThread(L *vm.State) vm.Status {
	return ProtectVoid(L, L.SandboxThread)
}

// Call invokes fn with args.
func Call(L *vm.State, fn vm.Value, args ...vm.Value) (vm.Status, Optional[vm.Value]) {
	return Protect(L, func() vm.Value { return L.Call(fn, args...) })
}
