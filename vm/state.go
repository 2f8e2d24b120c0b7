package vm

import (
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("scriptbridge.vm")

// ---------------------------------------------------------------------------
// Global and State
// ---------------------------------------------------------------------------

// Size limits enforced by the allocation primitives.
const (
	// UTagLimit is the exclusive upper bound on userdata tags.
	UTagLimit = 128

	// MaxBufferSize is the largest buffer NewBuffer will allocate.
	MaxBufferSize = 1 << 30

	// RefNil is the reference returned for nil values.
	RefNil = -1
)

// Approximate allocation costs charged against the memory limit.
const (
	costString   = 24
	costTable    = 64
	costSlot     = 16
	costUserdata = 32
	costBuffer   = 16
	costThread   = 256
	costClosure  = 32
	costRef      = 16
)

// Global holds the state shared by all threads created from one NewState
// call: interned strings, the registry, memory accounting and coverage.
type Global struct {
	strings map[string]*String

	refs     map[int]Value
	freeRefs []int
	nextRef  int

	memLimit   int64
	totalBytes int64

	stdout   io.Writer
	strlib   *Table
	coverage map[*Proto]map[int]int

	main *State
}

// State is one thread of execution. Threads of the same Global share
// strings and the registry; each has its own globals table.
type State struct {
	g       *Global
	globals *Table

	ci    *frame
	depth int

	lastErr *Error
}

// NewState creates a Global with its main thread and opens the base
// library.
func NewState() *State {
	g := &Global{
		strings:  make(map[string]*String),
		refs:     make(map[int]Value),
		stdout:   os.Stdout,
		coverage: make(map[*Proto]map[int]int),
	}
	L := &State{g: g, globals: newTable(0, 32)}
	g.main = L
	openBaseLib(L)
	return L
}

// Global returns the shared state.
func (L *State) Global() *Global { return L.g }

// MainThread returns the thread created by NewState.
func (g *Global) MainThread() *State { return g.main }

// Globals returns the thread's globals table.
func (L *State) Globals() *Table { return L.globals }

// SetOutput redirects print.
func (g *Global) SetOutput(w io.Writer) { g.stdout = w }

// SetMemoryLimit caps total accounted allocation in bytes; 0 removes the
// limit.
func (g *Global) SetMemoryLimit(limit int64) { g.memLimit = limit }

// TotalBytes returns the bytes charged so far.
func (g *Global) TotalBytes() int64 { return g.totalBytes }

// charge accounts for n bytes, raising a memory error when over the limit.
func (L *State) charge(n int) {
	g := L.g
	if g.memLimit > 0 && g.totalBytes+int64(n) > g.memLimit {
		panic(&throw{status: StatusErrMem, value: g.memErrorString()})
	}
	g.totalBytes += int64(n)
}

// intern returns the unique *String for s, charging for new strings.
func (L *State) intern(s string) *String {
	if str, ok := L.g.strings[s]; ok {
		return str
	}
	L.charge(costString + len(s))
	str := &String{s: s}
	L.g.strings[s] = str
	return str
}

// memErrorString is allocated outside accounting so raising a memory
// error never needs memory.
func (g *Global) memErrorString() *String {
	const msg = "not enough memory"
	if s, ok := g.strings[msg]; ok {
		return s
	}
	s := &String{s: msg}
	g.strings[msg] = s
	return s
}

// Interned returns the interned string for s if it exists.
func (g *Global) Interned(s string) (*String, bool) {
	str, ok := g.strings[s]
	return str, ok
}

// ---------------------------------------------------------------------------
// Allocation primitives. Each may raise; run them under RawRunProtected.
// ---------------------------------------------------------------------------

// NewLString interns b as a string.
func (L *State) NewLString(b []byte) *String {
	return L.intern(string(b))
}

// NewString interns s.
func (L *State) NewString(s string) *String {
	return L.intern(s)
}

// NewTable creates a table with room for narray array items and lnhash
// hash entries.
func (L *State) NewTable(narray, lnhash int) *Table {
	if narray < 0 || lnhash < 0 || narray > MaxTableSize || lnhash > MaxTableSize {
		L.runError("table overflow")
	}
	L.charge(costTable + costSlot*(narray+lnhash))
	return newTable(narray, lnhash)
}

// NewUserdata allocates size zeroed bytes tagged with tag.
func (L *State) NewUserdata(size int, tag int) *Userdata {
	if tag < 0 || tag >= UTagLimit {
		L.runError("invalid userdata tag %d (limit %d)", tag, UTagLimit)
	}
	if size < 0 || size > MaxBufferSize {
		L.runError("memory allocation error: block too big")
	}
	L.charge(costUserdata + size)
	return &Userdata{Tag: tag, Data: make([]byte, size)}
}

// NewBuffer allocates a zeroed buffer of size bytes.
func (L *State) NewBuffer(size int) *Buffer {
	if size < 0 || size > MaxBufferSize {
		L.runError("memory allocation error: block too big")
	}
	L.charge(costBuffer + size)
	return &Buffer{Data: make([]byte, size)}
}

// NewThread creates a thread sharing this thread's Global and globals.
func (L *State) NewThread() *State {
	L.charge(costThread)
	return &State{g: L.g, globals: L.globals}
}

// ---------------------------------------------------------------------------
// Registry references
// ---------------------------------------------------------------------------

// Ref pins v in the registry and returns its reference, or RefNil for nil.
func (L *State) Ref(v Value) int {
	if v == nil {
		return RefNil
	}
	g := L.g
	if n := len(g.freeRefs); n > 0 {
		ref := g.freeRefs[n-1]
		g.freeRefs = g.freeRefs[:n-1]
		g.refs[ref] = v
		return ref
	}
	L.charge(costRef)
	g.nextRef++
	g.refs[g.nextRef] = v
	return g.nextRef
}

// Unref releases ref. Releasing RefNil or an unknown ref does nothing.
func (L *State) Unref(ref int) {
	g := L.g
	if _, ok := g.refs[ref]; !ok {
		return
	}
	delete(g.refs, ref)
	g.freeRefs = append(g.freeRefs, ref)
}

// GetRef returns the value pinned by ref, or nil.
func (L *State) GetRef(ref int) Value {
	return L.g.refs[ref]
}

// ---------------------------------------------------------------------------
// Sandboxing
// ---------------------------------------------------------------------------

// Sandbox freezes every library table reachable from the globals, the
// string library and the globals table itself, and marks the globals as a
// safe environment for cached imports.
func (L *State) Sandbox() {
	for pos := 0; ; {
		_, v, next, ok := L.globals.Next(pos)
		if !ok {
			break
		}
		if t, isTable := v.(*Table); isTable {
			t.readonly = true
		}
		pos = next
	}
	if L.g.strlib != nil {
		L.g.strlib.readonly = true
	}
	L.globals.readonly = true
	L.globals.safeenv = true
}

// SandboxThread gives the thread a fresh writable globals table that
// reads through to the shared one.
func (L *State) SandboxThread() {
	proxy := L.NewTable(0, 0)
	proxy.fallback = L.globals
	proxy.safeenv = true
	L.globals = proxy
}

// ---------------------------------------------------------------------------
// Convenience accessors for hosts
// ---------------------------------------------------------------------------

// SetGlobal assigns a global variable.
func (L *State) SetGlobal(name string, v Value) {
	L.setTable(L.globals, L.intern(name), v)
}

// GetGlobal reads a global variable.
func (L *State) GetGlobal(name string) Value {
	return L.globals.Get(L.intern(name))
}

// Register installs a Go function as a global.
func (L *State) Register(name string, fn func(L *State, args []Value) Value) {
	L.SetGlobal(name, &GoFunction{Name: name, Fn: fn})
}
