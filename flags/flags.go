// Package flags holds the process-wide registry of named runtime tunables.
//
// Flags are declared as package-level variables by the compiler and the VM
// and are linked into one of two registration lists at package
// initialization. The set of registered flags never changes after init;
// only their values do.
package flags

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Boolean flags
// ---------------------------------------------------------------------------

// Bool is a named boolean tunable.
type Bool struct {
	name  string
	value atomic.Bool
	next  *Bool
}

// Name returns the declared name of the flag.
func (f *Bool) Name() string { return f.name }

// Get returns the current value.
func (f *Bool) Get() bool { return f.value.Load() }

// Set stores a new value.
func (f *Bool) Set(v bool) { f.value.Store(v) }

// Next returns the next flag in registration order, or nil.
func (f *Bool) Next() *Bool { return f.next }

// ---------------------------------------------------------------------------
// Integer flags
// ---------------------------------------------------------------------------

// Int is a named integer tunable.
type Int struct {
	name  string
	value atomic.Int64
	next  *Int
}

// Name returns the declared name of the flag.
func (f *Int) Name() string { return f.name }

// Get returns the current value.
func (f *Int) Get() int { return int(f.value.Load()) }

// Set stores a new value.
func (f *Int) Set(v int) { f.value.Store(int64(v)) }

// Next returns the next flag in registration order, or nil.
func (f *Int) Next() *Int { return f.next }

// ---------------------------------------------------------------------------
// Registration lists
// ---------------------------------------------------------------------------

var (
	registryMu sync.Mutex
	boolHead   *Bool
	boolTail   *Bool
	intHead    *Int
	intTail    *Int
	names      = make(map[string]bool)
)

// NewBool registers a boolean flag. It must only be called during package
// initialization; registering the same name twice panics.
func NewBool(name string, value bool) *Bool {
	f := &Bool{name: name}
	f.value.Store(value)

	registryMu.Lock()
	defer registryMu.Unlock()
	claim(name)
	if boolTail == nil {
		boolHead = f
	} else {
		boolTail.next = f
	}
	boolTail = f
	return f
}

// NewInt registers an integer flag. It must only be called during package
// initialization; registering the same name twice panics.
func NewInt(name string, value int) *Int {
	f := &Int{name: name}
	f.value.Store(int64(value))

	registryMu.Lock()
	defer registryMu.Unlock()
	claim(name)
	if intTail == nil {
		intHead = f
	} else {
		intTail.next = f
	}
	intTail = f
	return f
}

func claim(name string) {
	if names[name] {
		panic(fmt.Sprintf("flags: %q registered twice", name))
	}
	names[name] = true
}

// FirstBool returns the head of the boolean registration list.
func FirstBool() *Bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	return boolHead
}

// FirstInt returns the head of the integer registration list.
func FirstInt() *Int {
	registryMu.Lock()
	defer registryMu.Unlock()
	return intHead
}

// Bools returns every registered boolean flag in registration order.
func Bools() []*Bool {
	var out []*Bool
	for f := FirstBool(); f != nil; f = f.next {
		out = append(out, f)
	}
	return out
}

// Ints returns every registered integer flag in registration order.
func Ints() []*Int {
	var out []*Int
	for f := FirstInt(); f != nil; f = f.next {
		out = append(out, f)
	}
	return out
}
