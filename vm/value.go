package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is any value the VM can hold. The dynamic type is one of:
//
//	nil, bool, float64, *String, *Table, *Closure, *GoFunction,
//	*Userdata, *Buffer, *State, Vector
//
// Strings are interned per Global, so two *String values are equal
// exactly when their contents are equal.
type Value any

// String is an interned, immutable byte string.
type String struct {
	s string
}

// String returns the contents.
func (s *String) String() string { return s.s }

// Len returns the length in bytes.
func (s *String) Len() int { return len(s.s) }

// Vector is a four-component float vector; the fourth component is zero
// for three-component vectors.
type Vector [4]float32

// Userdata is a tagged block of host memory.
type Userdata struct {
	Tag  int
	Data []byte
}

// Buffer is a fixed-size mutable byte buffer.
type Buffer struct {
	Data []byte
}

// GoFunction is a host function callable from scripts. It receives the
// call arguments and returns a single result.
type GoFunction struct {
	Name string
	Fn   func(L *State, args []Value) Value
}

// cell is a boxed variable shared between a frame and the closures that
// capture it.
type cell struct {
	v Value
}

// Closure is an instantiated function prototype.
type Closure struct {
	proto  *Proto
	upvals []*cell
	env    *Table
}

// Name returns the function's debug name, or "" when none was compiled in.
func (c *Closure) Name() string { return c.proto.name }

// ---------------------------------------------------------------------------
// Type names and conversions
// ---------------------------------------------------------------------------

// TypeName returns the script-visible type name of v.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case *String:
		return "string"
	case *Table:
		return "table"
	case *Closure, *GoFunction:
		return "function"
	case *Userdata:
		return "userdata"
	case *State:
		return "thread"
	case *Buffer:
		return "buffer"
	case Vector:
		return "vector"
	case *iterator, *ipairsMarker:
		return "userdata"
	}
	return fmt.Sprintf("unknown(%T)", v)
}

// Truthy reports whether v counts as true in a condition: everything but
// nil and false.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	}
	return true
}

// FormatNumber formats n the way tostring does.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return strconv.FormatFloat(n, 'g', 14, 64)
}

// ToString converts v to its display form.
func ToString(v Value) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return FormatNumber(v)
	case *String:
		return v.s
	case Vector:
		return fmt.Sprintf("%s, %s, %s", FormatNumber(float64(v[0])), FormatNumber(float64(v[1])), FormatNumber(float64(v[2])))
	case *Closure, *GoFunction:
		return fmt.Sprintf("function: %p", v)
	}
	return fmt.Sprintf("%s: %p", TypeName(v), v)
}

// ToNumber converts numbers and numeric strings to float64.
func ToNumber(v Value) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case *String:
		return parseNumber(v.s)
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	body := s
	if body[0] == '-' || body[0] == '+' {
		neg = body[0] == '-'
		body = body[1:]
	}
	if len(body) > 2 && body[0] == '0' && (body[1] == 'x' || body[1] == 'X') {
		u, err := strconv.ParseUint(body[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		if neg {
			return -float64(u), true
		}
		return float64(u), true
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return n, true
		}
		return 0, false
	}
	return n, true
}

// RawEqual compares two values without coercion.
func RawEqual(a, b Value) bool {
	return a == b
}
