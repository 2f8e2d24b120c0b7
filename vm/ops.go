package vm

import (
	"math"
	"strings"

	"github.com/chazu/scriptbridge/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Indexing
// ---------------------------------------------------------------------------

// index implements t[k] for every indexable type.
func (L *State) index(t Value, k Value) Value {
	switch t := t.(type) {
	case *Table:
		return t.Get(k)
	case *String:
		if L.g.strlib != nil {
			return L.g.strlib.Get(k)
		}
	case Vector:
		if name, ok := k.(*String); ok {
			switch name.s {
			case "x", "X":
				return float64(t[0])
			case "y", "Y":
				return float64(t[1])
			case "z", "Z":
				return float64(t[2])
			case "w", "W":
				return float64(t[3])
			}
		}
	}
	L.runError("attempt to index %s with %s", TypeName(t), describeKey(k))
	return nil
}

// setIndex implements t[k] = v.
func (L *State) setIndex(t Value, k Value, v Value) {
	tbl, ok := t.(*Table)
	if !ok {
		L.runError("attempt to index %s with %s", TypeName(t), describeKey(k))
	}
	L.setTable(tbl, k, v)
}

// setTable stores into a table, enforcing readonly and key validity.
func (L *State) setTable(t *Table, k Value, v Value) {
	if t.readonly {
		L.runError("attempt to modify a readonly table")
	}
	switch k := k.(type) {
	case nil:
		L.runError("table index is nil")
	case float64:
		if math.IsNaN(k) {
			L.runError("table index is NaN")
		}
	}
	if v != nil && t.RawGet(k) == nil {
		L.charge(costSlot)
	}
	t.rawSet(k, v)
}

func describeKey(k Value) string {
	if s, ok := k.(*String); ok {
		return "'" + s.s + "'"
	}
	return TypeName(k)
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

var arithNames = map[bytecode.Opcode]string{
	bytecode.OpAdd: "add",
	bytecode.OpSub: "sub",
	bytecode.OpMul: "mul",
	bytecode.OpDiv: "div",
	bytecode.OpMod: "mod",
	bytecode.OpPow: "pow",
}

// Arith applies a binary arithmetic operator to two numbers.
func Arith(op bytecode.Opcode, a, b float64) float64 {
	switch op {
	case bytecode.OpAdd:
		return a + b
	case bytecode.OpSub:
		return a - b
	case bytecode.OpMul:
		return a * b
	case bytecode.OpDiv:
		return a / b
	case bytecode.OpMod:
		return a - math.Floor(a/b)*b
	case bytecode.OpPow:
		return math.Pow(a, b)
	}
	return math.NaN()
}

func (L *State) arith(op bytecode.Opcode, a, b Value) Value {
	if x, ok := ToNumber(a); ok {
		if y, ok := ToNumber(b); ok {
			return Arith(op, x, y)
		}
	}
	if v, ok := vectorArith(op, a, b); ok {
		return v
	}
	L.runError("attempt to perform arithmetic (%s) on %s and %s", arithNames[op], TypeName(a), TypeName(b))
	return nil
}

// vectorArith handles vector op vector and scaling by a number.
func vectorArith(op bytecode.Opcode, a, b Value) (Value, bool) {
	va, aVec := a.(Vector)
	vb, bVec := b.(Vector)
	na, aNum := a.(float64)
	nb, bNum := b.(float64)

	var r Vector
	switch {
	case aVec && bVec && op != bytecode.OpMod && op != bytecode.OpPow:
		for i := range r {
			r[i] = float32(Arith(op, float64(va[i]), float64(vb[i])))
		}
	case aVec && bNum && (op == bytecode.OpMul || op == bytecode.OpDiv):
		for i := range r {
			r[i] = float32(Arith(op, float64(va[i]), nb))
		}
	case aNum && bVec && (op == bytecode.OpMul || op == bytecode.OpDiv):
		for i := range r {
			r[i] = float32(Arith(op, na, float64(vb[i])))
		}
	default:
		return nil, false
	}
	return r, true
}

func (L *State) unm(v Value) Value {
	if n, ok := ToNumber(v); ok {
		return -n
	}
	if vec, ok := v.(Vector); ok {
		return Vector{-vec[0], -vec[1], -vec[2], -vec[3]}
	}
	L.runError("attempt to perform arithmetic (unm) on %s", TypeName(v))
	return nil
}

// ---------------------------------------------------------------------------
// Comparison, length and concatenation
// ---------------------------------------------------------------------------

var compareSymbols = map[bytecode.Opcode]string{
	bytecode.OpLt: "<",
	bytecode.OpLe: "<=",
	bytecode.OpGt: ">",
	bytecode.OpGe: ">=",
}

func (L *State) compare(op bytecode.Opcode, a, b Value) bool {
	var c int
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			break
		}
		switch op {
		case bytecode.OpLt:
			return x < y
		case bytecode.OpLe:
			return x <= y
		case bytecode.OpGt:
			return x > y
		case bytecode.OpGe:
			return x >= y
		}
	case *String:
		y, ok := b.(*String)
		if !ok {
			break
		}
		c = strings.Compare(x.s, y.s)
		switch op {
		case bytecode.OpLt:
			return c < 0
		case bytecode.OpLe:
			return c <= 0
		case bytecode.OpGt:
			return c > 0
		case bytecode.OpGe:
			return c >= 0
		}
	}
	L.runError("attempt to compare %s %s %s", TypeName(a), compareSymbols[op], TypeName(b))
	return false
}

func (L *State) length(v Value) Value {
	switch v := v.(type) {
	case *String:
		return float64(len(v.s))
	case *Table:
		return float64(v.Len())
	case *Buffer:
		return float64(len(v.Data))
	}
	L.runError("attempt to get length of a %s value", TypeName(v))
	return nil
}

func (L *State) concat(a, b Value) Value {
	sa, okA := concatOperand(a)
	sb, okB := concatOperand(b)
	if !okA || !okB {
		L.runError("attempt to concatenate %s with %s", TypeName(a), TypeName(b))
	}
	return L.intern(sa + sb)
}

func concatOperand(v Value) (string, bool) {
	switch v := v.(type) {
	case *String:
		return v.s, true
	case float64:
		return FormatNumber(v), true
	}
	return "", false
}
