package compiler

import (
	"math"

	"github.com/chazu/scriptbridge/pkg/bytecode"
)

// folder evaluates expressions at compile time when every operand is a
// constant. Only operations whose result cannot depend on runtime state
// are folded. Results for compound nodes are memoised, so folding every
// node of a tree during codegen visits each node once.
type folder struct {
	memo map[Expr]foldResult
}

type foldResult struct {
	k  bytecode.Constant
	ok bool
}

func newFolder() *folder {
	return &folder{memo: make(map[Expr]foldResult)}
}

func (f *folder) constant(e Expr) (bytecode.Constant, bool) {
	switch e := e.(type) {
	case *NilLiteral:
		return bytecode.NilConstant(), true
	case *BoolLiteral:
		return bytecode.BoolConstant(e.Value), true
	case *NumberLiteral:
		return bytecode.NumberConstant(e.Value), true
	case *StringLiteral:
		return bytecode.StringConstant(e.Value), true
	case *ParenExpr, *UnaryExpr, *BinaryExpr:
	default:
		return bytecode.Constant{}, false
	}

	if r, ok := f.memo[e]; ok {
		return r.k, r.ok
	}
	var r foldResult
	switch e := e.(type) {
	case *ParenExpr:
		r.k, r.ok = f.constant(e.Inner)
	case *UnaryExpr:
		r.k, r.ok = f.unary(e)
	case *BinaryExpr:
		r.k, r.ok = f.binary(e)
	}
	f.memo[e] = r
	return r.k, r.ok
}

func truthy(k bytecode.Constant) bool {
	switch k.Kind {
	case bytecode.ConstNil:
		return false
	case bytecode.ConstBool:
		return k.Bool
	}
	return true
}

func (f *folder) unary(e *UnaryExpr) (bytecode.Constant, bool) {
	k, ok := f.constant(e.Operand)
	if !ok {
		return k, false
	}
	switch e.Op {
	case TokenMinus:
		if k.Kind == bytecode.ConstNumber {
			return bytecode.NumberConstant(-k.Number), true
		}
	case TokenNot:
		return bytecode.BoolConstant(!truthy(k)), true
	case TokenHash:
		if k.Kind == bytecode.ConstString {
			return bytecode.NumberConstant(float64(len(k.String))), true
		}
	}
	return bytecode.Constant{}, false
}

func (f *folder) binary(e *BinaryExpr) (bytecode.Constant, bool) {
	l, ok := f.constant(e.Left)
	if !ok {
		return l, false
	}
	r, ok := f.constant(e.Right)
	if !ok {
		return r, false
	}

	switch e.Op {
	case TokenAnd:
		if !truthy(l) {
			return l, true
		}
		return r, true
	case TokenOr:
		if truthy(l) {
			return l, true
		}
		return r, true
	case TokenEq:
		return bytecode.BoolConstant(l.Same(r) && !(l.Kind == bytecode.ConstNumber && math.IsNaN(l.Number))), sameKindOrNil(l, r)
	case TokenNe:
		return bytecode.BoolConstant(!l.Same(r) || (l.Kind == bytecode.ConstNumber && math.IsNaN(l.Number))), sameKindOrNil(l, r)
	case TokenConcat:
		if l.Kind == bytecode.ConstString && r.Kind == bytecode.ConstString {
			return bytecode.StringConstant(l.String + r.String), true
		}
		return bytecode.Constant{}, false
	}

	if l.Kind != bytecode.ConstNumber || r.Kind != bytecode.ConstNumber {
		return bytecode.Constant{}, false
	}
	a, b := l.Number, r.Number
	switch e.Op {
	case TokenPlus:
		return bytecode.NumberConstant(a + b), true
	case TokenMinus:
		return bytecode.NumberConstant(a - b), true
	case TokenStar:
		return bytecode.NumberConstant(a * b), true
	case TokenSlash:
		return bytecode.NumberConstant(a / b), true
	case TokenPercent:
		return bytecode.NumberConstant(Mod(a, b)), true
	case TokenCaret:
		return bytecode.NumberConstant(math.Pow(a, b)), true
	case TokenLt:
		return bytecode.BoolConstant(a < b), true
	case TokenLe:
		return bytecode.BoolConstant(a <= b), true
	case TokenGt:
		return bytecode.BoolConstant(a > b), true
	case TokenGe:
		return bytecode.BoolConstant(a >= b), true
	}
	return bytecode.Constant{}, false
}

// sameKindOrNil reports whether equality between l and r can be decided
// from the constants alone. 0 and -0 compare equal at runtime but are
// distinct pool entries, so mixed-sign zeros are left to the VM.
func sameKindOrNil(l, r bytecode.Constant) bool {
	if l.Kind == bytecode.ConstNumber && r.Kind == bytecode.ConstNumber {
		return l.Number != 0 || r.Number != 0 || l.Same(r)
	}
	return l.Kind != bytecode.ConstVector && r.Kind != bytecode.ConstVector
}

// Mod is floored modulo: the result has the sign of the divisor.
func Mod(a, b float64) float64 {
	return a - math.Floor(a/b)*b
}
