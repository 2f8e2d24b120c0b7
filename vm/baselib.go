package vm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Base library
// ---------------------------------------------------------------------------

func openBaseLib(L *State) {
	L.Register("print", basePrint)
	L.Register("type", baseType)
	L.Register("typeof", baseType)
	L.Register("tostring", baseToString)
	L.Register("tonumber", baseToNumber)
	L.Register("error", baseError)
	L.Register("assert", baseAssert)
	L.Register("pairs", basePairs)
	L.Register("ipairs", baseIPairs)
	L.Register("rawget", baseRawGet)
	L.Register("rawequal", baseRawEqual)

	L.SetGlobal("_VERSION", L.intern("scriptbridge"))
	L.SetGlobal("math", openMathLib(L))
	L.g.strlib = openStringLib(L)
	L.SetGlobal("string", L.g.strlib)
	L.SetGlobal("table", openTableLib(L))
	L.SetGlobal("vector", openVectorLib(L))
	L.SetGlobal("buffer", openBufferLib(L))
}

func newLib(L *State, fns map[string]func(L *State, args []Value) Value) *Table {
	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	sort.Strings(names)

	t := L.NewTable(0, len(fns))
	for _, name := range names {
		L.setTable(t, L.intern(name), &GoFunction{Name: name, Fn: fns[name]})
	}
	return t
}

// ---------------------------------------------------------------------------
// Argument helpers
// ---------------------------------------------------------------------------

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func argError(L *State, i int, fname, expected string, got Value) {
	L.runError("invalid argument #%d to '%s' (%s expected, got %s)", i+1, fname, expected, TypeName(got))
}

func checkAny(L *State, args []Value, i int, fname string) Value {
	if i >= len(args) {
		L.runError("missing argument #%d to '%s'", i+1, fname)
	}
	return args[i]
}

func checkNumber(L *State, args []Value, i int, fname string) float64 {
	v := arg(args, i)
	n, ok := ToNumber(v)
	if !ok {
		argError(L, i, fname, "number", v)
	}
	return n
}

func optNumber(L *State, args []Value, i int, fname string, def float64) float64 {
	if arg(args, i) == nil {
		return def
	}
	return checkNumber(L, args, i, fname)
}

func checkInt(L *State, args []Value, i int, fname string) int {
	return int(checkNumber(L, args, i, fname))
}

func checkString(L *State, args []Value, i int, fname string) string {
	switch v := arg(args, i).(type) {
	case *String:
		return v.s
	case float64:
		return FormatNumber(v)
	}
	argError(L, i, fname, "string", arg(args, i))
	return ""
}

func checkTable(L *State, args []Value, i int, fname string) *Table {
	t, ok := arg(args, i).(*Table)
	if !ok {
		argError(L, i, fname, "table", arg(args, i))
	}
	return t
}

func checkBuffer(L *State, args []Value, i int, fname string) *Buffer {
	b, ok := arg(args, i).(*Buffer)
	if !ok {
		argError(L, i, fname, "buffer", arg(args, i))
	}
	return b
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

func basePrint(L *State, args []Value) Value {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = ToString(a)
	}
	fmt.Fprintln(L.g.stdout, strings.Join(parts, "\t"))
	return nil
}

func baseType(L *State, args []Value) Value {
	return L.intern(TypeName(checkAny(L, args, 0, "type")))
}

func baseToString(L *State, args []Value) Value {
	return L.intern(ToString(checkAny(L, args, 0, "tostring")))
}

func baseToNumber(L *State, args []Value) Value {
	v := checkAny(L, args, 0, "tonumber")
	if arg(args, 1) == nil {
		if n, ok := ToNumber(v); ok {
			return n
		}
		return nil
	}
	base := checkInt(L, args, 1, "tonumber")
	if base < 2 || base > 36 {
		L.runError("invalid argument #2 to 'tonumber' (base out of range)")
	}
	s := strings.ToLower(strings.TrimSpace(checkString(L, args, 0, "tonumber")))
	n, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return nil
	}
	return float64(n)
}

func baseError(L *State, args []Value) Value {
	v := arg(args, 0)
	level := int(optNumber(L, args, 1, "error", 1))
	if s, ok := v.(*String); ok && level > 0 {
		v = L.intern(L.where(level) + s.s)
	}
	L.throw(StatusErrRun, v)
	return nil
}

func baseAssert(L *State, args []Value) Value {
	v := checkAny(L, args, 0, "assert")
	if Truthy(v) {
		return v
	}
	if msg := arg(args, 1); msg != nil {
		L.throw(StatusErrRun, msg)
	}
	L.runError("assertion failed!")
	return nil
}

func basePairs(L *State, args []Value) Value {
	return checkTable(L, args, 0, "pairs")
}

func baseIPairs(L *State, args []Value) Value {
	return &ipairsMarker{t: checkTable(L, args, 0, "ipairs")}
}

func baseRawGet(L *State, args []Value) Value {
	return checkTable(L, args, 0, "rawget").RawGet(arg(args, 1))
}

func baseRawEqual(L *State, args []Value) Value {
	return RawEqual(checkAny(L, args, 0, "rawequal"), checkAny(L, args, 1, "rawequal"))
}

// ---------------------------------------------------------------------------
// math
// ---------------------------------------------------------------------------

func openMathLib(L *State) *Table {
	unary := func(name string, f func(float64) float64) func(L *State, args []Value) Value {
		return func(L *State, args []Value) Value {
			return f(checkNumber(L, args, 0, name))
		}
	}
	t := newLib(L, map[string]func(L *State, args []Value) Value{
		"abs":   unary("abs", math.Abs),
		"ceil":  unary("ceil", math.Ceil),
		"floor": unary("floor", math.Floor),
		"sqrt":  unary("sqrt", math.Sqrt),
		"sin":   unary("sin", math.Sin),
		"cos":   unary("cos", math.Cos),
		"exp":   unary("exp", math.Exp),
		"log": func(L *State, args []Value) Value {
			x := checkNumber(L, args, 0, "log")
			if arg(args, 1) == nil {
				return math.Log(x)
			}
			return math.Log(x) / math.Log(checkNumber(L, args, 1, "log"))
		},
		"fmod": func(L *State, args []Value) Value {
			return math.Mod(checkNumber(L, args, 0, "fmod"), checkNumber(L, args, 1, "fmod"))
		},
		"max": func(L *State, args []Value) Value {
			m := checkNumber(L, args, 0, "max")
			for i := 1; i < len(args); i++ {
				m = math.Max(m, checkNumber(L, args, i, "max"))
			}
			return m
		},
		"min": func(L *State, args []Value) Value {
			m := checkNumber(L, args, 0, "min")
			for i := 1; i < len(args); i++ {
				m = math.Min(m, checkNumber(L, args, i, "min"))
			}
			return m
		},
		"clamp": func(L *State, args []Value) Value {
			x := checkNumber(L, args, 0, "clamp")
			lo := checkNumber(L, args, 1, "clamp")
			hi := checkNumber(L, args, 2, "clamp")
			if lo > hi {
				L.runError("invalid argument #3 to 'clamp' (max must be greater than or equal to min)")
			}
			return math.Min(math.Max(x, lo), hi)
		},
	})
	L.setTable(t, L.intern("pi"), math.Pi)
	L.setTable(t, L.intern("huge"), math.Inf(1))
	return t
}

// ---------------------------------------------------------------------------
// string
// ---------------------------------------------------------------------------

// strRange converts 1-based inclusive i, j (negative counts from the end)
// into a Go slice range.
func strRange(n, i, j int) (int, int) {
	if i < 0 {
		i = max(n+i+1, 1)
	} else if i == 0 {
		i = 1
	}
	if j < 0 {
		j = n + j + 1
	} else if j > n {
		j = n
	}
	if i > j {
		return 0, 0
	}
	return i - 1, j
}

func openStringLib(L *State) *Table {
	return newLib(L, map[string]func(L *State, args []Value) Value{
		"len": func(L *State, args []Value) Value {
			return float64(len(checkString(L, args, 0, "len")))
		},
		"sub": func(L *State, args []Value) Value {
			s := checkString(L, args, 0, "sub")
			i := int(optNumber(L, args, 1, "sub", 1))
			j := int(optNumber(L, args, 2, "sub", -1))
			from, to := strRange(len(s), i, j)
			return L.intern(s[from:to])
		},
		"upper": func(L *State, args []Value) Value {
			return L.intern(strings.ToUpper(checkString(L, args, 0, "upper")))
		},
		"lower": func(L *State, args []Value) Value {
			return L.intern(strings.ToLower(checkString(L, args, 0, "lower")))
		},
		"rep": func(L *State, args []Value) Value {
			s := checkString(L, args, 0, "rep")
			n := checkInt(L, args, 1, "rep")
			if n <= 0 {
				return L.intern("")
			}
			L.charge(len(s) * n)
			return L.intern(strings.Repeat(s, n))
		},
		"reverse": func(L *State, args []Value) Value {
			b := []byte(checkString(L, args, 0, "reverse"))
			for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
				b[i], b[j] = b[j], b[i]
			}
			return L.intern(string(b))
		},
		"byte": func(L *State, args []Value) Value {
			s := checkString(L, args, 0, "byte")
			i := int(optNumber(L, args, 1, "byte", 1))
			from, to := strRange(len(s), i, i)
			if from >= to {
				return nil
			}
			return float64(s[from])
		},
		"char": func(L *State, args []Value) Value {
			b := make([]byte, len(args))
			for i := range args {
				c := checkInt(L, args, i, "char")
				if c < 0 || c > 255 {
					L.runError("invalid argument #%d to 'char' (value out of range)", i+1)
				}
				b[i] = byte(c)
			}
			return L.intern(string(b))
		},
		"find": func(L *State, args []Value) Value {
			s := checkString(L, args, 0, "find")
			sub := checkString(L, args, 1, "find")
			init := int(optNumber(L, args, 2, "find", 1))
			from := max(init-1, 0)
			if init < 0 {
				from = max(len(s)+init, 0)
			}
			if from > len(s) {
				return nil
			}
			if idx := strings.Index(s[from:], sub); idx >= 0 {
				return float64(from + idx + 1)
			}
			return nil
		},
	})
}

// ---------------------------------------------------------------------------
// table
// ---------------------------------------------------------------------------

func openTableLib(L *State) *Table {
	return newLib(L, map[string]func(L *State, args []Value) Value{
		"insert": func(L *State, args []Value) Value {
			t := checkTable(L, args, 0, "insert")
			switch len(args) {
			case 2:
				L.setTable(t, float64(t.Len()+1), args[1])
			case 3:
				pos := checkInt(L, args, 1, "insert")
				n := t.Len()
				if pos < 1 || pos > n+1 {
					L.runError("invalid argument #2 to 'insert' (position out of bounds)")
				}
				for i := n; i >= pos; i-- {
					L.setTable(t, float64(i+1), t.RawGet(float64(i)))
				}
				L.setTable(t, float64(pos), args[2])
			default:
				L.runError("wrong number of arguments to 'insert'")
			}
			return nil
		},
		"remove": func(L *State, args []Value) Value {
			t := checkTable(L, args, 0, "remove")
			n := t.Len()
			pos := int(optNumber(L, args, 1, "remove", float64(n)))
			if n == 0 {
				return nil
			}
			if pos < 1 || pos > n {
				L.runError("invalid argument #2 to 'remove' (position out of bounds)")
			}
			v := t.RawGet(float64(pos))
			for i := pos; i < n; i++ {
				L.setTable(t, float64(i), t.RawGet(float64(i+1)))
			}
			L.setTable(t, float64(n), nil)
			return v
		},
		"concat": func(L *State, args []Value) Value {
			t := checkTable(L, args, 0, "concat")
			sep := ""
			if arg(args, 1) != nil {
				sep = checkString(L, args, 1, "concat")
			}
			parts := make([]string, t.Len())
			for i := range parts {
				s, ok := concatOperand(t.RawGet(float64(i + 1)))
				if !ok {
					L.runError("invalid value (at index %d) in table for 'concat'", i+1)
				}
				parts[i] = s
			}
			return L.intern(strings.Join(parts, sep))
		},
		"freeze": func(L *State, args []Value) Value {
			t := checkTable(L, args, 0, "freeze")
			t.readonly = true
			return t
		},
		"isfrozen": func(L *State, args []Value) Value {
			return checkTable(L, args, 0, "isfrozen").readonly
		},
	})
}

// ---------------------------------------------------------------------------
// vector and buffer
// ---------------------------------------------------------------------------

func openVectorLib(L *State) *Table {
	return newLib(L, map[string]func(L *State, args []Value) Value{
		"create": func(L *State, args []Value) Value {
			var v Vector
			for i := 0; i < 3; i++ {
				v[i] = float32(checkNumber(L, args, i, "create"))
			}
			v[3] = float32(optNumber(L, args, 3, "create", 0))
			return v
		},
		"magnitude": func(L *State, args []Value) Value {
			v, ok := arg(args, 0).(Vector)
			if !ok {
				argError(L, 0, "magnitude", "vector", arg(args, 0))
			}
			return math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2]))
		},
		"dot": func(L *State, args []Value) Value {
			a, okA := arg(args, 0).(Vector)
			b, okB := arg(args, 1).(Vector)
			if !okA || !okB {
				L.runError("invalid arguments to 'dot' (vectors expected)")
			}
			return float64(a[0]*b[0] + a[1]*b[1] + a[2]*b[2])
		},
	})
}

func openBufferLib(L *State) *Table {
	offset := func(L *State, b *Buffer, args []Value, i int, size int, fname string) int {
		off := checkInt(L, args, i, fname)
		if off < 0 || off+size > len(b.Data) {
			L.runError("buffer access out of bounds")
		}
		return off
	}
	return newLib(L, map[string]func(L *State, args []Value) Value{
		"create": func(L *State, args []Value) Value {
			return L.NewBuffer(checkInt(L, args, 0, "create"))
		},
		"fromstring": func(L *State, args []Value) Value {
			s := checkString(L, args, 0, "fromstring")
			b := L.NewBuffer(len(s))
			copy(b.Data, s)
			return b
		},
		"tostring": func(L *State, args []Value) Value {
			return L.intern(string(checkBuffer(L, args, 0, "tostring").Data))
		},
		"len": func(L *State, args []Value) Value {
			return float64(len(checkBuffer(L, args, 0, "len").Data))
		},
		"readu8": func(L *State, args []Value) Value {
			b := checkBuffer(L, args, 0, "readu8")
			return float64(b.Data[offset(L, b, args, 1, 1, "readu8")])
		},
		"writeu8": func(L *State, args []Value) Value {
			b := checkBuffer(L, args, 0, "writeu8")
			off := offset(L, b, args, 1, 1, "writeu8")
			b.Data[off] = byte(checkInt(L, args, 2, "writeu8"))
			return nil
		},
	})
}
