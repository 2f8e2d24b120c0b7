package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// ConstantKind identifies the type of a constant pool entry.
type ConstantKind byte

const (
	ConstNil    ConstantKind = 0
	ConstBool   ConstantKind = 1
	ConstNumber ConstantKind = 2
	ConstString ConstantKind = 3
	ConstImport ConstantKind = 4 // Global name resolved once per closure
	ConstVector ConstantKind = 5
)

// String returns a human-readable name for ConstantKind.
func (k ConstantKind) String() string {
	switch k {
	case ConstNil:
		return "nil"
	case ConstBool:
		return "boolean"
	case ConstNumber:
		return "number"
	case ConstString:
		return "string"
	case ConstImport:
		return "import"
	case ConstVector:
		return "vector"
	default:
		return fmt.Sprintf("ConstantKind(%d)", k)
	}
}

// Constant is one entry in a chunk's constant pool.
type Constant struct {
	Kind   ConstantKind
	Bool   bool
	Number float64
	String string // ConstString value or ConstImport global name
	Vector [4]float32
}

// NilConstant returns the nil constant.
func NilConstant() Constant { return Constant{Kind: ConstNil} }

// BoolConstant returns a boolean constant.
func BoolConstant(b bool) Constant { return Constant{Kind: ConstBool, Bool: b} }

// NumberConstant returns a number constant.
func NumberConstant(n float64) Constant { return Constant{Kind: ConstNumber, Number: n} }

// StringConstant returns a string constant.
func StringConstant(s string) Constant { return Constant{Kind: ConstString, String: s} }

// ImportConstant returns an import of the named global.
func ImportConstant(name string) Constant { return Constant{Kind: ConstImport, String: name} }

// VectorConstant returns a vector constant.
func VectorConstant(x, y, z, w float32) Constant {
	return Constant{Kind: ConstVector, Vector: [4]float32{x, y, z, w}}
}

// Same reports whether two constants are interchangeable in the pool.
// Numbers compare by bit pattern so 0 and -0 stay distinct.
func (k Constant) Same(o Constant) bool {
	if k.Kind != o.Kind {
		return false
	}
	switch k.Kind {
	case ConstNil:
		return true
	case ConstBool:
		return k.Bool == o.Bool
	case ConstNumber:
		return math.Float64bits(k.Number) == math.Float64bits(o.Number)
	case ConstString, ConstImport:
		return k.String == o.String
	case ConstVector:
		for i := range k.Vector {
			if math.Float32bits(k.Vector[i]) != math.Float32bits(o.Vector[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// constKey identifies a constant up to Same.
type constKey struct {
	kind ConstantKind
	bits uint64
	str  string
	vec  [4]uint32
}

func (k Constant) key() constKey {
	key := constKey{kind: k.Kind}
	switch k.Kind {
	case ConstBool:
		if k.Bool {
			key.bits = 1
		}
	case ConstNumber:
		key.bits = math.Float64bits(k.Number)
	case ConstString, ConstImport:
		key.str = k.String
	case ConstVector:
		for i, f := range k.Vector {
			key.vec[i] = math.Float32bits(f)
		}
	}
	return key
}

// Display formats the constant for listings.
func (k Constant) Display() string {
	switch k.Kind {
	case ConstNil:
		return "nil"
	case ConstBool:
		return strconv.FormatBool(k.Bool)
	case ConstNumber:
		return strconv.FormatFloat(k.Number, 'g', -1, 64)
	case ConstString:
		s := k.String
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		return strconv.Quote(s)
	case ConstImport:
		return "import " + k.String
	case ConstVector:
		return fmt.Sprintf("vector(%g, %g, %g, %g)", k.Vector[0], k.Vector[1], k.Vector[2], k.Vector[3])
	}
	return k.Kind.String()
}

func (k Constant) appendTo(buf []byte) []byte {
	buf = append(buf, byte(k.Kind))
	switch k.Kind {
	case ConstBool:
		if k.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case ConstNumber:
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(k.Number))
	case ConstString, ConstImport:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(k.String)))
		buf = append(buf, k.String...)
	case ConstVector:
		for _, f := range k.Vector {
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

func (r *reader) constant(i int) (Constant, error) {
	kind, err := r.u8(fmt.Sprintf("constant %d kind", i))
	if err != nil {
		return Constant{}, err
	}
	k := Constant{Kind: ConstantKind(kind)}
	switch k.Kind {
	case ConstNil:
	case ConstBool:
		b, err := r.u8(fmt.Sprintf("constant %d", i))
		if err != nil {
			return Constant{}, err
		}
		k.Bool = b != 0
	case ConstNumber:
		if err := r.need(8, fmt.Sprintf("constant %d", i)); err != nil {
			return Constant{}, err
		}
		k.Number = math.Float64frombits(binary.BigEndian.Uint64(r.data[r.pos:]))
		r.pos += 8
	case ConstString, ConstImport:
		n, err := r.u32(fmt.Sprintf("constant %d length", i))
		if err != nil {
			return Constant{}, err
		}
		s, err := r.bytes(int(n), fmt.Sprintf("constant %d", i))
		if err != nil {
			return Constant{}, err
		}
		k.String = string(s)
	case ConstVector:
		if r.version < VersionVectors {
			return Constant{}, fmt.Errorf("constant %d: vector constant in version %d bytecode", i, r.version)
		}
		if err := r.need(16, fmt.Sprintf("constant %d", i)); err != nil {
			return Constant{}, err
		}
		for j := range k.Vector {
			k.Vector[j] = math.Float32frombits(binary.BigEndian.Uint32(r.data[r.pos:]))
			r.pos += 4
		}
	default:
		return Constant{}, fmt.Errorf("constant %d: unknown kind %d", i, kind)
	}
	return k, nil
}
