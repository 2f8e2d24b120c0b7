package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/scriptbridge/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Loading: bytecode module -> linked prototypes
// ---------------------------------------------------------------------------

// Proto is a loaded function prototype.
type Proto struct {
	chunk  *bytecode.Chunk
	name   string
	source string // chunk name used in error messages

	code       []byte
	consts     []Value
	imports    []Value     // resolved import values, by constant index
	importPath [][]*String // dotted import paths, by constant index
	children   []*Proto

	paramCount int
	localCount int
}

// Name returns the function name compiled into the prototype.
func (p *Proto) Name() string { return p.name }

// Source returns the chunk name the prototype was loaded under.
func (p *Proto) Source() string { return p.source }

func (p *Proto) lineAt(pc int) int {
	if p.chunk.Flags&bytecode.ChunkFlagLineInfo == 0 {
		return -1
	}
	return p.chunk.LineAt(pc)
}

// chunkID turns a chunk name into the form shown in messages: "=name" and
// "@name" display as name, anything else is quoted as source text.
func chunkID(chunkname string) string {
	switch {
	case strings.HasPrefix(chunkname, "="), strings.HasPrefix(chunkname, "@"):
		return chunkname[1:]
	case chunkname == "":
		return "?"
	}
	src := chunkname
	if i := strings.IndexByte(src, '\n'); i >= 0 {
		src = src[:i] + "..."
	}
	if len(src) > 40 {
		src = src[:37] + "..."
	}
	return fmt.Sprintf("[string %q]", src)
}

// Load decodes a compiled module and returns its main function bound to
// the thread's globals. Error payloads produced by the compiler and
// malformed input are reported as *Error with StatusErrSyntax.
func (L *State) Load(chunkname string, data []byte) (*Closure, error) {
	source := chunkID(chunkname)

	if len(data) == 0 {
		return nil, L.syntaxError("%s: bytecode is empty", source)
	}
	if msg, ok := bytecode.ErrorMessage(data); ok {
		return nil, L.syntaxError("%s%s", source, msg)
	}
	if v := data[0]; v < bytecode.VersionMin || v > bytecode.VersionMax {
		return nil, L.syntaxError("%s: bytecode version mismatch (expected [%d..%d], got %d)",
			source, bytecode.VersionMin, bytecode.VersionMax, v)
	}

	chunk, err := bytecode.Deserialize(data)
	if err != nil {
		return nil, L.syntaxError("%s: malformed bytecode: %s", source, err)
	}
	if len(chunk.Upvalues) != 0 {
		return nil, L.syntaxError("%s: malformed bytecode: main function has upvalues", source)
	}

	var cl *Closure
	var verr error
	status := RawRunProtected(L, func() {
		var p *Proto
		p, verr = L.link(chunk, source, nil)
		if verr != nil {
			return
		}
		L.charge(costClosure)
		cl = &Closure{proto: p, env: L.globals}
	})
	if status != StatusOk {
		return nil, L.lastErr
	}
	if verr != nil {
		return nil, L.syntaxError("%s: malformed bytecode: %s", source, verr)
	}
	return cl, nil
}

func (L *State) syntaxError(format string, args ...any) *Error {
	L.lastErr = &Error{Status: StatusErrSyntax, Value: L.safeString(fmt.Sprintf(format, args...))}
	return L.lastErr
}

// link verifies chunk and builds its prototype tree.
func (L *State) link(chunk *bytecode.Chunk, source string, parent *bytecode.Chunk) (*Proto, error) {
	if err := verify(chunk, parent); err != nil {
		if chunk.Name != "" {
			return nil, fmt.Errorf("function %s: %w", chunk.Name, err)
		}
		return nil, err
	}

	p := &Proto{
		chunk:      chunk,
		name:       chunk.Name,
		source:     source,
		code:       chunk.Code,
		consts:     make([]Value, len(chunk.Constants)),
		imports:    make([]Value, len(chunk.Constants)),
		importPath: make([][]*String, len(chunk.Constants)),
		paramCount: int(chunk.ParamCount),
		localCount: int(chunk.LocalCount),
	}
	for i, k := range chunk.Constants {
		switch k.Kind {
		case bytecode.ConstNil:
		case bytecode.ConstBool:
			p.consts[i] = k.Bool
		case bytecode.ConstNumber:
			p.consts[i] = k.Number
		case bytecode.ConstString:
			p.consts[i] = L.intern(k.String)
		case bytecode.ConstVector:
			p.consts[i] = Vector(k.Vector)
		case bytecode.ConstImport:
			parts := strings.Split(k.String, ".")
			path := make([]*String, len(parts))
			for j, part := range parts {
				path[j] = L.intern(part)
			}
			p.importPath[i] = path
			p.imports[i] = resolveImport(L.globals, path)
		}
	}

	for _, child := range chunk.Children {
		cp, err := L.link(child, source, chunk)
		if err != nil {
			return nil, err
		}
		p.children = append(p.children, cp)
	}
	return p, nil
}

// resolveImport looks up a dotted global path without raising; any
// missing or non-table step yields nil.
func resolveImport(env *Table, path []*String) Value {
	var v Value = env
	for _, part := range path {
		t, ok := v.(*Table)
		if !ok {
			return nil
		}
		v = t.Get(part)
	}
	return v
}

// verify checks that every instruction in chunk decodes and that its
// operands stay within the chunk, so the interpreter can index without
// further checks.
func verify(chunk *bytecode.Chunk, parent *bytecode.Chunk) error {
	if chunk.ParamCount > chunk.LocalCount {
		return fmt.Errorf("%d parameters exceed %d locals", chunk.ParamCount, chunk.LocalCount)
	}
	for i, u := range chunk.Upvalues {
		if parent == nil {
			break
		}
		if u.FromLocal && int(u.Index) >= int(parent.LocalCount) {
			return fmt.Errorf("upvalue %d captures local %d of %d", i, u.Index, parent.LocalCount)
		}
		if !u.FromLocal && int(u.Index) >= len(parent.Upvalues) {
			return fmt.Errorf("upvalue %d captures upvalue %d of %d", i, u.Index, len(parent.Upvalues))
		}
	}

	code := chunk.Code
	if len(code) == 0 {
		return fmt.Errorf("empty code")
	}
	constKind := func(idx int, kinds ...bytecode.ConstantKind) error {
		if idx >= len(chunk.Constants) {
			return fmt.Errorf("constant %d out of range", idx)
		}
		if len(kinds) == 0 {
			return nil
		}
		for _, k := range kinds {
			if chunk.Constants[idx].Kind == k {
				return nil
			}
		}
		return fmt.Errorf("constant %d is a %s", idx, chunk.Constants[idx].Kind)
	}

	starts := make(map[int]bool)
	var targets []int
	var lastOp bytecode.Opcode
	for pc := 0; pc < len(code); {
		starts[pc] = true
		op := bytecode.Opcode(code[pc])
		lastOp = op
		if !op.IsValid() {
			return fmt.Errorf("invalid opcode 0x%02X at %d", byte(op), pc)
		}
		n := op.InstructionLen()
		if pc+n > len(code) {
			return fmt.Errorf("truncated %s at %d", op, pc)
		}
		u8 := func(at int) int { return int(code[pc+at]) }
		u16 := func(at int) int { return int(code[pc+at])<<8 | int(code[pc+at+1]) }

		var err error
		switch op {
		case bytecode.OpLoadConst:
			err = constKind(u16(1), bytecode.ConstNumber, bytecode.ConstString, bytecode.ConstVector, bytecode.ConstNil, bytecode.ConstBool)
		case bytecode.OpGetGlobal, bytecode.OpSetGlobal, bytecode.OpGetField, bytecode.OpSetField:
			err = constKind(u16(1), bytecode.ConstString)
		case bytecode.OpGetImport:
			err = constKind(u16(1), bytecode.ConstImport)
		case bytecode.OpGetLocal, bytecode.OpSetLocal, bytecode.OpNewLocal:
			if u8(1) >= int(chunk.LocalCount) {
				err = fmt.Errorf("local %d out of range", u8(1))
			}
		case bytecode.OpForTest:
			if u8(1)+2 >= int(chunk.LocalCount) {
				err = fmt.Errorf("loop base %d out of range", u8(1))
			}
		case bytecode.OpGetUpval, bytecode.OpSetUpval:
			if u8(1) >= len(chunk.Upvalues) {
				err = fmt.Errorf("upvalue %d out of range", u8(1))
			}
		case bytecode.OpClosure:
			if u16(1) >= len(chunk.Children) {
				err = fmt.Errorf("function %d out of range", u16(1))
			}
		case bytecode.OpIterNext:
			if u8(1) >= int(chunk.LocalCount) {
				err = fmt.Errorf("local %d out of range", u8(1))
			}
		}
		if err == nil && op.IsJump() {
			at := pc + n - 2
			target := at + 2 + int(int16(uint16(code[at])<<8|uint16(code[at+1])))
			if target < 0 || target >= len(code) {
				err = fmt.Errorf("jump target %d out of range", target)
			}
			targets = append(targets, target)
		}
		if err != nil {
			return fmt.Errorf("%s at %d: %w", op, pc, err)
		}
		pc += n
	}

	for _, target := range targets {
		if !starts[target] {
			return fmt.Errorf("jump target %d is inside an instruction", target)
		}
	}
	if !lastOp.IsReturn() && lastOp != bytecode.OpJump {
		return fmt.Errorf("code does not end in a return")
	}
	return nil
}
