package vm

import (
	"github.com/chazu/scriptbridge/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// frame is one active script call.
type frame struct {
	cl     *Closure
	parent *frame
	pc     int // start of the executing instruction
	locals []*cell
	stack  []Value
}

func (f *frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() Value {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack[n] = nil
	f.stack = f.stack[:n]
	return v
}

func (f *frame) top() Value {
	return f.stack[len(f.stack)-1]
}

// call dispatches on the callee type.
func (L *State) call(fn Value, args []Value) Value {
	switch f := fn.(type) {
	case *Closure:
		return L.execute(f, args)
	case *GoFunction:
		return f.Fn(L, args)
	}
	L.runError("attempt to call a %s value", TypeName(fn))
	return nil
}

// execute runs a closure to completion and returns its result.
func (L *State) execute(cl *Closure, args []Value) Value {
	if L.depth >= VMCallDepthLimit.Get() {
		L.runError("stack overflow")
	}
	L.depth++

	p := cl.proto
	fr := &frame{
		cl:     cl,
		parent: L.ci,
		locals: make([]*cell, p.localCount),
		stack:  make([]Value, 0, 8),
	}
	for i := 0; i < p.paramCount; i++ {
		var v Value
		if i < len(args) {
			v = args[i]
		}
		fr.locals[i] = &cell{v: v}
	}
	L.ci = fr

	result := L.run(fr)

	L.ci = fr.parent
	L.depth--
	return result
}

func (L *State) run(fr *frame) Value {
	cl := fr.cl
	p := cl.proto
	code := p.code
	trace := DebugTraceExecution.Get()

	u8 := func(at int) int { return int(code[at]) }
	u16 := func(at int) int { return int(code[at])<<8 | int(code[at+1]) }
	i16 := func(at int) int { return int(int16(uint16(code[at])<<8 | uint16(code[at+1]))) }

	pc := 0
	for {
		fr.pc = pc
		op := bytecode.Opcode(code[pc])
		if trace {
			log.Debugf("%s %s %04d %-14s stack=%d", p.source, p.name, pc, op, len(fr.stack))
		}
		pc += op.InstructionLen()

		switch op {
		// Stack manipulation
		case bytecode.OpNop:
		case bytecode.OpPop:
			fr.pop()
		case bytecode.OpDup:
			fr.push(fr.top())
		case bytecode.OpSwap:
			n := len(fr.stack)
			fr.stack[n-1], fr.stack[n-2] = fr.stack[n-2], fr.stack[n-1]

		// Constants
		case bytecode.OpLoadConst:
			fr.push(p.consts[u16(fr.pc+1)])
		case bytecode.OpLoadNil:
			fr.push(nil)
		case bytecode.OpLoadTrue:
			fr.push(true)
		case bytecode.OpLoadFalse:
			fr.push(false)

		// Locals
		case bytecode.OpGetLocal:
			if c := fr.locals[u8(fr.pc+1)]; c != nil {
				fr.push(c.v)
			} else {
				fr.push(nil)
			}
		case bytecode.OpSetLocal:
			slot := u8(fr.pc + 1)
			if c := fr.locals[slot]; c != nil {
				c.v = fr.pop()
			} else {
				fr.locals[slot] = &cell{v: fr.pop()}
			}
		case bytecode.OpNewLocal:
			fr.locals[u8(fr.pc+1)] = &cell{v: fr.pop()}

		// Upvalues and closures
		case bytecode.OpGetUpval:
			fr.push(cl.upvals[u8(fr.pc+1)].v)
		case bytecode.OpSetUpval:
			cl.upvals[u8(fr.pc+1)].v = fr.pop()
		case bytecode.OpClosure:
			fr.push(L.newClosure(fr, p.children[u16(fr.pc+1)]))

		// Globals
		case bytecode.OpGetGlobal:
			fr.push(cl.env.Get(p.consts[u16(fr.pc+1)]))
		case bytecode.OpSetGlobal:
			L.setTable(cl.env, p.consts[u16(fr.pc+1)], fr.pop())
		case bytecode.OpGetImport:
			k := u16(fr.pc + 1)
			if v := p.imports[k]; v != nil && cl.env.safeenv {
				fr.push(v)
				break
			}
			fr.push(L.lookupImport(cl.env, p.importPath[k]))

		// Tables
		case bytecode.OpNewTable:
			fr.push(L.NewTable(u8(fr.pc+1), u8(fr.pc+2)))
		case bytecode.OpGetIndex:
			k := fr.pop()
			t := fr.pop()
			fr.push(L.index(t, k))
		case bytecode.OpSetIndex:
			v := fr.pop()
			k := fr.pop()
			t := fr.pop()
			L.setIndex(t, k, v)
		case bytecode.OpGetField:
			fr.push(L.index(fr.pop(), p.consts[u16(fr.pc+1)]))
		case bytecode.OpSetField:
			v := fr.pop()
			t := fr.pop()
			L.setIndex(t, p.consts[u16(fr.pc+1)], v)
		case bytecode.OpTableAppend:
			v := fr.pop()
			t := fr.top().(*Table)
			L.setTable(t, float64(t.Len()+1), v)
		case bytecode.OpTableSet:
			v := fr.pop()
			k := fr.pop()
			L.setTable(fr.top().(*Table), k, v)

		// Arithmetic
		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod, bytecode.OpPow:
			b := fr.pop()
			a := fr.pop()
			fr.push(L.arith(op, a, b))
		case bytecode.OpUnm:
			fr.push(L.unm(fr.pop()))

		// Comparison, logic and strings
		case bytecode.OpEq:
			b := fr.pop()
			fr.push(RawEqual(fr.pop(), b))
		case bytecode.OpNe:
			b := fr.pop()
			fr.push(!RawEqual(fr.pop(), b))
		case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
			b := fr.pop()
			a := fr.pop()
			fr.push(L.compare(op, a, b))
		case bytecode.OpNot:
			fr.push(!Truthy(fr.pop()))
		case bytecode.OpLen:
			fr.push(L.length(fr.pop()))
		case bytecode.OpConcat:
			b := fr.pop()
			a := fr.pop()
			fr.push(L.concat(a, b))

		// Control flow
		case bytecode.OpJump:
			pc += i16(fr.pc + 1)
		case bytecode.OpJumpIfFalse:
			if !Truthy(fr.pop()) {
				pc += i16(fr.pc + 1)
			}
		case bytecode.OpJumpIfFalseKeep:
			if !Truthy(fr.top()) {
				pc += i16(fr.pc + 1)
			} else {
				fr.pop()
			}
		case bytecode.OpJumpIfTrueKeep:
			if Truthy(fr.top()) {
				pc += i16(fr.pc + 1)
			} else {
				fr.pop()
			}
		case bytecode.OpForTest:
			fr.push(L.forTest(fr.locals, u8(fr.pc+1)))
		case bytecode.OpIterPrep:
			fr.push(L.iterPrep(fr.pop()))
		case bytecode.OpIterNext:
			it := fr.locals[u8(fr.pc+1)].v.(*iterator)
			k, v, ok := it.next()
			if !ok {
				pc += i16(fr.pc + 2)
				break
			}
			fr.push(k)
			fr.push(v)

		// Calls
		case bytecode.OpCall:
			argc := u8(fr.pc + 1)
			n := len(fr.stack)
			args := make([]Value, argc)
			copy(args, fr.stack[n-argc:])
			fn := fr.stack[n-argc-1]
			clear(fr.stack[n-argc-1:])
			fr.stack = fr.stack[:n-argc-1]
			fr.push(L.call(fn, args))

		// Instrumentation
		case bytecode.OpCoverage:
			L.g.hit(p, fr.pc)

		// Return
		case bytecode.OpReturn:
			return fr.pop()
		case bytecode.OpReturnNil:
			return nil

		default:
			L.runError("invalid opcode %s", op)
		}
	}
}

// newClosure instantiates child, capturing the current frame's cells.
func (L *State) newClosure(fr *frame, child *Proto) *Closure {
	L.charge(costClosure + 8*len(child.chunk.Upvalues))
	c := &Closure{proto: child, env: fr.cl.env, upvals: make([]*cell, len(child.chunk.Upvalues))}
	for i, u := range child.chunk.Upvalues {
		if u.FromLocal {
			if fr.locals[u.Index] == nil {
				fr.locals[u.Index] = &cell{}
			}
			c.upvals[i] = fr.locals[u.Index]
		} else {
			c.upvals[i] = fr.cl.upvals[u.Index]
		}
	}
	return c
}

// lookupImport resolves an import path live, raising on bad steps like an
// ordinary field access would.
func (L *State) lookupImport(env *Table, path []*String) Value {
	v := env.Get(path[0])
	for _, part := range path[1:] {
		v = L.index(v, part)
	}
	return v
}

// forTest checks the numeric loop registers at base and reports whether
// the loop continues.
func (L *State) forTest(locals []*cell, base int) bool {
	get := func(i int) Value {
		if c := locals[base+i]; c != nil {
			return c.v
		}
		return nil
	}
	idx, ok := ToNumber(get(0))
	if !ok {
		L.runError("'for' initial value must be a number")
	}
	limit, ok := ToNumber(get(1))
	if !ok {
		L.runError("'for' limit must be a number")
	}
	step, ok := ToNumber(get(2))
	if !ok {
		L.runError("'for' step must be a number")
	}
	if step == 0 {
		L.runError("'for' step is zero")
	}
	locals[base].v, locals[base+1].v, locals[base+2].v = idx, limit, step
	if step > 0 {
		return idx <= limit
	}
	return idx >= limit
}

// iterPrep turns the value of a generic for expression into an iterator.
func (L *State) iterPrep(v Value) *iterator {
	switch v := v.(type) {
	case *Table:
		return &iterator{t: v}
	case *ipairsMarker:
		return &iterator{t: v.t, ipairs: true}
	case *iterator:
		return v
	}
	L.runError("attempt to iterate over a %s value", TypeName(v))
	return nil
}
