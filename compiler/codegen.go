package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/scriptbridge/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Code Generator: AST to bytecode
// ---------------------------------------------------------------------------

// Generator compiles a parsed chunk into a tree of bytecode chunks. It
// stops at the first error.
type Generator struct {
	opts     CompileOptions
	version  byte
	fold     bool
	folder   *folder
	imports  bool
	lineInfo bool
	mutable  map[string]bool // globals that must never be cached as imports

	fs *funcState
}

// localVar is a named local bound to a register slot.
type localVar struct {
	name string
	slot int
}

// upvalue is a captured variable of an enclosing function.
type upvalue struct {
	name      string
	fromLocal bool
	index     int
}

// loopState collects jumps that leave or restart the innermost loop.
type loopState struct {
	breaks    []int
	continues []int
}

// funcState tracks one function being compiled.
type funcState struct {
	parent     *funcState
	chunk      *bytecode.Chunk
	locals     []localVar // active locals, innermost last
	nextSlot   int
	maxSlots   int
	upvals     []upvalue
	loops      []*loopState
	localNames []string
}

// scopeMark records scope state for leaveScope.
type scopeMark struct {
	locals   int
	nextSlot int
}

type varKind int

const (
	varGlobal varKind = iota
	varLocal
	varUpval
)

// bailout carries the compile error out of deep recursion.
type bailout struct {
	err *CompileError
}

// Generate compiles a parsed chunk.
func Generate(root *Block, opts CompileOptions) (chunk *bytecode.Chunk, err error) {
	version := opts.BytecodeVersion
	if version == 0 {
		version = int(bytecode.VersionTarget)
	}
	if version < int(bytecode.VersionMin) || version > int(bytecode.VersionMax) {
		return nil, &CompileError{
			Message: fmt.Sprintf("Unsupported bytecode version %d (supported %d..%d)",
				version, bytecode.VersionMin, bytecode.VersionMax),
		}
	}

	g := &Generator{
		opts:     opts,
		version:  byte(version),
		fold:     opts.Optimization >= OptimizationBaseline && CompileFoldConstants.Get(),
		imports:  opts.Optimization >= OptimizationBaseline,
		lineInfo: opts.Debug >= DebugLines || opts.Coverage > CoverageNone,
		mutable:  collectMutableGlobals(root, opts.MutableGlobals),
		folder:   newFolder(),
	}

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			chunk, err = nil, b.err
		}
	}()

	g.openFunction("")
	g.markLine(root.SpanVal)
	g.stmts(root.Stmts)
	g.emit(bytecode.OpReturnNil)
	return g.closeFunction(), nil
}

// collectMutableGlobals returns the globals that are assigned anywhere in
// the chunk or listed as mutable by the host.
func collectMutableGlobals(root *Block, listed []string) map[string]bool {
	m := make(map[string]bool, len(listed))
	for _, name := range listed {
		m[name] = true
	}
	Walk(root, func(n Node) bool {
		switch n := n.(type) {
		case *AssignStmt:
			for _, t := range n.Targets {
				if name, ok := t.(*Name); ok {
					m[name.Name] = true
				}
			}
		case *FunctionStmt:
			if name, ok := n.Target.(*Name); ok {
				m[name.Name] = true
			}
		case *DeclareStmt:
			m[n.Name.Name] = true
		}
		return true
	})
	return m
}

// fail aborts code generation with an error at span.
func (g *Generator) fail(span Span, format string, args ...any) {
	panic(bailout{&CompileError{Location: span, Message: fmt.Sprintf(format, args...)}})
}

// ---------------------------------------------------------------------------
// Function and scope management
// ---------------------------------------------------------------------------

func (g *Generator) openFunction(name string) {
	chunk := bytecode.NewChunk()
	chunk.Version = g.version
	if g.opts.Debug >= DebugLines {
		chunk.Name = name
	}
	g.fs = &funcState{parent: g.fs, chunk: chunk}
}

func (g *Generator) closeFunction() *bytecode.Chunk {
	fs := g.fs
	chunk := fs.chunk
	chunk.LocalCount = uint8(fs.maxSlots)
	for _, u := range fs.upvals {
		chunk.Upvalues = append(chunk.Upvalues, bytecode.UpvalueDescriptor{
			Name:      u.name,
			FromLocal: u.fromLocal,
			Index:     uint8(u.index),
		})
	}
	if g.opts.Debug >= DebugFull && len(fs.localNames) > 0 {
		chunk.Flags |= bytecode.ChunkFlagLocalNames
		chunk.LocalNames = fs.localNames
	}
	g.fs = fs.parent
	return chunk
}

func (g *Generator) enterScope() scopeMark {
	return scopeMark{locals: len(g.fs.locals), nextSlot: g.fs.nextSlot}
}

func (g *Generator) leaveScope(m scopeMark) {
	g.fs.locals = g.fs.locals[:m.locals]
	g.fs.nextSlot = m.nextSlot
}

// declareLocal allocates a register for a new local and brings it into
// scope.
func (g *Generator) declareLocal(name string, span Span) int {
	fs := g.fs
	limit := min(CompileLocalLimit.Get(), 255)
	if fs.nextSlot >= limit {
		g.fail(span, "Out of local registers when trying to allocate %s: exceeded limit %d", name, limit)
	}
	slot := fs.nextSlot
	fs.nextSlot++
	fs.maxSlots = max(fs.maxSlots, fs.nextSlot)
	fs.locals = append(fs.locals, localVar{name: name, slot: slot})

	if g.opts.Debug >= DebugFull {
		for len(fs.localNames) <= slot {
			fs.localNames = append(fs.localNames, "")
		}
		if fs.localNames[slot] == "" {
			fs.localNames[slot] = name
		}
	}
	return slot
}

// resolve finds how name is reached from fs, capturing upvalues as needed.
func (g *Generator) resolve(fs *funcState, name string, span Span) (varKind, int) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return varLocal, fs.locals[i].slot
		}
	}
	for i, u := range fs.upvals {
		if u.name == name {
			return varUpval, i
		}
	}
	if fs.parent == nil {
		return varGlobal, 0
	}

	kind, idx := g.resolve(fs.parent, name, span)
	switch kind {
	case varLocal:
		return varUpval, g.addUpvalue(fs, upvalue{name: name, fromLocal: true, index: idx}, span)
	case varUpval:
		return varUpval, g.addUpvalue(fs, upvalue{name: name, fromLocal: false, index: idx}, span)
	}
	return varGlobal, 0
}

func (g *Generator) addUpvalue(fs *funcState, u upvalue, span Span) int {
	limit := min(CompileUpvalueLimit.Get(), 255)
	if len(fs.upvals) >= limit {
		g.fail(span, "Out of upvalue registers when trying to allocate %s: exceeded limit %d", u.name, limit)
	}
	fs.upvals = append(fs.upvals, u)
	return len(fs.upvals) - 1
}

// isGlobal reports whether name refers to a global at this point without
// capturing anything.
func (g *Generator) isGlobal(name string) bool {
	for fs := g.fs; fs != nil; fs = fs.parent {
		for _, l := range fs.locals {
			if l.name == name {
				return false
			}
		}
		for _, u := range fs.upvals {
			if u.name == name {
				return false
			}
		}
	}
	return true
}

func (g *Generator) importable(name string) bool {
	return g.imports && !g.mutable[name]
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (g *Generator) emit(op bytecode.Opcode) {
	g.fs.chunk.Emit(op)
}

func (g *Generator) emitU8(op bytecode.Opcode, v int) {
	g.fs.chunk.EmitWithOperand(op, byte(v))
}

func (g *Generator) emitU16(op bytecode.Opcode, v uint16) {
	g.fs.chunk.EmitUint16(op, v)
}

func (g *Generator) constant(k bytecode.Constant, span Span) uint16 {
	idx, err := g.fs.chunk.AddConstant(k)
	if err != nil {
		g.fail(span, "Exceeded constant limit; simplify the code to compile")
	}
	return idx
}

func (g *Generator) stringConstant(s string, span Span) uint16 {
	return g.constant(bytecode.StringConstant(s), span)
}

func (g *Generator) loadConstant(k bytecode.Constant, span Span) {
	switch k.Kind {
	case bytecode.ConstNil:
		g.emit(bytecode.OpLoadNil)
	case bytecode.ConstBool:
		if k.Bool {
			g.emit(bytecode.OpLoadTrue)
		} else {
			g.emit(bytecode.OpLoadFalse)
		}
	default:
		g.emitU16(bytecode.OpLoadConst, g.constant(k, span))
	}
}

func (g *Generator) emitJump(op bytecode.Opcode, prefix ...byte) int {
	return g.fs.chunk.EmitJump(op, prefix...)
}

func (g *Generator) patchJump(at int, span Span) {
	g.patchJumpTo(at, g.fs.chunk.CurrentOffset(), span)
}

func (g *Generator) patchJumpTo(at, target int, span Span) {
	if err := g.fs.chunk.PatchJumpTo(at, target); err != nil {
		if errors.Is(err, bytecode.ErrJumpTooFar) {
			g.fail(span, "Exceeded jump distance limit; simplify the code to compile")
		}
		g.fail(span, "%s", err)
	}
}

func (g *Generator) emitLoop(start int, span Span) {
	at := g.emitJump(bytecode.OpJump)
	g.patchJumpTo(at, start, span)
}

// markLine records the source line for the next instruction.
func (g *Generator) markLine(span Span) {
	if g.lineInfo {
		g.fs.chunk.AddLineInfo(uint32(g.fs.chunk.CurrentOffset()), uint32(span.Start.Line))
	}
}

func (g *Generator) coverage() {
	g.emit(bytecode.OpCoverage)
	g.fs.chunk.Flags |= bytecode.ChunkFlagCoverage
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) block(b *Block) {
	m := g.enterScope()
	g.stmts(b.Stmts)
	g.leaveScope(m)
}

func (g *Generator) stmts(list []Stmt) {
	for _, s := range list {
		g.stmt(s)
	}
}

func (g *Generator) stmt(s Stmt) {
	switch s.(type) {
	case *DeclareStmt, *TypeAliasStmt:
		return
	}

	g.markLine(s.Span())
	if g.opts.Coverage >= CoverageStatements {
		g.coverage()
	}

	switch s := s.(type) {
	case *LocalStmt:
		g.exprListAdjusted(s.Values, len(s.Names))
		slots := make([]int, len(s.Names))
		for i, n := range s.Names {
			slots[i] = g.declareLocal(n.Name, n.SpanVal)
		}
		for i := len(slots) - 1; i >= 0; i-- {
			g.emitU8(bytecode.OpNewLocal, slots[i])
		}

	case *AssignStmt:
		g.exprListAdjusted(s.Values, len(s.Targets))
		for i := len(s.Targets) - 1; i >= 0; i-- {
			g.assign(s.Targets[i])
		}

	case *CallStmt:
		g.expr(s.Call)
		g.emit(bytecode.OpPop)

	case *ReturnStmt:
		switch len(s.Values) {
		case 0:
			g.emit(bytecode.OpReturnNil)
		case 1:
			g.expr(s.Values[0])
			g.emit(bytecode.OpReturn)
		default:
			g.fail(s.SpanVal, "Returning multiple values is not supported")
		}

	case *IfStmt:
		g.ifStmt(s)

	case *WhileStmt:
		start := g.fs.chunk.CurrentOffset()
		g.expr(s.Cond)
		exit := g.emitJump(bytecode.OpJumpIfFalse)
		loop := g.pushLoop()
		g.block(s.Body)
		g.patchList(loop.continues, start, s.SpanVal)
		g.emitLoop(start, s.SpanVal)
		g.patchJump(exit, s.SpanVal)
		g.popLoop(s.SpanVal)

	case *RepeatStmt:
		start := g.fs.chunk.CurrentOffset()
		loop := g.pushLoop()
		m := g.enterScope()
		g.stmts(s.Body.Stmts)
		g.patchList(loop.continues, g.fs.chunk.CurrentOffset(), s.SpanVal)
		g.expr(s.Cond)
		back := g.emitJump(bytecode.OpJumpIfFalse)
		g.patchJumpTo(back, start, s.SpanVal)
		g.leaveScope(m)
		g.popLoop(s.SpanVal)

	case *NumericForStmt:
		g.numericFor(s)

	case *GenericForStmt:
		g.genericFor(s)

	case *DoStmt:
		g.block(s.Body)

	case *BreakStmt:
		loop := g.innerLoop()
		if loop == nil {
			g.fail(s.SpanVal, "break statement must be inside a loop")
		}
		loop.breaks = append(loop.breaks, g.emitJump(bytecode.OpJump))

	case *ContinueStmt:
		loop := g.innerLoop()
		if loop == nil {
			g.fail(s.SpanVal, "continue statement must be inside a loop")
		}
		loop.continues = append(loop.continues, g.emitJump(bytecode.OpJump))

	case *LocalFunctionStmt:
		slot := g.declareLocal(s.Name.Name, s.Name.SpanVal)
		g.emit(bytecode.OpLoadNil)
		g.emitU8(bytecode.OpNewLocal, slot)
		g.function(s.Func)
		g.emitU8(bytecode.OpSetLocal, slot)

	case *FunctionStmt:
		switch t := s.Target.(type) {
		case *Name:
			g.function(s.Func)
			g.storeName(t.Name, t.SpanVal)
		case *FieldExpr:
			g.expr(t.Object)
			g.function(s.Func)
			g.emitU16(bytecode.OpSetField, g.stringConstant(t.Field, t.SpanVal))
		default:
			g.fail(s.SpanVal, "Invalid function name")
		}

	default:
		g.fail(s.Span(), "Unsupported statement %T", s)
	}
}

// exprListAdjusted pushes exactly n values: missing values are nil and
// extra values are evaluated for their side effects and dropped.
func (g *Generator) exprListAdjusted(values []Expr, n int) {
	for i := 0; i < n; i++ {
		if i < len(values) {
			g.expr(values[i])
		} else {
			g.emit(bytecode.OpLoadNil)
		}
	}
	for i := n; i < len(values); i++ {
		g.expr(values[i])
		g.emit(bytecode.OpPop)
	}
}

// assign stores the value on top of the stack into target.
func (g *Generator) assign(target Expr) {
	switch t := target.(type) {
	case *Name:
		g.storeName(t.Name, t.SpanVal)
	case *FieldExpr:
		g.expr(t.Object)
		g.emit(bytecode.OpSwap)
		g.emitU16(bytecode.OpSetField, g.stringConstant(t.Field, t.SpanVal))
	case *IndexExpr:
		g.expr(t.Object)
		g.emit(bytecode.OpSwap)
		g.expr(t.Key)
		g.emit(bytecode.OpSwap)
		g.markLine(t.SpanVal)
		g.emit(bytecode.OpSetIndex)
	default:
		g.fail(target.Span(), "Assigned expression must be a variable or a field")
	}
}

func (g *Generator) storeName(name string, span Span) {
	kind, idx := g.resolve(g.fs, name, span)
	switch kind {
	case varLocal:
		g.emitU8(bytecode.OpSetLocal, idx)
	case varUpval:
		g.emitU8(bytecode.OpSetUpval, idx)
	default:
		g.emitU16(bytecode.OpSetGlobal, g.stringConstant(name, span))
	}
}

func (g *Generator) ifStmt(s *IfStmt) {
	var exits []int
	for i, cl := range s.Clauses {
		g.expr(cl.Cond)
		next := g.emitJump(bytecode.OpJumpIfFalse)
		g.block(cl.Body)
		if i < len(s.Clauses)-1 || s.Else != nil {
			exits = append(exits, g.emitJump(bytecode.OpJump))
		}
		g.patchJump(next, s.SpanVal)
	}
	if s.Else != nil {
		g.block(s.Else)
	}
	for _, at := range exits {
		g.patchJump(at, s.SpanVal)
	}
}

// numericFor compiles for v = a, b[, c]. Three hidden locals hold the
// running index, the limit and the step.
func (g *Generator) numericFor(s *NumericForStmt) {
	outer := g.enterScope()

	g.expr(s.Start)
	g.expr(s.Limit)
	if s.Step != nil {
		g.expr(s.Step)
	} else {
		g.loadConstant(bytecode.NumberConstant(1), s.SpanVal)
	}
	base := g.declareLocal("(for index)", s.SpanVal)
	g.declareLocal("(for limit)", s.SpanVal)
	g.declareLocal("(for step)", s.SpanVal)
	g.emitU8(bytecode.OpNewLocal, base+2)
	g.emitU8(bytecode.OpNewLocal, base+1)
	g.emitU8(bytecode.OpNewLocal, base)

	top := g.fs.chunk.CurrentOffset()
	g.markLine(s.SpanVal)
	g.emitU8(bytecode.OpForTest, base)
	exit := g.emitJump(bytecode.OpJumpIfFalse)
	loop := g.pushLoop()

	inner := g.enterScope()
	v := g.declareLocal(s.Var.Name, s.Var.SpanVal)
	g.emitU8(bytecode.OpGetLocal, base)
	g.emitU8(bytecode.OpNewLocal, v)
	g.stmts(s.Body.Stmts)
	g.leaveScope(inner)

	g.patchList(loop.continues, g.fs.chunk.CurrentOffset(), s.SpanVal)
	g.emitU8(bytecode.OpGetLocal, base)
	g.emitU8(bytecode.OpGetLocal, base+2)
	g.emit(bytecode.OpAdd)
	g.emitU8(bytecode.OpSetLocal, base)
	g.emitLoop(top, s.SpanVal)
	g.patchJump(exit, s.SpanVal)
	g.popLoop(s.SpanVal)

	g.leaveScope(outer)
}

// genericFor compiles for k, v in e. The iterator lives in a hidden local;
// ITERNEXT pushes the next key and value or jumps out when exhausted.
func (g *Generator) genericFor(s *GenericForStmt) {
	outer := g.enterScope()

	g.expr(s.Iter)
	g.markLine(s.Iter.Span())
	g.emit(bytecode.OpIterPrep)
	state := g.declareLocal("(for state)", s.SpanVal)
	g.emitU8(bytecode.OpNewLocal, state)

	top := g.fs.chunk.CurrentOffset()
	exit := g.emitJump(bytecode.OpIterNext, byte(state))
	loop := g.pushLoop()

	inner := g.enterScope()
	slots := make([]int, len(s.Vars))
	for i, v := range s.Vars {
		slots[i] = g.declareLocal(v.Name, v.SpanVal)
	}
	for i := len(slots) - 1; i >= 2; i-- {
		g.emit(bytecode.OpLoadNil)
		g.emitU8(bytecode.OpNewLocal, slots[i])
	}
	if len(slots) == 1 {
		g.emit(bytecode.OpPop)
	} else {
		g.emitU8(bytecode.OpNewLocal, slots[1])
	}
	g.emitU8(bytecode.OpNewLocal, slots[0])
	g.stmts(s.Body.Stmts)
	g.leaveScope(inner)

	g.patchList(loop.continues, top, s.SpanVal)
	g.emitLoop(top, s.SpanVal)
	g.patchJump(exit, s.SpanVal)
	g.popLoop(s.SpanVal)

	g.leaveScope(outer)
}

func (g *Generator) pushLoop() *loopState {
	l := &loopState{}
	g.fs.loops = append(g.fs.loops, l)
	return l
}

// popLoop ends the innermost loop, sending its breaks to the current offset.
func (g *Generator) popLoop(span Span) {
	fs := g.fs
	l := fs.loops[len(fs.loops)-1]
	fs.loops = fs.loops[:len(fs.loops)-1]
	g.patchList(l.breaks, fs.chunk.CurrentOffset(), span)
}

func (g *Generator) innerLoop() *loopState {
	if n := len(g.fs.loops); n > 0 {
		return g.fs.loops[n-1]
	}
	return nil
}

func (g *Generator) patchList(list []int, target int, span Span) {
	for _, at := range list {
		g.patchJumpTo(at, target, span)
	}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// function compiles fn as a child prototype and pushes a closure over it.
func (g *Generator) function(fn *FunctionExpr) {
	g.openFunction(fn.Name)
	g.markLine(fn.SpanVal)

	params := len(fn.Params)
	if fn.IsMethod {
		g.declareLocal("self", fn.SpanVal)
		params++
	}
	for _, p := range fn.Params {
		g.declareLocal(p.Name, p.SpanVal)
	}
	g.fs.chunk.ParamCount = uint8(params)

	g.stmts(fn.Body.Stmts)
	g.emit(bytecode.OpReturnNil)
	child := g.closeFunction()

	idx, err := g.fs.chunk.AddChild(child)
	if err != nil {
		g.fail(fn.SpanVal, "Exceeded function limit; simplify the code to compile")
	}
	g.emitU16(bytecode.OpClosure, idx)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *Generator) expr(e Expr) {
	if g.fold {
		if k, ok := g.folder.constant(e); ok {
			g.loadConstant(k, e.Span())
			return
		}
	}

	if g.opts.Coverage >= CoverageExpressions {
		switch e.(type) {
		case *NilLiteral, *BoolLiteral, *NumberLiteral, *StringLiteral, *ParenExpr:
		default:
			g.coverage()
		}
	}

	switch e := e.(type) {
	case *NilLiteral:
		g.emit(bytecode.OpLoadNil)
	case *BoolLiteral:
		g.loadConstant(bytecode.BoolConstant(e.Value), e.SpanVal)
	case *NumberLiteral:
		g.loadConstant(bytecode.NumberConstant(e.Value), e.SpanVal)
	case *StringLiteral:
		g.loadConstant(bytecode.StringConstant(e.Value), e.SpanVal)
	case *Name:
		g.loadName(e)
	case *ParenExpr:
		g.expr(e.Inner)
	case *FieldExpr:
		if path, ok := g.importPath(e); ok {
			g.emitU16(bytecode.OpGetImport, g.constant(bytecode.ImportConstant(path), e.SpanVal))
			return
		}
		g.expr(e.Object)
		g.markLine(e.SpanVal)
		g.emitU16(bytecode.OpGetField, g.stringConstant(e.Field, e.SpanVal))
	case *IndexExpr:
		g.expr(e.Object)
		g.expr(e.Key)
		g.markLine(e.SpanVal)
		g.emit(bytecode.OpGetIndex)
	case *CallExpr:
		g.call(e)
	case *FunctionExpr:
		g.function(e)
	case *TableExpr:
		g.table(e)
	case *UnaryExpr:
		g.expr(e.Operand)
		g.markLine(e.SpanVal)
		switch e.Op {
		case TokenMinus:
			g.emit(bytecode.OpUnm)
		case TokenNot:
			g.emit(bytecode.OpNot)
		case TokenHash:
			g.emit(bytecode.OpLen)
		default:
			g.fail(e.SpanVal, "Unsupported unary operator %s", e.Op)
		}
	case *BinaryExpr:
		g.binary(e)
	default:
		g.fail(e.Span(), "Unsupported expression %T", e)
	}
}

func (g *Generator) loadName(n *Name) {
	kind, idx := g.resolve(g.fs, n.Name, n.SpanVal)
	switch kind {
	case varLocal:
		g.emitU8(bytecode.OpGetLocal, idx)
	case varUpval:
		g.emitU8(bytecode.OpGetUpval, idx)
	default:
		if g.importable(n.Name) {
			g.emitU16(bytecode.OpGetImport, g.constant(bytecode.ImportConstant(n.Name), n.SpanVal))
			return
		}
		g.emitU16(bytecode.OpGetGlobal, g.stringConstant(n.Name, n.SpanVal))
	}
}

// importPath returns the dotted path for a.b or a.b.c when a is a global
// eligible for import caching. Longer chains are rejected without walking
// them.
func (g *Generator) importPath(e *FieldExpr) (string, bool) {
	parts := [3]string{2: e.Field}
	n := 1
	obj := e.Object
	for {
		switch o := obj.(type) {
		case *FieldExpr:
			if n == 2 {
				return "", false
			}
			n++
			parts[3-n] = o.Field
			obj = o.Object
			continue
		case *Name:
			if !g.isGlobal(o.Name) || !g.importable(o.Name) {
				return "", false
			}
			n++
			parts[3-n] = o.Name
			return strings.Join(parts[3-n:], "."), true
		}
		return "", false
	}
}

func (g *Generator) call(e *CallExpr) {
	if g.version >= bytecode.VersionVectors {
		if k, ok := g.vectorConstant(e); ok {
			g.loadConstant(k, e.SpanVal)
			return
		}
	}

	argc := len(e.Args)
	if e.Method != "" {
		g.expr(e.Func)
		g.emit(bytecode.OpDup)
		g.emitU16(bytecode.OpGetField, g.stringConstant(e.Method, e.SpanVal))
		g.emit(bytecode.OpSwap)
		argc++
	} else {
		g.expr(e.Func)
	}
	if argc > 255 {
		g.fail(e.SpanVal, "Function call has too many arguments; exceeded limit 255")
	}
	for _, a := range e.Args {
		g.expr(a)
	}
	g.markLine(e.SpanVal)
	g.emitU8(bytecode.OpCall, argc)
}

// vectorConstant turns a call to the configured vector constructor with
// numeric literal arguments into a vector constant.
func (g *Generator) vectorConstant(e *CallExpr) (bytecode.Constant, bool) {
	ctor := g.opts.VectorCtor
	if ctor == "" || e.Method != "" || (len(e.Args) != 3 && len(e.Args) != 4) {
		return bytecode.Constant{}, false
	}

	if g.opts.VectorLib == "" {
		n, ok := e.Func.(*Name)
		if !ok || n.Name != ctor || !g.isGlobal(ctor) {
			return bytecode.Constant{}, false
		}
	} else {
		f, ok := e.Func.(*FieldExpr)
		if !ok || f.Field != ctor {
			return bytecode.Constant{}, false
		}
		lib, ok := f.Object.(*Name)
		if !ok || lib.Name != g.opts.VectorLib || !g.isGlobal(lib.Name) {
			return bytecode.Constant{}, false
		}
	}

	var v [4]float32
	for i, a := range e.Args {
		n, ok := numberLiteral(a)
		if !ok {
			return bytecode.Constant{}, false
		}
		v[i] = float32(n)
	}
	return bytecode.VectorConstant(v[0], v[1], v[2], v[3]), true
}

// numberLiteral matches n and -n literals.
func numberLiteral(e Expr) (float64, bool) {
	switch e := e.(type) {
	case *NumberLiteral:
		return e.Value, true
	case *UnaryExpr:
		if n, ok := e.Operand.(*NumberLiteral); ok && e.Op == TokenMinus {
			return -n.Value, true
		}
	}
	return 0, false
}

func (g *Generator) table(e *TableExpr) {
	narray, nhash, general := 0, 0, false
	for _, it := range e.Items {
		if it.Kind == TableItemList {
			narray++
		} else {
			nhash++
			general = general || it.Kind == TableItemGeneral
		}
	}
	g.emitWithHints(min(narray, 255), min(nhash, 255))

	pos := 0
	for _, it := range e.Items {
		switch it.Kind {
		case TableItemList:
			pos++
			if general {
				// list items take explicit positions when [k] items are present
				g.loadConstant(bytecode.NumberConstant(float64(pos)), it.Value.Span())
				g.expr(it.Value)
				g.emit(bytecode.OpTableSet)
				continue
			}
			g.expr(it.Value)
			g.emit(bytecode.OpTableAppend)
		default:
			g.expr(it.Key)
			g.expr(it.Value)
			g.markLine(it.Value.Span())
			g.emit(bytecode.OpTableSet)
		}
	}
}

func (g *Generator) emitWithHints(narray, nhash int) {
	g.fs.chunk.EmitWithOperand(bytecode.OpNewTable, byte(narray), byte(nhash))
}

var binaryOps = map[TokenType]bytecode.Opcode{
	TokenPlus:    bytecode.OpAdd,
	TokenMinus:   bytecode.OpSub,
	TokenStar:    bytecode.OpMul,
	TokenSlash:   bytecode.OpDiv,
	TokenPercent: bytecode.OpMod,
	TokenCaret:   bytecode.OpPow,
	TokenEq:      bytecode.OpEq,
	TokenNe:      bytecode.OpNe,
	TokenLt:      bytecode.OpLt,
	TokenLe:      bytecode.OpLe,
	TokenGt:      bytecode.OpGt,
	TokenGe:      bytecode.OpGe,
	TokenConcat:  bytecode.OpConcat,
}

func (g *Generator) binary(e *BinaryExpr) {
	switch e.Op {
	case TokenAnd:
		g.expr(e.Left)
		j := g.emitJump(bytecode.OpJumpIfFalseKeep)
		g.expr(e.Right)
		g.patchJump(j, e.SpanVal)
		return
	case TokenOr:
		g.expr(e.Left)
		j := g.emitJump(bytecode.OpJumpIfTrueKeep)
		g.expr(e.Right)
		g.patchJump(j, e.SpanVal)
		return
	}

	op, ok := binaryOps[e.Op]
	if !ok {
		g.fail(e.SpanVal, "Unsupported binary operator %s", e.Op)
	}
	g.expr(e.Left)
	g.expr(e.Right)
	g.markLine(e.SpanVal)
	g.emit(op)
}
