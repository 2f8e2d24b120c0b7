package compiler

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chazu/scriptbridge/pkg/bytecode"
)

func compileChunk(t *testing.T, src string, opts CompileOptions) *bytecode.Chunk {
	t.Helper()
	chunk, err := CompileChunk(src, opts, DefaultParseOptions())
	if err != nil {
		t.Fatalf("CompileChunk(%q) error: %v", src, err)
	}
	return chunk
}

func compileError(t *testing.T, src string, opts CompileOptions) *CompileError {
	t.Helper()
	_, err := CompileChunk(src, opts, DefaultParseOptions())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("CompileChunk(%q) error = %v, want *CompileError", src, err)
	}
	return ce
}

func opcodes(c *bytecode.Chunk) []bytecode.Opcode {
	var ops []bytecode.Opcode
	for i := 0; i < len(c.Code); {
		op := bytecode.Opcode(c.Code[i])
		ops = append(ops, op)
		i += op.InstructionLen()
	}
	return ops
}

func hasOp(c *bytecode.Chunk, op bytecode.Opcode) bool {
	for _, o := range opcodes(c) {
		if o == op {
			return true
		}
	}
	return false
}

func hasConstant(c *bytecode.Chunk, k bytecode.Constant) bool {
	for _, existing := range c.Constants {
		if existing.Same(k) {
			return true
		}
	}
	return false
}

func TestCodegenConstantFolding(t *testing.T) {
	chunk := compileChunk(t, "local x = 1 + 2 * 3", DefaultCompileOptions())
	if hasOp(chunk, bytecode.OpAdd) || hasOp(chunk, bytecode.OpMul) {
		t.Errorf("arithmetic not folded: %v", opcodes(chunk))
	}
	if !hasConstant(chunk, bytecode.NumberConstant(7)) {
		t.Errorf("constants = %v, want 7", chunk.Constants)
	}

	noOpt := DefaultCompileOptions()
	noOpt.Optimization = OptimizationNone
	chunk = compileChunk(t, "local x = 1 + 2 * 3", noOpt)
	if !hasOp(chunk, bytecode.OpAdd) || !hasOp(chunk, bytecode.OpMul) {
		t.Errorf("optimization 0 folded arithmetic: %v", opcodes(chunk))
	}

	CompileFoldConstants.Set(false)
	defer CompileFoldConstants.Set(true)
	chunk = compileChunk(t, "local x = 1 + 2", DefaultCompileOptions())
	if !hasOp(chunk, bytecode.OpAdd) {
		t.Errorf("fold flag off but arithmetic folded: %v", opcodes(chunk))
	}
}

func TestCodegenFoldExpressions(t *testing.T) {
	tests := []struct {
		src  string
		want bytecode.Constant
	}{
		{`local x = "a" .. "b"`, bytecode.StringConstant("ab")},
		{"local x = -(2 ^ 3)", bytecode.NumberConstant(-8)},
		{"local x = 7 % -3", bytecode.NumberConstant(-2)},
		{`local x = #"four"`, bytecode.NumberConstant(4)},
		{"local x = 10 / 4", bytecode.NumberConstant(2.5)},
	}

	for _, tc := range tests {
		chunk := compileChunk(t, tc.src, DefaultCompileOptions())
		if !hasConstant(chunk, tc.want) {
			t.Errorf("%q: constants = %v, want %s", tc.src, chunk.Constants, tc.want.Display())
		}
	}

	chunk := compileChunk(t, "local x = 1 < 2 and not nil", DefaultCompileOptions())
	ops := opcodes(chunk)
	if len(ops) != 3 || ops[0] != bytecode.OpLoadTrue {
		t.Errorf("ops = %v, want LOADTRUE NEWLOCAL RETURNNIL", ops)
	}
}

func TestCodegenImports(t *testing.T) {
	chunk := compileChunk(t, "print(1)", DefaultCompileOptions())
	if !hasOp(chunk, bytecode.OpGetImport) || !hasConstant(chunk, bytecode.ImportConstant("print")) {
		t.Errorf("print not imported: %v", opcodes(chunk))
	}

	chunk = compileChunk(t, "local s = math.sqrt(4)", DefaultCompileOptions())
	if !hasConstant(chunk, bytecode.ImportConstant("math.sqrt")) {
		t.Errorf("constants = %v, want import math.sqrt", chunk.Constants)
	}

	mutable := DefaultCompileOptions()
	mutable.MutableGlobals = []string{"print"}
	chunk = compileChunk(t, "print(1)", mutable)
	if hasOp(chunk, bytecode.OpGetImport) || !hasOp(chunk, bytecode.OpGetGlobal) {
		t.Errorf("mutable global imported: %v", opcodes(chunk))
	}

	noOpt := DefaultCompileOptions()
	noOpt.Optimization = OptimizationNone
	chunk = compileChunk(t, "print(1)", noOpt)
	if hasOp(chunk, bytecode.OpGetImport) {
		t.Errorf("optimization 0 emitted import: %v", opcodes(chunk))
	}

	chunk = compileChunk(t, "function helper() end\nhelper()", DefaultCompileOptions())
	if hasConstant(chunk, bytecode.ImportConstant("helper")) {
		t.Error("assigned global was cached as an import")
	}
}

func TestCodegenImportPathDepth(t *testing.T) {
	chunk := compileChunk(t, "local v = a.b.c", DefaultCompileOptions())
	if !hasConstant(chunk, bytecode.ImportConstant("a.b.c")) {
		t.Errorf("constants = %v, want import a.b.c", chunk.Constants)
	}

	chunk = compileChunk(t, "local v = a.b.c.d.e", DefaultCompileOptions())
	if !hasConstant(chunk, bytecode.ImportConstant("a.b.c")) {
		t.Errorf("constants = %v, want import a.b.c", chunk.Constants)
	}
	if hasConstant(chunk, bytecode.ImportConstant("a.b.c.d")) {
		t.Error("import path longer than three parts")
	}
}

func TestCodegenLongChains(t *testing.T) {
	const terms = 100000
	tests := []struct {
		name string
		src  string
	}{
		{"arithmetic", "return 1" + strings.Repeat(" + x", terms)},
		{"constant arithmetic", "return 1" + strings.Repeat(" + 1", terms)},
		{"field access", "return x" + strings.Repeat(".a", terms)},
		{"and", "return x" + strings.Repeat(" and x", terms)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start := time.Now()
			compileChunk(t, tc.src, DefaultCompileOptions())
			if elapsed := time.Since(start); elapsed > 10*time.Second {
				t.Errorf("compiling %d terms took %v", terms, elapsed)
			}
		})
	}
}

func TestCodegenDebugLevels(t *testing.T) {
	src := "local function f(a)\n  local b = a\n  return b\nend"

	none := DefaultCompileOptions()
	none.Debug = DebugNone
	child := compileChunk(t, src, none).Children[0]
	if child.Name != "" || len(child.LineInfo) != 0 || child.Flags&bytecode.ChunkFlagLineInfo != 0 {
		t.Errorf("debug 0 chunk has debug info: name=%q lines=%v", child.Name, child.LineInfo)
	}

	child = compileChunk(t, src, DefaultCompileOptions()).Children[0]
	if child.Name != "f" {
		t.Errorf("Name = %q, want f", child.Name)
	}
	if child.LineAt(len(child.Code)-1) != 2 {
		t.Errorf("LineAt(end) = %d, want 2", child.LineAt(len(child.Code)-1))
	}
	if len(child.LocalNames) != 0 {
		t.Errorf("debug 1 emitted local names %v", child.LocalNames)
	}

	full := DefaultCompileOptions()
	full.Debug = DebugFull
	child = compileChunk(t, src, full).Children[0]
	if len(child.LocalNames) != 2 || child.LocalNames[0] != "a" || child.LocalNames[1] != "b" {
		t.Errorf("LocalNames = %v, want [a b]", child.LocalNames)
	}
}

func TestCodegenCoverage(t *testing.T) {
	src := "local x = 1\nlocal y = x"

	chunk := compileChunk(t, src, DefaultCompileOptions())
	if hasOp(chunk, bytecode.OpCoverage) {
		t.Error("coverage emitted at level 0")
	}

	opts := DefaultCompileOptions()
	opts.Coverage = CoverageStatements
	chunk = compileChunk(t, src, opts)
	count := 0
	for _, op := range opcodes(chunk) {
		if op == bytecode.OpCoverage {
			count++
		}
	}
	if count != 2 {
		t.Errorf("statement coverage hits = %d, want 2", count)
	}
	if chunk.Flags&bytecode.ChunkFlagCoverage == 0 {
		t.Error("coverage flag not set")
	}

	opts.Coverage = CoverageExpressions
	chunk = compileChunk(t, src, opts)
	count = 0
	for _, op := range opcodes(chunk) {
		if op == bytecode.OpCoverage {
			count++
		}
	}
	if count != 3 {
		t.Errorf("expression coverage hits = %d, want 3", count)
	}
}

func TestCodegenVectorConstants(t *testing.T) {
	opts := DefaultCompileOptions()
	opts.VectorCtor = "vector"
	chunk := compileChunk(t, "local v = vector(1, 2, -3)", opts)
	if !hasConstant(chunk, bytecode.VectorConstant(1, 2, -3, 0)) {
		t.Errorf("constants = %v, want vector(1, 2, -3, 0)", chunk.Constants)
	}
	if hasOp(chunk, bytecode.OpCall) {
		t.Error("vector constructor still called")
	}

	opts.VectorLib = "Vector3"
	opts.VectorCtor = "new"
	chunk = compileChunk(t, "local v = Vector3.new(1, 2, 3, 4)", opts)
	if !hasConstant(chunk, bytecode.VectorConstant(1, 2, 3, 4)) {
		t.Errorf("constants = %v, want vector(1, 2, 3, 4)", chunk.Constants)
	}

	opts.BytecodeVersion = 1
	chunk = compileChunk(t, "local v = Vector3.new(1, 2, 3)", opts)
	if !hasOp(chunk, bytecode.OpCall) {
		t.Error("version 1 folded a vector constant")
	}

	opts.BytecodeVersion = 0
	chunk = compileChunk(t, "local x = 1\nlocal v = Vector3.new(x, 2, 3)", opts)
	if !hasOp(chunk, bytecode.OpCall) {
		t.Error("non-constant arguments folded into a vector")
	}
}

func TestCodegenUpvalues(t *testing.T) {
	src := `local x = 1
local function outer()
  local y = 2
  return function() return x + y end
end`
	chunk := compileChunk(t, src, DefaultCompileOptions())
	outer := chunk.Children[0]
	inner := outer.Children[0]

	if len(outer.Upvalues) != 1 || outer.Upvalues[0] != (bytecode.UpvalueDescriptor{Name: "x", FromLocal: true, Index: 0}) {
		t.Errorf("outer upvalues = %+v", outer.Upvalues)
	}
	want := []bytecode.UpvalueDescriptor{
		{Name: "x", FromLocal: false, Index: 0},
		{Name: "y", FromLocal: true, Index: 0},
	}
	if len(inner.Upvalues) != len(want) {
		t.Fatalf("inner upvalues = %+v, want %+v", inner.Upvalues, want)
	}
	for i := range want {
		if inner.Upvalues[i] != want[i] {
			t.Errorf("inner upvalues[%d] = %+v, want %+v", i, inner.Upvalues[i], want[i])
		}
	}
}

func TestCodegenMethodParams(t *testing.T) {
	chunk := compileChunk(t, "local t = {}\nfunction t:m(a, b) return self end", DefaultCompileOptions())
	if got := chunk.Children[0].ParamCount; got != 3 {
		t.Errorf("ParamCount = %d, want 3", got)
	}
}

func TestCodegenErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
		line int
	}{
		{"break", "break statement must be inside a loop", 0},
		{"local x = 1\ncontinue", "continue statement must be inside a loop", 1},
		{"return 1, 2", "Returning multiple values is not supported", 0},
	}

	for _, tc := range tests {
		ce := compileError(t, tc.src, DefaultCompileOptions())
		if ce.Message != tc.want {
			t.Errorf("%q: message = %q, want %q", tc.src, ce.Message, tc.want)
		}
		if ce.Location.Start.Line != tc.line {
			t.Errorf("%q: line = %d, want %d", tc.src, ce.Location.Start.Line, tc.line)
		}
	}
}

func TestCodegenUnsupportedVersion(t *testing.T) {
	opts := DefaultCompileOptions()
	opts.BytecodeVersion = 3
	ce := compileError(t, "local x = 1", opts)
	if ce.Message != "Unsupported bytecode version 3 (supported 1..2)" {
		t.Errorf("message = %q", ce.Message)
	}
}

func TestCodegenLocalLimit(t *testing.T) {
	old := CompileLocalLimit.Get()
	CompileLocalLimit.Set(5)
	defer CompileLocalLimit.Set(old)

	ce := compileError(t, "local a, b, c, d, e, f = 1", DefaultCompileOptions())
	if ce.Message != "Out of local registers when trying to allocate f: exceeded limit 5" {
		t.Errorf("message = %q", ce.Message)
	}
}

func TestCodegenUpvalueLimit(t *testing.T) {
	old := CompileUpvalueLimit.Get()
	CompileUpvalueLimit.Set(2)
	defer CompileUpvalueLimit.Set(old)

	src := "local a, b, c = 1, 2, 3\nlocal function f() return a + b + c end"
	ce := compileError(t, src, DefaultCompileOptions())
	if ce.Message != "Out of upvalue registers when trying to allocate c: exceeded limit 2" {
		t.Errorf("message = %q", ce.Message)
	}
}
