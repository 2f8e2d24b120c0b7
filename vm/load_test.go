package vm

import (
	"strings"
	"testing"

	"github.com/chazu/scriptbridge/compiler"
	"github.com/chazu/scriptbridge/pkg/bytecode"
)

func TestChunkID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"=stdin", "stdin"},
		{"@scripts/main.sb", "scripts/main.sb"},
		{"return 1", `[string "return 1"]`},
		{"local x = 1\nreturn x", `[string "local x = 1..."]`},
		{"", "?"},
	}
	for _, tc := range tests {
		if got := chunkID(tc.in); got != tc.want {
			t.Errorf("chunkID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	serialize := func(c *bytecode.Chunk) []byte {
		data, err := c.Serialize()
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		return data
	}

	badOpcode := bytecode.NewChunk()
	badOpcode.Emit(bytecode.Opcode(0xEE))

	badLocal := bytecode.NewChunk()
	badLocal.EmitWithOperand(bytecode.OpGetLocal, 3)
	badLocal.Emit(bytecode.OpReturn)

	badJump := bytecode.NewChunk()
	badJump.EmitJump(bytecode.OpJump)
	badJump.Emit(bytecode.OpReturnNil)

	noReturn := bytecode.NewChunk()
	noReturn.Emit(bytecode.OpNop)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "x: bytecode is empty"},
		{"error payload", compiler.Compile("local = 1", compiler.DefaultCompileOptions(), compiler.DefaultParseOptions()),
			"x:1: Expected identifier when parsing variable name, got '='"},
		{"version", []byte{9}, "x: bytecode version mismatch (expected [1..2], got 9)"},
		{"truncated", []byte{2, 0}, "x: malformed bytecode"},
		{"bad opcode", serialize(badOpcode), "x: malformed bytecode: invalid opcode 0xEE at 0"},
		{"bad local", serialize(badLocal), "x: malformed bytecode: GETLOCAL at 0: local 3 out of range"},
		{"bad jump", serialize(badJump), "jump target"},
		{"no return", serialize(noReturn), "code does not end in a return"},
	}

	L := NewState()
	for _, tc := range tests {
		_, err := L.Load("=x", tc.data)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		e := err.(*Error)
		if e.Status != StatusErrSyntax {
			t.Errorf("%s: status = %v, want %v", tc.name, e.Status, StatusErrSyntax)
		}
		if !strings.Contains(e.Error(), tc.want) {
			t.Errorf("%s: error = %q, want it to contain %q", tc.name, e.Error(), tc.want)
		}
	}
}

func TestLoadAllVersions(t *testing.T) {
	for _, version := range []int{1, 2} {
		opts := compiler.DefaultCompileOptions()
		opts.BytecodeVersion = version
		data, err := compiler.CompileChecked("local t = {1, 2}\nreturn t[1] + t[2]", opts, compiler.DefaultParseOptions())
		if err != nil {
			t.Fatalf("version %d: compile: %v", version, err)
		}
		L := NewState()
		fn, err := L.Load("=v", data)
		if err != nil {
			t.Fatalf("version %d: Load: %v", version, err)
		}
		if got, err := L.PCall(fn); err != nil || got != 3.0 {
			t.Errorf("version %d: result = %v, %v", version, got, err)
		}
	}
}

func TestLoadVectorConstant(t *testing.T) {
	opts := compiler.DefaultCompileOptions()
	opts.VectorLib = "vector"
	opts.VectorCtor = "create"
	data, err := compiler.CompileChecked("return vector.create(1, -2, 3)", opts, compiler.DefaultParseOptions())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	L := NewState()
	fn, err := L.Load("=vec", data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := L.PCall(fn)
	if err != nil {
		t.Fatalf("PCall: %v", err)
	}
	if got != (Vector{1, -2, 3, 0}) {
		t.Errorf("result = %v, want vector(1, -2, 3)", got)
	}
}

func TestLoadFunctionNames(t *testing.T) {
	opts := compiler.DefaultCompileOptions()
	data, err := compiler.CompileChecked("local function helper() return 1 end\nreturn helper", opts, compiler.DefaultParseOptions())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	L := NewState()
	fn, err := L.Load("@names.sb", data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := L.PCall(fn)
	if err != nil {
		t.Fatalf("PCall: %v", err)
	}
	cl, ok := got.(*Closure)
	if !ok {
		t.Fatalf("result = %T, want *Closure", got)
	}
	if cl.Name() != "helper" {
		t.Errorf("Name() = %q, want helper", cl.Name())
	}
	if cl.proto.Source() != "names.sb" {
		t.Errorf("Source() = %q, want names.sb", cl.proto.Source())
	}
}
