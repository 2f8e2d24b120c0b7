package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/scriptbridge/pkg/bytecode"
)

func TestCompileSuccess(t *testing.T) {
	data := Compile("local function add(a, b) return a + b end\nreturn add(1, 2)",
		DefaultCompileOptions(), DefaultParseOptions())
	if bytecode.IsError(data) {
		msg, _ := bytecode.ErrorMessage(data)
		t.Fatalf("Compile returned error payload %q", msg)
	}
	if data[0] != bytecode.VersionTarget {
		t.Errorf("version byte = %d, want %d", data[0], bytecode.VersionTarget)
	}

	chunk, err := bytecode.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}
	if len(chunk.Children) != 1 || chunk.Children[0].ParamCount != 2 {
		t.Errorf("children = %d, want one two-parameter function", len(chunk.Children))
	}
}

func TestCompileVersionOne(t *testing.T) {
	opts := DefaultCompileOptions()
	opts.BytecodeVersion = 1
	data := Compile("local x = 1", opts, DefaultParseOptions())
	if data[0] != 1 {
		t.Errorf("version byte = %d, want 1", data[0])
	}
}

func TestCompileErrorPayload(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"local x = ", ":1: Expected identifier when parsing expression, got <eof>"},
		{"local x = 1\n\nbreak", ":3: break statement must be inside a loop"},
		{"x = 1", ":1: Assigning to undeclared global 'x'"},
		{"local ok = true\nif ok then", ":2: Expected 'end' (to close 'if' at line 2), got <eof>"},
	}

	for _, tc := range tests {
		data := Compile(tc.src, DefaultCompileOptions(), DefaultParseOptions())
		if len(data) == 0 || data[0] != 0 {
			t.Errorf("Compile(%q) = %v, want error payload", tc.src, data)
			continue
		}
		if got := string(data[1:]); got != tc.want {
			t.Errorf("Compile(%q) payload = %q, want %q", tc.src, got, tc.want)
		}
	}
}

func TestCompileCheckedErrorTypes(t *testing.T) {
	_, err := CompileChecked("local = 1\nlocal = 2", DefaultCompileOptions(), DefaultParseOptions())
	var pe *ParseErrors
	if !errors.As(err, &pe) {
		t.Fatalf("error = %T, want *ParseErrors", err)
	}
	if pe.Len() != 2 {
		t.Errorf("Len() = %d, want 2", pe.Len())
	}

	var single *ParseError
	if !errors.As(err, &single) {
		t.Error("errors.As did not reach the individual *ParseError")
	}

	_, err = CompileChecked("break", DefaultCompileOptions(), DefaultParseOptions())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %T, want *CompileError", err)
	}
	if ce.Error() != "1:1: break statement must be inside a loop" {
		t.Errorf("Error() = %q", ce.Error())
	}
}

func TestParseErrorsFormat(t *testing.T) {
	_, err := Parse("local = 1\nlocal = 2", DefaultParseOptions())
	want := "2 parse errors:\n\t1:7: Expected identifier when parsing variable name, got '='\n\t2:7: Expected identifier when parsing variable name, got '='"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
