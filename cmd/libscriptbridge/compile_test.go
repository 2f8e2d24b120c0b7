package main

import (
	"testing"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/pkg/bytecode"
)

// countingArrays wraps the C allocator and counts the arrays it hands out.
type countingArrays struct {
	allocs, frees int
}

func (a *countingArrays) Alloc(n int) []byte {
	a.allocs++
	return cAllocator{}.Alloc(n)
}

func (a *countingArrays) Free(block []byte) {
	a.frees++
	cAllocator{}.Free(block)
}

type failingArrays struct{}

func (failingArrays) Alloc(int) []byte { return nil }
func (failingArrays) Free([]byte)      {}

// withArrays installs a as the array allocator for the duration of the test.
func withArrays(t *testing.T, a glue.Allocator) {
	t.Helper()
	prev := arrays
	arrays = a
	t.Cleanup(func() { arrays = prev })
}

// compileC compiles src through SB_Compile and returns a view of the
// result with the function that releases it.
func compileC(t *testing.T, src string, badOptsVersion bool) (resultView, func()) {
	t.Helper()
	buf := bufferToC(glue.StringBuffer(src))
	defer SB_FreeBuffer(buf)

	copts := SB_DefaultCompileOpts()
	if badOptsVersion {
		copts.version = 7
	}
	r := SB_Compile(buf, copts, SB_DefaultParseOpts())
	free := func() {
		SB_FreeCompileResult(&r)
		if z := viewResult(&r); z.kind != glue.OutcomeSuccess || z.bytecode.data != nil || z.bytecode.len != 0 {
			t.Errorf("result not zeroed after free: %+v", z)
		}
	}
	return viewResult(&r), free
}

func TestCompileResultSuccess(t *testing.T) {
	v, free := compileC(t, "return 1 + 1", false)
	defer free()
	if v.kind != glue.OutcomeSuccess {
		t.Fatalf("kind = %d, want success", v.kind)
	}
	code := bufferFromC(v.bytecode)
	if code.Failed() || code.Len == 0 {
		t.Fatalf("bytecode buffer = %d bytes, failed %v", code.Len, code.Failed())
	}
	if code.Bytes()[0] != bytecode.VersionTarget {
		t.Errorf("version byte = %d, want %d", code.Bytes()[0], bytecode.VersionTarget)
	}
}

func TestCompileResultParseFailure(t *testing.T) {
	a := &countingArrays{}
	withArrays(t, a)

	v, free := compileC(t, "local = 1\nlocal = 2\nlocal = 3", false)
	if v.kind != glue.OutcomeParseFailure {
		t.Fatalf("kind = %d, want parse failure", v.kind)
	}
	if v.parseCount != 3 || len(v.parseErrs) != 3 {
		t.Fatalf("errors = %d (%d viewed), want 3", v.parseCount, len(v.parseErrs))
	}
	if a.allocs != 1 {
		t.Errorf("array allocations = %d, want 1", a.allocs)
	}
	for i, e := range v.parseErrs {
		if got := bufferFromC(e.message).String(); got != "Expected identifier when parsing variable name, got '='" {
			t.Errorf("errors[%d].message = %q", i, got)
		}
		if uint32(e.span.start_line) != uint32(i) || uint32(e.span.start_column) != 6 {
			t.Errorf("errors[%d] starts at (%d,%d)", i, e.span.start_line, e.span.start_column)
		}
		if uint32(e.span.end_line) < uint32(e.span.start_line) {
			t.Errorf("errors[%d] span is reversed", i)
		}
	}

	free()
	if a.frees != 1 {
		t.Errorf("array frees = %d, want 1", a.frees)
	}
}

func TestCompileResultParseFailureWithoutArray(t *testing.T) {
	withArrays(t, failingArrays{})

	v, free := compileC(t, "local = 1\nlocal = 2", false)
	defer free()
	if v.kind != glue.OutcomeParseFailure {
		t.Fatalf("kind = %d, want parse failure", v.kind)
	}
	if v.parseErrs != nil {
		t.Error("errors is not NULL after the array allocation failed")
	}
	if v.parseCount != 2 {
		t.Errorf("len = %d, want the error count 2", v.parseCount)
	}
}

func TestCompileResultCompileFailure(t *testing.T) {
	v, free := compileC(t, "local x = 1\nbreak", false)
	defer free()
	if v.kind != glue.OutcomeCompileFailure {
		t.Fatalf("kind = %d, want compile failure", v.kind)
	}
	if got := bufferFromC(v.compileErr.message).String(); got != "break statement must be inside a loop" {
		t.Errorf("message = %q", got)
	}
	if uint32(v.compileErr.span.start_line) != 1 {
		t.Errorf("start line = %d, want 1", v.compileErr.span.start_line)
	}
}

func TestCompileResultBadOptionsVersion(t *testing.T) {
	v, free := compileC(t, "return 1", true)
	defer free()
	if v.kind != glue.OutcomeCompileFailure {
		t.Fatalf("kind = %d, want compile failure", v.kind)
	}
	if got := bufferFromC(v.compileErr.message).String(); got != "unsupported compile options version 7 (expected 1..2)" {
		t.Errorf("message = %q", got)
	}
}

func TestFreeCompileResultNil(t *testing.T) {
	SB_FreeCompileResult(nil)
}

func TestCAllocatorZeroLength(t *testing.T) {
	block := cAllocator{}.Alloc(0)
	if block == nil {
		t.Fatal("zero-length allocation failed")
	}
	if len(block) != 0 || cap(block) < 1 {
		t.Errorf("block has len %d cap %d", len(block), cap(block))
	}
	cAllocator{}.Free(block)

	b := bufferToC(glue.ToBuffer(nil))
	if b.data == nil || b.len != 0 {
		t.Errorf("empty buffer = %v, %d", b.data, b.len)
	}
	SB_FreeBuffer(b)
}

func TestToBufferCopiesCMemory(t *testing.T) {
	src := []byte("embedded\x00nul")
	in := bufferToC(glue.ToBuffer(src))
	defer SB_FreeBuffer(in)

	out := SB_ToBuffer(in.data, in.len)
	defer SB_FreeBuffer(out)
	if out.data == in.data {
		t.Error("SB_ToBuffer did not copy")
	}
	if got := bufferFromC(out).String(); got != string(src) {
		t.Errorf("buffer = %q, want %q", got, src)
	}
}
