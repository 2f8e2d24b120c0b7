package glue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/scriptbridge/pkg/bytecode"
)

func compileString(src string, copts CompileOpts, popts ParseOpts) *CompileOutcome {
	return Compile([]byte(src), copts, popts)
}

func TestCompileSuccess(t *testing.T) {
	out := compileString("return 1 + 1", DefaultCompileOpts(), DefaultParseOpts())
	defer FreeOutcome(out)

	require.Equal(t, OutcomeSuccess, out.Kind())
	code := out.Success()
	require.False(t, code.Failed())
	require.Greater(t, code.Len, 0)
	require.Equal(t, bytecode.VersionTarget, code.Bytes()[0])
	require.Panics(t, func() { out.ParseFailure() })
	require.Panics(t, func() { out.CompileFailure() })
}

func TestCompileBytecodeVersionOne(t *testing.T) {
	copts := DefaultCompileOpts()
	copts.BytecodeVersion = 1
	out := compileString("local x = 1", copts, DefaultParseOpts())
	defer FreeOutcome(out)

	require.Equal(t, byte(1), out.Success().Bytes()[0])
}

func TestCompileUndeclaredGlobal(t *testing.T) {
	popts := DefaultParseOpts()
	popts.AllowDeclarationSyntax = false
	out := compileString("x = 1", DefaultCompileOpts(), popts)
	defer FreeOutcome(out)

	require.Equal(t, OutcomeParseFailure, out.Kind())
	errs := out.ParseFailure()
	require.Len(t, errs, 1)
	require.Equal(t, "Assigning to undeclared global 'x'", errs[0].Message.String())
	require.Panics(t, func() { out.Success() })
}

func TestCompileDeclaredGlobal(t *testing.T) {
	popts := DefaultParseOpts()
	popts.AllowDeclarationSyntax = true
	out := compileString("declare x: number\nx = 1", DefaultCompileOpts(), popts)
	defer FreeOutcome(out)

	require.Equal(t, OutcomeSuccess, out.Kind())
}

func TestCompileParseErrorsInOrder(t *testing.T) {
	out := compileString("local = 1\nlocal = 2\nlocal = 3", DefaultCompileOpts(), DefaultParseOpts())
	defer FreeOutcome(out)

	errs := out.ParseFailure()
	require.Len(t, errs, 3)
	for i, d := range errs {
		require.Equal(t, uint32(i), d.Span.StartLine)
		require.Equal(t, uint32(6), d.Span.StartColumn)
		require.True(t, d.Span.StartLine < d.Span.EndLine ||
			(d.Span.StartLine == d.Span.EndLine && d.Span.StartColumn <= d.Span.EndColumn),
			"span %s is reversed", d.Span)
		require.Equal(t, "Expected identifier when parsing variable name, got '='", d.Message.String())
	}
	require.Equal(t, "(0,6)", errs[0].String()[:5])
}

func TestCompileFailureIsSingle(t *testing.T) {
	out := compileString("local x = 1\nbreak", DefaultCompileOpts(), DefaultParseOpts())
	defer FreeOutcome(out)

	require.Equal(t, OutcomeCompileFailure, out.Kind())
	d := out.CompileFailure()
	require.Equal(t, "break statement must be inside a loop", d.Message.String())
	require.Equal(t, uint32(1), d.Span.StartLine)
}

func TestCompileUnsupportedVersions(t *testing.T) {
	copts := DefaultCompileOpts()
	copts.BytecodeVersion = 9
	out := compileString("return 1", copts, DefaultParseOpts())
	require.Equal(t, OutcomeCompileFailure, out.Kind())
	require.Contains(t, out.CompileFailure().Message.String(), "Unsupported bytecode version 9")
	FreeOutcome(out)

	copts = DefaultCompileOpts()
	copts.Version = 7
	out = compileString("return 1", copts, DefaultParseOpts())
	require.Equal(t, OutcomeCompileFailure, out.Kind())
	require.Equal(t, "unsupported compile options version 7 (expected 1..2)", out.CompileFailure().Message.String())
	FreeOutcome(out)
}

func TestCompileUnchecked(t *testing.T) {
	tests := []struct {
		src     string
		isError bool
		payload string
	}{
		{"return 1 + 1", false, ""},
		{"x = 1", true, ":1: Assigning to undeclared global 'x'"},
		{"local x = 1\n\nbreak", true, ":3: break statement must be inside a loop"},
	}
	for _, tc := range tests {
		b := CompileUnchecked([]byte(tc.src), DefaultCompileOpts(), DefaultParseOpts())
		require.False(t, b.Failed())
		require.Equal(t, tc.isError, bytecode.IsError(b.Bytes()), tc.src)
		if tc.isError {
			msg, ok := bytecode.ErrorMessage(b.Bytes())
			require.True(t, ok)
			require.Equal(t, tc.payload, msg)
		}
		Free(b)
	}
}

func TestFreeOutcome(t *testing.T) {
	a := &countingAllocator{}
	withAllocator(t, a)

	out := compileString("local = 1\nlocal = 2", DefaultCompileOpts(), DefaultParseOpts())
	FreeOutcome(out)
	require.Equal(t, 2, a.allocs)
	require.Equal(t, 2, a.frees)

	out = compileString("return 1", DefaultCompileOpts(), DefaultParseOpts())
	FreeOutcome(out)
	require.Equal(t, 3, a.frees)
}
