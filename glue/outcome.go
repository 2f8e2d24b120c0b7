package glue

import (
	"fmt"

	"github.com/chazu/scriptbridge/compiler"
)

// ---------------------------------------------------------------------------
// Compile outcomes
// ---------------------------------------------------------------------------

// OutcomeKind discriminates the variants of a CompileOutcome.
type OutcomeKind uint8

const (
	OutcomeSuccess        OutcomeKind = 0
	OutcomeParseFailure   OutcomeKind = 1
	OutcomeCompileFailure OutcomeKind = 2
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeParseFailure:
		return "parse failure"
	case OutcomeCompileFailure:
		return "compile failure"
	}
	return fmt.Sprintf("OutcomeKind(%d)", uint8(k))
}

// Span is a flat source range. Lines and columns are 0-based and the end
// is exclusive, as in the compiler.
type Span struct {
	StartLine   uint32
	StartColumn uint32
	EndLine     uint32
	EndColumn   uint32
}

func spanOf(s compiler.Span) Span {
	return Span{
		StartLine:   uint32(s.Start.Line),
		StartColumn: uint32(s.Start.Column),
		EndLine:     uint32(s.End.Line),
		EndColumn:   uint32(s.End.Column),
	}
}

// String formats the span as "(line,col)..(line,col)".
func (s Span) String() string {
	return fmt.Sprintf("(%d,%d)..(%d,%d)", s.StartLine, s.StartColumn, s.EndLine, s.EndColumn)
}

// Diagnostic is one error message with its location.
type Diagnostic struct {
	Message Buffer
	Span    Span
}

func (d Diagnostic) String() string {
	return d.Span.String() + ": " + d.Message.String()
}

// CompileOutcome is the result of Compile: exactly one of bytecode, a
// non-empty list of parse errors, or a single compile error. Accessors
// for the wrong variant panic.
type CompileOutcome struct {
	kind     OutcomeKind
	bytecode Buffer
	errors   []Diagnostic
	err      Diagnostic
}

// Kind returns the populated variant.
func (o *CompileOutcome) Kind() OutcomeKind { return o.kind }

// Success returns the bytecode of a successful compile.
func (o *CompileOutcome) Success() Buffer {
	o.expect(OutcomeSuccess)
	return o.bytecode
}

// ParseFailure returns the parse errors in source order.
func (o *CompileOutcome) ParseFailure() []Diagnostic {
	o.expect(OutcomeParseFailure)
	return o.errors
}

// CompileFailure returns the single compile error.
func (o *CompileOutcome) CompileFailure() Diagnostic {
	o.expect(OutcomeCompileFailure)
	return o.err
}

func (o *CompileOutcome) expect(kind OutcomeKind) {
	if o.kind != kind {
		panic(fmt.Sprintf("glue: read %s from a %s outcome", kind, o.kind))
	}
}

// FreeOutcome releases every buffer held by o. The outcome must not be
// used afterwards.
func FreeOutcome(o *CompileOutcome) {
	switch o.kind {
	case OutcomeSuccess:
		Free(o.bytecode)
		o.bytecode = Buffer{}
	case OutcomeParseFailure:
		for _, d := range o.errors {
			Free(d.Message)
		}
		o.errors = nil
	case OutcomeCompileFailure:
		Free(o.err.Message)
		o.err = Diagnostic{}
	}
}
