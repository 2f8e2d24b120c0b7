package glue

import (
	"errors"
	"fmt"

	"github.com/chazu/scriptbridge/compiler"
	"github.com/chazu/scriptbridge/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Compile entry points
// ---------------------------------------------------------------------------

// Compile parses and compiles source. Parse errors become an
// OutcomeParseFailure carrying every error in source order; a code
// generation error becomes an OutcomeCompileFailure; otherwise the
// bytecode is copied into a fresh buffer. The caller owns every buffer in
// the outcome and releases them with FreeOutcome.
func Compile(source []byte, copts CompileOpts, popts ParseOpts) (out *CompileOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("compiler panic: %v", r)
			out = compileFailure(fmt.Sprintf("internal compiler error: %v", r), Span{})
		}
	}()

	if err := copts.Validate(); err != nil {
		return compileFailure(err.Error(), Span{})
	}
	co, po := IntoCompilerConfig(copts, popts)
	data, err := compiler.CompileChecked(string(source), co, po)
	if err == nil {
		return &CompileOutcome{kind: OutcomeSuccess, bytecode: ToBuffer(data)}
	}

	var parseErrs *compiler.ParseErrors
	var compileErr *compiler.CompileError
	switch {
	case errors.As(err, &parseErrs):
		list := parseErrs.Errors()
		log.Debugf("compile: %d parse errors", len(list))
		diags := make([]Diagnostic, len(list))
		for i, e := range list {
			diags[i] = Diagnostic{Message: StringBuffer(e.Message), Span: spanOf(e.Location)}
		}
		return &CompileOutcome{kind: OutcomeParseFailure, errors: diags}
	case errors.As(err, &compileErr):
		log.Debugf("compile: %s", compileErr)
		return compileFailure(compileErr.Message, spanOf(compileErr.Location))
	}
	return compileFailure(err.Error(), Span{})
}

func compileFailure(msg string, span Span) *CompileOutcome {
	return &CompileOutcome{
		kind: OutcomeCompileFailure,
		err:  Diagnostic{Message: StringBuffer(msg), Span: span},
	}
}

// CompileUnchecked compiles source and always returns a buffer. On failure
// the buffer holds an error payload instead of bytecode; the two are told
// apart by the leading byte (see bytecode.IsError).
func CompileUnchecked(source []byte, copts CompileOpts, popts ParseOpts) (out Buffer) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("compiler panic: %v", r)
			out = ToBuffer(bytecode.EncodeError(fmt.Sprintf(": internal compiler error: %v", r)))
		}
	}()

	if err := copts.Validate(); err != nil {
		return ToBuffer(bytecode.EncodeError(": " + err.Error()))
	}
	co, po := IntoCompilerConfig(copts, popts)
	return ToBuffer(compiler.Compile(string(source), co, po))
}
