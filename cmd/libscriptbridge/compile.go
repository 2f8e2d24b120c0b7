package main

/*
#include "scriptbridge.h"
*/
import "C"
import (
	"unsafe"

	"github.com/chazu/scriptbridge/glue"
)

// ============================================================================
// Buffers
// ============================================================================

//export SB_ToBuffer
func SB_ToBuffer(data *C.char, n C.size_t) C.SBBuffer {
	return bufferToC(glue.ToBuffer(cBytes(data, n)))
}

//export SB_FreeBuffer
func SB_FreeBuffer(b C.SBBuffer) {
	glue.Free(bufferFromC(b))
}

// ============================================================================
// Options
// ============================================================================

func optionalString(s *C.char) glue.Optional[string] {
	if s == nil {
		return glue.None[string]()
	}
	return glue.Some(C.GoString(s))
}

func compileOptsFromC(o *C.SBCompileOpts) glue.CompileOpts {
	opts := glue.CompileOpts{
		Version:           int(o.version),
		BytecodeVersion:   int(o.bytecodeVersion),
		OptimizationLevel: int(o.optimizationLevel),
		DebugLevel:        int(o.debugLevel),
		CoverageLevel:     int(o.coverageLevel),
		VectorLib:         optionalString(o.vectorLib),
		VectorCtor:        optionalString(o.vectorCtor),
	}
	if opts.Version != glue.CompileOptsV1 && o.mutableGlobals != nil && o.mutableGlobalsLen > 0 {
		names := unsafe.Slice(o.mutableGlobals, int(o.mutableGlobalsLen))
		opts.MutableGlobals = make([]string, len(names))
		for i, name := range names {
			opts.MutableGlobals[i] = C.GoString(name)
		}
	}
	return opts
}

func parseOptsFromC(o *C.SBParseOpts) glue.ParseOpts {
	return glue.ParseOpts{
		AllowTypeAnnotations:     bool(o.allowTypeAnnotations),
		SupportContinueStatement: bool(o.supportContinueStatement),
		AllowDeclarationSyntax:   bool(o.allowDeclarationSyntax),
		CaptureComments:          bool(o.captureComments),
	}
}

//export SB_DefaultCompileOpts
func SB_DefaultCompileOpts() C.SBCompileOpts {
	d := glue.DefaultCompileOpts()
	var o C.SBCompileOpts
	o.version = C.int(d.Version)
	o.optimizationLevel = C.int(d.OptimizationLevel)
	o.debugLevel = C.int(d.DebugLevel)
	o.coverageLevel = C.int(d.CoverageLevel)
	return o
}

//export SB_DefaultParseOpts
func SB_DefaultParseOpts() C.SBParseOpts {
	d := glue.DefaultParseOpts()
	var o C.SBParseOpts
	o.allowTypeAnnotations = C.bool(d.AllowTypeAnnotations)
	o.supportContinueStatement = C.bool(d.SupportContinueStatement)
	o.allowDeclarationSyntax = C.bool(d.AllowDeclarationSyntax)
	o.captureComments = C.bool(d.CaptureComments)
	return o
}

// ============================================================================
// Compilation
// ============================================================================

func spanToC(s glue.Span) C.SBSpan {
	return C.SBSpan{
		start_line:   C.uint(s.StartLine),
		start_column: C.uint(s.StartColumn),
		end_line:     C.uint(s.EndLine),
		end_column:   C.uint(s.EndColumn),
	}
}

func errorToC(d glue.Diagnostic) C.SBError {
	return C.SBError{message: bufferToC(d.Message), span: spanToC(d.Span)}
}

//export SB_Compile
func SB_Compile(source C.SBBuffer, copts C.SBCompileOpts, popts C.SBParseOpts) C.SBCompileResult {
	out := glue.Compile(cBytes(source.data, source.len), compileOptsFromC(&copts), parseOptsFromC(&popts))

	var r C.SBCompileResult
	switch out.Kind() {
	case glue.OutcomeSuccess:
		C.sb_result_success(&r, bufferToC(out.Success()))
	case glue.OutcomeParseFailure:
		diags := out.ParseFailure()
		size := len(diags) * int(unsafe.Sizeof(C.SBError{}))
		block := arrays.Alloc(size)
		if block == nil {
			// errors is NULL, len keeps the count
			glue.FreeOutcome(out)
			C.sb_result_parse_failure(&r, nil, C.size_t(len(diags)))
			break
		}
		arr := (*C.SBError)(unsafe.Pointer(unsafe.SliceData(block)))
		errs := unsafe.Slice(arr, len(diags))
		for i, d := range diags {
			errs[i] = errorToC(d)
		}
		C.sb_result_parse_failure(&r, arr, C.size_t(len(diags)))
	case glue.OutcomeCompileFailure:
		C.sb_result_compile_failure(&r, errorToC(out.CompileFailure()))
	}
	return r
}

//export SB_CompileUnchecked
func SB_CompileUnchecked(source C.SBBuffer, copts C.SBCompileOpts, popts C.SBParseOpts) C.SBBuffer {
	return bufferToC(glue.CompileUnchecked(cBytes(source.data, source.len), compileOptsFromC(&copts), parseOptsFromC(&popts)))
}

// resultView is the Go reading of an SBCompileResult union.
type resultView struct {
	kind       glue.OutcomeKind
	bytecode   C.SBBuffer
	compileErr C.SBError
	parseErrs  []C.SBError // nil when the error array could not be allocated
	parseCount int
}

func viewResult(r *C.SBCompileResult) resultView {
	v := resultView{kind: glue.OutcomeKind(r._type)}
	switch r._type {
	case C.SB_SUCCESS:
		v.bytecode = C.sb_result_bytecode(r)
	case C.SB_PARSE_FAILURE:
		list := C.sb_result_parse_errors(r)
		v.parseCount = int(list.len)
		if list.errors != nil {
			v.parseErrs = unsafe.Slice(list.errors, v.parseCount)
		}
	case C.SB_COMPILE_FAILURE:
		v.compileErr = C.sb_result_compile_error(r)
	}
	return v
}

//export SB_FreeCompileResult
func SB_FreeCompileResult(r *C.SBCompileResult) {
	if r == nil {
		return
	}
	v := viewResult(r)
	switch v.kind {
	case glue.OutcomeSuccess:
		SB_FreeBuffer(v.bytecode)
	case glue.OutcomeParseFailure:
		if v.parseErrs == nil {
			break
		}
		for _, e := range v.parseErrs {
			SB_FreeBuffer(e.message)
		}
		arrays.Free(unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(v.parseErrs))), 1)[:0])
	case glue.OutcomeCompileFailure:
		SB_FreeBuffer(v.compileErr.message)
	}
	*r = C.SBCompileResult{}
}
