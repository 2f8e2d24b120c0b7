package glue

import (
	"fmt"

	"github.com/chazu/scriptbridge/compiler"
)

// ---------------------------------------------------------------------------
// Boundary option structs
// ---------------------------------------------------------------------------

// Layout versions of CompileOpts. Version 1 has no MutableGlobals.
const (
	CompileOptsV1      = 1
	CompileOptsV2      = 2
	CompileOptsVersion = CompileOptsV2
)

// CompileOpts is the flat compile configuration accepted at the boundary.
// Version names the field layout the caller filled in; 0 means
// CompileOptsVersion.
type CompileOpts struct {
	Version int

	BytecodeVersion   int
	OptimizationLevel int
	DebugLevel        int
	CoverageLevel     int
	VectorLib         Optional[string]
	VectorCtor        Optional[string]

	// Since version 2.
	MutableGlobals []string
}

// ParseOpts is the flat parse configuration accepted at the boundary.
type ParseOpts struct {
	AllowTypeAnnotations     bool
	SupportContinueStatement bool
	AllowDeclarationSyntax   bool
	CaptureComments          bool
}

// DefaultCompileOpts returns optimization 1, debug 1, coverage 0 and the
// target bytecode version.
func DefaultCompileOpts() CompileOpts {
	return CompileOpts{
		Version:           CompileOptsVersion,
		OptimizationLevel: 1,
		DebugLevel:        1,
	}
}

// DefaultParseOpts accepts type annotations and continue, and rejects
// declaration syntax.
func DefaultParseOpts() ParseOpts {
	return ParseOpts{
		AllowTypeAnnotations:     true,
		SupportContinueStatement: true,
	}
}

// Validate reports an unsupported layout version.
func (c CompileOpts) Validate() error {
	switch c.Version {
	case 0, CompileOptsV1, CompileOptsV2:
		return nil
	}
	return fmt.Errorf("unsupported compile options version %d (expected 1..%d)", c.Version, CompileOptsVersion)
}

// OptLevel returns the optimization level; anything above 1 is full.
func (c CompileOpts) OptLevel() compiler.OptimizationLevel {
	switch c.OptimizationLevel {
	case 0:
		return compiler.OptimizationNone
	case 1:
		return compiler.OptimizationBaseline
	}
	return compiler.OptimizationFull
}

// SetOptLevel stores l.
func (c *CompileOpts) SetOptLevel(l compiler.OptimizationLevel) { c.OptimizationLevel = int(l) }

// DebugLvl returns the debug level; anything above 1 is full.
func (c CompileOpts) DebugLvl() compiler.DebugLevel {
	switch c.DebugLevel {
	case 0:
		return compiler.DebugNone
	case 1:
		return compiler.DebugLines
	}
	return compiler.DebugFull
}

// SetDebugLvl stores l.
func (c *CompileOpts) SetDebugLvl(l compiler.DebugLevel) { c.DebugLevel = int(l) }

// CoverageLvl returns the coverage level; anything above 1 is expression
// coverage.
func (c CompileOpts) CoverageLvl() compiler.CoverageLevel {
	switch c.CoverageLevel {
	case 0:
		return compiler.CoverageNone
	case 1:
		return compiler.CoverageStatements
	}
	return compiler.CoverageExpressions
}

// SetCoverageLvl stores l.
func (c *CompileOpts) SetCoverageLvl(l compiler.CoverageLevel) { c.CoverageLevel = int(l) }

// IntoCompilerConfig maps the boundary structs onto the compiler's own
// configuration, field by field. A version 1 layout carries no mutable
// globals.
func IntoCompilerConfig(c CompileOpts, p ParseOpts) (compiler.CompileOptions, compiler.ParseOptions) {
	copts := compiler.CompileOptions{
		BytecodeVersion: c.BytecodeVersion,
		Optimization:    c.OptLevel(),
		Debug:           c.DebugLvl(),
		Coverage:        c.CoverageLvl(),
		VectorLib:       c.VectorLib.OrElse(""),
		VectorCtor:      c.VectorCtor.OrElse(""),
	}
	if c.Version != CompileOptsV1 {
		copts.MutableGlobals = c.MutableGlobals
	}

	popts := compiler.ParseOptions{
		AllowTypeAnnotations:     p.AllowTypeAnnotations,
		SupportContinueStatement: p.SupportContinueStatement,
		AllowDeclarationSyntax:   p.AllowDeclarationSyntax,
		CaptureComments:          p.CaptureComments,
	}
	return copts, popts
}
