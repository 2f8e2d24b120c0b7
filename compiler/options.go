package compiler

import "fmt"

// OptimizationLevel controls compile-time optimizations.
type OptimizationLevel int

const (
	// OptimizationNone disables all optimizations.
	OptimizationNone OptimizationLevel = 0
	// OptimizationBaseline folds constants and caches global imports.
	OptimizationBaseline OptimizationLevel = 1
	// OptimizationFull is accepted for compatibility and behaves like
	// OptimizationBaseline.
	OptimizationFull OptimizationLevel = 2
)

func (l OptimizationLevel) String() string {
	switch l {
	case OptimizationNone:
		return "none"
	case OptimizationBaseline:
		return "baseline"
	case OptimizationFull:
		return "full"
	}
	return fmt.Sprintf("OptimizationLevel(%d)", int(l))
}

// DebugLevel controls how much debug information is emitted.
type DebugLevel int

const (
	// DebugNone emits no debug information.
	DebugNone DebugLevel = 0
	// DebugLines emits line info and function names.
	DebugLines DebugLevel = 1
	// DebugFull additionally emits local variable names.
	DebugFull DebugLevel = 2
)

func (l DebugLevel) String() string {
	switch l {
	case DebugNone:
		return "none"
	case DebugLines:
		return "lines"
	case DebugFull:
		return "full"
	}
	return fmt.Sprintf("DebugLevel(%d)", int(l))
}

// CoverageLevel controls coverage instrumentation.
type CoverageLevel int

const (
	// CoverageNone emits no coverage instructions.
	CoverageNone CoverageLevel = 0
	// CoverageStatements records a hit per statement.
	CoverageStatements CoverageLevel = 1
	// CoverageExpressions records hits per statement and per expression.
	CoverageExpressions CoverageLevel = 2
)

func (l CoverageLevel) String() string {
	switch l {
	case CoverageNone:
		return "none"
	case CoverageStatements:
		return "statements"
	case CoverageExpressions:
		return "expressions"
	}
	return fmt.Sprintf("CoverageLevel(%d)", int(l))
}

// CompileOptions configures code generation.
type CompileOptions struct {
	// BytecodeVersion selects the output format; 0 selects the target
	// version.
	BytecodeVersion int
	Optimization    OptimizationLevel
	Debug           DebugLevel
	Coverage        CoverageLevel

	// VectorLib and VectorCtor name the vector constructor, called as
	// VectorLib.VectorCtor(x, y, z[, w]) or VectorCtor(...) when VectorLib
	// is empty. Calls with constant arguments become vector constants.
	VectorLib  string
	VectorCtor string

	// MutableGlobals lists globals that may change after load and so are
	// never cached as imports.
	MutableGlobals []string
}

// DefaultCompileOptions returns the default compile configuration.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		Optimization: OptimizationBaseline,
		Debug:        DebugLines,
		Coverage:     CoverageNone,
	}
}

// ParseOptions configures the parser.
type ParseOptions struct {
	AllowTypeAnnotations     bool
	SupportContinueStatement bool
	AllowDeclarationSyntax   bool
	CaptureComments          bool
}

// DefaultParseOptions returns the default parser configuration.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		AllowTypeAnnotations:     true,
		SupportContinueStatement: true,
	}
}
