package glue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/scriptbridge/compiler"
)

func TestIntoCompilerConfigDefaults(t *testing.T) {
	co, po := IntoCompilerConfig(DefaultCompileOpts(), DefaultParseOpts())
	require.Equal(t, compiler.DefaultCompileOptions(), co)
	require.Equal(t, compiler.DefaultParseOptions(), po)
}

func TestIntoCompilerConfigFields(t *testing.T) {
	c := CompileOpts{
		Version:           CompileOptsV2,
		BytecodeVersion:   1,
		OptimizationLevel: 2,
		DebugLevel:        2,
		CoverageLevel:     1,
		VectorLib:         Some("vector"),
		VectorCtor:        Some("create"),
		MutableGlobals:    []string{"state", "config"},
	}
	p := ParseOpts{
		AllowTypeAnnotations:     false,
		SupportContinueStatement: false,
		AllowDeclarationSyntax:   true,
		CaptureComments:          true,
	}
	co, po := IntoCompilerConfig(c, p)

	require.Equal(t, compiler.CompileOptions{
		BytecodeVersion: 1,
		Optimization:    compiler.OptimizationFull,
		Debug:           compiler.DebugFull,
		Coverage:        compiler.CoverageStatements,
		VectorLib:       "vector",
		VectorCtor:      "create",
		MutableGlobals:  []string{"state", "config"},
	}, co)
	require.Equal(t, compiler.ParseOptions{
		AllowDeclarationSyntax: true,
		CaptureComments:        true,
	}, po)
}

func TestIntoCompilerConfigVersionOne(t *testing.T) {
	c := DefaultCompileOpts()
	c.Version = CompileOptsV1
	c.MutableGlobals = []string{"ignored"}
	co, _ := IntoCompilerConfig(c, DefaultParseOpts())
	require.Nil(t, co.MutableGlobals)

	c.Version = 0
	co, _ = IntoCompilerConfig(c, DefaultParseOpts())
	require.Equal(t, []string{"ignored"}, co.MutableGlobals)
}

func TestLevelAccessors(t *testing.T) {
	tests := []struct {
		raw   int
		opt   compiler.OptimizationLevel
		debug compiler.DebugLevel
		cov   compiler.CoverageLevel
	}{
		{0, compiler.OptimizationNone, compiler.DebugNone, compiler.CoverageNone},
		{1, compiler.OptimizationBaseline, compiler.DebugLines, compiler.CoverageStatements},
		{2, compiler.OptimizationFull, compiler.DebugFull, compiler.CoverageExpressions},
		{9, compiler.OptimizationFull, compiler.DebugFull, compiler.CoverageExpressions},
	}
	for _, tc := range tests {
		c := CompileOpts{OptimizationLevel: tc.raw, DebugLevel: tc.raw, CoverageLevel: tc.raw}
		require.Equal(t, tc.opt, c.OptLevel())
		require.Equal(t, tc.debug, c.DebugLvl())
		require.Equal(t, tc.cov, c.CoverageLvl())
	}

	var c CompileOpts
	c.SetOptLevel(compiler.OptimizationFull)
	c.SetDebugLvl(compiler.DebugNone)
	c.SetCoverageLvl(compiler.CoverageExpressions)
	require.Equal(t, 2, c.OptimizationLevel)
	require.Equal(t, 0, c.DebugLevel)
	require.Equal(t, 2, c.CoverageLevel)
}

func TestValidate(t *testing.T) {
	for _, v := range []int{0, 1, 2} {
		require.NoError(t, CompileOpts{Version: v}.Validate())
	}
	require.Error(t, CompileOpts{Version: 3}.Validate())
	require.Error(t, CompileOpts{Version: -1}.Validate())
}
