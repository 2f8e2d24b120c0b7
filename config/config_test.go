package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/vm"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[compile]
bytecode-version = 1
optimization = 2
debug = 0
coverage = 1
vector-lib = "vector"
vector-ctor = "create"
mutable-globals = ["state"]

[parse]
type-annotations = false
declarations = true

[flags]
CompileFoldConstants = false

[int-flags]
VMCallDepthLimit = 50

[vm]
memory-limit = 1048576
sandbox = true
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, FileName), cfg.Path)

	copts := cfg.CompileOpts()
	require.Equal(t, glue.CompileOptsVersion, copts.Version)
	require.Equal(t, 1, copts.BytecodeVersion)
	require.Equal(t, 2, copts.OptimizationLevel)
	require.Equal(t, 0, copts.DebugLevel)
	require.Equal(t, 1, copts.CoverageLevel)
	require.Equal(t, "vector", copts.VectorLib.MustGet())
	require.Equal(t, "create", copts.VectorCtor.MustGet())
	require.Equal(t, []string{"state"}, copts.MutableGlobals)

	popts := cfg.ParseOpts()
	require.False(t, popts.AllowTypeAnnotations)
	require.True(t, popts.SupportContinueStatement, "unset keys keep their defaults")
	require.True(t, popts.AllowDeclarationSyntax)
	require.False(t, popts.CaptureComments)

	require.Equal(t, map[string]bool{"CompileFoldConstants": false}, cfg.Flags)
	require.Equal(t, map[string]int{"VMCallDepthLimit": 50}, cfg.IntFlags)
	require.Equal(t, int64(1048576), cfg.VM.MemoryLimit)
	require.True(t, cfg.VM.Sandbox)
}

func TestDefaults(t *testing.T) {
	cfg, err := ParseBytes(nil)
	require.NoError(t, err)

	require.Equal(t, glue.DefaultCompileOpts(), cfg.CompileOpts())
	require.Equal(t, glue.DefaultParseOpts(), cfg.ParseOpts())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "[compile]\nspeed = 3\n", "unknown keys: compile.speed"},
		{"bad level", "[compile]\noptimization = 5\ncoverage = -1\n", "compile.optimization must be 0, 1 or 2, got 5"},
		{"bad toml", "[compile\n", ""},
		{"negative limit", "[vm]\nmemory-limit = -1\n", "vm.memory-limit must not be negative"},
	}
	for _, tc := range tests {
		_, err := ParseBytes([]byte(tc.content))
		require.Error(t, err, tc.name)
		require.Contains(t, err.Error(), tc.want, tc.name)
	}

	_, err := ParseBytes([]byte("[compile]\noptimization = 5\ncoverage = -1\n"))
	require.Contains(t, err.Error(), "compile.coverage must be 0, 1 or 2, got -1", "every range error is reported")
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[vm]\nsandbox = true\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, err := FindAndLoad(nested)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.True(t, cfg.VM.Sandbox)

	cfg, err = FindAndLoad(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestApplyFlags(t *testing.T) {
	fold := glue.FindFlag([]byte("CompileFoldConstants")).MustGet()
	depth := glue.FindIntFlag([]byte("VMCallDepthLimit")).MustGet()
	oldFold, oldDepth := glue.GetFlag(fold), glue.GetIntFlag(depth)
	defer func() {
		glue.SetFlag(fold, oldFold)
		glue.SetIntFlag(depth, oldDepth)
	}()

	cfg := Default()
	cfg.Flags = map[string]bool{"CompileFoldConstants": !oldFold, "NoSuchFlag": true}
	cfg.IntFlags = map[string]int{"VMCallDepthLimit": 77, "NoSuchIntFlag": 1}

	err := cfg.ApplyFlags()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown flag "NoSuchFlag"`)
	require.Contains(t, err.Error(), `unknown int flag "NoSuchIntFlag"`)

	require.Equal(t, !oldFold, glue.GetFlag(fold), "known flags are applied despite errors")
	require.Equal(t, 77, glue.GetIntFlag(depth))

	cfg.Flags = map[string]bool{"CompileFoldConstants": oldFold}
	cfg.IntFlags = nil
	require.NoError(t, cfg.ApplyFlags())
}

func TestNewState(t *testing.T) {
	cfg := Default()
	cfg.VM.Sandbox = true
	cfg.VM.MemoryLimit = 1 << 20

	L, err := cfg.NewState()
	require.NoError(t, err)
	require.True(t, L.Globals().ReadOnly())

	status, _ := glue.NewBuffer(L, 2<<20)
	require.Equal(t, vm.StatusErrMem, status)
}
