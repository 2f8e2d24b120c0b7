package report

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/vm"
)

func compile(t *testing.T, src string) *glue.CompileOutcome {
	t.Helper()
	out := glue.Compile([]byte(src), glue.DefaultCompileOpts(), glue.DefaultParseOpts())
	t.Cleanup(func() { glue.FreeOutcome(out) })
	return out
}

func TestAddOutcomes(t *testing.T) {
	r := New()
	r.Add("ok.sb", compile(t, "return 1"))
	r.Add("parse.sb", compile(t, "local = 1\nlocal = 2"))
	r.Add("codegen.sb", compile(t, "break"))

	require.Len(t, r.Files, 3)
	require.Equal(t, uint8(glue.OutcomeSuccess), r.Files[0].Kind)
	require.Greater(t, r.Files[0].BytecodeSize, 0)
	require.Empty(t, r.Files[0].Diagnostics)

	require.Equal(t, uint8(glue.OutcomeParseFailure), r.Files[1].Kind)
	require.Len(t, r.Files[1].Diagnostics, 2)
	require.Equal(t, uint32(1), r.Files[1].Diagnostics[1].Span[0])

	require.Equal(t, uint8(glue.OutcomeCompileFailure), r.Files[2].Kind)
	require.Equal(t, "break statement must be inside a loop", r.Files[2].Diagnostics[0].Message)
	require.True(t, r.Failed())
}

func TestMarshalIsCanonical(t *testing.T) {
	r := New()
	r.Add("parse.sb", compile(t, "local = 1"))
	r.AddCoverage([]vm.FunctionCoverage{{Source: "cov", Name: "main", Lines: []vm.LineHits{{Line: 0, Hits: 2}}}})

	a, err := Marshal(r)
	require.NoError(t, err)
	b, err := Marshal(r)
	require.NoError(t, err)
	require.Equal(t, a, b)

	back, err := Unmarshal(a)
	require.NoError(t, err)
	require.Equal(t, r, back)
}

func TestUnmarshalRejectsOtherVersions(t *testing.T) {
	data, err := Marshal(&Report{Version: 99})
	require.NoError(t, err)
	_, err = Unmarshal(data)
	require.ErrorContains(t, err, "unsupported version 99")

	_, err = Unmarshal([]byte{0xff})
	require.Error(t, err)
}

func TestEmptyReport(t *testing.T) {
	r := New()
	require.False(t, r.Failed())
	data, err := Marshal(r)
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	require.Empty(t, back.Files)
}
