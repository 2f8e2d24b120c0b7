package glue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptional(t *testing.T) {
	some := Some(42)
	v, ok := some.Get()
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.True(t, some.IsPresent())
	require.Equal(t, 42, some.MustGet())
	require.Equal(t, "Some(42)", some.String())

	none := None[int]()
	_, ok = none.Get()
	require.False(t, ok)
	require.Equal(t, 7, none.OrElse(7))
	require.Equal(t, "None", none.String())
	require.Panics(t, func() { none.MustGet() })
}
