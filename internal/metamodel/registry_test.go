package metamodel

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry()
	require.Zero(t, r.Len())

	a := New("RE2_ST1", 1, zerolog.Nop())
	b := New("RE3_ST4", 1, zerolog.Nop())
	r.Put(a)
	r.Put(b)

	got, ok := r.Get("RE2_ST1")
	require.True(t, ok)
	require.Same(t, a, got)

	require.Equal(t, []string{"RE2_ST1", "RE3_ST4"}, r.Keys())

	require.True(t, r.Remove("RE3_ST4"))
	require.False(t, r.Remove("RE3_ST4"))
	require.Equal(t, 1, r.Len())

	_, ok = r.Get("RE3_ST4")
	require.False(t, ok)
}

func TestRegistryPutReplacesSameKey(t *testing.T) {
	r := NewRegistry()
	first := New("RE2_ST1", 1, zerolog.Nop())
	second := New("RE2_ST1", 2, zerolog.Nop())
	r.Put(first)
	r.Put(second)

	got, ok := r.Get("RE2_ST1")
	require.True(t, ok)
	require.Same(t, second, got)
	require.Equal(t, 1, r.Len())
}
