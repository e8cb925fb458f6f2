package prior

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"metamodelfit/internal/growth"
	"metamodelfit/internal/schema"
)

func TestLogDensityOutsideBoundsIsNegInf(t *testing.T) {
	v, _ := growth.Lookup(growth.ChapmanRichards)
	s, err := schema.Build(v.Defaults(), nil, false, false, false, 0)
	require.NoError(t, err)

	h := New(s)
	parms := s.StartingValues()
	parms[s.Index("b1")] = -1e9
	require.True(t, math.IsInf(h.LogDensity(parms), -1))
}

func TestLogDensityMixedIncludesRandomEffectNormal(t *testing.T) {
	v, _ := growth.Lookup(growth.ChapmanRichardsWithRandomEffect)
	s, err := schema.Build(v.Defaults(), nil, true, false, false, 2)
	require.NoError(t, err)

	h := New(s)
	parms := s.StartingValues()
	parms[s.SigmaUIndex()] = 5
	parms[s.RandomEffectIndex(0)] = 0
	parms[s.RandomEffectIndex(1)] = 100 // far in the tail but still finite density

	ld := h.LogDensity(parms)
	require.False(t, math.IsInf(ld, -1))
	require.False(t, math.IsNaN(ld))
}
