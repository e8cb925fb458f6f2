package block

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogLikelihoodAtMeanEqualsLnConstant(t *testing.T) {
	b := New([]float64{10, 11, 12}, []float64{0, 1, 2}, []float64{5, 6, 7}, 12, 10, nil)
	b.UpdateCovMat(0.8, 4)

	ll, err := b.LogLikelihood([]float64{5, 6, 7})
	require.NoError(t, err)
	require.InDelta(t, b.LnConstant(), ll, 1e-9)
}

func TestLogLikelihoodNeverExceedsLnConstant(t *testing.T) {
	b := New([]float64{10, 11, 12, 13}, []float64{0, 1, 2, 3}, []float64{5, 6, 7, 9}, 12, 10, nil)
	b.UpdateCovMat(0.85, 9)

	ll, err := b.LogLikelihood([]float64{4.5, 6.2, 7.1, 8.0})
	require.NoError(t, err)
	require.LessOrEqual(t, ll, b.LnConstant()+1e-9)
}

func TestDegenerateBlockOfSizeOneIsUnivariateGaussian(t *testing.T) {
	b := New([]float64{10}, []float64{0}, []float64{5}, 12, 10, nil)
	b.UpdateCovMat(0.8, 4)

	sigma2 := 4.0 / 12.0
	want := -0.5*math.Log(2*math.Pi*sigma2) - 0.5*math.Pow(5-5, 2)/sigma2

	ll, err := b.LogLikelihood([]float64{5})
	require.NoError(t, err)
	require.InDelta(t, want, ll, 1e-9)
}

func TestFixedVarianceBranchUsesSuppliedVariance(t *testing.T) {
	b := New([]float64{10, 11}, []float64{0, 1}, []float64{5, 6}, 12, 10, []float64{2, 3})
	require.False(t, b.VarianceEstimated())
	b.UpdateCovMat(0.5, math.NaN()) // sigma2Res must be ignored on this branch

	_, err := b.LogLikelihood([]float64{5, 6})
	require.NoError(t, err)
	require.False(t, math.IsNaN(b.LnConstant()))
}
