package metamodel

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"metamodelfit/internal/fixture"
	"metamodelfit/internal/growth"
)

func TestRestoreRejectsUnknownForm(t *testing.T) {
	_, err := Restore(growth.Form("NotAForm"), nil, mat.NewSymDense(1, nil), 0, 0, nil)
	require.ErrorIs(t, err, ErrUnknownModelForm)
}

func TestRestoreRejectsUnknownParameterName(t *testing.T) {
	params := []ParameterState{
		{Name: "b1", Estimate: 100},
		{Name: "b2", Estimate: 0.05},
		{Name: "bogus", Estimate: 1},
	}
	_, err := Restore(growth.Exponential, params, mat.NewSymDense(3, nil), 0, 0, nil)
	require.Error(t, err)
}

func TestRestoreRejectsCovarianceDimensionMismatch(t *testing.T) {
	params := []ParameterState{
		{Name: "b1", Estimate: 100, Lower: 0, Upper: 1000},
		{Name: "b2", Estimate: 0.05, Lower: 0, Upper: 2},
		{Name: "rho", Estimate: 0.9, Lower: 0.01, Upper: 0.99},
	}
	_, err := Restore(growth.Exponential, params, mat.NewSymDense(2, nil), 0, 0, nil)
	require.Error(t, err)
}

func TestRestoreRoundTripsFittedParameters(t *testing.T) {
	m := restoredMixedExponential(t)

	params, err := m.FittedParameters()
	require.NoError(t, err)
	require.Equal(t, []string{"b1", "b2", "rho", "sigma_u", "u_1", "u_2"}, paramNames(params))

	cov, err := m.ParameterCovariance()
	require.NoError(t, err)

	again, err := Restore(growth.ExponentialWithRandomEffect, params, cov, m.LPML(), m.AcceptanceRate(), nil)
	require.NoError(t, err)

	for _, age := range []float64{5, 20, 50} {
		want, err := m.Predict(age, 0)
		require.NoError(t, err)
		got, err := again.Predict(age, 0)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestFittedStateAccessorsRejectUnfittedModel(t *testing.T) {
	rs := fixture.Build(20, "Volume", []float64{1, 2, 3}, 10, fixture.Variance(1))
	data := collect(t, rs, "Volume")
	m, err := NewModel(growth.Exponential, data, nil)
	require.NoError(t, err)

	_, err = m.FittedParameters()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = m.ParameterCovariance()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = m.ThinnedSample()
	require.ErrorIs(t, err, ErrNotFitted)
	_, err = m.Predictions([]float64{10}, 0, VarianceNone)
	require.ErrorIs(t, err, ErrNotFitted)
}

func paramNames(params []ParameterState) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}
