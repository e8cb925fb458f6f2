package metamodel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"metamodelfit/internal/dataset"
	"metamodelfit/internal/fixture"
	"metamodelfit/internal/growth"
	"metamodelfit/internal/sampler"
)

func TestNewModelRejectsUnknownForm(t *testing.T) {
	rs := fixture.Build(20, "Volume", []float64{1, 2, 3}, 10, fixture.Variance(1))
	data := collect(t, rs, "Volume")

	_, err := NewModel(growth.Form("NotAForm"), data, nil)
	require.ErrorIs(t, err, ErrUnknownModelForm)
}

func TestPredictionSurfaceRejectsUnfittedModel(t *testing.T) {
	rs := fixture.Build(20, "Volume", []float64{1, 2, 3}, 10, fixture.Variance(1))
	data := collect(t, rs, "Volume")

	m, err := NewModel(growth.Exponential, data, nil)
	require.NoError(t, err)

	_, err = m.Predict(25, 0)
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = m.PredictionVariance(25, 0, false)
	require.ErrorIs(t, err, ErrNotFitted)

	_, err = m.MonteCarloPredictions([]float64{25}, 0, 1, 1, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestModelFitRecoversExponentialCurve(t *testing.T) {
	trueB1, trueB2 := 100.0, 0.05
	ages := []float64{20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30}
	values := make([]float64, len(ages))
	for i, a := range ages {
		values[i] = trueB1 * math.Exp(-trueB2*a)
	}
	rs := fixture.Build(20, "Volume", values, 10, fixture.Variance(4))
	data := collect(t, rs, "Volume")
	require.False(t, data.RegLagActive())

	m, err := NewModel(growth.Exponential, data, nil)
	require.NoError(t, err)

	cfg := sampler.Config{
		NbInitialGrid:          300,
		NbBurnIn:               300,
		NbAcceptedRealizations: 3000,
		OneEach:                3,
		CoefVar:                0.15,
		AcceptMin:              0.02,
		AcceptMax:              0.95,
	}
	rng := rand.New(rand.NewSource(7))
	require.NoError(t, m.Fit(cfg, rng, zerolog.Nop()))
	require.True(t, m.HasConverged())

	pred, err := m.Predict(30, 0)
	require.NoError(t, err)
	want := trueB1 * math.Exp(-trueB2*30)
	require.InDelta(t, want, pred, 20)

	variance, err := m.PredictionVariance(30, 0, false)
	require.NoError(t, err)
	require.GreaterOrEqual(t, variance, 0.0)

	zero, err := m.Predict(0, 0)
	require.NoError(t, err)
	require.Zero(t, zero)
}

func collect(t *testing.T, rs *fixture.ResultSet, outputType string) *dataset.HierarchicalData {
	t.Helper()
	c := dataset.NewCollection()
	require.NoError(t, c.Add(rs))
	data, err := c.Build(outputType)
	require.NoError(t, err)
	return data
}
