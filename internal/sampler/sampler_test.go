package sampler

import (
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"metamodelfit/internal/growth"
	"metamodelfit/internal/schema"
)

// A single-parameter Gaussian target (one "block") lets the generic MH
// core be tested without pulling in the growth/block machinery.
func gaussianTarget(mu, sigma float64) LogLikelihoodFunc {
	return func(parms []float64) (float64, []float64, error) {
		x := parms[0]
		ll := -0.5*math.Log(2*math.Pi*sigma*sigma) - 0.5*(x-mu)*(x-mu)/(sigma*sigma)
		return ll, []float64{ll}, nil
	}
}

func flatSchema(t *testing.T) *schema.Schema {
	t.Helper()
	v, _ := growth.Lookup(growth.Exponential)
	defaults := v.Defaults()[:1]
	defaults[0].Lower, defaults[0].Upper = -100, 100
	defaults[0].Start = 0
	s, err := schema.Build(defaults, nil, false, false, false, 0)
	require.NoError(t, err)
	return s
}

func TestSamplerRecoversGaussianMeanAndVariance(t *testing.T) {
	s := flatSchema(t)
	cfg := Config{
		NbInitialGrid:          20,
		NbBurnIn:               200,
		NbAcceptedRealizations: 4000,
		OneEach:                2,
		CoefVar:                0.5,
		AcceptMin:              0.05,
		AcceptMax:              0.98,
	}
	zeroPrior := func(parms []float64) float64 { return 0 }
	rng := rand.New(rand.NewSource(42))

	start := s.StartingValues()
	start[0] = 10
	res, err := Run(s, cfg, start, gaussianTarget(5, 2), zeroPrior, rng, zerolog.Nop())
	require.NoError(t, err)
	require.True(t, res.HasConverged)
	require.InDelta(t, 5, res.FinalParameterEstimates[0], 0.5)
	require.InDelta(t, 4, res.ParameterCovariance.At(0, 0), 2.0)
	require.False(t, math.IsNaN(res.LogPseudoMarginalLik))
}

func TestSamplerReportsNonConvergenceOnLikelihoodFailure(t *testing.T) {
	s := flatSchema(t)
	cfg := DefaultConfig()
	cfg.NbAcceptedRealizations = 50
	cfg.NbBurnIn = 0
	cfg.NbInitialGrid = 0

	failing := func(parms []float64) (float64, []float64, error) {
		return 0, nil, errBoom
	}
	zeroPrior := func(parms []float64) float64 { return 0 }
	rng := rand.New(rand.NewSource(1))

	res, err := Run(s, cfg, []float64{0}, failing, zeroPrior, rng, zerolog.Nop())
	require.NoError(t, err)
	require.False(t, res.HasConverged)
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
