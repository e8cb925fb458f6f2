package sampler

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"metamodelfit/internal/schema"
)

// LogLikelihoodFunc evaluates the model's total log-likelihood at parms,
// along with the per-block log-likelihood breakdown LPML needs. An error
// signals a numerical breakdown (e.g. block.ErrNegativeQuadraticForm) —
// Run treats it as fatal to the chain, never propagating it to the caller.
type LogLikelihoodFunc func(parms []float64) (total float64, perBlock []float64, err error)

// LogPriorFunc evaluates log p(parms).
type LogPriorFunc func(parms []float64) float64

// Result is the sampler's fit output.
type Result struct {
	FinalParameterEstimates []float64
	ParameterCovariance     *mat.SymDense
	LogPseudoMarginalLik    float64
	HasConverged            bool
	AcceptanceRate          float64
	ThinnedSample           [][]float64
}

// Run drives a single-chain random-walk Metropolis-Hastings sampler to
// either convergence or exhaustion of its acceptance target.
func Run(s *schema.Schema, cfg Config, start []float64, logLik LogLikelihoodFunc, logPrior LogPriorFunc, rng *rand.Rand, log zerolog.Logger) (*Result, error) {
	posterior := func(parms []float64) (float64, error) {
		ll, _, err := logLik(parms)
		if err != nil {
			return 0, err
		}
		return ll + logPrior(parms), nil
	}

	current := warmStart(s, cfg.NbInitialGrid, start, posterior, rng)

	curLL, curBlockLL, err := logLik(current)
	if err != nil {
		log.Warn().Err(err).Msg("sampler: starting point failed log-likelihood evaluation")
		return &Result{HasConverged: false}, nil
	}
	curLP := logPrior(current)

	oneEach := cfg.OneEach
	if oneEach <= 0 {
		oneEach = 1
	}

	var accepted, proposals int64
	var acceptedPostBurnIn int64
	var thinned [][]float64
	var thinnedBlockLL [][]float64

	n := len(current)
	for accepted < cfg.NbAcceptedRealizations {
		proposals++

		proposalVar := s.SamplerVariance(current, cfg.CoefVar)
		proposal := make([]float64, n)
		for i := 0; i < n; i++ {
			proposal[i] = current[i] + rng.NormFloat64()*math.Sqrt(proposalVar[i])
		}

		propLP := logPrior(proposal)
		if math.IsInf(propLP, -1) {
			// zero prior density: rejected without evaluating the likelihood
			// outside the prior's support
			continue
		}

		propLL, propBlockLL, err := logLik(proposal)
		if err != nil {
			log.Debug().Err(err).Msg("sampler: chain aborted on log-likelihood failure")
			return &Result{HasConverged: false, AcceptanceRate: float64(accepted) / float64(proposals)}, nil
		}

		logAlpha := (propLL + propLP) - (curLL + curLP)
		if logAlpha >= 0 || math.Log(rng.Float64()) < logAlpha {
			current, curLL, curLP, curBlockLL = proposal, propLL, propLP, propBlockLL
			accepted++

			if accepted > cfg.NbBurnIn {
				acceptedPostBurnIn++
				if acceptedPostBurnIn%int64(oneEach) == 0 {
					thinned = append(thinned, append([]float64(nil), current...))
					thinnedBlockLL = append(thinnedBlockLL, append([]float64(nil), curBlockLL...))
				}
			}
		}
	}

	acceptanceRate := float64(accepted) / float64(proposals)
	converged := acceptanceRate >= cfg.AcceptMin && acceptanceRate <= cfg.AcceptMax && len(thinned) > 0

	log.Info().
		Int64("accepted", accepted).
		Int64("proposals", proposals).
		Float64("acceptance_rate", acceptanceRate).
		Bool("converged", converged).
		Msg("sampler: chain finished")

	if !converged {
		return &Result{HasConverged: false, AcceptanceRate: acceptanceRate}, nil
	}

	mean, cov := summarize(thinned)
	lpml := logPseudoMarginalLikelihood(thinnedBlockLL)

	return &Result{
		FinalParameterEstimates: mean,
		ParameterCovariance:     cov,
		LogPseudoMarginalLik:    lpml,
		HasConverged:            true,
		AcceptanceRate:          acceptanceRate,
		ThinnedSample:           thinned,
	}, nil
}

func summarize(sample [][]float64) ([]float64, *mat.SymDense) {
	n := len(sample[0])
	s := len(sample)

	mean := make([]float64, n)
	for _, row := range sample {
		floats.Add(mean, row)
	}
	floats.Scale(1/float64(s), mean)

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			col1 := make([]float64, s)
			col2 := make([]float64, s)
			for k, row := range sample {
				col1[k] = row[i]
				col2[k] = row[j]
			}
			cov.SetSym(i, j, stat.Covariance(col1, col2, nil))
		}
	}
	return mean, cov
}

// logPseudoMarginalLikelihood computes LPML via the CPO estimator: for
// each block, CPO_b = 1 / mean_s[1/L(block | theta_s)], summed in log
// space via logsumexp(-blockLL) to avoid underflow.
func logPseudoMarginalLikelihood(blockLLBySample [][]float64) float64 {
	if len(blockLLBySample) == 0 {
		return math.NaN()
	}
	nBlocks := len(blockLLBySample[0])
	nSamples := float64(len(blockLLBySample))

	lpml := 0.0
	for b := 0; b < nBlocks; b++ {
		neg := make([]float64, len(blockLLBySample))
		for s, row := range blockLLBySample {
			neg[s] = -row[b]
		}
		logMeanInvLik := logSumExp(neg) - math.Log(nSamples)
		lpml += -logMeanInvLik
	}
	return lpml
}

func logSumExp(x []float64) float64 {
	max := math.Inf(-1)
	for _, v := range x {
		if v > max {
			max = v
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	sum := 0.0
	for _, v := range x {
		sum += math.Exp(v - max)
	}
	return max + math.Log(sum)
}
