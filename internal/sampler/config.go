// Package sampler implements the Metropolis-Hastings sampler: a
// single-chain random-walk MH driver over a schema.Schema-shaped parameter
// vector, with an optional grid-search warm start, burn-in, thinning, an
// acceptance-rate convergence diagnostic, and the LPML model-comparison
// score.
package sampler

// Config enumerates the sampler's tunable options.
type Config struct {
	// NbInitialGrid is the number of grid-search draws used to seed the
	// chain's starting point; 0 disables warm-starting.
	NbInitialGrid int
	// NbBurnIn is the count of leading accepted samples discarded from the
	// kept chain.
	NbBurnIn int64
	// NbAcceptedRealizations is the total accepted-proposal count
	// (including burn-in) the chain must reach to stop.
	NbAcceptedRealizations int64
	// OneEach is the thinning stride applied to post-burn-in accepted
	// samples; every OneEach-th accepted sample after burn-in is kept.
	OneEach int
	// CoefVar is the proposal standard deviation as a fraction of the
	// current parameter value.
	CoefVar float64
	// AcceptMin, AcceptMax bound the acceptance-rate convergence window.
	AcceptMin float64
	AcceptMax float64
}

// DefaultConfig returns the sampler defaults used when the caller doesn't
// override them: a 15-45% acceptance window, matching the
// conventional random-walk Metropolis target.
func DefaultConfig() Config {
	return Config{
		NbInitialGrid:          200,
		NbBurnIn:               2000,
		NbAcceptedRealizations: 10000,
		OneEach:                5,
		CoefVar:                0.05,
		AcceptMin:              0.15,
		AcceptMax:              0.45,
	}
}
