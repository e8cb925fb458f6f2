package sampler

import (
	"math"
	"math/rand"

	"metamodelfit/internal/schema"
)

// warmStart runs a coarse random scan over the schema's prior box and
// returns the best-scoring draw seen, falling back to start if the scan
// finds nothing better (or nbDraws <= 0). This is a guess-and-check
// stand-in for a full optimizer warm start — loosely in the spirit of
// gonum/optimize's CMA-ES (a population of candidate points, keep the
// best), scaled down to the uniform-prior box this sampler already knows
// how to sample.
func warmStart(s *schema.Schema, nbDraws int, start []float64, posterior func(parms []float64) (float64, error), rng *rand.Rand) []float64 {
	if nbDraws <= 0 {
		return start
	}

	best := append([]float64(nil), start...)
	bestScore, err := posterior(start)
	if err != nil {
		bestScore = math.Inf(-1)
	}

	n := len(start)
	candidate := make([]float64, n)
	for draw := 0; draw < nbDraws; draw++ {
		for i := 0; i < n; i++ {
			lower, upper := s.Bounds(i)
			if upper > lower {
				candidate[i] = lower + rng.Float64()*(upper-lower)
			} else {
				candidate[i] = start[i]
			}
		}
		score, err := posterior(candidate)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			copy(best, candidate)
		}
	}
	return best
}
