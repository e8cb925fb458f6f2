package metamodel

import (
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"metamodelfit/internal/dataset"
	"metamodelfit/internal/growth"
	"metamodelfit/internal/sampler"
	"metamodelfit/internal/schema"
)

// Candidate names one model form to fit, with an optional starting-value
// override configuration (nil uses the form's defaults).
type Candidate struct {
	Form    growth.Form
	Configs []schema.ParamConfig
}

// CandidateFromJSON builds a Candidate from the JSON-string encoding of a
// parameter configuration, the alternative form the fit entry point
// accepts.
func CandidateFromJSON(form growth.Form, raw string) (Candidate, error) {
	configs, err := schema.ParseConfigJSON(raw)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Form: form, Configs: configs}, nil
}

// FitResult is one candidate's outcome after the coordinator's fan-out:
// the Model itself (nil if construction failed) and the error, if any,
// that kept it from fitting.
type FitResult struct {
	Candidate Candidate
	Model     *Model
	Err       error
}

// runCandidates fits every candidate concurrently, one goroutine per
// model, each seeded with its own *rand.Rand derived from seed and the
// candidate's position — concurrent MCMC chains must never share an
// RNG. Results are collected in candidate order regardless of finish
// order, so ranking and reporting stay deterministic across runs.
func runCandidates(data *dataset.HierarchicalData, candidates []Candidate, cfg sampler.Config, seed int64, log zerolog.Logger) []FitResult {
	results := make([]FitResult, len(candidates))

	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c Candidate) {
			defer wg.Done()

			m, err := NewModel(c.Form, data, c.Configs)
			if err != nil {
				results[i] = FitResult{Candidate: c, Err: err}
				return
			}

			rng := rand.New(rand.NewSource(seed + int64(i)))
			candidateLog := log.With().Str("model_form", string(c.Form)).Logger()
			if err := m.Fit(cfg, rng, candidateLog); err != nil {
				results[i] = FitResult{Candidate: c, Model: m, Err: err}
				return
			}
			results[i] = FitResult{Candidate: c, Model: m}
		}(i, c)
	}
	wg.Wait()

	return results
}

// selectBest ranks converged candidates by LPML (higher is better) and
// returns the winner. Ties keep the first-seen candidate, so the chosen
// model never depends on goroutine scheduling order.
func selectBest(results []FitResult) (*FitResult, error) {
	var best *FitResult
	for i := range results {
		r := &results[i]
		if r.Err != nil || r.Model == nil || !r.Model.HasConverged() {
			continue
		}
		if best == nil || r.Model.LPML() > best.Model.LPML() {
			best = r
		}
	}
	if best == nil {
		return nil, ErrNoCandidateConverged
	}
	return best, nil
}
