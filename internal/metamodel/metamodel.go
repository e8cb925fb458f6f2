package metamodel

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"metamodelfit/internal/dataset"
	"metamodelfit/internal/sampler"
)

// MetaModel is the top-level fitting/prediction surface: a collection of
// result sets for one stratum group, a per-output-type fitted winner once
// Fit succeeds, and the prediction table it can then serve.
type MetaModel struct {
	stratumGroup string
	collection   *dataset.Collection
	log          zerolog.Logger
	seed         int64

	mu      sync.RWMutex
	winners map[string]*FitResult
	allRuns map[string][]FitResult
}

// New returns an empty MetaModel keyed by its stratum group. seed seeds
// every candidate's MCMC chain deterministically (chain i for a Fit call
// uses seed+i); log receives the sampler's per-candidate diagnostics.
func New(stratumGroup string, seed int64, log zerolog.Logger) *MetaModel {
	return &MetaModel{
		stratumGroup: stratumGroup,
		collection:   dataset.NewCollection(),
		log:          log,
		seed:         seed,
		winners:      make(map[string]*FitResult),
		allRuns:      make(map[string][]FitResult),
	}
}

// StratumGroup returns the key this meta-model was created under.
func (mm *MetaModel) StratumGroup() string { return mm.stratumGroup }

// OutputTypes returns the output types present across the result sets
// added so far, in first-seen order.
func (mm *MetaModel) OutputTypes() []string { return mm.collection.OutputTypes() }

// SimulationInfo summarizes the simulator provenance shared by the added
// result sets (compatibility guarantees they agree), for metadata stamping.
type SimulationInfo struct {
	GrowthModel           string
	NbRealizations        int
	ClimateChangeScenario string
	NbPlots               int
	InitialAges           []int
}

// SimulationInfo reports the shared provenance of the collection, or false
// if no result set has been added yet.
func (mm *MetaModel) SimulationInfo() (SimulationInfo, bool) {
	sets := mm.collection.ResultSets()
	if len(sets) == 0 {
		return SimulationInfo{}, false
	}
	info := SimulationInfo{
		GrowthModel:           sets[0].GrowthModel(),
		NbRealizations:        sets[0].NbRealizations(),
		ClimateChangeScenario: sets[0].ClimateChangeScenario(),
		NbPlots:               sets[0].NbPlots(),
	}
	for _, rs := range sets {
		info.InitialAges = append(info.InitialAges, rs.InitialAge())
	}
	return info, true
}

// AddResultSet registers one simulator result set into the stratum group.
func (mm *MetaModel) AddResultSet(rs dataset.ResultSet) error {
	return mm.collection.Add(rs)
}

// Fit builds the hierarchical data for outputType, fits every candidate
// concurrently, and keeps the highest-LPML convergent candidate as the
// output type's winner. It returns "DONE" on success or "ERROR: <msg>"
// otherwise, mirroring the status string a fitting run reports back to its
// caller.
func (mm *MetaModel) Fit(outputType string, candidates []Candidate, cfg sampler.Config) string {
	data, err := mm.collection.Build(outputType)
	if err != nil {
		return "ERROR: " + err.Error()
	}

	results := runCandidates(data, candidates, cfg, mm.seed, mm.log.With().Str("output_type", outputType).Logger())

	best, err := selectBest(results)
	if err != nil {
		mm.mu.Lock()
		mm.allRuns[outputType] = results
		mm.mu.Unlock()
		return "ERROR: " + err.Error()
	}

	mm.mu.Lock()
	mm.winners[outputType] = best
	mm.allRuns[outputType] = results
	mm.mu.Unlock()

	return "DONE"
}

// Winner returns the fitted winning model for outputType, if any.
func (mm *MetaModel) Winner(outputType string) (*Model, bool) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	r, ok := mm.winners[outputType]
	if !ok {
		return nil, false
	}
	return r.Model, true
}

// Predict returns the winning model's point estimate for outputType at
// age.
func (mm *MetaModel) Predict(outputType string, age float64) (float64, error) {
	m, ok := mm.Winner(outputType)
	if !ok {
		return 0, ErrNotFitted
	}
	return m.Predict(age, 0)
}

// ComparisonRow is one row of the comparison table Report renders: one
// candidate's fit summary for one output type.
type ComparisonRow struct {
	OutputType     string
	ModelForm      string
	Converged      bool
	LPML           float64
	AcceptanceRate float64
}

// ComparisonTable returns one row per candidate tried across every output
// type Fit has been called for, grouped by output type, candidates in the
// order they were passed to Fit. The order of the output-type groups is not
// defined.
func (mm *MetaModel) ComparisonTable() []ComparisonRow {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	var rows []ComparisonRow
	for outputType, results := range mm.allRuns {
		for _, r := range results {
			row := ComparisonRow{OutputType: outputType, ModelForm: string(r.Candidate.Form)}
			if r.Model != nil {
				row.Converged = r.Model.HasConverged()
				row.LPML = r.Model.LPML()
				row.AcceptanceRate = r.Model.AcceptanceRate()
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// MonteCarloPredictions draws Monte Carlo prediction rows from outputType's
// winning model. rng must not be shared across concurrent callers.
func (mm *MetaModel) MonteCarloPredictions(outputType string, ages []float64, timeSinceStart float64, nbSubjects, nbRealizations int, rng *rand.Rand) ([]MonteCarloRow, error) {
	m, ok := mm.Winner(outputType)
	if !ok {
		return nil, ErrNotFitted
	}
	return m.MonteCarloPredictions(ages, timeSinceStart, nbSubjects, nbRealizations, rng)
}

// Report renders a short human-readable summary of every output type's
// fitting outcome, in the style of a comparison table: one line per
// candidate, winners marked.
func (mm *MetaModel) Report() string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	out := ""
	for outputType, results := range mm.allRuns {
		out += fmt.Sprintf("output type %s:\n", outputType)
		winner := mm.winners[outputType]
		for _, r := range results {
			mark := " "
			if winner != nil && r.Candidate.Form == winner.Candidate.Form {
				mark = "*"
			}
			status := "not converged"
			lpml := 0.0
			if r.Model != nil && r.Model.HasConverged() {
				status = "converged"
				lpml = r.Model.LPML()
			}
			if r.Err != nil {
				status = "error: " + r.Err.Error()
			}
			out += fmt.Sprintf("%s %-45s %-14s lpml=%.3f\n", mark, r.Candidate.Form, status, lpml)
		}
	}
	return out
}
