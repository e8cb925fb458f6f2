package dataset

import (
	"gonum.org/v1/gonum/mat"

	"metamodelfit/internal/linalg"
)

// Collection accumulates ResultSets for one stratum group, one per initial
// age, enforcing the compatibility invariant: ResultSets merged
// into one group must share simulator, realization count, and climate
// scenario.
type Collection struct {
	resultSets []ResultSet
	byAge      map[int]bool
}

// NewCollection returns an empty Collection. Adding a ResultSet to an empty
// Collection always succeeds.
func NewCollection() *Collection {
	return &Collection{byAge: make(map[int]bool)}
}

// Add appends a ResultSet, checking compatibility against whichever
// ResultSets are already present.
func (c *Collection) Add(rs ResultSet) error {
	if c.byAge[rs.InitialAge()] {
		return ErrDuplicateInitialAge
	}
	if len(c.resultSets) > 0 && !c.resultSets[0].IsCompatible(rs) {
		return ErrIncompatibleResultSet
	}
	c.resultSets = append(c.resultSets, rs)
	c.byAge[rs.InitialAge()] = true
	return nil
}

// Len returns the number of ResultSets added so far.
func (c *Collection) Len() int { return len(c.resultSets) }

// ResultSets returns the added ResultSets in insertion order. The slice is
// a copy; the ResultSets themselves are shared.
func (c *Collection) ResultSets() []ResultSet {
	return append([]ResultSet(nil), c.resultSets...)
}

// OutputTypes returns the union of output types across all ResultSets
// added so far, in first-seen order.
func (c *Collection) OutputTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rs := range c.resultSets {
		for _, ot := range rs.OutputTypes() {
			if !seen[ot] {
				seen[ot] = true
				out = append(out, ot)
			}
		}
	}
	return out
}

// HierarchicalData is the joined, blocked observation structure a single
// output type reduces to: the input to block wrapping and model fitting.
type HierarchicalData struct {
	OutputType        string
	Observations      []Observation
	Blocks            []*DataBlock
	MinimumStratumAge int
	// BlockVariance[i] holds Blocks[i]'s per-observation estimator
	// variance, or nil if the simulator didn't supply one for that block —
	// in which case sigma2_res must be estimated as a free parameter.
	BlockVariance [][]float64
	// resultSets backs GlobalCovariance's block-diagonal assembly via each
	// ResultSet's own ComputeVarCovErrorTerm.
	resultSets []ResultSet
}

// RegLagActive reports whether the regeneration-lag nuisance parameter
// should enter the parameter vector: true iff some block's initial age is
// at most 10.
func (h *HierarchicalData) RegLagActive() bool {
	return h.MinimumStratumAge <= 10
}

// AnyVarianceEstimated reports whether at least one block needs the
// residual-variance nuisance parameter sigma^2_res.
func (h *HierarchicalData) AnyVarianceEstimated() bool {
	for _, v := range h.BlockVariance {
		if v == nil {
			return true
		}
	}
	return false
}

// GlobalCovariance assembles the block-diagonal residual covariance,
// built from each contributing ResultSet's own
// ComputeVarCovErrorTerm(outputType). Rows belonging to a ResultSet with
// no reported variance are simply absent from the sum;
// GlobalCovariance returns nil if none of the ResultSets report variance.
func (h *HierarchicalData) GlobalCovariance() *mat.SymDense {
	var blocks []*mat.SymDense
	for _, rs := range h.resultSets {
		if raw := rs.ComputeVarCovErrorTerm(h.OutputType); raw != nil {
			blocks = append(blocks, symDenseFromRaw(raw))
		}
	}
	if len(blocks) == 0 {
		return nil
	}
	return linalg.BlockDiagonal(blocks)
}

// Build filters the Collection's ResultSets to outputType and assembles
// the hierarchical structure: one DataBlock per (initialAge, outputType)
// bucket, in the order ResultSets were added.
func (c *Collection) Build(outputType string) (*HierarchicalData, error) {
	found := false
	for _, rs := range c.resultSets {
		for _, ot := range rs.OutputTypes() {
			if ot == outputType {
				found = true
			}
		}
	}
	if !found {
		return nil, ErrUnknownOutputType
	}

	h := &HierarchicalData{OutputType: outputType, MinimumStratumAge: 1 << 30, resultSets: c.resultSets}

	for _, rs := range c.resultSets {
		var rows []Row
		for _, row := range rs.DataSet() {
			if row.OutputType == outputType {
				rows = append(rows, row)
			}
		}
		if len(rows) == 0 {
			continue
		}

		block := &DataBlock{
			InitialAge: rs.InitialAge(),
			OutputType: outputType,
			NbPlots:    rows[0].NbPlots,
		}

		variance := make([]float64, 0, len(rows))
		varianceComplete := true

		for _, row := range rows {
			idx := len(h.Observations)
			obs := Observation{
				InitialAge:      rs.InitialAge(),
				YearsSinceStart: row.DateYr,
				OutputType:      outputType,
				Estimate:        row.Estimate,
				Variance:        row.Variance,
				NbPlots:         row.NbPlots,
			}
			h.Observations = append(h.Observations, obs)
			block.RowIndices = append(block.RowIndices, idx)
			block.AgeYr = append(block.AgeYr, float64(obs.StratumAge()))
			block.TimeSinceBeginning = append(block.TimeSinceBeginning, float64(row.DateYr))

			if row.Variance != nil {
				variance = append(variance, *row.Variance)
			} else {
				varianceComplete = false
			}
		}

		if block.InitialAge < h.MinimumStratumAge {
			h.MinimumStratumAge = block.InitialAge
		}

		h.Blocks = append(h.Blocks, block)

		if varianceComplete {
			h.BlockVariance = append(h.BlockVariance, variance)
		} else {
			h.BlockVariance = append(h.BlockVariance, nil)
		}
	}

	return h, nil
}

func symDenseFromRaw(raw [][]float64) *mat.SymDense {
	n := len(raw)
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, raw[i][j])
		}
	}
	return out
}
