// Package fixture provides a synthetic dataset.ResultSet implementation
// shared across the core packages' tests, in the style of the teacher's
// own CSV-loaded TimeSeries fixtures (see io.go's LoadCSVToTimeSeries).
package fixture

import "metamodelfit/internal/dataset"

// ResultSet is an in-memory dataset.ResultSet for tests.
type ResultSet struct {
	Age          int
	Rows         []dataset.Row
	Plots        int
	Realizations int
	Scenario     string
	Simulator    string
}

func (r *ResultSet) InitialAge() int { return r.Age }

func (r *ResultSet) OutputTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range r.Rows {
		if !seen[row.OutputType] {
			seen[row.OutputType] = true
			out = append(out, row.OutputType)
		}
	}
	return out
}

func (r *ResultSet) DataSet() []dataset.Row { return r.Rows }

func (r *ResultSet) NbPlots() int { return r.Plots }

func (r *ResultSet) NbRealizations() int { return r.Realizations }

func (r *ResultSet) ClimateChangeScenario() string { return r.Scenario }

func (r *ResultSet) GrowthModel() string { return r.Simulator }

func (r *ResultSet) IsCompatible(other dataset.ResultSet) bool {
	return r.Simulator == other.GrowthModel() &&
		r.Realizations == other.NbRealizations() &&
		r.Scenario == other.ClimateChangeScenario()
}

func (r *ResultSet) ComputeVarCovErrorTerm(outputType string) [][]float64 {
	var variances []float64
	for _, row := range r.Rows {
		if row.OutputType == outputType {
			if row.Variance == nil {
				return nil
			}
			variances = append(variances, *row.Variance)
		}
	}
	if len(variances) == 0 {
		return nil
	}
	out := make([][]float64, len(variances))
	for i := range out {
		out[i] = make([]float64, len(variances))
		out[i][i] = variances[i]
	}
	return out
}

// Variance is a small helper for building dataset.Row literals with a
// non-nil estimator variance.
func Variance(v float64) *float64 { return &v }

// Build constructs a series of yearly observations for one output type,
// starting at year 0, with either a fixed per-row variance (estimatorVar
// != nil, repeated for every row) or none (forcing sigma2_res estimation).
func Build(initialAge int, outputType string, values []float64, nbPlots int, estimatorVar *float64) *ResultSet {
	rows := make([]dataset.Row, len(values))
	for i, v := range values {
		var varPtr *float64
		if estimatorVar != nil {
			varPtr = Variance(*estimatorVar)
		}
		rows[i] = dataset.Row{
			DateYr:                i,
			OutputType:            outputType,
			Estimate:              v,
			Variance:              varPtr,
			NbPlots:               nbPlots,
			VarianceEstimatorType: "bootstrap",
		}
	}
	return &ResultSet{
		Age:          initialAge,
		Rows:         rows,
		Plots:        nbPlots,
		Realizations: 1000,
		Scenario:     "RCP4.5",
		Simulator:    "Artemis2014",
	}
}
