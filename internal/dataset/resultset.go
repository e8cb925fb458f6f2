// Package dataset implements the hierarchical data structure: joining
// per-initial-age simulator ResultSets into one global observation vector
// grouped into DataBlocks by (initialAge, outputType), plus the global
// residual covariance when the simulator supplies estimator variance.
package dataset

// Row is one record of a ResultSet's data table.
type Row struct {
	DateYr                int
	OutputType            string
	Estimate              float64
	Variance              *float64 // nil when the simulator doesn't supply one
	NbPlots               int
	VarianceEstimatorType string
}

// ResultSet is the external contract this package consumes: one
// simulator run starting from a fixed initial age. Implementations are
// supplied by the upstream growth simulator and are treated as opaque data
// sources here.
type ResultSet interface {
	InitialAge() int
	OutputTypes() []string
	DataSet() []Row
	NbPlots() int
	NbRealizations() int
	ClimateChangeScenario() string
	GrowthModel() string
	IsCompatible(other ResultSet) bool
	// ComputeVarCovErrorTerm returns the block-diagonal residual covariance
	// for the given output type, or nil if the simulator doesn't supply
	// estimator variance for it.
	ComputeVarCovErrorTerm(outputType string) [][]float64
}

// Observation is one row of the global observation vector, after joining.
type Observation struct {
	InitialAge      int
	YearsSinceStart int
	OutputType      string
	Estimate        float64
	Variance        *float64
	NbPlots         int
}

// StratumAge is initialAge + yearsSinceStart.
func (o Observation) StratumAge() int { return o.InitialAge + o.YearsSinceStart }

// DataBlock groups the observations sharing one (initialAge, outputType).
type DataBlock struct {
	InitialAge int
	OutputType string
	NbPlots    int
	// RowIndices are indices into the global Observation vector.
	RowIndices []int
	// AgeYr is the ordered stratum age for each member observation.
	AgeYr []float64
	// TimeSinceBeginning is the ordered years-since-start for each member.
	TimeSinceBeginning []float64
}

// Size is the number of repeated measurements in this cohort.
func (b *DataBlock) Size() int { return len(b.RowIndices) }
