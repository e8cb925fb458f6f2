package metamodel

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"metamodelfit/internal/fixture"
	"metamodelfit/internal/growth"
	"metamodelfit/internal/sampler"
)

func TestMetaModelEnumeratesOutputTypesInFirstSeenOrder(t *testing.T) {
	mm := New("RE2_ST1", 1, zerolog.Nop())
	rs := fixture.Build(20, "AliveVolume_AllSpecies", []float64{90, 85, 80}, 10, fixture.Variance(4))
	for _, ot := range []string{"AliveVolume_BroadleavedSpecies", "AliveVolume_ConiferousSpecies"} {
		extra := fixture.Build(20, ot, []float64{45, 42, 40}, 10, fixture.Variance(4))
		rs.Rows = append(rs.Rows, extra.Rows...)
	}
	require.NoError(t, mm.AddResultSet(rs))

	require.Equal(t, []string{
		"AliveVolume_AllSpecies",
		"AliveVolume_BroadleavedSpecies",
		"AliveVolume_ConiferousSpecies",
	}, mm.OutputTypes())

	info, ok := mm.SimulationInfo()
	require.True(t, ok)
	require.Equal(t, "Artemis2014", info.GrowthModel)
	require.Equal(t, []int{20}, info.InitialAges)
	require.Equal(t, "RE2_ST1", mm.StratumGroup())
}

func TestMetaModelFitUnknownOutputTypeReportsError(t *testing.T) {
	mm := New("RE2_ST1", 1, zerolog.Nop())
	rs := fixture.Build(20, "Volume", []float64{90, 85, 80}, 10, fixture.Variance(4))
	require.NoError(t, mm.AddResultSet(rs))

	status := mm.Fit("Biomass", []Candidate{{Form: growth.Exponential}}, sampler.DefaultConfig())
	require.Contains(t, status, "ERROR")
}

func TestMetaModelFitPicksWinnerAndServesPredictions(t *testing.T) {
	trueB1, trueB2 := 100.0, 0.05
	ages := []float64{20, 23, 26, 29, 32, 35, 38}
	values := make([]float64, len(ages))
	for i, a := range ages {
		values[i] = trueB1 * math.Exp(-trueB2*a)
	}
	rs := fixture.Build(20, "Volume", values, 10, fixture.Variance(4))

	mm := New("RE2_ST1", 3, zerolog.Nop())
	require.NoError(t, mm.AddResultSet(rs))

	cfg := sampler.Config{NbInitialGrid: 200, NbBurnIn: 200, NbAcceptedRealizations: 1500, OneEach: 3, CoefVar: 0.15, AcceptMin: 0.02, AcceptMax: 0.95}
	status := mm.Fit("Volume", []Candidate{{Form: growth.Exponential}, {Form: growth.ChapmanRichards}}, cfg)
	require.Equal(t, "DONE", status)

	winner, ok := mm.Winner("Volume")
	require.True(t, ok)
	require.True(t, winner.HasConverged())

	pred, err := mm.Predict("Volume", 26)
	require.NoError(t, err)
	require.Greater(t, pred, 0.0)

	table := mm.ComparisonTable()
	require.Len(t, table, 2)

	report := mm.Report()
	require.Contains(t, report, "Volume")
}
