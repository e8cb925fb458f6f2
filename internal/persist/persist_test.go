package persist_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"metamodelfit/internal/fixture"
	"metamodelfit/internal/growth"
	"metamodelfit/internal/metamodel"
	"metamodelfit/internal/persist"
	"metamodelfit/internal/sampler"
)

// fitVolumeModel runs one real (small) MCMC fit so the round-trip tests
// exercise the same path a production save would.
func fitVolumeModel(t *testing.T) (*metamodel.MetaModel, *metamodel.Model) {
	t.Helper()
	trueB1, trueB2 := 100.0, 0.05
	ages := []float64{20, 23, 26, 29, 32, 35, 38}
	values := make([]float64, len(ages))
	for i, a := range ages {
		values[i] = trueB1 * math.Exp(-trueB2*a)
	}
	rs := fixture.Build(20, "Volume", values, 10, fixture.Variance(4))

	mm := metamodel.New("RS38", 3, zerolog.Nop())
	require.NoError(t, mm.AddResultSet(rs))

	cfg := sampler.Config{NbInitialGrid: 200, NbBurnIn: 200, NbAcceptedRealizations: 1500, OneEach: 3, CoefVar: 0.15, AcceptMin: 0.02, AcceptMax: 0.95}
	status := mm.Fit("Volume", []metamodel.Candidate{{Form: growth.Exponential}}, cfg)
	require.Equal(t, "DONE", status)

	winner, ok := mm.Winner("Volume")
	require.True(t, ok)
	return mm, winner
}

func TestFitSaveLoadPredictRoundTrip(t *testing.T) {
	mm, winner := fitVolumeModel(t)

	meta, err := persist.Stamp(mm, "Volume", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	snap, err := persist.Capture(winner, meta)
	require.NoError(t, err)
	require.False(t, snap.Light)
	require.NotEmpty(t, snap.ThinnedSample)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, persist.Save(path, snap))

	loaded, err := persist.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.ThinnedSample, len(snap.ThinnedSample))

	restored, err := loaded.Restore()
	require.NoError(t, err)
	require.True(t, restored.HasConverged())
	require.InDelta(t, winner.LPML(), restored.LPML(), 1e-12)

	for _, age := range []float64{10, 25, 40, 60, 90} {
		want, err := winner.Predict(age, 0)
		require.NoError(t, err)
		got, err := restored.Predict(age, 0)
		require.NoError(t, err)
		require.InDelta(t, want, got, 1e-8)

		wantVar, err := winner.PredictionVariance(age, 0, false)
		require.NoError(t, err)
		gotVar, err := restored.PredictionVariance(age, 0, false)
		require.NoError(t, err)
		require.InDelta(t, wantVar, gotVar, 1e-8)
	}
}

func TestLightRoundTripPreservesPredictionsAndSummary(t *testing.T) {
	mm, winner := fitVolumeModel(t)

	meta, err := persist.Stamp(mm, "Volume", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	full, err := persist.Capture(winner, meta)
	require.NoError(t, err)

	light := full.ToLight()
	require.True(t, light.Light)
	require.Nil(t, light.ThinnedSample)
	require.Equal(t, full.Summary(), light.Summary())

	path := filepath.Join(t.TempDir(), "model-light.json")
	require.NoError(t, persist.Save(path, light))
	loaded, err := persist.Load(path)
	require.NoError(t, err)
	require.Equal(t, full.Summary(), loaded.Summary())

	restored, err := loaded.Restore()
	require.NoError(t, err)
	for _, age := range []float64{10, 25, 40, 60, 90} {
		want, err := winner.Predict(age, 0)
		require.NoError(t, err)
		got, err := restored.Predict(age, 0)
		require.NoError(t, err)
		require.InDelta(t, want, got, 1e-8)
	}

	sample, err := restored.ThinnedSample()
	require.NoError(t, err)
	require.Empty(t, sample)
}

func TestStampFillsSimulatorProvenance(t *testing.T) {
	mm, _ := fitVolumeModel(t)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	meta, err := persist.Stamp(mm, "Volume", now)
	require.NoError(t, err)

	require.Equal(t, "RS38", meta.Fit.StratumGroup)
	require.Equal(t, "Volume", meta.Fit.OutputType)
	require.Equal(t, string(growth.Exponential), meta.Fit.FitModel)
	require.Equal(t, "2026-08-01T12:00:00Z", meta.Fit.TimeStamp)
	require.Equal(t, "Artemis2014", meta.Growth.GrowthModel)
	require.Equal(t, "RCP4.5", meta.Growth.ClimateChangeOption)
	require.Equal(t, 1000, meta.Growth.NbRealizations)
	require.Equal(t, 10, meta.Growth.NbPlots)
}

func TestStampWithoutFitReportsNotFitted(t *testing.T) {
	mm := metamodel.New("RS38", 1, zerolog.Nop())
	require.NoError(t, mm.AddResultSet(fixture.Build(20, "Volume", []float64{1, 2, 3}, 10, fixture.Variance(1))))

	_, err := persist.Stamp(mm, "Volume", time.Now())
	require.ErrorIs(t, err, metamodel.ErrNotFitted)
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o644))

	_, err := persist.Load(path)
	require.Error(t, err)
}
