package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"metamodelfit/internal/dataset"
	"metamodelfit/internal/fixture"
)

func TestAddToEmptyCollectionAlwaysSucceeds(t *testing.T) {
	c := dataset.NewCollection()
	rs := fixture.Build(20, "AliveVolume_AllSpecies", []float64{10, 20, 30}, 12, nil)
	require.NoError(t, c.Add(rs))
}

func TestIncompatibleResultSetRejected(t *testing.T) {
	c := dataset.NewCollection()
	rs1 := fixture.Build(20, "AliveVolume_AllSpecies", []float64{10, 20}, 12, nil)
	require.NoError(t, c.Add(rs1))

	rs2 := fixture.Build(30, "AliveVolume_AllSpecies", []float64{15, 25}, 12, nil)
	rs2.Scenario = "RCP8.5"
	err := c.Add(rs2)
	require.ErrorIs(t, err, dataset.ErrIncompatibleResultSet)
}

func TestUnknownOutputTypeRejected(t *testing.T) {
	c := dataset.NewCollection()
	require.NoError(t, c.Add(fixture.Build(20, "AliveVolume_AllSpecies", []float64{10, 20}, 12, nil)))

	_, err := c.Build("NotARealOutputType")
	require.ErrorIs(t, err, dataset.ErrUnknownOutputType)
}

func TestBuildGroupsByInitialAgeAndFlagsRegLag(t *testing.T) {
	c := dataset.NewCollection()
	require.NoError(t, c.Add(fixture.Build(5, "AliveVolume_AllSpecies", []float64{1, 2, 3}, 12, nil)))
	require.NoError(t, c.Add(fixture.Build(20, "AliveVolume_AllSpecies", []float64{10, 20, 30}, 12, nil)))

	h, err := c.Build("AliveVolume_AllSpecies")
	require.NoError(t, err)
	require.Len(t, h.Blocks, 2)
	require.Equal(t, 5, h.MinimumStratumAge)
	require.True(t, h.RegLagActive())
	require.True(t, h.AnyVarianceEstimated())

	require.Equal(t, []float64{5, 6, 7}, h.Blocks[0].AgeYr)
	require.Equal(t, []float64{20, 21, 22}, h.Blocks[1].AgeYr)
}

func TestBuildNoRegLagWhenAllBlocksOld(t *testing.T) {
	c := dataset.NewCollection()
	require.NoError(t, c.Add(fixture.Build(30, "AliveVolume_AllSpecies", []float64{1, 2}, 12, nil)))

	h, err := c.Build("AliveVolume_AllSpecies")
	require.NoError(t, err)
	require.False(t, h.RegLagActive())
}

func TestBuildWithVarianceAvailable(t *testing.T) {
	v := 4.0
	c := dataset.NewCollection()
	require.NoError(t, c.Add(fixture.Build(20, "AliveVolume_AllSpecies", []float64{10, 20}, 12, &v)))

	h, err := c.Build("AliveVolume_AllSpecies")
	require.NoError(t, err)
	require.False(t, h.AnyVarianceEstimated())
	require.Equal(t, []float64{4, 4}, h.BlockVariance[0])
	require.NotNil(t, h.GlobalCovariance())
}
