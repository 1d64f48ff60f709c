package signals

import (
	"testing"
	"time"

	"github.com/parcelscope/api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(date string, landValue float64, useCode string) models.HistorySnapshot {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	s := models.HistorySnapshot{SnapshotDate: d}
	if landValue >= 0 {
		s.LandValue = &landValue
	}
	if useCode != "" {
		s.UseCode = &useCode
	}
	return s
}

func TestCompute_EmptyHistory(t *testing.T) {
	sig := Compute(nil)

	assert.Nil(t, sig.LandValueYoY)
	assert.Nil(t, sig.Current)
	assert.Nil(t, sig.Prior)
	assert.False(t, sig.UseChange)
}

func TestCompute_SingleSnapshotHasNoPrior(t *testing.T) {
	sig := Compute([]models.HistorySnapshot{
		snapshot("2026-06-01", 100000, "R"),
	})

	require.NotNil(t, sig.Current)
	assert.Nil(t, sig.Prior)
	assert.Nil(t, sig.LandValueYoY)
}

func TestCompute_YearOverYearChange(t *testing.T) {
	sig := Compute([]models.HistorySnapshot{
		snapshot("2026-06-01", 150000, "R"),
		snapshot("2025-06-01", 100000, "R"),
	})

	require.NotNil(t, sig.LandValueYoY)
	assert.InDelta(t, 0.5, *sig.LandValueYoY, 1e-9)
	assert.False(t, sig.UseChange)
}

func TestCompute_UnsortedHistory(t *testing.T) {
	sig := Compute([]models.HistorySnapshot{
		snapshot("2025-06-01", 100000, "R"),
		snapshot("2026-06-01", 150000, "R"),
		snapshot("2024-06-01", 80000, "R"),
	})

	require.NotNil(t, sig.Current)
	assert.Equal(t, 2026, sig.Current.SnapshotDate.Year())
	require.NotNil(t, sig.LandValueYoY)
	assert.InDelta(t, 0.5, *sig.LandValueYoY, 1e-9)
}

func TestCompute_PriorOutsideToleranceIsNil(t *testing.T) {
	// 14 months back: outside the ±1 month window around 12 months.
	sig := Compute([]models.HistorySnapshot{
		snapshot("2026-06-01", 150000, "R"),
		snapshot("2025-04-01", 100000, "R"),
	})

	assert.Nil(t, sig.Prior)
	assert.Nil(t, sig.LandValueYoY)
}

func TestCompute_PriorWithinToleranceQualifies(t *testing.T) {
	// 11.5 months back: inside the window.
	sig := Compute([]models.HistorySnapshot{
		snapshot("2026-06-15", 120000, "R"),
		snapshot("2025-07-01", 100000, "R"),
	})

	require.NotNil(t, sig.Prior)
	require.NotNil(t, sig.LandValueYoY)
	assert.InDelta(t, 0.2, *sig.LandValueYoY, 1e-9)
}

func TestCompute_ClosestPriorWins(t *testing.T) {
	sig := Compute([]models.HistorySnapshot{
		snapshot("2026-06-01", 150000, "R"),
		snapshot("2025-06-20", 100000, "R"),
		snapshot("2025-05-10", 50000, "R"),
	})

	require.NotNil(t, sig.Prior)
	assert.Equal(t, time.June, sig.Prior.SnapshotDate.Month())
	require.NotNil(t, sig.LandValueYoY)
	assert.InDelta(t, 0.5, *sig.LandValueYoY, 1e-9)
}

func TestCompute_ZeroPriorLandValueYieldsNilYoY(t *testing.T) {
	sig := Compute([]models.HistorySnapshot{
		snapshot("2026-06-01", 150000, "R"),
		snapshot("2025-06-01", 0, "R"),
	})

	require.NotNil(t, sig.Prior)
	assert.Nil(t, sig.LandValueYoY)
}

func TestCompute_MissingLandValuesYieldNilYoY(t *testing.T) {
	current := snapshot("2026-06-01", -1, "R")
	prior := snapshot("2025-06-01", 100000, "R")

	sig := Compute([]models.HistorySnapshot{current, prior})

	require.NotNil(t, sig.Prior)
	assert.Nil(t, sig.LandValueYoY)
}

func TestCompute_UseChange(t *testing.T) {
	sig := Compute([]models.HistorySnapshot{
		snapshot("2026-06-01", 150000, "COM"),
		snapshot("2025-06-01", 100000, "RES"),
	})

	assert.True(t, sig.UseChange)
}

func TestCompute_MissingUseCodesAreNotAChange(t *testing.T) {
	sig := Compute([]models.HistorySnapshot{
		snapshot("2026-06-01", 150000, ""),
		snapshot("2025-06-01", 100000, ""),
	})

	assert.False(t, sig.UseChange)
}
