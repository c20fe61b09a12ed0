package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
	"github.com/andresjosehr/p2p-price-monitor/internal/outliers"
)

func TestAnalyze(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("full pipeline with an outlier", func(t *testing.T) {
		prices := []float64{35.0, 35.2, 35.1, 35.3, 35.0, 100.0}
		records := recordsWithPrices(prices, now)

		result, err := Analyze(records, DefaultOptions(now))
		require.NoError(t, err)

		assert.Equal(t, 6, result.Raw.Count)
		assert.Equal(t, 5, result.Cleaned.Count)
		assert.Equal(t, 1, result.Outliers.Count())
		assert.True(t, result.Outliers.Contains(5))

		// Cleaning pulls the mean back toward the cluster.
		assert.Less(t, result.Cleaned.Mean, result.Raw.Mean)
		assert.Greater(t, result.Diagnostics.OutlierImpactPct, 0.0)

		assert.InDelta(t, 5.0/6.0, result.Quality.RetentionRate, 1e-9)
		assert.InDelta(t, 1.0/6.0, result.Quality.OutlierRate, 1e-9)

		assert.Equal(t, 0.95, result.ConfidenceInterval.Level)
		assert.Equal(t, 5, result.ConfidenceInterval.SampleSize)
		assert.Len(t, result.Percentiles, 7)
		assert.True(t, result.Trend.HasTrend)
		assert.Equal(t, now, result.AnalyzedAt)
	})

	t.Run("empty series returns zero result without error", func(t *testing.T) {
		result, err := Analyze(nil, DefaultOptions(now))
		require.NoError(t, err)

		assert.Equal(t, 0, result.Raw.Count)
		assert.Equal(t, 0, result.Cleaned.Count)
		assert.Equal(t, 0, result.Outliers.Count())
		assert.Zero(t, result.Quality.CompositeScore)
		assert.Empty(t, result.Percentiles)
	})

	t.Run("zero options take defaults", func(t *testing.T) {
		records := recordsWithPrices([]float64{35.0, 35.1, 35.2, 35.3, 35.1}, now)

		result, err := Analyze(records, Options{Now: now})
		require.NoError(t, err)
		assert.Equal(t, outliers.MethodIQR, result.Outliers.Method)
		assert.Equal(t, 0.95, result.ConfidenceInterval.Level)
	})

	t.Run("unknown method errors", func(t *testing.T) {
		records := recordsWithPrices([]float64{1, 2, 3}, now)

		_, err := Analyze(records, Options{OutlierMethod: "grubbs", ConfidenceLevel: 0.95, Now: now})
		assert.Error(t, err)
	})
}

func recordsWithPrices(prices []float64, collectedAt time.Time) []models.AdvertisementRecord {
	records := make([]models.AdvertisementRecord, 0, len(prices))
	for _, p := range prices {
		records = append(records, adRecord(p, 100, 10, 95, collectedAt))
	}
	return records
}
