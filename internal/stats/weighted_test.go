package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

func adRecord(price, volume float64, tradeCount int, completionRate float64, collectedAt time.Time) models.AdvertisementRecord {
	return models.AdvertisementRecord{
		Price:                  decimal.NewFromFloat(price),
		Volume:                 decimal.NewFromFloat(volume),
		MinAmount:              decimal.NewFromInt(10),
		MaxAmount:              decimal.NewFromInt(1000),
		MerchantID:             "merchant",
		MerchantTradeCount:     tradeCount,
		MerchantCompletionRate: completionRate,
		CollectedAt:            collectedAt,
	}
}

func TestComputeWeightedAverages(t *testing.T) {
	now := time.Now().UTC()

	t.Run("equal weights reduce to the mean", func(t *testing.T) {
		records := []models.AdvertisementRecord{
			adRecord(10, 100, 50, 95, now),
			adRecord(20, 100, 50, 95, now),
			adRecord(30, 100, 50, 95, now),
		}

		wa := ComputeWeightedAverages(records)
		assert.InDelta(t, 20.0, wa.VolumeWeighted, 1e-9)
		assert.InDelta(t, 20.0, wa.TradeCountWeighted, 1e-9)
		assert.InDelta(t, 20.0, wa.ReliabilityWeighted, 1e-9)
		assert.InDelta(t, 20.0, wa.AmountWeighted, 1e-9)
	})

	t.Run("volume pulls the average toward heavy ads", func(t *testing.T) {
		records := []models.AdvertisementRecord{
			adRecord(10, 900, 1, 95, now),
			adRecord(20, 100, 1, 95, now),
		}

		wa := ComputeWeightedAverages(records)
		assert.InDelta(t, 11.0, wa.VolumeWeighted, 1e-9)
	})

	t.Run("zero metadata falls back to weight floors", func(t *testing.T) {
		records := []models.AdvertisementRecord{
			adRecord(10, 0, 0, 0, now),
			adRecord(20, 0, 0, 0, now),
		}

		// Floors keep every record in the average instead of dividing by zero.
		wa := ComputeWeightedAverages(records)
		assert.InDelta(t, 15.0, wa.VolumeWeighted, 1e-9)
		assert.InDelta(t, 15.0, wa.TradeCountWeighted, 1e-9)
		assert.InDelta(t, 15.0, wa.ReliabilityWeighted, 1e-9)
	})

	t.Run("empty input", func(t *testing.T) {
		wa := ComputeWeightedAverages(nil)
		assert.Zero(t, wa.VolumeWeighted)
	})
}

func TestComputeTimeWeightedAverages(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("same-instant records degenerate to the mean", func(t *testing.T) {
		records := []models.AdvertisementRecord{
			adRecord(10, 100, 1, 95, now),
			adRecord(20, 100, 1, 95, now),
		}

		twa := ComputeTimeWeightedAverages(records, now)
		assert.InDelta(t, 15.0, twa.ExponentialDecay, 1e-9)
		assert.InDelta(t, 15.0, twa.LinearDecay, 1e-9)
	})

	t.Run("newer records dominate the decay averages", func(t *testing.T) {
		records := []models.AdvertisementRecord{
			adRecord(10, 100, 1, 95, now.Add(-12*time.Hour)),
			adRecord(20, 100, 1, 95, now),
		}

		twa := ComputeTimeWeightedAverages(records, now)
		assert.Greater(t, twa.ExponentialDecay, 15.0)
		assert.Greater(t, twa.LinearDecay, 15.0)
	})

	t.Run("recency rank weights most recent first", func(t *testing.T) {
		records := []models.AdvertisementRecord{
			adRecord(10, 100, 1, 95, now.Add(-time.Hour)),
			adRecord(20, 100, 1, 95, now),
		}

		// Rank 0 is the newest record: (20*1 + 10*0.5) / 1.5.
		twa := ComputeTimeWeightedAverages(records, now)
		assert.InDelta(t, 50.0/3.0, twa.RecencyRank, 1e-9)
	})

	t.Run("ties rank by input order", func(t *testing.T) {
		records := []models.AdvertisementRecord{
			adRecord(10, 100, 1, 95, now),
			adRecord(20, 100, 1, 95, now),
		}

		// Stable sort keeps the first record at rank 0.
		twa := ComputeTimeWeightedAverages(records, now)
		assert.InDelta(t, (10+20*0.5)/1.5, twa.RecencyRank, 1e-9)
	})

	t.Run("future timestamps clamp to zero age", func(t *testing.T) {
		records := []models.AdvertisementRecord{
			adRecord(10, 100, 1, 95, now.Add(time.Hour)),
			adRecord(20, 100, 1, 95, now.Add(time.Hour)),
		}

		twa := ComputeTimeWeightedAverages(records, now)
		assert.InDelta(t, 15.0, twa.ExponentialDecay, 1e-9)
		assert.InDelta(t, 15.0, twa.LinearDecay, 1e-9)
	})

	t.Run("empty input", func(t *testing.T) {
		twa := ComputeTimeWeightedAverages(nil, now)
		assert.Zero(t, twa.ExponentialDecay)
		assert.Zero(t, twa.RecencyRank)
	})
}
