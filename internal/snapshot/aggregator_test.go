package snapshot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

func ad(price, volume float64, merchantID string, pro bool) models.AdvertisementRecord {
	payTime := decimal.NewFromFloat(5)
	return models.AdvertisementRecord{
		Price:                  decimal.NewFromFloat(price),
		Volume:                 decimal.NewFromFloat(volume),
		MinAmount:              decimal.NewFromInt(10),
		MaxAmount:              decimal.NewFromInt(1000),
		MerchantID:             merchantID,
		MerchantTradeCount:     100,
		MerchantCompletionRate: 96,
		IsProMerchant:          pro,
		AvgPayTimeMinutes:      &payTime,
		PaymentMethods:         []string{"Bank Transfer"},
		CollectedAt:            time.Now().UTC(),
	}
}

func TestAggregate(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("price aggregates", func(t *testing.T) {
		batch, err := models.NewMarketBatch("USDT", "VES", models.TradeTypeSell,
			[]models.AdvertisementRecord{
				ad(35.0, 100, "m1", true),
				ad(35.2, 300, "m2", false),
				ad(35.4, 100, "m3", false),
			}, models.ResponseCodeSuccess, now)
		require.NoError(t, err)

		point := Aggregate(batch, now)
		require.NotNil(t, point)

		assert.Equal(t, "USDT", point.Asset)
		assert.Equal(t, models.TradeTypeSell, point.TradeType)
		assert.NotEmpty(t, point.ID)

		assert.Equal(t, 35.0, point.BestPrice)
		assert.Equal(t, 35.4, point.WorstPrice)
		assert.InDelta(t, 35.2, point.AvgPrice, 1e-9)
		assert.InDelta(t, 35.2, point.MedianPrice, 1e-9)
		assert.InDelta(t, 0.4, point.PriceSpread, 1e-9)
		assert.InDelta(t, 0.4/35.0*100, point.PriceSpreadPct, 1e-9)

		// VWAP: (35.0*100 + 35.2*300 + 35.4*100) / 500.
		assert.InDelta(t, 35.2, point.VolumeWeightedPrice, 1e-9)
		assert.Equal(t, 500.0, point.TotalVolume)
		assert.Equal(t, 3, point.ActiveOrders)
	})

	t.Run("merchant aggregates deduplicate", func(t *testing.T) {
		batch, err := models.NewMarketBatch("USDT", "VES", models.TradeTypeSell,
			[]models.AdvertisementRecord{
				ad(35.0, 100, "m1", true),
				ad(35.1, 100, "m1", true),
				ad(35.2, 100, "m2", false),
			}, models.ResponseCodeSuccess, now)
		require.NoError(t, err)

		point := Aggregate(batch, now)
		require.NotNil(t, point)
		assert.Equal(t, 2, point.MerchantCount)
		assert.Equal(t, 1, point.ProMerchantCount)
		assert.InDelta(t, 96.0, point.AvgCompletionRate, 1e-9)
		assert.InDelta(t, 5.0, point.AvgPayTimeMinutes, 1e-9)
	})

	t.Run("quality scores are both set", func(t *testing.T) {
		batch, err := models.NewMarketBatch("USDT", "VES", models.TradeTypeSell,
			[]models.AdvertisementRecord{
				ad(35.0, 100, "m1", true),
				ad(35.1, 100, "m2", false),
				ad(35.2, 100, "m3", false),
			}, models.ResponseCodeSuccess, now)
		require.NoError(t, err)

		point := Aggregate(batch, now)
		require.NotNil(t, point)

		assert.Equal(t, 1.0, point.DataQualityScore)
		cached, ok := batch.QualityScore()
		assert.True(t, ok)
		assert.Equal(t, point.DataQualityScore, cached)

		// 3 ads is sparse by the heuristic thresholds even though the validator
		// found nothing wrong.
		assert.InDelta(t, 0.85, point.HeuristicQualityScore, 1e-9)
	})

	t.Run("sparse and stale batches score lower", func(t *testing.T) {
		batch, err := models.NewMarketBatch("USDT", "VES", models.TradeTypeSell,
			[]models.AdvertisementRecord{
				ad(35.0, 100, "m1", true),
			}, models.ResponseCodeSuccess, now.Add(-time.Hour))
		require.NoError(t, err)

		point := Aggregate(batch, now)
		require.NotNil(t, point)
		// Under 3 ads multiplies by 0.6 and staleness beyond 10 minutes by 0.8.
		assert.InDelta(t, 0.48, point.HeuristicQualityScore, 1e-9)
	})

	t.Run("empty batch yields nil", func(t *testing.T) {
		batch, err := models.NewMarketBatch("USDT", "VES", models.TradeTypeSell, nil, models.ResponseCodeSuccess, now)
		require.NoError(t, err)
		assert.Nil(t, Aggregate(batch, now))
		assert.Nil(t, Aggregate(nil, now))
	})
}

func TestLiquidityScore(t *testing.T) {
	t.Run("deep tight market maxes out", func(t *testing.T) {
		point := &models.PriceHistoryPoint{
			ActiveOrders:   40,
			MerchantCount:  20,
			PriceSpreadPct: 0,
		}
		assert.Equal(t, 1.0, liquidityScore(point))
	})

	t.Run("thin wide market scores low", func(t *testing.T) {
		point := &models.PriceHistoryPoint{
			ActiveOrders:   2,
			MerchantCount:  1,
			PriceSpreadPct: 25,
		}
		// 0.4*0.1 + 0.3*0.1 + 0.3*0 = 0.07.
		assert.InDelta(t, 0.07, liquidityScore(point), 1e-9)
	})
}
