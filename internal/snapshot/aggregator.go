// Package snapshot turns a validated market batch into a derived price-history
// point for downstream storage.
package snapshot

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
	"github.com/andresjosehr/p2p-price-monitor/internal/quality"
	"github.com/andresjosehr/p2p-price-monitor/internal/stats"
)

// Heuristic quality thresholds. The heuristic score intentionally differs from the
// validator's compounded score; both are exposed on the history point.
const (
	sparseAdCount = 3
	thinAdCount   = 10

	wideSpreadPct     = 20.0
	elevatedSpreadPct = 10.0

	staleAge = 10 * time.Minute

	incompleteShareLimit = 0.3
)

// Aggregate derives a PriceHistoryPoint from a market batch. An empty batch yields
// nil, signaling the caller to skip storage rather than retry. Best price is the
// series minimum on both sides for consistency; callers interpret "best" per side
// semantics externally.
//
// The reference time is injected for the staleness factor of the heuristic score.
func Aggregate(batch *models.MarketBatch, now time.Time) *models.PriceHistoryPoint {
	if batch == nil || batch.IsEmpty() {
		return nil
	}

	prices := batch.Prices()

	best, worst := prices[0], prices[0]
	var priceSum, totalVolume float64
	for i, p := range prices {
		if p < best {
			best = p
		}
		if p > worst {
			worst = p
		}
		priceSum += p
		totalVolume += batch.Advertisements[i].VolumeFloat()
	}

	point := &models.PriceHistoryPoint{
		ID:                  uuid.NewString(),
		Asset:               batch.Asset,
		Fiat:                batch.Fiat,
		TradeType:           batch.TradeType,
		BestPrice:           best,
		AvgPrice:            priceSum / float64(len(prices)),
		WorstPrice:          worst,
		MedianPrice:         stats.Median(prices),
		VolumeWeightedPrice: volumeWeightedPrice(batch.Advertisements),
		TotalVolume:         totalVolume,
		ActiveOrders:        len(batch.Advertisements),
		PriceSpread:         math.Abs(worst - best),
		CollectedAt:         batch.CollectedAt,
		CreatedAt:           now,
	}
	if best > 0 {
		point.PriceSpreadPct = point.PriceSpread / best * 100
	}

	aggregateMerchants(batch, point)
	point.LiquidityScore = liquidityScore(point)

	validation := quality.Validate(batch)
	batch.SetQualityScore(validation.QualityScore)
	point.DataQualityScore = validation.QualityScore
	point.HeuristicQualityScore = heuristicQualityScore(batch, point, now)

	return point
}

// volumeWeightedPrice computes the VWAP over the batch, falling back to 0 when no
// advertisement carries volume.
func volumeWeightedPrice(ads []models.AdvertisementRecord) float64 {
	var priceSum, volumeSum float64
	for i := range ads {
		v := ads[i].VolumeFloat()
		priceSum += ads[i].PriceFloat() * v
		volumeSum += v
	}
	if volumeSum == 0 {
		return 0
	}
	return priceSum / volumeSum
}

// aggregateMerchants fills the merchant-level aggregates, deduplicating on merchant
// identifier within the batch.
func aggregateMerchants(batch *models.MarketBatch, point *models.PriceHistoryPoint) {
	seen := make(map[string]bool)
	var completionSum, payTimeSum float64
	var completionCount, payTimeCount int

	for i := range batch.Advertisements {
		ad := &batch.Advertisements[i]
		if ad.MerchantID == "" || seen[ad.MerchantID] {
			continue
		}
		seen[ad.MerchantID] = true

		point.MerchantCount++
		if ad.IsProMerchant {
			point.ProMerchantCount++
		}
		if ad.MerchantCompletionRate > 0 {
			completionSum += ad.MerchantCompletionRate
			completionCount++
		}
		if ad.AvgPayTimeMinutes != nil {
			payTimeSum += ad.AvgPayTimeMinutes.InexactFloat64()
			payTimeCount++
		}
	}

	if completionCount > 0 {
		point.AvgCompletionRate = completionSum / float64(completionCount)
	}
	if payTimeCount > 0 {
		point.AvgPayTimeMinutes = payTimeSum / float64(payTimeCount)
	}
}

// liquidityScore composes order depth, merchant diversity, and spread tightness into
// a 0-1 market depth measure.
func liquidityScore(point *models.PriceHistoryPoint) float64 {
	orderDepth := math.Min(float64(point.ActiveOrders)/20, 1)
	merchantDepth := math.Min(float64(point.MerchantCount)/10, 1)
	spreadTightness := math.Max(0, 1-point.PriceSpreadPct/elevatedSpreadPct)

	score := 0.4*orderDepth + 0.3*merchantDepth + 0.3*spreadTightness
	return clamp01(score)
}

// heuristicQualityScore is the aggregator's secondary quality formula: ad-count
// thresholds, spread thresholds, data staleness, and an incomplete-record penalty.
// It coexists with the validator score rather than replacing it.
func heuristicQualityScore(batch *models.MarketBatch, point *models.PriceHistoryPoint, now time.Time) float64 {
	score := 1.0

	switch {
	case point.ActiveOrders < sparseAdCount:
		score *= 0.6
	case point.ActiveOrders < thinAdCount:
		score *= 0.85
	}

	switch {
	case point.PriceSpreadPct > wideSpreadPct:
		score *= 0.7
	case point.PriceSpreadPct > elevatedSpreadPct:
		score *= 0.9
	}

	if now.Sub(batch.CollectedAt) > staleAge {
		score *= 0.8
	}

	incomplete := 0
	for i := range batch.Advertisements {
		if !batch.Advertisements[i].IsComplete() {
			incomplete++
		}
	}
	if float64(incomplete) > float64(len(batch.Advertisements))*incompleteShareLimit {
		score *= 0.9
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
