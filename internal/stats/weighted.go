package stats

import (
	"math"
	"sort"
	"time"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

// Weight floors keep advertisements with missing or zero metadata from vanishing
// out of the weighted averages entirely.
const (
	minVolumeWeight      = 1.0
	minTradeCountWeight  = 1.0
	minReliabilityWeight = 0.1
	minAmountWeight      = 1.0

	// exponentialHalfLife is the decay half-life for the time-weighted exponential
	// average.
	exponentialHalfLife = 6 * time.Hour

	// linearDecayHorizon is the age at which the linear decay weight reaches zero.
	linearDecayHorizon = 24 * time.Hour
)

// WeightedAverages holds the four advertisement-weighted price averages. Each is
// sum(price*weight)/sum(weight) over the raw (uncleaned) series, and 0 when the
// total weight is 0.
type WeightedAverages struct {
	VolumeWeighted      float64 `json:"volume_weighted"`
	TradeCountWeighted  float64 `json:"trade_count_weighted"`
	ReliabilityWeighted float64 `json:"reliability_weighted"`
	AmountWeighted      float64 `json:"amount_weighted"`
}

// TimeWeightedAverages holds the three recency-weighted price averages. With all
// records collected at the same instant, the decay variants degenerate to a plain
// mean while recency-rank weighting still differentiates by list order.
type TimeWeightedAverages struct {
	ExponentialDecay float64 `json:"exponential_decay"`
	LinearDecay      float64 `json:"linear_decay"`
	RecencyRank      float64 `json:"recency_rank"`
}

// ComputeWeightedAverages computes the four weighted averages over the raw series.
func ComputeWeightedAverages(records []models.AdvertisementRecord) WeightedAverages {
	var wa WeightedAverages
	if len(records) == 0 {
		return wa
	}

	wa.VolumeWeighted = weightedMean(records, func(r *models.AdvertisementRecord) float64 {
		return math.Max(r.VolumeFloat(), minVolumeWeight)
	})
	wa.TradeCountWeighted = weightedMean(records, func(r *models.AdvertisementRecord) float64 {
		return math.Max(float64(r.MerchantTradeCount), minTradeCountWeight)
	})
	wa.ReliabilityWeighted = weightedMean(records, func(r *models.AdvertisementRecord) float64 {
		return math.Max(r.MerchantCompletionRate/100, minReliabilityWeight)
	})
	wa.AmountWeighted = weightedMean(records, func(r *models.AdvertisementRecord) float64 {
		return math.Max(r.AmountRange(), minAmountWeight)
	})

	return wa
}

// ComputeTimeWeightedAverages computes recency-weighted averages against the injected
// reference time. The clock is a parameter so the computation stays deterministic.
func ComputeTimeWeightedAverages(records []models.AdvertisementRecord, now time.Time) TimeWeightedAverages {
	var twa TimeWeightedAverages
	if len(records) == 0 {
		return twa
	}

	lambda := math.Ln2 / exponentialHalfLife.Hours()

	twa.ExponentialDecay = weightedMean(records, func(r *models.AdvertisementRecord) float64 {
		age := now.Sub(r.CollectedAt).Hours()
		if age < 0 {
			age = 0
		}
		return math.Exp(-lambda * age)
	})

	twa.LinearDecay = weightedMean(records, func(r *models.AdvertisementRecord) float64 {
		age := now.Sub(r.CollectedAt)
		if age < 0 {
			age = 0
		}
		w := 1 - age.Hours()/linearDecayHorizon.Hours()
		// Records beyond the horizon keep a small positive weight so an all-stale
		// series still produces an average instead of a zero total weight.
		return math.Max(w, 0.01)
	})

	twa.RecencyRank = recencyRankMean(records)

	return twa
}

// recencyRankMean weights each record by 1/(1+rank) with rank 0 the most recent.
// The sort is stable, so records sharing a timestamp rank by input order.
func recencyRankMean(records []models.AdvertisementRecord) float64 {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return records[order[a]].CollectedAt.After(records[order[b]].CollectedAt)
	})

	var priceSum, weightSum float64
	for rank, idx := range order {
		w := 1 / float64(1+rank)
		priceSum += records[idx].PriceFloat() * w
		weightSum += w
	}

	if weightSum == 0 {
		return 0
	}
	return priceSum / weightSum
}

// weightedMean computes sum(price*weight)/sum(weight), returning 0 when the total
// weight is 0.
func weightedMean(records []models.AdvertisementRecord, weight func(*models.AdvertisementRecord) float64) float64 {
	var priceSum, weightSum float64
	for i := range records {
		w := weight(&records[i])
		priceSum += records[i].PriceFloat() * w
		weightSum += w
	}

	if weightSum == 0 {
		return 0
	}
	return priceSum / weightSum
}
