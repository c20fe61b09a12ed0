package stats

import (
	"math"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

// extractedFieldCount is the number of fields pulled from each advertisement for
// analysis: price, volume, min amount, max amount, trade count, completion rate,
// and average pay time.
const extractedFieldCount = 7

// QualityMetrics summarizes how much of the raw series survived cleaning and how
// complete the underlying records were.
type QualityMetrics struct {
	RetentionRate        float64 `json:"retention_rate"`
	OutlierRate          float64 `json:"outlier_rate"`
	CompositeScore       float64 `json:"composite_score"`
	FieldCompletenessPct float64 `json:"field_completeness_pct"`
}

// ComputeQualityMetrics derives retention, outlier rate, the composite quality
// score retention*(1 - min(2*outlierRate, 0.5)) clamped to [0,1], and field-level
// completeness across the extracted fields.
func ComputeQualityMetrics(records []models.AdvertisementRecord, rawCount, cleanedCount int) QualityMetrics {
	var qm QualityMetrics
	if rawCount == 0 {
		return qm
	}

	qm.RetentionRate = float64(cleanedCount) / float64(rawCount)
	qm.OutlierRate = float64(rawCount-cleanedCount) / float64(rawCount)

	penalty := math.Min(2*qm.OutlierRate, 0.5)
	qm.CompositeScore = clamp01(qm.RetentionRate * (1 - penalty))

	qm.FieldCompletenessPct = fieldCompleteness(records)

	return qm
}

// fieldCompleteness returns the percentage of populated fields across all records.
// Zero-valued numeric fields count as missing; price counts as present when
// positive.
func fieldCompleteness(records []models.AdvertisementRecord) float64 {
	if len(records) == 0 {
		return 0
	}

	var present int
	for i := range records {
		r := &records[i]
		if r.Price.IsPositive() {
			present++
		}
		if r.Volume.IsPositive() {
			present++
		}
		if r.MinAmount.IsPositive() {
			present++
		}
		if r.MaxAmount.IsPositive() {
			present++
		}
		if r.MerchantTradeCount > 0 {
			present++
		}
		if r.MerchantCompletionRate > 0 {
			present++
		}
		if r.AvgPayTimeMinutes != nil {
			present++
		}
	}

	total := len(records) * extractedFieldCount
	return float64(present) / float64(total) * 100
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
