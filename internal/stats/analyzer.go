package stats

import (
	"fmt"
	"time"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
	"github.com/andresjosehr/p2p-price-monitor/internal/outliers"
)

// Options configures one analysis run. The reference time is injected so
// time-weighted averages stay deterministic under test.
type Options struct {
	OutlierMethod   outliers.Method
	ConfidenceLevel float64
	Now             time.Time
}

// DefaultOptions returns the standard analysis configuration: IQR outlier removal
// and a 95% confidence interval.
func DefaultOptions(now time.Time) Options {
	return Options{
		OutlierMethod:   outliers.MethodIQR,
		ConfidenceLevel: 0.95,
		Now:             now,
	}
}

// AnalysisResult is the full output of analyzing one advertisement series. It is
// computed on demand, never persisted, and is purely a function of the input series
// and options.
type AnalysisResult struct {
	Raw                BasicStats           `json:"raw"`
	Cleaned            BasicStats           `json:"cleaned"`
	Outliers           *outliers.Report     `json:"outliers"`
	WeightedAverages   WeightedAverages     `json:"weighted_averages"`
	TimeWeighted       TimeWeightedAverages `json:"time_weighted_averages"`
	ConfidenceInterval ConfidenceInterval   `json:"confidence_interval"`
	Percentiles        map[int]float64      `json:"percentiles"`
	Trend              TrendAnalysis        `json:"trend"`
	Volatility         VolatilityAnalysis   `json:"volatility"`
	Diagnostics        DiagnosticTests      `json:"diagnostics"`
	Quality            QualityMetrics       `json:"quality"`
	AnalyzedAt         time.Time            `json:"analyzed_at"`
}

// Analyze runs the full statistical pipeline over an advertisement series:
// outlier removal, descriptive statistics on the raw and cleaned series, weighted
// and time-weighted averages, confidence interval, percentile table, trend,
// volatility, diagnostics, and quality metrics.
//
// An empty series returns a fully-populated zero result rather than an error, so
// callers never special-case absence of data. Individual statistics that cannot be
// computed for a short series degrade to their documented defaults.
func Analyze(records []models.AdvertisementRecord, opts Options) (*AnalysisResult, error) {
	if opts.OutlierMethod == "" {
		opts.OutlierMethod = outliers.MethodIQR
	}
	if opts.ConfidenceLevel == 0 {
		opts.ConfidenceLevel = 0.95
	}

	prices := make([]float64, len(records))
	for i := range records {
		prices[i] = records[i].PriceFloat()
	}

	report, err := outliers.Detect(prices, opts.OutlierMethod)
	if err != nil {
		return nil, fmt.Errorf("outlier detection failed: %w", err)
	}
	cleaned := outliers.RemoveOutliers(prices, report)

	result := &AnalysisResult{
		Raw:                ComputeBasicStats(prices),
		Cleaned:            ComputeBasicStats(cleaned),
		Outliers:           report,
		WeightedAverages:   ComputeWeightedAverages(records),
		TimeWeighted:       ComputeTimeWeightedAverages(records, opts.Now),
		ConfidenceInterval: ComputeConfidenceInterval(cleaned, opts.ConfidenceLevel),
		Percentiles:        ComputePercentiles(cleaned),
		Trend:              ComputeTrend(cleaned),
		Volatility:         ComputeVolatility(cleaned),
		Quality:            ComputeQualityMetrics(records, len(prices), len(cleaned)),
		AnalyzedAt:         opts.Now,
	}
	result.Diagnostics = ComputeDiagnostics(result.Raw, result.Cleaned)

	return result, nil
}
