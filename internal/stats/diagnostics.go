package stats

import (
	"math"
)

// Normality verdicts.
const (
	NormalityLikely   = "likely_normal"
	NormalityPossible = "possibly_normal"
	NormalityUnlikely = "non_normal"
)

// Consistency verdicts.
const (
	ConsistencyHigh     = "high"
	ConsistencyModerate = "moderate"
	ConsistencyLow      = "low"
)

// InsufficientData marks a verdict that could not be computed for the series.
const InsufficientData = "insufficient_data"

// NormalityResult is a simple normality heuristic combining skewness and excess
// kurtosis into a 0-1 score. It is not a formal test; it only flags series whose
// shape is obviously far from normal.
type NormalityResult struct {
	Score   float64 `json:"score"`
	Verdict string  `json:"verdict"`
}

// DiagnosticTests bundles the statistical sanity checks run over an analyzed series.
// OutlierImpactPct is the percentage shift of the mean between the raw and cleaned
// series; ConsistencyVerdict classifies dispersion by coefficient of variation.
type DiagnosticTests struct {
	Normality          NormalityResult `json:"normality"`
	OutlierImpactPct   float64         `json:"outlier_impact_pct"`
	ConsistencyVerdict string          `json:"consistency_verdict"`
}

// ComputeDiagnostics runs the normality heuristic, outlier-impact, and consistency
// checks for the analyzed series.
func ComputeDiagnostics(raw, cleaned BasicStats) DiagnosticTests {
	return DiagnosticTests{
		Normality:          normalityHeuristic(cleaned),
		OutlierImpactPct:   outlierImpact(raw.Mean, cleaned.Mean),
		ConsistencyVerdict: classifyConsistency(cleaned),
	}
}

// normalityHeuristic scores shape from skewness and excess kurtosis: each penalty
// saturates (|skew|/2 and |kurtosis|/4 capped at 1) and the score is one minus
// their average.
func normalityHeuristic(s BasicStats) NormalityResult {
	if s.Skewness == nil || s.Kurtosis == nil {
		return NormalityResult{Verdict: InsufficientData}
	}

	skewPenalty := math.Min(math.Abs(*s.Skewness)/2, 1)
	kurtPenalty := math.Min(math.Abs(*s.Kurtosis)/4, 1)
	score := 1 - (skewPenalty+kurtPenalty)/2

	verdict := NormalityUnlikely
	switch {
	case score > 0.8:
		verdict = NormalityLikely
	case score > 0.5:
		verdict = NormalityPossible
	}

	return NormalityResult{Score: score, Verdict: verdict}
}

// outlierImpact returns the absolute percentage shift of the mean caused by outlier
// removal. A zero raw mean yields 0.
func outlierImpact(rawMean, cleanedMean float64) float64 {
	if rawMean == 0 {
		return 0
	}
	return math.Abs(cleanedMean-rawMean) / math.Abs(rawMean) * 100
}

func classifyConsistency(s BasicStats) string {
	if s.Count == 0 {
		return InsufficientData
	}
	cv := s.CoefficientOfVariation
	switch {
	case cv < 10:
		return ConsistencyHigh
	case cv < 30:
		return ConsistencyModerate
	default:
		return ConsistencyLow
	}
}
