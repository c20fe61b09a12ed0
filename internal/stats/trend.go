package stats

// Trend direction and strength labels.
const (
	TrendUpward   = "upward"
	TrendDownward = "downward"
	TrendStable   = "stable"

	StrengthStrong   = "strong"
	StrengthModerate = "moderate"
	StrengthWeak     = "weak"
	StrengthVeryWeak = "very_weak"
)

// slopeEpsilon separates a genuine trend from numeric noise around zero.
const slopeEpsilon = 0.001

// TrendAnalysis is the ordinary least-squares regression of price against sequence
// index. HasTrend is false when the series is too short (n < 3), in which case the
// numeric fields are zero and the labels empty.
type TrendAnalysis struct {
	HasTrend  bool    `json:"has_trend"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	Direction string  `json:"direction"`
	Strength  string  `json:"strength"`
}

// ComputeTrend fits price = slope*index + intercept by ordinary least squares and
// classifies the direction and a qualitative strength from R-squared.
func ComputeTrend(values []float64) TrendAnalysis {
	n := len(values)
	if n < 3 {
		return TrendAnalysis{}
	}

	fn := float64(n)
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return TrendAnalysis{}
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	// R-squared as 1 - SSres/SStot; a flat series has no explainable variance and
	// reports 0.
	meanY := sumY / fn
	var ssTot, ssRes float64
	for i, v := range values {
		predicted := slope*float64(i) + intercept
		ssRes += (v - predicted) * (v - predicted)
		ssTot += (v - meanY) * (v - meanY)
	}

	rSquared := 0.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}

	return TrendAnalysis{
		HasTrend:  true,
		Slope:     slope,
		Intercept: intercept,
		RSquared:  rSquared,
		Direction: classifyDirection(slope),
		Strength:  classifyStrength(rSquared),
	}
}

func classifyDirection(slope float64) string {
	switch {
	case slope > slopeEpsilon:
		return TrendUpward
	case slope < -slopeEpsilon:
		return TrendDownward
	default:
		return TrendStable
	}
}

func classifyStrength(rSquared float64) string {
	switch {
	case rSquared > 0.7:
		return StrengthStrong
	case rSquared > 0.4:
		return StrengthModerate
	case rSquared > 0.1:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}
