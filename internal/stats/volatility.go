package stats

// Volatility classification tiers by coefficient of variation.
const (
	VolatilityVeryLow  = "very_low"
	VolatilityLow      = "low"
	VolatilityModerate = "moderate"
	VolatilityHigh     = "high"
	VolatilityVeryHigh = "very_high"
)

// rollingWindowSizes are the sliding-window lengths computed wherever the series is
// long enough.
var rollingWindowSizes = []int{5, 10, 20, 50}

// VolatilityAnalysis describes price dispersion for one series. Absolute volatility
// is the sample standard deviation; Relative expresses it as a percentage of the
// mean. Rolling maps window size to the per-window sample standard deviations and
// only contains windows the series can fill.
type VolatilityAnalysis struct {
	Absolute       float64           `json:"absolute"`
	Relative       float64           `json:"relative"`
	Classification string            `json:"classification"`
	Rolling        map[int][]float64 `json:"rolling"`
}

// ComputeVolatility computes absolute, relative, and rolling-window volatility over
// the series plus a five-tier classification by coefficient of variation.
func ComputeVolatility(values []float64) VolatilityAnalysis {
	va := VolatilityAnalysis{
		Rolling:        make(map[int][]float64),
		Classification: VolatilityVeryLow,
	}
	if len(values) < 2 {
		return va
	}

	va.Absolute = SampleStdDev(values)

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean != 0 {
		va.Relative = va.Absolute / mean * 100
	}
	va.Classification = ClassifyVolatility(va.Relative)

	for _, window := range rollingWindowSizes {
		if len(values) < window {
			continue
		}
		series := make([]float64, 0, len(values)-window+1)
		for i := 0; i+window <= len(values); i++ {
			series = append(series, SampleStdDev(values[i:i+window]))
		}
		va.Rolling[window] = series
	}

	return va
}

// ClassifyVolatility maps a coefficient of variation (percentage) to one of the
// five volatility tiers.
func ClassifyVolatility(cv float64) string {
	switch {
	case cv < 5:
		return VolatilityVeryLow
	case cv < 15:
		return VolatilityLow
	case cv < 30:
		return VolatilityModerate
	case cv < 50:
		return VolatilityHigh
	default:
		return VolatilityVeryHigh
	}
}
