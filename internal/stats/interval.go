package stats

import (
	"math"
)

// zMultipliers maps supported confidence levels to their normal-distribution
// Z-multipliers. Unrecognized levels fall back to the 95% multiplier.
var zMultipliers = map[float64]float64{
	0.90: 1.645,
	0.95: 1.960,
	0.99: 2.576,
}

const defaultZMultiplier = 1.960

// ConfidenceInterval is the mean confidence interval for a price series. The
// standard error uses the sample standard deviation (n-1 divisor), distinct from
// the population convention used by BasicStats.
type ConfidenceInterval struct {
	Level         float64 `json:"level"`
	SampleSize    int     `json:"sample_size"`
	Mean          float64 `json:"mean"`
	StandardError float64 `json:"standard_error"`
	MarginOfError float64 `json:"margin_of_error"`
	Lower         float64 `json:"lower"`
	Upper         float64 `json:"upper"`
}

// ComputeConfidenceInterval computes the confidence interval for the series mean at
// the requested level. Series shorter than 2 yield an empty interval with the
// requested level recorded.
func ComputeConfidenceInterval(values []float64, level float64) ConfidenceInterval {
	ci := ConfidenceInterval{Level: level, SampleSize: len(values)}

	n := len(values)
	if n < 2 {
		return ci
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	ci.Mean = sum / float64(n)

	z, ok := zMultipliers[level]
	if !ok {
		z = defaultZMultiplier
	}

	ci.StandardError = SampleStdDev(values) / math.Sqrt(float64(n))
	ci.MarginOfError = z * ci.StandardError
	ci.Lower = ci.Mean - ci.MarginOfError
	ci.Upper = ci.Mean + ci.MarginOfError

	return ci
}
