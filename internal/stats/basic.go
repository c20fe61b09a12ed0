// Package stats implements the statistical analysis engine for advertisement price
// series: descriptive statistics, weighted and time-weighted averages, confidence
// intervals, percentiles, trend and volatility analysis, and quality metrics.
//
// Every sub-computation is a pure function of its input series; nothing here mutates
// input slices or reads an ambient clock. Statistics that cannot be computed for a
// given series degrade to documented defaults instead of failing the whole analysis.
package stats

import (
	"math"
	"sort"
)

// BasicStats holds descriptive statistics for one price series.
//
// StdDev and Variance use the population formula (divide by n); the confidence
// interval computation uses the sample formula instead. That asymmetry is
// intentional.
//
// Mode, Skewness and Kurtosis are nil when the series is too small or the value is
// undefined (all-unique series have no mode; skewness needs n>=3, kurtosis n>=4).
type BasicStats struct {
	Count                  int      `json:"count"`
	Mean                   float64  `json:"mean"`
	Median                 float64  `json:"median"`
	Mode                   *float64 `json:"mode"`
	StdDev                 float64  `json:"std_dev"`
	Variance               float64  `json:"variance"`
	Min                    float64  `json:"min"`
	Max                    float64  `json:"max"`
	Range                  float64  `json:"range"`
	CoefficientOfVariation float64  `json:"coefficient_of_variation"`
	Skewness               *float64 `json:"skewness"`
	Kurtosis               *float64 `json:"kurtosis"`
}

// ComputeBasicStats computes descriptive statistics over the series. An empty series
// yields a zero-valued result with Count 0; callers never need to special-case it.
func ComputeBasicStats(values []float64) BasicStats {
	n := len(values)
	if n == 0 {
		return BasicStats{}
	}

	stats := BasicStats{Count: n}

	var sum float64
	stats.Min = values[0]
	stats.Max = values[0]
	for _, v := range values {
		sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Mean = sum / float64(n)
	stats.Range = stats.Max - stats.Min
	stats.Median = Median(values)
	stats.Mode = mode(values)

	var sqSum float64
	for _, v := range values {
		d := v - stats.Mean
		sqSum += d * d
	}
	stats.Variance = sqSum / float64(n)
	stats.StdDev = math.Sqrt(stats.Variance)

	if stats.Mean != 0 {
		stats.CoefficientOfVariation = stats.StdDev / stats.Mean * 100
	}

	stats.Skewness = skewness(values, stats.Mean)
	stats.Kurtosis = kurtosis(values, stats.Mean)

	return stats
}

// Median computes the series median, averaging the two middle sorted values for
// even-length series. The input is not mutated.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := n / 2
	if n%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// mode returns the first most-frequent value in input order, or nil when every
// value is unique.
func mode(values []float64) *float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	best := 1
	var modeValue float64
	found := false
	for _, v := range values {
		if counts[v] > best {
			best = counts[v]
			modeValue = v
			found = true
		}
	}

	if !found {
		return nil
	}
	return &modeValue
}

// skewness computes the adjusted Fisher-Pearson skewness coefficient
// n/((n-1)(n-2)) * sum(((x-mean)/s)^3) using the sample standard deviation.
// Requires n >= 3 and non-zero dispersion; otherwise nil.
func skewness(values []float64, mean float64) *float64 {
	n := len(values)
	if n < 3 {
		return nil
	}

	s := SampleStdDev(values)
	if s == 0 {
		return nil
	}

	var cubeSum float64
	for _, v := range values {
		z := (v - mean) / s
		cubeSum += z * z * z
	}

	fn := float64(n)
	skew := fn / ((fn - 1) * (fn - 2)) * cubeSum
	return &skew
}

// kurtosis computes the sample excess kurtosis with the standard bias adjustment
// n(n+1)/((n-1)(n-2)(n-3)) * sum(z^4) - 3(n-1)^2/((n-2)(n-3)).
// Requires n >= 4 and non-zero dispersion; otherwise nil.
func kurtosis(values []float64, mean float64) *float64 {
	n := len(values)
	if n < 4 {
		return nil
	}

	s := SampleStdDev(values)
	if s == 0 {
		return nil
	}

	var quadSum float64
	for _, v := range values {
		z := (v - mean) / s
		quadSum += z * z * z * z
	}

	fn := float64(n)
	kurt := fn*(fn+1)/((fn-1)*(fn-2)*(fn-3))*quadSum - 3*(fn-1)*(fn-1)/((fn-2)*(fn-3))
	return &kurt
}

// SampleStdDev computes the sample standard deviation (n-1 divisor). Returns 0 for
// series shorter than 2.
func SampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sqSum float64
	for _, v := range values {
		d := v - mean
		sqSum += d * d
	}
	return math.Sqrt(sqSum / float64(n-1))
}
