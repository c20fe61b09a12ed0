// Package outliers provides pluggable outlier detection over price series.
//
// Three interchangeable algorithms are supported: IQR fences, population Z-score,
// and the MAD-based modified Z-score. All three are deterministic, side-effect-free,
// and report indices relative to the exact input ordering even when an algorithm
// internally sorts a copy of the series.
package outliers

import (
	"fmt"
	"math"
	"sort"
)

// Method selects one of the detection algorithms.
type Method string

const (
	// MethodIQR flags values outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. Quartiles use the
	// floor-index convention on the sorted series, not interpolated percentiles.
	MethodIQR Method = "iqr"
	// MethodZScore flags values with population Z-score above 2.5.
	MethodZScore Method = "zscore"
	// MethodModifiedZScore flags values with MAD-based modified Z-score above 3.5.
	MethodModifiedZScore Method = "modified_zscore"
)

const (
	iqrMultiplier     = 1.5
	zScoreThreshold   = 2.5
	madScaleConstant  = 0.6745
	modifiedThreshold = 3.5

	// minIQRPoints is the minimum series length for meaningful quartiles.
	minIQRPoints = 4
)

// Valid reports whether the method is one of the supported algorithms.
func (m Method) Valid() bool {
	switch m {
	case MethodIQR, MethodZScore, MethodModifiedZScore:
		return true
	}
	return false
}

// Report is the result of running one detection method over a price series.
// Indices are 0-based positions into the exact input series. A re-run with
// identical input and method produces identical output.
type Report struct {
	Method  Method          `json:"method"`
	Indices []int           `json:"outlier_indices"`
	Values  map[int]float64 `json:"outlier_values"`
}

// Count returns the number of flagged values.
func (r *Report) Count() int {
	return len(r.Indices)
}

// Contains reports whether the given input index was flagged.
func (r *Report) Contains(index int) bool {
	_, ok := r.Values[index]
	return ok
}

// Detect runs the selected algorithm over the price series and returns a report.
// An unknown method is an error; an undersized series yields an empty report.
func Detect(prices []float64, method Method) (*Report, error) {
	report := &Report{
		Method:  method,
		Indices: make([]int, 0),
		Values:  make(map[int]float64),
	}

	switch method {
	case MethodIQR:
		detectIQR(prices, report)
	case MethodZScore:
		detectZScore(prices, report)
	case MethodModifiedZScore:
		detectModifiedZScore(prices, report)
	default:
		return nil, fmt.Errorf("unknown outlier detection method: %s", method)
	}

	return report, nil
}

// RemoveOutliers returns a copy of the series with the reported indices removed,
// preserving the relative order of the surviving values. The input is not mutated.
func RemoveOutliers(prices []float64, report *Report) []float64 {
	if report == nil || len(report.Indices) == 0 {
		cleaned := make([]float64, len(prices))
		copy(cleaned, prices)
		return cleaned
	}

	cleaned := make([]float64, 0, len(prices)-len(report.Indices))
	for i, p := range prices {
		if !report.Contains(i) {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}

// detectIQR applies Tukey fences with floor-index quartiles. Q1 sits at sorted index
// floor(n*0.25) and Q3 at floor(n*0.75); quartiles are deliberately not interpolated,
// unlike the percentile table.
func detectIQR(prices []float64, report *Report) {
	n := len(prices)
	if n < minIQRPoints {
		return
	}

	sorted := make([]float64, n)
	copy(sorted, prices)
	sort.Float64s(sorted)

	q1 := sorted[int(math.Floor(float64(n)*0.25))]
	q3 := sorted[int(math.Floor(float64(n)*0.75))]
	iqr := q3 - q1

	lower := q1 - iqrMultiplier*iqr
	upper := q3 + iqrMultiplier*iqr

	for i, p := range prices {
		if p < lower || p > upper {
			report.Indices = append(report.Indices, i)
			report.Values[i] = p
		}
	}
}

// detectZScore flags values more than 2.5 population standard deviations from the
// mean. Zero standard deviation means no outliers.
func detectZScore(prices []float64, report *Report) {
	n := len(prices)
	if n == 0 {
		return
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(n)

	var sqSum float64
	for _, p := range prices {
		d := p - mean
		sqSum += d * d
	}
	stdDev := math.Sqrt(sqSum / float64(n))
	if stdDev == 0 {
		return
	}

	for i, p := range prices {
		if math.Abs(p-mean)/stdDev > zScoreThreshold {
			report.Indices = append(report.Indices, i)
			report.Values[i] = p
		}
	}
}

// detectModifiedZScore flags values whose MAD-based modified Z-score exceeds 3.5.
// Zero MAD means no outliers.
func detectModifiedZScore(prices []float64, report *Report) {
	n := len(prices)
	if n == 0 {
		return
	}

	med := medianOf(prices)

	deviations := make([]float64, n)
	for i, p := range prices {
		deviations[i] = math.Abs(p - med)
	}
	mad := medianOf(deviations)
	if mad == 0 {
		return
	}

	for i, p := range prices {
		modifiedZ := madScaleConstant * math.Abs(p-med) / mad
		if modifiedZ > modifiedThreshold {
			report.Indices = append(report.Indices, i)
			report.Values[i] = p
		}
	}
}

// medianOf computes the median of a series without mutating it, averaging the two
// middle sorted values for even lengths.
func medianOf(values []float64) float64 {
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
