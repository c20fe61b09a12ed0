package stats

import (
	"math"
	"sort"
)

// percentileLevels is the fixed percentile table reported by the analysis engine.
var percentileLevels = []int{5, 10, 25, 50, 75, 90, 95}

// Percentile computes the pth percentile of the series using linear interpolation
// between sorted neighbors. This is deliberately NOT the floor-index convention the
// IQR outlier detector uses for its quartiles; the two conventions differ by design.
// The input is not mutated.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := p / 100 * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}

	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// ComputePercentiles returns the standard percentile table {5,10,25,50,75,90,95}
// for the series. An empty series yields an empty map.
func ComputePercentiles(values []float64) map[int]float64 {
	table := make(map[int]float64, len(percentileLevels))
	if len(values) == 0 {
		return table
	}

	for _, level := range percentileLevels {
		table[level] = Percentile(values, float64(level))
	}
	return table
}
