package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTrend(t *testing.T) {
	t.Run("perfect upward line", func(t *testing.T) {
		trend := ComputeTrend([]float64{10, 11, 12, 13, 14})

		assert.True(t, trend.HasTrend)
		assert.InDelta(t, 1.0, trend.Slope, 1e-9)
		assert.InDelta(t, 10.0, trend.Intercept, 1e-9)
		assert.InDelta(t, 1.0, trend.RSquared, 1e-9)
		assert.Equal(t, TrendUpward, trend.Direction)
		assert.Equal(t, StrengthStrong, trend.Strength)
	})

	t.Run("downward line", func(t *testing.T) {
		trend := ComputeTrend([]float64{14, 13, 12, 11, 10})
		assert.Equal(t, TrendDownward, trend.Direction)
		assert.InDelta(t, -1.0, trend.Slope, 1e-9)
	})

	t.Run("flat series is stable with zero r-squared", func(t *testing.T) {
		trend := ComputeTrend([]float64{10, 10, 10, 10})

		assert.True(t, trend.HasTrend)
		assert.Equal(t, TrendStable, trend.Direction)
		assert.Zero(t, trend.RSquared)
		assert.Equal(t, StrengthVeryWeak, trend.Strength)
	})

	t.Run("slope inside epsilon is stable", func(t *testing.T) {
		trend := ComputeTrend([]float64{10.0000, 10.0005, 10.0010})
		assert.Equal(t, TrendStable, trend.Direction)
	})

	t.Run("too short", func(t *testing.T) {
		trend := ComputeTrend([]float64{1, 2})
		assert.False(t, trend.HasTrend)
		assert.Empty(t, trend.Direction)
	})
}

func TestComputeVolatility(t *testing.T) {
	t.Run("classification tiers", func(t *testing.T) {
		tests := []struct {
			cv   float64
			want string
		}{
			{2, VolatilityVeryLow},
			{5, VolatilityLow},
			{14.9, VolatilityLow},
			{15, VolatilityModerate},
			{30, VolatilityHigh},
			{50, VolatilityVeryHigh},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, ClassifyVolatility(tt.cv), "cv=%v", tt.cv)
		}
	})

	t.Run("stable series", func(t *testing.T) {
		va := ComputeVolatility([]float64{100, 101, 100, 99, 100})

		assert.Equal(t, VolatilityVeryLow, va.Classification)
		assert.Greater(t, va.Absolute, 0.0)
		assert.Less(t, va.Relative, 5.0)
	})

	t.Run("rolling windows only when the series fills them", func(t *testing.T) {
		series := make([]float64, 12)
		for i := range series {
			series[i] = float64(100 + i)
		}

		va := ComputeVolatility(series)
		assert.Len(t, va.Rolling[5], 8)
		assert.Len(t, va.Rolling[10], 3)
		assert.NotContains(t, va.Rolling, 20)
		assert.NotContains(t, va.Rolling, 50)
	})

	t.Run("short series", func(t *testing.T) {
		va := ComputeVolatility([]float64{42})
		assert.Zero(t, va.Absolute)
		assert.Equal(t, VolatilityVeryLow, va.Classification)
		assert.Empty(t, va.Rolling)
	})
}
