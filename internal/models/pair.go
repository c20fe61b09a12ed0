package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradingPairConfig holds the per-pair collection settings consumed by the
// orchestrator. The configuration itself is owned by an external admin surface;
// the core only reads it.
type TradingPairConfig struct {
	Asset                     string            `json:"asset"`
	Fiat                      string            `json:"fiat"`
	CollectionIntervalMinutes int               `json:"collection_interval_minutes"`
	Rows                      int               `json:"rows"`
	VolumeRanges              []decimal.Decimal `json:"volume_ranges,omitempty"`
	DefaultSampleVolume       decimal.Decimal   `json:"default_sample_volume"`
}

// ParsePairSpec parses an "ASSET:FIAT" or "ASSET/FIAT" pair specification.
func ParsePairSpec(spec string) (asset, fiat string, err error) {
	sep := ":"
	if strings.Contains(spec, "/") {
		sep = "/"
	}
	parts := strings.Split(spec, sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid pair spec %q, expected ASSET:FIAT", spec)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

// Pair returns the trading pair identifier in ASSET/FIAT form.
func (c *TradingPairConfig) Pair() string {
	return c.Asset + "/" + c.Fiat
}

// Interval returns the configured collection interval as a duration.
func (c *TradingPairConfig) Interval() time.Duration {
	return time.Duration(c.CollectionIntervalMinutes) * time.Minute
}

// Validate checks the configuration for values the orchestrator cannot work with.
func (c *TradingPairConfig) Validate() error {
	if c.Asset == "" {
		return fmt.Errorf("asset is required")
	}
	if c.Fiat == "" {
		return fmt.Errorf("fiat is required")
	}
	if c.CollectionIntervalMinutes < 1 {
		return fmt.Errorf("collection interval must be at least 1 minute, got %d", c.CollectionIntervalMinutes)
	}
	if c.Rows < 0 {
		return fmt.Errorf("rows must be non-negative, got %d", c.Rows)
	}
	return nil
}
