// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

// Storage driver names accepted by STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds all runtime settings. Every field has an environment binding and a
// default suitable for local development.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	PostgresDSN   string `env:"POSTGRES_DSN"`

	MarketBaseURL    string        `env:"MARKET_BASE_URL"`
	MarketRateLimit  float64       `env:"MARKET_RATE_LIMIT" envDefault:"2"`
	SampleRows       int           `env:"SAMPLE_ROWS" envDefault:"50"`
	OutlierMethod    string        `env:"OUTLIER_METHOD" envDefault:"iqr"`
	ConfidenceLevel  float64       `env:"CONFIDENCE_LEVEL" envDefault:"0.95"`
	IntervalMinutes  int           `env:"COLLECTION_INTERVAL_MINUTES" envDefault:"5"`
	RetentionDays    int           `env:"RETENTION_DAYS" envDefault:"30"`
	MaxConcurrent    int           `env:"MAX_CONCURRENT_PAIRS" envDefault:"4"`
	JobTimeout       time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`

	// Pairs is a comma-separated list of ASSET:FIAT specs, e.g. "USDT:VES,BTC:COP".
	Pairs []string `env:"PAIRS" envSeparator:"," envDefault:"USDT:VES"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORAGE_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level must be in (0, 1), got %v", c.ConfidenceLevel)
	}
	if c.IntervalMinutes < 1 {
		return fmt.Errorf("collection interval must be at least 1 minute, got %d", c.IntervalMinutes)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative, got %d", c.RetentionDays)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent pairs must be at least 1, got %d", c.MaxConcurrent)
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}
	for _, spec := range c.Pairs {
		if _, _, err := models.ParsePairSpec(spec); err != nil {
			return fmt.Errorf("invalid pair %q: %w", spec, err)
		}
	}
	return nil
}

// PairConfigs expands the configured pair specs into full configurations, applying
// the global interval and sample size.
func (c *Config) PairConfigs() ([]models.TradingPairConfig, error) {
	pairs := make([]models.TradingPairConfig, 0, len(c.Pairs))
	for _, spec := range c.Pairs {
		asset, fiat, err := models.ParsePairSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid pair %q: %w", spec, err)
		}
		pairs = append(pairs, models.TradingPairConfig{
			Asset:                     asset,
			Fiat:                      fiat,
			CollectionIntervalMinutes: c.IntervalMinutes,
			Rows:                      c.SampleRows,
		})
	}
	return pairs, nil
}

// Retention returns the history retention window. Zero disables purging.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
