package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresjosehr/p2p-price-monitor/internal/exchange"
	"github.com/andresjosehr/p2p-price-monitor/internal/models"
	"github.com/andresjosehr/p2p-price-monitor/internal/storage"
)

// fakeFetcher fails pairs listed in failing and counts calls per pair.
type fakeFetcher struct {
	mu      sync.Mutex
	failing map[string]error
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		failing: make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) FetchAdvertisements(ctx context.Context, req exchange.SearchRequest, collectedAt time.Time) (*models.MarketBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pair := req.Asset + "/" + req.Fiat
	f.calls[pair]++
	if err, ok := f.failing[pair]; ok {
		return nil, err
	}

	payTime := decimal.NewFromFloat(4)
	ads := []models.AdvertisementRecord{
		{
			Price:                  decimal.NewFromFloat(35.0),
			Volume:                 decimal.NewFromInt(100),
			MinAmount:              decimal.NewFromInt(10),
			MaxAmount:              decimal.NewFromInt(1000),
			MerchantID:             "m1",
			MerchantTradeCount:     50,
			MerchantCompletionRate: 97,
			AvgPayTimeMinutes:      &payTime,
			PaymentMethods:         []string{"Bank Transfer"},
			CollectedAt:            collectedAt,
		},
		{
			Price:                  decimal.NewFromFloat(35.2),
			Volume:                 decimal.NewFromInt(200),
			MinAmount:              decimal.NewFromInt(10),
			MaxAmount:              decimal.NewFromInt(1000),
			MerchantID:             "m2",
			MerchantTradeCount:     80,
			MerchantCompletionRate: 99,
			AvgPayTimeMinutes:      &payTime,
			PaymentMethods:         []string{"Bank Transfer"},
			CollectedAt:            collectedAt,
		},
	}
	return models.NewMarketBatch(req.Asset, req.Fiat, req.TradeType, ads, models.ResponseCodeSuccess, collectedAt)
}

func testConfig() *Config {
	return &Config{
		MaxConcurrentPairs: 4,
		JobTimeout:         time.Second,
		RetryInitialDelay:  time.Millisecond,
		RetryMaxDelay:      5 * time.Millisecond,
		RetryMaxAttempts:   2,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func pairConfig(asset, fiat string, intervalMinutes int) models.TradingPairConfig {
	return models.TradingPairConfig{
		Asset:                     asset,
		Fiat:                      fiat,
		CollectionIntervalMinutes: intervalMinutes,
		Rows:                      20,
	}
}

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		interval int
		last     time.Time
		want     bool
	}{
		{"one minute interval is always due", 1, now.Add(-time.Second), true},
		{"never collected is due", 5, time.Time{}, true},
		{"interval elapsed", 5, now.Add(-6 * time.Minute), true},
		{"interval exactly elapsed", 5, now.Add(-5 * time.Minute), true},
		{"interval not elapsed", 5, now.Add(-4 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair := pairConfig("USDT", "VES", tt.interval)
			assert.Equal(t, tt.want, IsDue(pair, tt.last, now))
		})
	}
}

func TestCollectPair(t *testing.T) {
	t.Run("stores one snapshot per side", func(t *testing.T) {
		fetcher := newFakeFetcher()
		store := storage.NewMemoryStore()
		orch := New(fetcher, store, testConfig())

		outcome := orch.CollectPair(context.Background(), pairConfig("USDT", "VES", 5))
		require.True(t, outcome.Success, "error: %s", outcome.Error)
		assert.Equal(t, 2, outcome.SnapshotsCreated)
		assert.NotEmpty(t, outcome.RunID)

		for _, side := range []models.TradeType{models.TradeTypeBuy, models.TradeTypeSell} {
			points, err := store.RecentHistory(context.Background(), "USDT", "VES", side, time.Time{})
			require.NoError(t, err)
			assert.Len(t, points, 1, "side %s", side)

			batch, err := store.LatestBatch(context.Background(), "USDT", "VES", side)
			require.NoError(t, err)
			score, ok := batch.QualityScore()
			assert.True(t, ok)
			assert.Greater(t, score, 0.0)
		}
	})

	t.Run("invalid pair config fails without fetching", func(t *testing.T) {
		fetcher := newFakeFetcher()
		orch := New(fetcher, storage.NewMemoryStore(), testConfig())

		outcome := orch.CollectPair(context.Background(), models.TradingPairConfig{Asset: "USDT"})
		assert.False(t, outcome.Success)
		assert.Empty(t, fetcher.calls)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		fetcher := newFakeFetcher()
		fetcher.failing["USDT/VES"] = errors.New("connection reset")
		orch := New(fetcher, storage.NewMemoryStore(), testConfig())

		outcome := orch.CollectPair(context.Background(), pairConfig("USDT", "VES", 5))
		assert.False(t, outcome.Success)
		// 1 initial attempt + 2 retries, 2 sides each.
		assert.Equal(t, 6, fetcher.calls["USDT/VES"])
	})

	t.Run("permanent failures do not retry", func(t *testing.T) {
		fetcher := newFakeFetcher()
		fetcher.failing["USDT/VES"] = errors.New("pair not found")
		orch := New(fetcher, storage.NewMemoryStore(), testConfig())

		outcome := orch.CollectPair(context.Background(), pairConfig("USDT", "VES", 5))
		assert.False(t, outcome.Success)
		assert.Equal(t, 2, fetcher.calls["USDT/VES"])
	})
}

func TestCollectAll(t *testing.T) {
	makePairs := func(n int) []models.TradingPairConfig {
		pairs := make([]models.TradingPairConfig, 0, n)
		fiats := []string{"VES", "COP", "ARS", "BRL", "PEN", "CLP", "MXN", "BOB", "UYU", "PYG"}
		for i := 0; i < n; i++ {
			pairs = append(pairs, pairConfig("USDT", fiats[i], 5))
		}
		return pairs
	}

	t.Run("all pairs succeed", func(t *testing.T) {
		fetcher := newFakeFetcher()
		orch := New(fetcher, storage.NewMemoryStore(), testConfig())

		outcome, err := orch.CollectAll(context.Background(), makePairs(4))
		require.NoError(t, err)
		assert.Equal(t, 4, outcome.Total)
		assert.Equal(t, 4, outcome.Succeeded)
		assert.Zero(t, outcome.Failed)
	})

	t.Run("half failing does not escalate", func(t *testing.T) {
		fetcher := newFakeFetcher()
		for _, fiat := range []string{"VES", "COP", "ARS", "BRL", "PEN"} {
			fetcher.failing["USDT/"+fiat] = errors.New("pair not found")
		}
		orch := New(fetcher, storage.NewMemoryStore(), testConfig())

		// Exactly 5 of 10 fail: the threshold is strictly more than half.
		outcome, err := orch.CollectAll(context.Background(), makePairs(10))
		require.NoError(t, err)
		assert.Equal(t, 5, outcome.Failed)
		assert.Len(t, outcome.Errors, 5)
	})

	t.Run("majority failing escalates", func(t *testing.T) {
		fetcher := newFakeFetcher()
		for _, fiat := range []string{"VES", "COP", "ARS", "BRL", "PEN", "CLP"} {
			fetcher.failing["USDT/"+fiat] = errors.New("pair not found")
		}
		orch := New(fetcher, storage.NewMemoryStore(), testConfig())

		outcome, err := orch.CollectAll(context.Background(), makePairs(10))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrHighFailureRate)
		assert.Equal(t, 6, outcome.Failed)
		assert.Equal(t, 4, outcome.Succeeded)
	})

	t.Run("no pairs", func(t *testing.T) {
		orch := New(newFakeFetcher(), storage.NewMemoryStore(), testConfig())
		outcome, err := orch.CollectAll(context.Background(), nil)
		require.NoError(t, err)
		assert.Zero(t, outcome.Total)
	})
}
