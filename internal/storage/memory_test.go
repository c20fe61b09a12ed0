package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

func historyPoint(id string, collectedAt time.Time) *models.PriceHistoryPoint {
	return &models.PriceHistoryPoint{
		ID:          id,
		Asset:       "USDT",
		Fiat:        "VES",
		TradeType:   models.TradeTypeSell,
		AvgPrice:    35.1,
		CollectedAt: collectedAt,
	}
}

func TestMemoryStoreHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns points oldest first", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("b", now)))
		require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("a", now.Add(-time.Hour))))
		require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("c", now.Add(time.Hour))))

		points, err := store.RecentHistory(ctx, "USDT", "VES", models.TradeTypeSell, time.Time{})
		require.NoError(t, err)
		require.Len(t, points, 3)
		assert.Equal(t, "a", points[0].ID)
		assert.Equal(t, "c", points[2].ID)
	})

	t.Run("since filters older points", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("old", now.Add(-2*time.Hour))))
		require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("new", now)))

		points, err := store.RecentHistory(ctx, "USDT", "VES", models.TradeTypeSell, now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, "new", points[0].ID)
	})

	t.Run("sides are isolated", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("sell", now)))

		points, err := store.RecentHistory(ctx, "USDT", "VES", models.TradeTypeBuy, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("nil point rejected", func(t *testing.T) {
		store := NewMemoryStore()
		assert.Error(t, store.SaveHistoryPoint(ctx, nil))
	})
}

func TestMemoryStoreBatches(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("latest batch replaces previous", func(t *testing.T) {
		store := NewMemoryStore()

		first, err := models.NewMarketBatch("USDT", "VES", models.TradeTypeSell, nil, models.ResponseCodeSuccess, now.Add(-time.Minute))
		require.NoError(t, err)
		second, err := models.NewMarketBatch("USDT", "VES", models.TradeTypeSell, nil, models.ResponseCodeSuccess, now)
		require.NoError(t, err)

		require.NoError(t, store.SaveBatch(ctx, first))
		require.NoError(t, store.SaveBatch(ctx, second))

		got, err := store.LatestBatch(ctx, "USDT", "VES", models.TradeTypeSell)
		require.NoError(t, err)
		assert.Equal(t, now, got.CollectedAt)
	})

	t.Run("missing batch yields ErrNotFound", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.LatestBatch(ctx, "BTC", "COP", models.TradeTypeBuy)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStoreLastCollectionTime(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()

	last, err := store.LastCollectionTime(ctx, "USDT", "VES", models.TradeTypeSell)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("a", now.Add(-time.Hour))))
	require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("b", now)))

	last, err = store.LastCollectionTime(ctx, "USDT", "VES", models.TradeTypeSell)
	require.NoError(t, err)
	assert.Equal(t, now, last)
}

func TestMemoryStorePurgeBefore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()

	require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("old", now.Add(-48*time.Hour))))
	require.NoError(t, store.SaveHistoryPoint(ctx, historyPoint("keep", now)))

	removed, err := store.PurgeBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	points, err := store.RecentHistory(ctx, "USDT", "VES", models.TradeTypeSell, time.Time{})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "keep", points[0].ID)
}

func TestMemoryStoreClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.HealthCheck(ctx))
	require.NoError(t, store.Close())

	assert.Error(t, store.HealthCheck(ctx))
	assert.Error(t, store.SaveHistoryPoint(ctx, historyPoint("x", time.Now())))
}

func TestMemoryStoreContextCancellation(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.SaveHistoryPoint(ctx, historyPoint("x", time.Now())))
	_, err := store.RecentHistory(ctx, "USDT", "VES", models.TradeTypeSell, time.Time{})
	assert.Error(t, err)
}
