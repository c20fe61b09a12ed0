package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

// MemoryStore is a thread-safe in-memory Store implementation used in tests and
// single-process development runs.
type MemoryStore struct {
	mu sync.RWMutex

	// History points per (pair, side), unordered; sorted on read.
	points map[string][]models.PriceHistoryPoint

	// Latest raw batch per (pair, side).
	batches map[string]*models.MarketBatch

	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		points:  make(map[string][]models.PriceHistoryPoint),
		batches: make(map[string]*models.MarketBatch),
	}
}

// SaveHistoryPoint stores a copy of the history point.
func (m *MemoryStore) SaveHistoryPoint(ctx context.Context, point *models.PriceHistoryPoint) error {
	if err := ctx.Err(); err != nil {
		return NewStorageError("save_history_point", err)
	}
	if point == nil {
		return NewStorageError("save_history_point", errors.New("nil history point"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewStorageError("save_history_point", errors.New("store is closed"))
	}

	key := pairKey(point.Asset, point.Fiat, point.TradeType)
	m.points[key] = append(m.points[key], *point)
	return nil
}

// RecentHistory returns points collected at or after since, oldest first.
func (m *MemoryStore) RecentHistory(ctx context.Context, asset, fiat string, side models.TradeType, since time.Time) ([]models.PriceHistoryPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewStorageError("recent_history", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	key := pairKey(asset, fiat, side)
	result := make([]models.PriceHistoryPoint, 0)
	for _, p := range m.points[key] {
		if !p.CollectedAt.Before(since) {
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CollectedAt.Before(result[j].CollectedAt)
	})
	return result, nil
}

// SaveBatch replaces the latest stored batch for the pair and side.
func (m *MemoryStore) SaveBatch(ctx context.Context, batch *models.MarketBatch) error {
	if err := ctx.Err(); err != nil {
		return NewStorageError("save_batch", err)
	}
	if batch == nil {
		return NewStorageError("save_batch", errors.New("nil batch"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewStorageError("save_batch", errors.New("store is closed"))
	}

	m.batches[pairKey(batch.Asset, batch.Fiat, batch.TradeType)] = batch
	return nil
}

// LatestBatch returns the most recently stored batch for the pair and side.
func (m *MemoryStore) LatestBatch(ctx context.Context, asset, fiat string, side models.TradeType) (*models.MarketBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewStorageError("latest_batch", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	batch, ok := m.batches[pairKey(asset, fiat, side)]
	if !ok {
		return nil, ErrNotFound
	}
	return batch, nil
}

// LastCollectionTime returns the newest stored collection timestamp, or zero.
func (m *MemoryStore) LastCollectionTime(ctx context.Context, asset, fiat string, side models.TradeType) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, NewStorageError("last_collection_time", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var last time.Time
	for _, p := range m.points[pairKey(asset, fiat, side)] {
		if p.CollectedAt.After(last) {
			last = p.CollectedAt
		}
	}
	return last, nil
}

// PurgeBefore removes history points older than the cutoff.
func (m *MemoryStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, NewStorageError("purge_before", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, points := range m.points {
		kept := points[:0]
		for _, p := range points {
			if p.CollectedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, p)
		}
		m.points[key] = kept
	}
	return removed, nil
}

// HealthCheck reports whether the store is usable.
func (m *MemoryStore) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.New("store is closed")
	}
	return nil
}

// Close marks the store closed; further writes fail.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
