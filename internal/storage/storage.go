// Package storage defines the persistence interfaces for price history and batch
// records, with in-memory and PostgreSQL implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence contract the collection orchestrator and reporting API
// depend on. History points are append-only; batches are kept as the latest raw
// sample per (pair, side) plus an audit trail of quality outcomes.
type Store interface {
	// SaveHistoryPoint persists one derived price-history point.
	SaveHistoryPoint(ctx context.Context, point *models.PriceHistoryPoint) error

	// RecentHistory returns history points for a pair and side collected at or
	// after since, ordered oldest first.
	RecentHistory(ctx context.Context, asset, fiat string, side models.TradeType, since time.Time) ([]models.PriceHistoryPoint, error)

	// SaveBatch persists the most recent raw batch for a pair and side, replacing
	// any previous one.
	SaveBatch(ctx context.Context, batch *models.MarketBatch) error

	// LatestBatch returns the most recently stored batch for a pair and side.
	// Returns ErrNotFound when no batch has been collected yet.
	LatestBatch(ctx context.Context, asset, fiat string, side models.TradeType) (*models.MarketBatch, error)

	// LastCollectionTime returns the collection timestamp of the newest history
	// point for a pair and side, or the zero time when none exists.
	LastCollectionTime(ctx context.Context, asset, fiat string, side models.TradeType) (time.Time, error)

	// PurgeBefore deletes history points collected before the cutoff and returns
	// the number removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// StorageError wraps a backend failure with operation context.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a StorageError for the given operation.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// pairKey builds the map/query key for a (pair, side) combination.
func pairKey(asset, fiat string, side models.TradeType) string {
	return asset + "/" + fiat + "/" + string(side)
}
