// Package collector orchestrates periodic advertisement collection across trading
// pairs: due-check scheduling, per-pair fetch/validate/aggregate/store runs with
// bounded retry, and batch-level failure accounting.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andresjosehr/p2p-price-monitor/internal/exchange"
	"github.com/andresjosehr/p2p-price-monitor/internal/instrumentation"
	"github.com/andresjosehr/p2p-price-monitor/internal/models"
	"github.com/andresjosehr/p2p-price-monitor/internal/snapshot"
	"github.com/andresjosehr/p2p-price-monitor/internal/storage"
)

// ErrHighFailureRate indicates that more than half of the pairs in one collection
// run failed. Below that threshold individual failures are aggregated, not
// escalated.
var ErrHighFailureRate = errors.New("collection failure rate above 50%")

// sides are collected independently for every pair; a timed-out SELL fetch leaves
// already-persisted BUY snapshots valid.
var sides = []models.TradeType{models.TradeTypeBuy, models.TradeTypeSell}

// Fetcher is the marketplace client dependency.
type Fetcher interface {
	FetchAdvertisements(ctx context.Context, req exchange.SearchRequest, collectedAt time.Time) (*models.MarketBatch, error)
}

// Config tunes orchestrator behavior. Retry delays default to 30s/60s/120s with
// three attempts; tests shrink them.
type Config struct {
	MaxConcurrentPairs int
	JobTimeout         time.Duration
	RetryInitialDelay  time.Duration
	RetryMaxDelay      time.Duration
	RetryMaxAttempts   uint64
	Logger             *slog.Logger
	Metrics            *instrumentation.Metrics
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentPairs: 4,
		JobTimeout:         5 * time.Minute,
		RetryInitialDelay:  30 * time.Second,
		RetryMaxDelay:      120 * time.Second,
		RetryMaxAttempts:   3,
		Logger:             slog.Default(),
	}
}

// Outcome is the result of collecting one pair.
type Outcome struct {
	RunID            string `json:"run_id"`
	Pair             string `json:"pair"`
	Success          bool   `json:"success"`
	SnapshotsCreated int    `json:"snapshots_created"`
	Error            string `json:"error,omitempty"`
}

// BatchOutcome aggregates one collection run over multiple pairs.
type BatchOutcome struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
	Errors    []string  `json:"errors,omitempty"`
}

// Orchestrator drives collection for configured trading pairs.
type Orchestrator struct {
	fetcher Fetcher
	store   storage.Store
	config  *Config
	logger  *slog.Logger

	// Per-pair locks serialize in-flight collection for one pair so retried runs
	// cannot race the due-check. Different pairs never contend.
	pairLocks sync.Map
}

// New creates an orchestrator with the given dependencies.
func New(fetcher Fetcher, store storage.Store, config *Config) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Orchestrator{
		fetcher: fetcher,
		store:   store,
		config:  config,
		logger:  config.Logger,
	}
}

// IsDue reports whether a pair is due for collection at the given time. Pairs on a
// 1-minute interval are always due because scheduler granularity cannot go below
// one minute; a zero lastCollection means the pair has never been collected.
func IsDue(pair models.TradingPairConfig, lastCollection, now time.Time) bool {
	if pair.CollectionIntervalMinutes <= 1 {
		return true
	}
	if lastCollection.IsZero() {
		return true
	}
	return !now.Before(lastCollection.Add(pair.Interval()))
}

// CollectPair runs one full collection for a pair: both order-book sides, each
// optionally sampled per configured volume range, validated, aggregated, and
// stored. Transient failures are retried with exponential backoff; re-running is
// idempotent in that each attempt creates independent snapshots.
func (o *Orchestrator) CollectPair(ctx context.Context, pair models.TradingPairConfig) Outcome {
	outcome := Outcome{
		RunID: uuid.NewString(),
		Pair:  pair.Pair(),
	}

	if err := pair.Validate(); err != nil {
		outcome.Error = fmt.Sprintf("invalid pair config: %v", err)
		return outcome
	}

	lock := o.lockFor(pair.Pair())
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.config.JobTimeout)
	defer cancel()

	started := time.Now()
	created, err := o.collectWithRetry(ctx, pair)
	outcome.SnapshotsCreated = created

	if o.config.Metrics != nil {
		o.config.Metrics.ObserveCollection(pair.Pair(), time.Since(started), err == nil)
	}

	if err != nil {
		outcome.Error = err.Error()
		o.logger.Error("pair collection failed",
			"run_id", outcome.RunID,
			"pair", outcome.Pair,
			"snapshots_created", created,
			"error", err,
		)
		return outcome
	}

	outcome.Success = true
	o.logger.Info("pair collection completed",
		"run_id", outcome.RunID,
		"pair", outcome.Pair,
		"snapshots_created", created,
		"duration", time.Since(started),
	)
	return outcome
}

// CollectAll collects every pair, bounded by MaxConcurrentPairs. Individual pair
// failures are aggregated into the outcome; the run escalates to ErrHighFailureRate
// only when strictly more than half of the attempted pairs failed.
func (o *Orchestrator) CollectAll(ctx context.Context, pairs []models.TradingPairConfig) (BatchOutcome, error) {
	result := BatchOutcome{
		Total:    len(pairs),
		Outcomes: make([]Outcome, len(pairs)),
	}
	if len(pairs) == 0 {
		return result, nil
	}

	sem := make(chan struct{}, o.config.MaxConcurrentPairs)
	var wg sync.WaitGroup

	for i, pair := range pairs {
		wg.Add(1)
		go func(idx int, p models.TradingPairConfig) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result.Outcomes[idx] = o.CollectPair(ctx, p)
		}(i, pair)
	}
	wg.Wait()

	for _, oc := range result.Outcomes {
		if oc.Success {
			result.Succeeded++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", oc.Pair, oc.Error))
		}
	}

	if result.Failed*2 > result.Total {
		o.logger.Error("collection run failure rate above threshold",
			"total", result.Total,
			"failed", result.Failed,
		)
		return result, fmt.Errorf("%w: %d of %d pairs failed", ErrHighFailureRate, result.Failed, result.Total)
	}

	return result, nil
}

// collectWithRetry wraps collectOnce in the bounded exponential backoff policy.
// Error categories that cannot succeed on retry (pair not found, access forbidden)
// are marked permanent.
func (o *Orchestrator) collectWithRetry(ctx context.Context, pair models.TradingPairConfig) (int, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.config.RetryInitialDelay
	policy.MaxInterval = o.config.RetryMaxDelay
	policy.Multiplier = 2.0

	var created int
	operation := func() error {
		n, err := o.collectOnce(ctx, pair)
		created += n
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		o.logger.Warn("collection attempt failed, retrying",
			"pair", pair.Pair(),
			"error", err,
			"retry_delay", delay,
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, o.config.RetryMaxAttempts), ctx), notify)
	return created, err
}

// collectOnce performs a single collection attempt over both sides. It fails only
// when no snapshot could be produced at all; a side that succeeds stays persisted
// even if the other one fails.
func (o *Orchestrator) collectOnce(ctx context.Context, pair models.TradingPairConfig) (int, error) {
	created := 0
	var lastErr error

	for _, side := range sides {
		for _, amount := range sampleAmounts(pair) {
			n, err := o.collectSample(ctx, pair, side, amount)
			if err != nil {
				lastErr = err
				continue
			}
			created += n
		}
	}

	if created == 0 {
		if lastErr != nil {
			return 0, fmt.Errorf("no usable data for %s: %w", pair.Pair(), lastErr)
		}
		return 0, fmt.Errorf("no usable data for %s: %w", pair.Pair(), exchange.ErrNoData)
	}
	return created, nil
}

// collectSample fetches, validates, aggregates, and stores one (side, amount)
// sample. Low-quality batches still produce snapshots; they are flagged, not
// suppressed.
func (o *Orchestrator) collectSample(ctx context.Context, pair models.TradingPairConfig, side models.TradeType, amount *decimal.Decimal) (int, error) {
	now := time.Now().UTC()

	req := exchange.SearchRequest{
		Asset:       pair.Asset,
		Fiat:        pair.Fiat,
		TradeType:   side,
		Rows:        pair.Rows,
		TransAmount: amount,
	}
	if req.Rows <= 0 {
		req.Rows = 50
	}

	batch, err := o.fetcher.FetchAdvertisements(ctx, req, now)
	if err != nil {
		return 0, err
	}

	point := snapshot.Aggregate(batch, now)
	if point == nil {
		// Empty batch: skip storage, report as no data for this sample.
		o.logger.Warn("empty batch, skipping snapshot",
			"pair", pair.Pair(),
			"side", side,
			"code", batch.ResponseCode,
		)
		return 0, fmt.Errorf("%s %s: %w", pair.Pair(), side, exchange.ErrNoData)
	}

	if err := o.store.SaveHistoryPoint(ctx, point); err != nil {
		return 0, err
	}
	if err := o.store.SaveBatch(ctx, batch); err != nil {
		return 0, err
	}

	if o.config.Metrics != nil {
		o.config.Metrics.SetQualityScore(pair.Pair(), string(side), point.DataQualityScore)
		o.config.Metrics.IncSnapshotsCreated()
	}

	o.logger.Debug("snapshot stored",
		"pair", pair.Pair(),
		"side", side,
		"active_orders", point.ActiveOrders,
		"avg_price", point.AvgPrice,
		"quality", point.DataQualityScore,
	)
	return 1, nil
}

// sampleAmounts returns the transaction-amount filters to sample for a pair: one
// fetch per configured volume range, or a single unfiltered fetch.
func sampleAmounts(pair models.TradingPairConfig) []*decimal.Decimal {
	if len(pair.VolumeRanges) == 0 {
		if pair.DefaultSampleVolume.IsPositive() {
			v := pair.DefaultSampleVolume
			return []*decimal.Decimal{&v}
		}
		return []*decimal.Decimal{nil}
	}

	amounts := make([]*decimal.Decimal, len(pair.VolumeRanges))
	for i := range pair.VolumeRanges {
		v := pair.VolumeRanges[i]
		amounts[i] = &v
	}
	return amounts
}

// isRetryable classifies collection errors. "Pair not found" and "access
// forbidden" style failures are excluded from retry.
func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") || strings.Contains(msg, "forbidden") {
		return false
	}
	return true
}

// lockFor returns the serialization lock for a pair.
func (o *Orchestrator) lockFor(pair string) *sync.Mutex {
	lock, _ := o.pairLocks.LoadOrStore(pair, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
