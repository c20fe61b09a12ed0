package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
	"github.com/andresjosehr/p2p-price-monitor/internal/storage"
)

// schedulerTick is the due-check granularity. Per-pair intervals are expressed in
// whole minutes, so checking more often than this buys nothing.
const schedulerTick = time.Minute

// Scheduler runs the orchestrator on a fixed tick, collecting only the pairs that
// are due, and purges history past the retention window once a day.
type Scheduler struct {
	orchestrator *Orchestrator
	store        storage.Store
	pairs        []models.TradingPairConfig
	retention    time.Duration
	logger       *slog.Logger
}

// NewScheduler creates a scheduler for the given pairs. A non-positive retention
// disables the purge loop.
func NewScheduler(orchestrator *Orchestrator, store storage.Store, pairs []models.TradingPairConfig, retention time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		orchestrator: orchestrator,
		store:        store,
		pairs:        pairs,
		retention:    retention,
		logger:       logger,
	}
}

// Run blocks until the context is canceled. The first collection pass happens
// immediately; subsequent passes follow the tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"pairs", len(s.pairs),
		"tick", schedulerTick,
		"retention", s.retention,
	)

	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	var purgeTicker *time.Ticker
	var purgeC <-chan time.Time
	if s.retention > 0 {
		purgeTicker = time.NewTicker(24 * time.Hour)
		defer purgeTicker.Stop()
		purgeC = purgeTicker.C
	}

	s.runDue(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		case <-purgeC:
			s.purge(ctx)
		}
	}
}

// runDue collects every pair whose interval has elapsed since its last stored
// snapshot.
func (s *Scheduler) runDue(ctx context.Context) {
	now := time.Now().UTC()

	due := make([]models.TradingPairConfig, 0, len(s.pairs))
	for _, pair := range s.pairs {
		last, err := s.store.LastCollectionTime(ctx, pair.Asset, pair.Fiat, models.TradeTypeBuy)
		if err != nil {
			s.logger.Warn("due check failed, collecting anyway",
				"pair", pair.Pair(),
				"error", err,
			)
			last = time.Time{}
		}
		if IsDue(pair, last, now) {
			due = append(due, pair)
		}
	}
	if len(due) == 0 {
		return
	}

	outcome, err := s.orchestrator.CollectAll(ctx, due)
	if err != nil {
		s.logger.Error("collection run degraded",
			"due", len(due),
			"failed", outcome.Failed,
			"error", err,
		)
		return
	}
	s.logger.Info("collection run completed",
		"due", len(due),
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
	)
}

// purge deletes history points older than the retention window.
func (s *Scheduler) purge(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention)
	removed, err := s.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention purge failed", "cutoff", cutoff, "error", err)
		return
	}
	s.logger.Info("retention purge completed", "cutoff", cutoff, "removed", removed)
}
