// Package api exposes the read-side HTTP surface: health, metrics, price history,
// and on-demand statistical analysis of the latest collected batch.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
	"github.com/andresjosehr/p2p-price-monitor/internal/outliers"
	"github.com/andresjosehr/p2p-price-monitor/internal/stats"
	"github.com/andresjosehr/p2p-price-monitor/internal/storage"
)

const defaultHistoryWindow = 24 * time.Hour

// Server serves the reporting API over a storage.Store.
type Server struct {
	store  storage.Store
	pairs  []models.TradingPairConfig
	logger *slog.Logger
	engine *gin.Engine
}

// NewServer builds the router. The pairs list backs the status endpoint.
func NewServer(store storage.Store, pairs []models.TradingPairConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		store:  store,
		pairs:  pairs,
		logger: logger,
		engine: engine,
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/pairs/:asset/:fiat/history", s.handleHistory)
	v1.GET("/pairs/:asset/:fiat/analysis", s.handleAnalysis)

	return s
}

// Handler returns the underlying http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus reports per-pair freshness: when each side was last collected.
func (s *Server) handleStatus(c *gin.Context) {
	type sideStatus struct {
		LastCollectedAt *time.Time `json:"last_collected_at"`
	}
	type pairStatus struct {
		Pair            string                `json:"pair"`
		IntervalMinutes int                   `json:"interval_minutes"`
		Sides           map[string]sideStatus `json:"sides"`
	}

	statuses := make([]pairStatus, 0, len(s.pairs))
	for _, pair := range s.pairs {
		ps := pairStatus{
			Pair:            pair.Pair(),
			IntervalMinutes: pair.CollectionIntervalMinutes,
			Sides:           make(map[string]sideStatus, 2),
		}
		for _, side := range []models.TradeType{models.TradeTypeBuy, models.TradeTypeSell} {
			last, err := s.store.LastCollectionTime(c.Request.Context(), pair.Asset, pair.Fiat, side)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			status := sideStatus{}
			if !last.IsZero() {
				status.LastCollectedAt = &last
			}
			ps.Sides[string(side)] = status
		}
		statuses = append(statuses, ps)
	}

	c.JSON(http.StatusOK, gin.H{"pairs": statuses})
}

// handleHistory returns stored history points for a pair and side within the
// requested window (hours query parameter, default 24).
func (s *Server) handleHistory(c *gin.Context) {
	asset, fiat, side, ok := s.pairParams(c)
	if !ok {
		return
	}

	window := defaultHistoryWindow
	if raw := c.Query("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	since := time.Now().UTC().Add(-window)
	points, err := s.store.RecentHistory(c.Request.Context(), asset, fiat, side, since)
	if err != nil {
		s.logger.Error("history query failed", "asset", asset, "fiat", fiat, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pair":   asset + "/" + fiat,
		"side":   side,
		"since":  since,
		"count":  len(points),
		"points": points,
	})
}

// handleAnalysis runs the statistical engine on the latest stored batch for the
// pair and side. Query parameters: side (BUY|SELL, default SELL), method
// (iqr|zscore|modified_zscore), confidence (0.90|0.95|0.99).
func (s *Server) handleAnalysis(c *gin.Context) {
	asset, fiat, side, ok := s.pairParams(c)
	if !ok {
		return
	}

	opts := stats.DefaultOptions(time.Now().UTC())
	if raw := c.Query("method"); raw != "" {
		method := outliers.Method(strings.ToLower(raw))
		if !method.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown outlier method"})
			return
		}
		opts.OutlierMethod = method
	}
	if raw := c.Query("confidence"); raw != "" {
		level, err := strconv.ParseFloat(raw, 64)
		if err != nil || level <= 0 || level >= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "confidence must be in (0, 1)"})
			return
		}
		opts.ConfidenceLevel = level
	}

	batch, err := s.store.LatestBatch(c.Request.Context(), asset, fiat, side)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no batch collected for pair"})
		return
	}
	if err != nil {
		s.logger.Error("batch lookup failed", "asset", asset, "fiat", fiat, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch"})
		return
	}

	result, err := stats.Analyze(batch.Advertisements, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pair":         asset + "/" + fiat,
		"side":         side,
		"collected_at": batch.CollectedAt,
		"analysis":     result,
	})
}

// pairParams extracts and validates the path and side parameters. On failure it
// writes the error response and returns ok=false.
func (s *Server) pairParams(c *gin.Context) (asset, fiat string, side models.TradeType, ok bool) {
	asset = strings.ToUpper(c.Param("asset"))
	fiat = strings.ToUpper(c.Param("fiat"))
	if asset == "" || fiat == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset and fiat are required"})
		return "", "", "", false
	}

	side = models.TradeTypeSell
	if raw := c.Query("side"); raw != "" {
		side = models.TradeType(strings.ToUpper(raw))
		if !side.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "side must be BUY or SELL"})
			return "", "", "", false
		}
	}
	return asset, fiat, side, true
}
