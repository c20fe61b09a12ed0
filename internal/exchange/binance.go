// Package exchange provides the Binance P2P marketplace client used for
// advertisement collection.
//
// The client applies request rate limiting, retries transient failures with
// exponential backoff, and converts raw API payloads into typed MarketBatch values
// at a single ingest point. Error-coded responses are returned as data for the
// quality validator to judge; only transport-level failures surface as errors.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

const (
	defaultBaseURL = "https://p2p.binance.com"
	searchEndpoint = "/bapi/c2c/v2/friendly/c2c/adv/search"

	defaultRequestsPerSecond = 5
	rateLimitBurst           = 1
	requestTimeout           = 30 * time.Second

	maxRetries        = 3
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
)

// ErrNoData indicates the upstream returned nothing usable for a request. The
// orchestrator records it as a per-pair failure instead of escalating.
var ErrNoData = errors.New("no data returned by marketplace API")

// SearchRequest describes one advertisement search: a trading pair, a side, paging,
// and an optional transaction-amount filter used by volume-range sampling.
type SearchRequest struct {
	Asset       string
	Fiat        string
	TradeType   models.TradeType
	Page        int
	Rows        int
	TransAmount *decimal.Decimal
}

// Validate checks the request before it is sent upstream.
func (r *SearchRequest) Validate() error {
	if r.Asset == "" {
		return fmt.Errorf("asset is required")
	}
	if r.Fiat == "" {
		return fmt.Errorf("fiat is required")
	}
	if !r.TradeType.Valid() {
		return fmt.Errorf("invalid trade type: %s", r.TradeType)
	}
	if r.Rows <= 0 {
		return fmt.Errorf("rows must be positive, got %d", r.Rows)
	}
	return nil
}

// Client is the Binance P2P advertisement search client.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	logger      *slog.Logger

	// retryDelay is the initial backoff interval, shrunk under test.
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests against httptest servers).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit sets the request rate limit in requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.rateLimiter = rate.NewLimiter(rate.Limit(rps), rateLimitBurst) }
}

// NewClient creates a marketplace client with rate limiting and pooled transport.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), rateLimitBurst),
		baseURL:     defaultBaseURL,
		logger:      slog.Default(),
		retryDelay:  initialRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Raw API payload shapes.

type searchPayload struct {
	Asset       string `json:"asset"`
	Fiat        string `json:"fiat"`
	TradeType   string `json:"tradeType"`
	Page        int    `json:"page"`
	Rows        int    `json:"rows"`
	TransAmount string `json:"transAmount,omitempty"`
}

type searchResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    []searchRow `json:"data"`
	Success bool        `json:"success"`
}

type searchRow struct {
	Adv        advPayload        `json:"adv"`
	Advertiser advertiserPayload `json:"advertiser"`
}

type advPayload struct {
	Price                string        `json:"price"`
	SurplusAmount        string        `json:"surplusAmount"`
	MinSingleTransAmount string        `json:"minSingleTransAmount"`
	MaxSingleTransAmount string        `json:"maxSingleTransAmount"`
	TradeMethods         []tradeMethod `json:"tradeMethods"`
}

type tradeMethod struct {
	Identifier string `json:"identifier"`
}

type advertiserPayload struct {
	UserNo          string   `json:"userNo"`
	UserType        string   `json:"userType"`
	MonthOrderCount int      `json:"monthOrderCount"`
	MonthFinishRate float64  `json:"monthFinishRate"`
	AvgPayTime      *float64 `json:"avgReleaseTimeOfLatest30day"`
	UserIdentity    string   `json:"userIdentity"`
}

// FetchAdvertisements performs one advertisement search and converts the response
// into a MarketBatch. The collection timestamp is injected by the caller so retried
// fetches stay attributable to one collection attempt.
//
// Error-coded responses produce a batch carrying the code (validated downstream);
// transport failures after retries are wrapped in ErrNoData.
func (c *Client) FetchAdvertisements(ctx context.Context, req SearchRequest, collectedAt time.Time) (*models.MarketBatch, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	payload := searchPayload{
		Asset:     req.Asset,
		Fiat:      req.Fiat,
		TradeType: string(req.TradeType),
		Page:      req.Page,
		Rows:      req.Rows,
	}
	if payload.Page == 0 {
		payload.Page = 1
	}
	if req.TransAmount != nil {
		payload.TransAmount = req.TransAmount.String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search payload: %w", err)
	}

	raw, err := c.postWithRetry(ctx, c.baseURL+searchEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse search response: %v", ErrNoData, err)
	}

	ads := make([]models.AdvertisementRecord, 0, len(resp.Data))
	for _, row := range resp.Data {
		rec, err := convertRow(row, collectedAt)
		if err != nil {
			c.logger.Warn("failed to convert advertisement, skipping",
				"merchant", row.Advertiser.UserNo,
				"error", err,
			)
			continue
		}
		ads = append(ads, *rec)
	}

	batch, err := models.NewMarketBatch(req.Asset, req.Fiat, req.TradeType, ads, resp.Code, collectedAt)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched advertisements",
		"pair", batch.Pair(),
		"side", req.TradeType,
		"count", len(ads),
		"code", resp.Code,
	)

	return batch, nil
}

// convertRow builds a typed advertisement from one API row. Numeric coercion
// happens here, once, with explicit failure on bad input.
func convertRow(row searchRow, collectedAt time.Time) (*models.AdvertisementRecord, error) {
	methods := make([]string, 0, len(row.Adv.TradeMethods))
	for _, m := range row.Adv.TradeMethods {
		if m.Identifier != "" {
			methods = append(methods, m.Identifier)
		}
	}

	avgPayTime := ""
	if row.Advertiser.AvgPayTime != nil {
		avgPayTime = fmt.Sprintf("%g", *row.Advertiser.AvgPayTime)
	}

	return models.NewAdvertisementRecord(
		row.Adv.Price,
		row.Adv.SurplusAmount,
		row.Adv.MinSingleTransAmount,
		row.Adv.MaxSingleTransAmount,
		row.Advertiser.UserNo,
		row.Advertiser.MonthOrderCount,
		row.Advertiser.MonthFinishRate*100,
		row.Advertiser.UserType == "merchant",
		row.Advertiser.UserIdentity != "",
		avgPayTime,
		methods,
		collectedAt,
	)
}

// postWithRetry issues the request, retrying network failures and server errors
// with exponential backoff. Client errors (4xx) are permanent.
func (c *Client) postWithRetry(ctx context.Context, url string, body []byte) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxInterval = maxRetryDelay

	var raw []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error: HTTP %d", resp.StatusCode)
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("rate limited: HTTP %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("client error: HTTP %d", resp.StatusCode))
		}

		raw = data
		return nil
	}

	notify := func(err error, delay time.Duration) {
		c.logger.Warn("marketplace request failed, retrying",
			"error", err,
			"retry_delay", delay,
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx), notify)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
