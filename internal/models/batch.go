package models

import (
	"fmt"
	"time"
)

// ResponseCodeSuccess is the upstream marketplace API success code. Any other code
// is treated as a validation failure, not an exception.
const ResponseCodeSuccess = "000000"

// MarketBatch is one marketplace API response for a trading pair and side at a point
// in time. The advertisement order is the API-returned best-price-first order and is
// preserved exactly; outlier indices reported downstream refer to this ordering.
//
// A batch is immutable once validated. The quality score is computed once by the
// data quality validator and cached here.
type MarketBatch struct {
	Asset          string                `json:"asset"`
	Fiat           string                `json:"fiat"`
	TradeType      TradeType             `json:"trade_type"`
	Advertisements []AdvertisementRecord `json:"advertisements"`
	ResponseCode   string                `json:"response_code"`
	CollectedAt    time.Time             `json:"collected_at"`

	qualityScore    float64
	qualityScoreSet bool
}

// NewMarketBatch creates a market batch for the given pair and side.
func NewMarketBatch(asset, fiat string, tradeType TradeType, ads []AdvertisementRecord, responseCode string, collectedAt time.Time) (*MarketBatch, error) {
	if !tradeType.Valid() {
		return nil, fmt.Errorf("invalid trade type: %s", tradeType)
	}
	return &MarketBatch{
		Asset:          asset,
		Fiat:           fiat,
		TradeType:      tradeType,
		Advertisements: ads,
		ResponseCode:   responseCode,
		CollectedAt:    collectedAt,
	}, nil
}

// Pair returns the trading pair identifier in ASSET/FIAT form.
func (b *MarketBatch) Pair() string {
	return b.Asset + "/" + b.Fiat
}

// IsSuccess reports whether the upstream response carried the success code.
func (b *MarketBatch) IsSuccess() bool {
	return b.ResponseCode == ResponseCodeSuccess
}

// IsEmpty reports whether the batch carries no advertisements.
func (b *MarketBatch) IsEmpty() bool {
	return len(b.Advertisements) == 0
}

// Prices extracts the price series in original advertisement order.
func (b *MarketBatch) Prices() []float64 {
	prices := make([]float64, len(b.Advertisements))
	for i, ad := range b.Advertisements {
		prices[i] = ad.PriceFloat()
	}
	return prices
}

// SetQualityScore caches the validator-computed quality score. The first call wins;
// subsequent calls are ignored so a validated batch stays immutable.
func (b *MarketBatch) SetQualityScore(score float64) {
	if b.qualityScoreSet {
		return
	}
	b.qualityScore = score
	b.qualityScoreSet = true
}

// QualityScore returns the cached quality score and whether it has been computed.
func (b *MarketBatch) QualityScore() (float64, bool) {
	return b.qualityScore, b.qualityScoreSet
}
