// Package models provides data structures and validation for P2P marketplace data.
// This package contains the core data models for marketplace monitoring including
// advertisements, market batches, price history points, and trading pair configuration.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeType identifies which side of the order book a batch was collected from.
type TradeType string

const (
	// TradeTypeBuy is the buy side of the P2P order book.
	TradeTypeBuy TradeType = "BUY"
	// TradeTypeSell is the sell side of the P2P order book.
	TradeTypeSell TradeType = "SELL"
)

// Valid reports whether the trade type is one of the supported sides.
func (t TradeType) Valid() bool {
	return t == TradeTypeBuy || t == TradeTypeSell
}

// AdvertisementRecord represents one merchant advertisement in the P2P order book
// at a point in time. All monetary fields are parsed into decimals exactly once at
// ingest; downstream computation never re-parses strings.
type AdvertisementRecord struct {
	Price                  decimal.Decimal  `json:"price"`
	Volume                 decimal.Decimal  `json:"volume"`
	MinAmount              decimal.Decimal  `json:"min_amount"`
	MaxAmount              decimal.Decimal  `json:"max_amount"`
	MerchantID             string           `json:"merchant_id"`
	MerchantTradeCount     int              `json:"merchant_trade_count"`
	MerchantCompletionRate float64          `json:"merchant_completion_rate"`
	IsProMerchant          bool             `json:"is_pro_merchant"`
	IsKYCVerified          bool             `json:"is_kyc_verified"`
	AvgPayTimeMinutes      *decimal.Decimal `json:"avg_pay_time_minutes,omitempty"`
	PaymentMethods         []string         `json:"payment_methods"`
	CollectedAt            time.Time        `json:"collected_at"`
}

// ParseError represents a failure to convert raw upstream fields into a typed record.
// It carries the field name so callers can log which part of the payload was bad.
type ParseError struct {
	Field   string // Field is the name of the field that failed parsing
	Message string // Message describes why parsing failed
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for field %s: %s", e.Field, e.Message)
}

// NewAdvertisementRecord builds a typed advertisement from raw upstream string values.
// This is the single ingest point for numeric coercion: non-numeric input fails
// explicitly with a ParseError instead of being silently cast.
//
// avgPayTime may be empty, in which case AvgPayTimeMinutes is left nil.
func NewAdvertisementRecord(
	price, volume, minAmount, maxAmount string,
	merchantID string,
	tradeCount int,
	completionRate float64,
	proMerchant, kycVerified bool,
	avgPayTime string,
	paymentMethods []string,
	collectedAt time.Time,
) (*AdvertisementRecord, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, &ParseError{Field: "price", Message: fmt.Sprintf("invalid price format: %v", err)}
	}

	v, err := decimal.NewFromString(volume)
	if err != nil {
		return nil, &ParseError{Field: "volume", Message: fmt.Sprintf("invalid volume format: %v", err)}
	}

	minA, err := decimal.NewFromString(minAmount)
	if err != nil {
		return nil, &ParseError{Field: "min_amount", Message: fmt.Sprintf("invalid min amount format: %v", err)}
	}

	maxA, err := decimal.NewFromString(maxAmount)
	if err != nil {
		return nil, &ParseError{Field: "max_amount", Message: fmt.Sprintf("invalid max amount format: %v", err)}
	}

	rec := &AdvertisementRecord{
		Price:                  p,
		Volume:                 v,
		MinAmount:              minA,
		MaxAmount:              maxA,
		MerchantID:             merchantID,
		MerchantTradeCount:     tradeCount,
		MerchantCompletionRate: completionRate,
		IsProMerchant:          proMerchant,
		IsKYCVerified:          kycVerified,
		PaymentMethods:         paymentMethods,
		CollectedAt:            collectedAt,
	}

	if avgPayTime != "" {
		pt, err := decimal.NewFromString(avgPayTime)
		if err != nil {
			return nil, &ParseError{Field: "avg_pay_time_minutes", Message: fmt.Sprintf("invalid pay time format: %v", err)}
		}
		rec.AvgPayTimeMinutes = &pt
	}

	return rec, nil
}

// Validate performs structural validation on the advertisement. It checks that the
// price is strictly positive, volume and trade count are non-negative, and the
// completion rate falls in [0, 100]. Records failing validation are excluded from
// statistical computation upstream.
func (a *AdvertisementRecord) Validate() error {
	if a.Price.LessThanOrEqual(decimal.Zero) {
		return &ParseError{Field: "price", Message: "price must be greater than 0"}
	}
	if a.Volume.LessThan(decimal.Zero) {
		return &ParseError{Field: "volume", Message: "volume must be greater than or equal to 0"}
	}
	if a.MerchantTradeCount < 0 {
		return &ParseError{Field: "merchant_trade_count", Message: "trade count must be greater than or equal to 0"}
	}
	if a.MerchantCompletionRate < 0 || a.MerchantCompletionRate > 100 {
		return &ParseError{Field: "merchant_completion_rate", Message: "completion rate must be between 0 and 100"}
	}
	if a.CollectedAt.IsZero() {
		return &ParseError{Field: "collected_at", Message: "collection timestamp cannot be zero"}
	}
	return nil
}

// PriceFloat returns the advertisement price as a float64 for statistical work.
func (a *AdvertisementRecord) PriceFloat() float64 {
	return a.Price.InexactFloat64()
}

// VolumeFloat returns the surplus volume as a float64 for statistical work.
func (a *AdvertisementRecord) VolumeFloat() float64 {
	return a.Volume.InexactFloat64()
}

// AmountRange returns the width of the trade limit window (max - min) as a float64.
func (a *AdvertisementRecord) AmountRange() float64 {
	return a.MaxAmount.Sub(a.MinAmount).InexactFloat64()
}

// IsComplete reports whether the optional merchant trust fields are populated.
// Incomplete records still participate in analysis but lower quality heuristics.
func (a *AdvertisementRecord) IsComplete() bool {
	return a.MerchantID != "" &&
		a.MerchantCompletionRate > 0 &&
		a.AvgPayTimeMinutes != nil &&
		len(a.PaymentMethods) > 0
}

// String returns a human-readable representation of the advertisement.
func (a *AdvertisementRecord) String() string {
	return fmt.Sprintf("Ad{Merchant: %s, Price: %s, Volume: %s, Limits: %s-%s}",
		a.MerchantID, a.Price, a.Volume, a.MinAmount, a.MaxAmount)
}
