// Package quality validates raw market batches against structural and statistical
// sanity rules and produces a compounded 0-1 quality score.
//
// Validation is a pure function over its input: it never mutates the batch and has
// no side effects. Errors mark data that must not be trusted; warnings degrade the
// quality score but do not block processing.
package quality

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

// Price sanity bounds for a single advertisement.
var (
	minReasonablePrice = decimal.NewFromFloat(0.01)
	maxReasonablePrice = decimal.NewFromInt(1_000_000)
)

const (
	// lowValidityRatio and fairValidityRatio split the valid-advertisement ratio
	// into quality penalty bands.
	lowValidityRatio  = 0.5
	fairValidityRatio = 0.8

	// maxPriceVariation is the (max-min)/min spread beyond which a batch is flagged
	// as inconsistent.
	maxPriceVariation = 0.5

	// meanDeviationLimit flags individual prices deviating more than 20% from the
	// batch mean; the batch is only warned when more than outlierShareLimit of the
	// sample deviates.
	meanDeviationLimit = 0.2
	outlierShareLimit  = 0.1

	// minQualityScore is the floor below which a batch is marked invalid outright.
	minQualityScore = 0.3
)

// ValidationResult carries the outcome of validating one market batch.
type ValidationResult struct {
	IsValid      bool     `json:"is_valid"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
	QualityScore float64  `json:"quality_score"`
}

// Validate checks a market batch against structural and statistical sanity rules.
// The quality score starts at 1.0 and is multiplied down by each failed rule;
// structural failure short-circuits the remaining checks. A compounded score below
// 0.3 marks the batch invalid even when no individual check was fatal.
func Validate(batch *models.MarketBatch) ValidationResult {
	result := ValidationResult{
		IsValid:      true,
		Errors:       make([]string, 0),
		Warnings:     make([]string, 0),
		QualityScore: 1.0,
	}

	if !checkStructure(batch, &result) {
		finalize(&result)
		return result
	}

	checkAdvertisements(batch, &result)
	checkPriceConsistency(batch, &result)
	checkOrdering(batch, &result)

	finalize(&result)
	return result
}

// checkStructure verifies the response code and a non-empty advertisement list.
// Returns false when the batch fails structurally, halting further checks.
func checkStructure(batch *models.MarketBatch, result *ValidationResult) bool {
	if !batch.IsSuccess() {
		result.IsValid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("API response code %q is not success", batch.ResponseCode))
		result.QualityScore *= 0.5
		return false
	}

	if batch.IsEmpty() {
		result.IsValid = false
		result.Errors = append(result.Errors, "batch contains no advertisements")
		result.QualityScore *= 0.5
		return false
	}

	return true
}

// checkAdvertisements validates each advertisement and applies the aggregate
// validity-ratio penalty.
func checkAdvertisements(batch *models.MarketBatch, result *ValidationResult) {
	total := len(batch.Advertisements)
	valid := 0

	for i := range batch.Advertisements {
		ad := &batch.Advertisements[i]
		adValid := true

		if ad.Price.LessThan(minReasonablePrice) || ad.Price.GreaterThan(maxReasonablePrice) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("ad %d: price %s outside [%s, %s]", i, ad.Price, minReasonablePrice, maxReasonablePrice))
			adValid = false
		}

		if ad.Volume.LessThan(decimal.Zero) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("ad %d: negative surplus volume %s", i, ad.Volume))
			adValid = false
		} else if ad.Volume.IsZero() {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("ad %d: zero surplus volume", i))
		}

		if ad.MerchantID == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("ad %d: missing merchant identifier", i))
			adValid = false
		}

		if len(ad.PaymentMethods) == 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("ad %d: no payment methods listed", i))
		}

		if adValid {
			valid++
		}
	}

	if len(result.Errors) > 0 {
		result.IsValid = false
	}

	ratio := float64(valid) / float64(total)
	switch {
	case ratio < lowValidityRatio:
		result.QualityScore *= 0.5
	case ratio < fairValidityRatio:
		result.QualityScore *= 0.8
	}
}

// checkPriceConsistency flags wide spreads and a large share of prices far from the
// batch mean. Both are warnings, not errors.
func checkPriceConsistency(batch *models.MarketBatch, result *ValidationResult) {
	prices := batch.Prices()
	if len(prices) < 2 {
		return
	}

	min, max := prices[0], prices[0]
	var sum float64
	for _, p := range prices {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
		sum += p
	}

	if min > 0 {
		variation := (max - min) / min
		if variation > maxPriceVariation {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("price variation %.1f%% exceeds %.0f%%", variation*100, maxPriceVariation*100))
			result.QualityScore *= 0.8
		}
	}

	mean := sum / float64(len(prices))
	if mean > 0 {
		deviants := 0
		for _, p := range prices {
			if p/mean > 1+meanDeviationLimit || p/mean < 1-meanDeviationLimit {
				deviants++
			}
		}
		if float64(deviants) > float64(len(prices))*outlierShareLimit {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%d of %d prices deviate more than %.0f%% from the mean", deviants, len(prices), meanDeviationLimit*100))
		}
	}
}

// checkOrdering verifies the API-returned price order is monotonic in either
// direction. Informational only; ties are allowed.
func checkOrdering(batch *models.MarketBatch, result *ValidationResult) {
	prices := batch.Prices()
	if len(prices) < 3 {
		return
	}

	ascending, descending := true, true
	for i := 1; i < len(prices); i++ {
		if prices[i] < prices[i-1] {
			ascending = false
		}
		if prices[i] > prices[i-1] {
			descending = false
		}
	}

	if !ascending && !descending {
		result.Warnings = append(result.Warnings, "advertisements are not in a monotonic price order")
	}
}

// finalize clamps the score and applies the minimum-quality rule.
func finalize(result *ValidationResult) {
	if result.QualityScore < 0 {
		result.QualityScore = 0
	}
	if result.QualityScore > 1 {
		result.QualityScore = 1
	}

	if result.QualityScore < minQualityScore {
		result.IsValid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("quality score too low: %.2f", result.QualityScore))
	}
}
