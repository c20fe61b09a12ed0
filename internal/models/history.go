package models

import (
	"time"
)

// PriceHistoryPoint is the derived per-snapshot summary stored for one
// (trading pair, side, collection time). Points are append-only: once created by the
// snapshot aggregator they are never mutated, and they are purged by the retention
// janitor after the configured window (default 30 days).
//
// Two quality scores are exposed deliberately: DataQualityScore comes from the batch
// validator and HeuristicQualityScore from the aggregator's secondary heuristic.
// Discrepancy between the two is expected and not a bug.
type PriceHistoryPoint struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Asset     string    `json:"asset" gorm:"size:16;index:idx_pair_side_time,priority:1"`
	Fiat      string    `json:"fiat" gorm:"size:16;index:idx_pair_side_time,priority:2"`
	TradeType TradeType `json:"trade_type" gorm:"size:4;index:idx_pair_side_time,priority:3"`

	BestPrice             float64 `json:"best_price"`
	AvgPrice              float64 `json:"avg_price"`
	WorstPrice            float64 `json:"worst_price"`
	MedianPrice           float64 `json:"median_price"`
	VolumeWeightedPrice   float64 `json:"volume_weighted_price"`
	TotalVolume           float64 `json:"total_volume"`
	ActiveOrders          int     `json:"active_orders"`
	MerchantCount         int     `json:"merchant_count"`
	ProMerchantCount      int     `json:"pro_merchant_count"`
	PriceSpread           float64 `json:"price_spread"`
	PriceSpreadPct        float64 `json:"price_spread_percentage"`
	LiquidityScore        float64 `json:"liquidity_score"`
	AvgCompletionRate     float64 `json:"avg_completion_rate"`
	AvgPayTimeMinutes     float64 `json:"avg_pay_time_minutes"`
	DataQualityScore      float64 `json:"data_quality_score"`
	HeuristicQualityScore float64 `json:"heuristic_quality_score"`

	CollectedAt time.Time `json:"collected_at" gorm:"index:idx_pair_side_time,priority:4"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName sets the table used by the GORM storage backend.
func (PriceHistoryPoint) TableName() string {
	return "price_history_points"
}

// Pair returns the trading pair identifier in ASSET/FIAT form.
func (p *PriceHistoryPoint) Pair() string {
	return p.Asset + "/" + p.Fiat
}
