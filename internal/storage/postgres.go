package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andresjosehr/p2p-price-monitor/internal/models"
)

// batchRecord is the relational shape of a stored market batch. Advertisements are
// kept as a JSON document; only the latest batch per (pair, side) is retained.
type batchRecord struct {
	PairKey      string    `gorm:"primaryKey;size:64"`
	Asset        string    `gorm:"size:16"`
	Fiat         string    `gorm:"size:16"`
	TradeType    string    `gorm:"size:4"`
	ResponseCode string    `gorm:"size:16"`
	QualityScore float64
	Ads          []byte    `gorm:"type:jsonb"`
	CollectedAt  time.Time
	UpdatedAt    time.Time
}

func (batchRecord) TableName() string {
	return "market_batches"
}

// PostgresStore is the GORM-backed Store implementation.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to PostgreSQL, configures the connection pool, and
// migrates the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.AutoMigrate(&models.PriceHistoryPoint{}, &batchRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// SaveHistoryPoint persists one history point.
func (s *PostgresStore) SaveHistoryPoint(ctx context.Context, point *models.PriceHistoryPoint) error {
	if point == nil {
		return NewStorageError("save_history_point", errors.New("nil history point"))
	}
	if err := s.db.WithContext(ctx).Create(point).Error; err != nil {
		return NewStorageError("save_history_point", err)
	}
	return nil
}

// RecentHistory returns points collected at or after since, oldest first.
func (s *PostgresStore) RecentHistory(ctx context.Context, asset, fiat string, side models.TradeType, since time.Time) ([]models.PriceHistoryPoint, error) {
	var points []models.PriceHistoryPoint
	err := s.db.WithContext(ctx).
		Where("asset = ? AND fiat = ? AND trade_type = ? AND collected_at >= ?", asset, fiat, side, since).
		Order("collected_at ASC").
		Find(&points).Error
	if err != nil {
		return nil, NewStorageError("recent_history", err)
	}
	return points, nil
}

// SaveBatch upserts the latest batch for the pair and side.
func (s *PostgresStore) SaveBatch(ctx context.Context, batch *models.MarketBatch) error {
	if batch == nil {
		return NewStorageError("save_batch", errors.New("nil batch"))
	}

	ads, err := json.Marshal(batch.Advertisements)
	if err != nil {
		return NewStorageError("save_batch", err)
	}

	score, _ := batch.QualityScore()
	record := batchRecord{
		PairKey:      pairKey(batch.Asset, batch.Fiat, batch.TradeType),
		Asset:        batch.Asset,
		Fiat:         batch.Fiat,
		TradeType:    string(batch.TradeType),
		ResponseCode: batch.ResponseCode,
		QualityScore: score,
		Ads:          ads,
		CollectedAt:  batch.CollectedAt,
	}

	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return NewStorageError("save_batch", err)
	}
	return nil
}

// LatestBatch returns the most recently stored batch for the pair and side.
func (s *PostgresStore) LatestBatch(ctx context.Context, asset, fiat string, side models.TradeType) (*models.MarketBatch, error) {
	var record batchRecord
	err := s.db.WithContext(ctx).
		Where("pair_key = ?", pairKey(asset, fiat, side)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewStorageError("latest_batch", err)
	}

	var ads []models.AdvertisementRecord
	if err := json.Unmarshal(record.Ads, &ads); err != nil {
		return nil, NewStorageError("latest_batch", err)
	}

	batch, err := models.NewMarketBatch(record.Asset, record.Fiat, models.TradeType(record.TradeType), ads, record.ResponseCode, record.CollectedAt)
	if err != nil {
		return nil, NewStorageError("latest_batch", err)
	}
	batch.SetQualityScore(record.QualityScore)
	return batch, nil
}

// LastCollectionTime returns the newest collection timestamp, or zero when none.
func (s *PostgresStore) LastCollectionTime(ctx context.Context, asset, fiat string, side models.TradeType) (time.Time, error) {
	var point models.PriceHistoryPoint
	err := s.db.WithContext(ctx).
		Where("asset = ? AND fiat = ? AND trade_type = ?", asset, fiat, side).
		Order("collected_at DESC").
		First(&point).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, NewStorageError("last_collection_time", err)
	}
	return point.CollectedAt, nil
}

// PurgeBefore deletes history points older than the cutoff.
func (s *PostgresStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("collected_at < ?", cutoff).
		Delete(&models.PriceHistoryPoint{})
	if result.Error != nil {
		return 0, NewStorageError("purge_before", result.Error)
	}
	return result.RowsAffected, nil
}

// HealthCheck pings the database.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
