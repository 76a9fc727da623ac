package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trade-journal-go/internal/models"
)

// ErrInvalidUserID is returned when a user identifier is not a 24-character hex document id.
var ErrInvalidUserID = models.ErrInvalidUserID

// riskOrder sorts risk groups by severity rather than alphabetically.
const riskOrder = "CASE risk_level WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 4 END"

// TradeStore is the read-only aggregation surface over persisted trades.
type TradeStore interface {
	// StrategyCounts groups a user's trades on or after since by strategy.
	// WinRate is left for the caller to derive.
	StrategyCounts(ctx context.Context, userID string, since time.Time) ([]models.StrategyStat, error)
	// RiskOutcomes groups all of a user's trades by risk level.
	RiskOutcomes(ctx context.Context, userID string) ([]models.RiskStat, error)
}

// GormStore implements TradeStore with SQL GROUP BY queries.
type GormStore struct {
	db *gorm.DB
}

// ensure GormStore implements the interface
var _ TradeStore = (*GormStore)(nil)

// NewGormStore wraps an open database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ValidateUserID checks the document id format used by the journal and
// returns the id in the lowercase form records are stored with.
func ValidateUserID(userID string) (string, error) {
	return models.NormalizeUserID(userID)
}

type strategyRow struct {
	StrategyID  string
	TotalTrades int64
	Wins        int64
}

// StrategyCounts returns total and winning trade counts per strategy,
// ordered by strategy id.
func (s *GormStore) StrategyCounts(ctx context.Context, userID string, since time.Time) ([]models.StrategyStat, error) {
	userID, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}

	var rows []strategyRow
	err = s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Select("strategy_id, COUNT(*) AS total_trades, SUM(CASE WHEN win THEN 1 ELSE 0 END) AS wins").
		Where("user_id = ? AND trade_date >= ?", userID, since.UTC()).
		Group("strategy_id").
		Order("strategy_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate strategy stats: %w", err)
	}

	stats := make([]models.StrategyStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, models.StrategyStat{
			StrategyID:  r.StrategyID,
			TotalTrades: r.TotalTrades,
			Wins:        r.Wins,
		})
	}
	return stats, nil
}

type riskRow struct {
	RiskLevel  string
	AvgOutcome float64
	Trades     int64
}

// RiskOutcomes returns the mean outcome and trade count per risk level,
// ordered low, medium, high.
func (s *GormStore) RiskOutcomes(ctx context.Context, userID string) ([]models.RiskStat, error) {
	userID, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}

	var rows []riskRow
	err = s.db.WithContext(ctx).
		Model(&models.Trade{}).
		Select("risk_level, AVG(outcome) AS avg_outcome, COUNT(*) AS trades").
		Where("user_id = ?", userID).
		Group("risk_level").
		Order(riskOrder).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate risk stats: %w", err)
	}

	stats := make([]models.RiskStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, models.RiskStat{
			RiskLevel:  models.RiskLevel(r.RiskLevel),
			AvgOutcome: r.AvgOutcome,
			Count:      r.Trades,
		})
	}
	return stats, nil
}
