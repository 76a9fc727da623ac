package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// RiskLevel classifies a trade's risk. Only low, medium and high are valid.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the enumerated risk levels.
func (r RiskLevel) Valid() bool {
	return r.Ordinal() > 0
}

// Ordinal maps a risk level to its severity: low=1, medium=2, high=3.
// Unknown levels map to 0.
func (r RiskLevel) Ordinal() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// Trade represents one executed trade in a user's journal.
type Trade struct {
	gorm.Model
	UserID           string    `gorm:"size:24;not null;index:idx_user_date" json:"userId"`
	StrategyID       string    `gorm:"not null" json:"strategyId"`
	TradeDate        time.Time `gorm:"not null;index:idx_user_date" json:"tradeDate"`
	RiskLevel        RiskLevel `gorm:"size:8;not null" json:"riskLevel"`
	Outcome          float64   `gorm:"not null" json:"outcome"`
	Win              bool      `gorm:"not null" json:"win"`
	PerformanceNotes string    `json:"performanceNotes,omitempty"`
}

var (
	ErrMissingUserID     = errors.New("trade: userId is required")
	ErrInvalidUserID     = errors.New("invalid user id")
	ErrMissingStrategyID = errors.New("trade: strategyId is required")
	ErrMissingTradeDate  = errors.New("trade: tradeDate is required")
)

var userIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// NormalizeUserID returns the canonical lowercase form of a 24-character hex
// document id. Hex case is not significant.
func NormalizeUserID(userID string) (string, error) {
	id := strings.ToLower(userID)
	if !userIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return id, nil
}

// Validate checks the mandatory fields, the user id format and the risk
// level enumeration.
func (t *Trade) Validate() error {
	if t.UserID == "" {
		return ErrMissingUserID
	}
	if _, err := NormalizeUserID(t.UserID); err != nil {
		return err
	}
	if t.StrategyID == "" {
		return ErrMissingStrategyID
	}
	if t.TradeDate.IsZero() {
		return ErrMissingTradeDate
	}
	if !t.RiskLevel.Valid() {
		return fmt.Errorf("trade: invalid riskLevel %q", t.RiskLevel)
	}
	return nil
}

// BeforeSave rejects invalid records, stores user ids in lowercase and trade
// dates in UTC so that lookups and range filters compare consistently.
func (t *Trade) BeforeSave(tx *gorm.DB) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.UserID = strings.ToLower(t.UserID)
	t.TradeDate = t.TradeDate.UTC()
	return nil
}

// StrategyStat is the per-strategy aggregate over a window of trades.
type StrategyStat struct {
	StrategyID  string  `json:"strategyId"`
	TotalTrades int64   `json:"totalTrades"`
	Wins        int64   `json:"wins"`
	WinRate     float64 `json:"winRate"`
}

// WinRate returns wins/total as a percentage, or 0 for an empty group.
func WinRate(wins, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

// RiskStat is the per-risk-level aggregate over all of a user's trades.
type RiskStat struct {
	RiskLevel  RiskLevel `json:"riskLevel"`
	AvgOutcome float64   `json:"avgOutcome"`
	Count      int64     `json:"count"`
}
