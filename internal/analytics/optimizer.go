package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trade-journal-go/internal/models"
	"trade-journal-go/internal/store"
)

const (
	// LookbackWindow is how far back strategy win rates are measured.
	LookbackWindow = 30 * 24 * time.Hour
	// UnderperformingWinRate is the win-rate percentage below which a strategy is flagged.
	UnderperformingWinRate = 50.0
	// HighRiskCorrelation is the correlation below which high-risk exposure should be cut.
	HighRiskCorrelation = -0.3
)

const (
	suggestionRefineStrategy = "Refine entry criteria for strategy %s"
	SuggestionIncreaseLow    = "Increase position size for low-risk trades"
	SuggestionReduceHigh     = "Reduce exposure to high-risk trades"
)

// Report is the optimization report returned for a user.
type Report struct {
	UnderperformingStrategies []string          `json:"underperformingStrategies"`
	RiskAnalysis              []models.RiskStat `json:"riskAnalysis"`
	RiskCorrelation           float64           `json:"riskCorrelation"`
	Suggestions               []string          `json:"suggestions"`
}

// Optimizer builds optimization reports from a trade store.
type Optimizer struct {
	store  store.TradeStore
	logger *zap.Logger
	now    func() time.Time
}

// NewOptimizer creates a new Optimizer.
func NewOptimizer(s store.TradeStore, logger *zap.Logger) *Optimizer {
	return &Optimizer{store: s, logger: logger, now: time.Now}
}

// Generate builds the report for userID. Both aggregation queries run
// concurrently; if either fails no report is returned.
func (o *Optimizer) Generate(ctx context.Context, userID string) (*Report, error) {
	since := o.now().Add(-LookbackWindow)

	var (
		strategyStats []models.StrategyStat
		riskStats     []models.RiskStat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		strategyStats, err = o.store.StrategyCounts(gctx, userID, since)
		return err
	})
	g.Go(func() error {
		var err error
		riskStats, err = o.store.RiskOutcomes(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to generate report for user %s: %w", userID, err)
	}

	underperforming := Underperforming(strategyStats)
	correlation := RiskCorrelation(riskStats)

	o.logger.Debug("Report generated",
		zap.String("user_id", userID),
		zap.Int("strategies", len(strategyStats)),
		zap.Int("underperforming", len(underperforming)),
		zap.Float64("risk_correlation", correlation),
	)

	if riskStats == nil {
		riskStats = []models.RiskStat{}
	}
	return &Report{
		UnderperformingStrategies: underperforming,
		RiskAnalysis:              riskStats,
		RiskCorrelation:           correlation,
		Suggestions:               Suggestions(underperforming, riskStats, correlation),
	}, nil
}

// Underperforming returns, in input order, the ids of strategies whose win
// rate is below UnderperformingWinRate.
func Underperforming(stats []models.StrategyStat) []string {
	ids := make([]string, 0)
	for _, s := range stats {
		if models.WinRate(s.Wins, s.TotalTrades) < UnderperformingWinRate {
			ids = append(ids, s.StrategyID)
		}
	}
	return ids
}

// RiskCorrelation correlates risk severity with average outcome across the
// risk groups, in the order given.
func RiskCorrelation(stats []models.RiskStat) float64 {
	ordinals := make([]float64, len(stats))
	outcomes := make([]float64, len(stats))
	for i, s := range stats {
		ordinals[i] = float64(s.RiskLevel.Ordinal())
		outcomes[i] = s.AvgOutcome
	}
	return Pearson(ordinals, outcomes)
}

// Suggestions derives advice in a fixed order: one refinement per
// underperforming strategy, then low-risk sizing, then high-risk exposure.
func Suggestions(underperforming []string, riskStats []models.RiskStat, correlation float64) []string {
	suggestions := make([]string, 0, len(underperforming)+2)
	for _, id := range underperforming {
		suggestions = append(suggestions, fmt.Sprintf(suggestionRefineStrategy, id))
	}

	for _, r := range riskStats {
		if r.RiskLevel == models.RiskLow {
			if r.AvgOutcome > 0 {
				suggestions = append(suggestions, SuggestionIncreaseLow)
			}
			break
		}
	}

	if correlation < HighRiskCorrelation {
		suggestions = append(suggestions, SuggestionReduceHigh)
	}
	return suggestions
}
