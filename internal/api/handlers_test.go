package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"trade-journal-go/internal/analytics"
	"trade-journal-go/internal/config"
	"trade-journal-go/internal/database"
	"trade-journal-go/internal/models"
	"trade-journal-go/internal/store"
)

const testUser = "64b7f0c2a1b2c3d4e5f60718"

// MockReportGenerator is a mock implementation of ReportGenerator.
type MockReportGenerator struct {
	mock.Mock
}

func (m *MockReportGenerator) Generate(ctx context.Context, userID string) (*analytics.Report, error) {
	args := m.Called(ctx, userID)
	report, _ := args.Get(0).(*analytics.Report)
	return report, args.Error(1)
}

func serve(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestOptimizeHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		gen := new(MockReportGenerator)
		gen.On("Generate", mock.Anything, testUser).Return(&analytics.Report{
			UnderperformingStrategies: []string{"A"},
			RiskAnalysis:              []models.RiskStat{{RiskLevel: models.RiskLow, AvgOutcome: 12.5, Count: 3}},
			RiskCorrelation:           0,
			Suggestions:               []string{"Refine entry criteria for strategy A", analytics.SuggestionIncreaseLow},
		}, nil)
		router := NewRouter(config.Server{}, zap.NewNop(), gen)

		rec := serve(t, router, http.MethodGet, "/api/strategies/optimize/"+testUser)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"underperformingStrategies": ["A"],
			"riskAnalysis": [{"riskLevel": "low", "avgOutcome": 12.5, "count": 3}],
			"riskCorrelation": 0,
			"suggestions": ["Refine entry criteria for strategy A", "Increase position size for low-risk trades"]
		}`, rec.Body.String())
		gen.AssertExpectations(t)
	})

	t.Run("Failure hides the cause", func(t *testing.T) {
		gen := new(MockReportGenerator)
		gen.On("Generate", mock.Anything, "bad-id").Return(nil, errors.New("invalid user id: \"bad-id\""))
		router := NewRouter(config.Server{}, zap.NewNop(), gen)

		rec := serve(t, router, http.MethodGet, "/api/strategies/optimize/bad-id")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Server error"}`, rec.Body.String())
	})

	t.Run("Panic answers with the generic error", func(t *testing.T) {
		gen := new(MockReportGenerator)
		gen.On("Generate", mock.Anything, testUser).Run(func(mock.Arguments) {
			panic("nil map write")
		})
		router := NewRouter(config.Server{}, zap.NewNop(), gen)

		rec := serve(t, router, http.MethodGet, "/api/strategies/optimize/"+testUser)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Server error"}`, rec.Body.String())
	})

	t.Run("Request timeout reaches the generator", func(t *testing.T) {
		gen := new(MockReportGenerator)
		gen.On("Generate", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		}), testUser).Return(&analytics.Report{}, nil)
		router := NewRouter(config.Server{RequestTimeout: time.Second}, zap.NewNop(), gen)

		rec := serve(t, router, http.MethodGet, "/api/strategies/optimize/"+testUser)

		assert.Equal(t, http.StatusOK, rec.Code)
		gen.AssertExpectations(t)
	})
}

func TestHealthHandler(t *testing.T) {
	router := NewRouter(config.Server{}, zap.NewNop(), new(MockReportGenerator))

	rec := serve(t, router, http.MethodGet, "/api/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	assert.GreaterOrEqual(t, body.Uptime, 0.0)
	_, err := time.Parse(time.RFC3339Nano, body.Timestamp)
	assert.NoError(t, err)
}

func TestMiddleware(t *testing.T) {
	t.Run("CORS preflight", func(t *testing.T) {
		router := NewRouter(config.Server{}, zap.NewNop(), new(MockReportGenerator))

		rec := serve(t, router, http.MethodOptions, "/api/strategies/optimize/"+testUser)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Rate limit", func(t *testing.T) {
		router := NewRouter(config.Server{RateLimit: 0.001, RateLimitBurst: 1}, zap.NewNop(), new(MockReportGenerator))

		first := serve(t, router, http.MethodGet, "/api/health")
		second := serve(t, router, http.MethodGet, "/api/health")

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
	})

	t.Run("Unknown route", func(t *testing.T) {
		router := NewRouter(config.Server{}, zap.NewNop(), new(MockReportGenerator))

		rec := serve(t, router, http.MethodGet, "/api/strategies")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// setupJournal wires the real store and optimizer over an in-memory database.
func setupJournal(t *testing.T) (*gorm.DB, http.Handler) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	optimizer := analytics.NewOptimizer(store.NewGormStore(db), zap.NewNop())
	return db, NewRouter(config.Server{}, zap.NewNop(), optimizer)
}

func addTrades(t *testing.T, db *gorm.DB, strategy string, risk models.RiskLevel, outcome float64, total, wins int) {
	for i := 0; i < total; i++ {
		require.NoError(t, db.Create(&models.Trade{
			UserID:     testUser,
			StrategyID: strategy,
			TradeDate:  time.Now().Add(-time.Duration(i+1) * 24 * time.Hour),
			RiskLevel:  risk,
			Outcome:    outcome,
			Win:        i < wins,
		}).Error)
	}
}

func TestOptimize_EndToEnd(t *testing.T) {
	t.Run("Underperforming strategy", func(t *testing.T) {
		db, router := setupJournal(t)
		addTrades(t, db, "A", models.RiskMedium, 5, 10, 3)
		addTrades(t, db, "B", models.RiskMedium, 5, 10, 7)

		rec := serve(t, router, http.MethodGet, "/api/strategies/optimize/"+testUser)

		require.Equal(t, http.StatusOK, rec.Code)
		var report analytics.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, []string{"A"}, report.UnderperformingStrategies)
		assert.Contains(t, report.Suggestions, "Refine entry criteria for strategy A")
	})

	t.Run("Risk skew", func(t *testing.T) {
		db, router := setupJournal(t)
		addTrades(t, db, "S", models.RiskHigh, -30, 2, 2)
		addTrades(t, db, "S", models.RiskLow, 50, 2, 2)
		addTrades(t, db, "S", models.RiskMedium, 10, 2, 2)

		rec := serve(t, router, http.MethodGet, "/api/strategies/optimize/"+testUser)

		require.Equal(t, http.StatusOK, rec.Code)
		var report analytics.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Empty(t, report.UnderperformingStrategies)
		require.Len(t, report.RiskAnalysis, 3)
		assert.Equal(t, models.RiskLow, report.RiskAnalysis[0].RiskLevel)
		assert.Less(t, report.RiskCorrelation, -0.3)
		assert.Equal(t, []string{analytics.SuggestionIncreaseLow, analytics.SuggestionReduceHigh}, report.Suggestions)
	})

	t.Run("Empty journal", func(t *testing.T) {
		_, router := setupJournal(t)

		rec := serve(t, router, http.MethodGet, "/api/strategies/optimize/"+testUser)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"underperformingStrategies":[],"riskAnalysis":[],"riskCorrelation":0,"suggestions":[]}`, rec.Body.String())
	})

	t.Run("Store outage", func(t *testing.T) {
		db, router := setupJournal(t)
		require.NoError(t, database.Close(db))

		rec := serve(t, router, http.MethodGet, "/api/strategies/optimize/"+testUser)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Server error"}`, rec.Body.String())
	})
}
