package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trade-journal-go/internal/analytics"
)

// ReportGenerator builds an optimization report for a user.
type ReportGenerator interface {
	Generate(ctx context.Context, userID string) (*analytics.Report, error)
}

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log       *zap.Logger
	reports   ReportGenerator
	timeout   time.Duration
	startedAt time.Time
}

// NewAPIHandler creates a new APIHandler. A zero timeout leaves requests
// bounded only by the client connection.
func NewAPIHandler(log *zap.Logger, reports ReportGenerator, timeout time.Duration) *APIHandler {
	return &APIHandler{log: log, reports: reports, timeout: timeout, startedAt: time.Now()}
}

// Register mounts the API routes on r.
func (h *APIHandler) Register(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/health", h.HealthHandler)
	api.GET("/strategies/optimize/:userId", h.OptimizeHandler)
}

// OptimizeHandler returns the optimization report for the user in the path.
// Every failure is reported to the caller as a bare server error.
func (h *APIHandler) OptimizeHandler(c *gin.Context) {
	userID := c.Param("userId")

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.reports.Generate(ctx, userID)
	if err != nil {
		h.log.Error("Failed to generate optimization report", zap.String("user_id", userID), zap.Error(err))
		serverError(c)
		return
	}

	c.JSON(http.StatusOK, report)
}

// serverError writes the only failure payload callers ever see.
func serverError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
}

// HealthResponse is the structure for the /api/health endpoint.
type HealthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
}

// HealthHandler reports process status.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "OK",
		Uptime:    now.Sub(h.startedAt).Seconds(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	})
}
