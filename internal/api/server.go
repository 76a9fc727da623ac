package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trade-journal-go/internal/config"
)

// Server wraps the HTTP server serving the journal API.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(cfg config.Server, log *zap.Logger, reports ReportGenerator) *gin.Engine {
	if strings.EqualFold(cfg.Mode, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(requestLogger(log))
	engine.Use(gin.CustomRecovery(recoverServerError(log)))
	engine.Use(corsMiddleware())
	if cfg.RateLimit > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		engine.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}

	NewAPIHandler(log, reports, cfg.RequestTimeout).Register(engine)
	return engine
}

// NewServer creates a Server listening on the configured port.
func NewServer(cfg config.Server, log *zap.Logger, reports ReportGenerator) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: NewRouter(cfg, log, reports),
		},
		log: log,
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("Starting web server", zap.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
