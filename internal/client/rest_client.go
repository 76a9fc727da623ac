package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trade-journal-go/internal/analytics"
	"trade-journal-go/internal/api"
	"trade-journal-go/internal/config"
)

// ErrServer is returned when the API answers with its generic server error.
var ErrServer = errors.New("server error")

// RestClientInterface defines the interface for the journal API client.
type RestClientInterface interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
	Optimize(ctx context.Context, userID string) (*analytics.Report, error)
}

// RestClient is a client for the journal HTTP API.
type RestClient struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

type errorResponse struct {
	Error string `json:"error"`
}

// NewRestClient creates a new journal API client.
func NewRestClient(cfg config.Client, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &RestClient{
		client:     client,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: maxRetries,
		retryWait:  time.Second,
	}
}

// Health fetches the server's health status.
func (c *RestClient) Health(ctx context.Context) (*api.HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/health", func() *resty.Request {
		return c.client.R().SetResult(&api.HealthResponse{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get health: %w", err)
	}
	return resp.Result().(*api.HealthResponse), nil
}

// Optimize fetches the optimization report for userID.
func (c *RestClient) Optimize(ctx context.Context, userID string) (*analytics.Report, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/strategies/optimize/{userId}", func() *resty.Request {
		return c.client.R().
			SetPathParam("userId", userID).
			SetResult(&analytics.Report{}).
			SetError(&errorResponse{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get optimization report: %w", err)
	}
	return resp.Result().(*analytics.Report), nil
}

// doRequest executes a request with rate limiting and retries on network
// errors, 429 and 5xx answers. The API's generic server error is final: the
// server answers it for every failure, including malformed ids, so a retry
// would fail the same way. newReq is called once per attempt.
func (c *RestClient) doRequest(ctx context.Context, method, url string, newReq func() *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = newReq().SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= http.StatusInternalServerError {
				shouldRetry = !isGenericServerError(resp)
			}
			err = statusError(resp)
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		} else {
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, err
		}

		if i == c.maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			// Exponential backoff: retryWait, 2x, 4x...
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.retryWait
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, err)
}

// genericServerError is the body the API answers every internal failure with.
const genericServerError = "Server error"

func isGenericServerError(resp *resty.Response) bool {
	e, ok := resp.Error().(*errorResponse)
	return ok && e.Error == genericServerError
}

func statusError(resp *resty.Response) error {
	if e, ok := resp.Error().(*errorResponse); ok && e.Error != "" {
		if resp.StatusCode() >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d: %s", ErrServer, resp.StatusCode(), e.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode(), e.Error)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode())
	}
	return fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
}
