// Package oquapi implements the Oqu platform API client. It is the only
// gateway between the engine and the server-side progress state: remote
// ledger reads, XP delta pushes, and cohort snapshots for the leaderboard.
package oquapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/circuitbreaker"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

var errRateLimiterTimeout = errors.New("oquapi: timeout waiting for rate limiter")

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Oqu API client.
type ClientConfig struct {
	// BaseURL is the Oqu platform API base URL.
	BaseURL string

	// APIKey authenticates the engine against the platform.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimiter controls the sustained request rate.
	RateLimiter RateLimiterConfig

	// CircuitBreaker protects the engine from a failing platform.
	CircuitBreaker circuitbreaker.Config

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:        baseURL,
		Timeout:        15 * time.Second,
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: circuitbreaker.DefaultConfig("oqu-platform"),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements progress.RemoteSource over the Oqu platform HTTP API.
// Every failure is classified into a shared.ErrRemote* error so callers
// can branch on error kind instead of transport details.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.Breaker
	mapper      *Mapper
	log         *logger.Logger
}

// NewClient creates a new Oqu API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(config.RateLimiter),
		breaker:     circuitbreaker.New(config.CircuitBreaker),
		mapper:      NewMapper(),
		log:         config.Logger.With(logger.Domain("oquapi")),
	}
}

// FetchRemoteLedger implements progress.RemoteSource.
func (c *Client) FetchRemoteLedger(ctx context.Context, userID progress.UserID) (*progress.RemoteLedger, error) {
	path := fmt.Sprintf("/api/v1/progress/%s", url.PathEscape(userID.String()))

	var dto LedgerDTO
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, err
	}
	return c.mapper.ToRemoteLedger(&dto)
}

// PushXPDelta implements progress.RemoteSource. The server deduplicates
// replayed deltas and always responds with its authoritative total.
func (c *Client) PushXPDelta(ctx context.Context, userID progress.UserID, delta progress.XP) (progress.XP, error) {
	if delta <= 0 {
		return 0, shared.ErrNonPositiveXP
	}

	path := fmt.Sprintf("/api/v1/progress/%s/delta", url.PathEscape(userID.String()))
	request := PushDeltaRequestDTO{Delta: delta.Int()}

	var dto PushDeltaResponseDTO
	if err := c.doRequest(ctx, http.MethodPost, path, request, &dto); err != nil {
		return 0, err
	}
	if dto.TotalXP < 0 {
		return 0, shared.ErrRemoteBadResponse
	}
	return progress.XP(dto.TotalXP), nil
}

// FetchCohort implements progress.RemoteSource.
func (c *Client) FetchCohort(ctx context.Context, userID progress.UserID) ([]progress.CohortMember, error) {
	path := fmt.Sprintf("/api/v1/progress/%s/cohort", url.PathEscape(userID.String()))

	var dto CohortDTO
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, err
	}
	return c.mapper.ToCohort(&dto)
}

// IsHealthy checks if the Oqu platform is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs one request through the rate limiter and the circuit
// breaker. Retries belong to the caller: the sync path already wraps the
// whole operation in its own retrier.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return c.classify(err)
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.doSingleRequest(ctx, method, path, body, result)
	})
	if err != nil {
		return c.classify(err)
	}
	return nil
}

func (c *Client) doSingleRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return shared.WrapError("remote", "Request", shared.ErrParsing, "failed to encode request body", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return shared.WrapError("remote", "Request", shared.ErrInvalidInput, "failed to build request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	c.log.Debug("oqu api request",
		logger.String("method", method), logger.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return shared.WrapError("remote", "Request", shared.ErrParsing, "failed to read response", err)
	}

	if statusErr := c.statusError(resp, respBody); statusErr != nil {
		return statusErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return shared.WrapError("remote", "Parse", shared.ErrParsing, "invalid response payload", err)
		}
	}
	return nil
}

// statusError maps HTTP status codes to classified remote errors.
func (c *Client) statusError(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return shared.ErrRemoteUnauth
	case resp.StatusCode == http.StatusTooManyRequests:
		return shared.ErrRemoteRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return shared.NewDomainError("remote", "Request", shared.ErrNotFound, "resource not found on platform")
	case resp.StatusCode >= 500:
		return shared.ErrRemoteUnavailable
	default:
		var apiErr APIErrorDTO
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return shared.WrapError("remote", "Request", shared.ErrExternalService, "platform rejected request", &apiErr)
		}
		return shared.WrapError("remote", "Request", shared.ErrExternalService,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
}

// classify normalizes transport-level failures into shared remote errors.
// Already-classified domain errors pass through unchanged.
func (c *Client) classify(err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen),
		errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return shared.WrapError("remote", "Request", shared.ErrServiceUnavailable, "circuit breaker open", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, errRateLimiterTimeout):
		return shared.WrapError("remote", "Request", shared.ErrTimeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return shared.WrapError("remote", "Request", shared.ErrTimeout, "request timed out", err)
		}
		return shared.WrapError("remote", "Dial", shared.ErrOffline, "platform unreachable", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return shared.WrapError("remote", "Dial", shared.ErrOffline, "platform unreachable", err)
	}

	return shared.WrapError("remote", "Request", shared.ErrExternalService, "request failed", err)
}
