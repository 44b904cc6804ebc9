// Package backend implements the client of the Primary Backend REST API,
// the system of record for users, subjects, stats and Telegram linkage.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/auniver/quiz-bridge/internal/domain/shared"
	"github.com/auniver/quiz-bridge/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBaseURL is the production Primary Backend API.
const DefaultBaseURL = "https://auniverquizes.pythonanywhere.com/api"

// ClientConfig contains configuration for the Primary Backend client.
type ClientConfig struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// Timeout bounds every request.
	Timeout time.Duration

	// FailureThreshold opens the circuit after this many consecutive upstream failures.
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open.
	OpenTimeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:          baseURL,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotLinked means the Primary Backend knows no user for the Telegram id.
	ErrNotLinked = errors.New("backend: telegram account is not linked")

	// ErrLinkRejected means the Primary Backend refused the credentials.
	ErrLinkRejected = errors.New("backend: link rejected")
)

// StatusError is a non-200 response from the Primary Backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap classifies every status error as an upstream failure.
func (e *StatusError) Unwrap() error {
	return shared.ErrUpstream
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Primary Backend API client. Requests are never retried.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a new Primary Backend client.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	logger := config.Logger.With("component", "backend_client")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
		breaker: circuitbreaker.New("primary-backend",
			circuitbreaker.WithFailureThreshold(config.FailureThreshold),
			circuitbreaker.WithTimeout(config.OpenTimeout),
			circuitbreaker.WithIsFailure(isTransportFailure),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			}),
		),
	}
}

// Available reports whether requests currently reach the Primary Backend.
// It reads the circuit state and sends nothing.
func (c *Client) Available(context.Context) error {
	if c.breaker.State() == circuitbreaker.StateOpen {
		return shared.NewDomainError("backend", "Available", shared.ErrServiceUnavailable, "circuit open")
	}
	return nil
}

// GetTelegramUser returns the user linked to telegramID.
// Any non-200 status or success=false yields ErrNotLinked.
func (c *Client) GetTelegramUser(ctx context.Context, telegramID int64) (*UserDTO, error) {
	var resp TelegramUserResponse
	err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/telegram/user/%d", telegramID), nil, &resp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			return nil, ErrNotLinked
		}
		return nil, err
	}

	if !resp.Success || resp.User == nil {
		return nil, ErrNotLinked
	}

	return resp.User, nil
}

// LinkAccount asks the Primary Backend to verify credentials and link the Telegram account.
func (c *Client) LinkAccount(ctx context.Context, req LinkRequest) (*LinkResponse, error) {
	var resp LinkResponse
	if err := c.doRequest(ctx, http.MethodPost, "/telegram/link", req, &resp); err != nil {
		return nil, err
	}

	if !resp.Success || resp.User == nil {
		return &resp, ErrLinkRejected
	}

	return &resp, nil
}

// ListSubjects returns all subjects ordered as the Primary Backend returns them.
func (c *Client) ListSubjects(ctx context.Context) ([]SubjectDTO, error) {
	var resp subjectsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/subjects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Subjects, nil
}

// GetUserStats returns aggregated test stats for a Primary Backend user id.
func (c *Client) GetUserStats(ctx context.Context, userID int64) (*StatsDTO, error) {
	var resp statsResponse
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/user/%d/stats", userID), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Stats == nil {
		return &StatsDTO{}, nil
	}
	return resp.Stats, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSPORT
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.doSingleRequest(ctx, method, path, body, result)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return shared.WrapError("backend", method+" "+path, shared.ErrServiceUnavailable, "circuit open", err)
	}
	return err
}

func (c *Client) doSingleRequest(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("backend request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %v", shared.ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", shared.ErrUpstream, err)
	}

	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), 200),
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: decode %s: %v", shared.ErrUpstream, path, err)
		}
	}

	return nil
}

// isTransportFailure counts network errors and 5xx responses against the circuit.
// 4xx answers mean the backend is up.
func isTransportFailure(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
