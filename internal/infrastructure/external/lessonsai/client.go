// Package lessonsai implements the LessonsAI generator API client.
// This package handles all communication with the external question
// generator, including rate limiting and fault tolerance.
package lessonsai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/pkg/circuitbreaker"
	"github.com/deoglory/study-engine/pkg/logger"
	"github.com/deoglory/study-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the LessonsAI API client.
type ClientConfig struct {
	// BaseURL is the generator API base URL
	BaseURL string

	// APIKey is the bearer token for authentication
	APIKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimiterConfig for API rate limiting
	RateLimiterConfig RateLimiterConfig

	// Logger for structured logging
	Logger *logger.Logger

	// Debug enables debug logging of every request
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Timeout:           30 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the LessonsAI generator API client. It implements
// practice.QuestionSource.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	log         *logger.Logger
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retrier     *retry.Retrier
	mapper      *Mapper
}

// NewClient creates a new LessonsAI API client.
func NewClient(config ClientConfig) *Client {
	log := config.Logger
	if log == nil {
		log = logger.New(logger.DefaultOptions()).With(logger.String("component", "lessonsai"))
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		log:         log,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		breaker: circuitbreaker.LessonsAPIBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		}),
		retrier: retry.LessonsAPIRetrier(),
		mapper:  NewMapper(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// QuestionsForWeek fetches the generated quiz of a week in its fixed order.
// The generator owns question content; this client never mutates it.
func (c *Client) QuestionsForWeek(ctx context.Context, weekID shared.WeekID, count int) ([]practice.Question, error) {
	path := fmt.Sprintf("/api/v1/weeks/%s/questions?count=%d", weekID.String(), count)

	var resp APIResponse[WeekQuestionsDTO]
	if err := c.doRequest(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("fetch questions: %w: %s", shared.ErrExternalService, resp.Error)
	}

	questions, err := c.mapper.QuestionsFromDTO(&resp.Data)
	if err != nil {
		return nil, fmt.Errorf("map questions: %w", err)
	}
	if len(questions) < count {
		return nil, fmt.Errorf("fetch questions: %w: got %d of %d", shared.ErrExternalService, len(questions), count)
	}
	return questions[:count], nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP MACHINERY
// ══════════════════════════════════════════════════════════════════════════════

// apiError is a non-2xx response from the generator.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("lessonsai: status %d: %s", e.StatusCode, e.Message)
}

// doRequest performs a request behind the circuit breaker with retries.
func (c *Client) doRequest(ctx context.Context, method, path string, result interface{}) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if err := c.rateLimiter.Allow(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}

			err := c.doSingleRequest(ctx, method, path, result)
			if err == nil {
				return nil
			}

			var rateLimitErr *RateLimitError
			if errors.As(err, &rateLimitErr) {
				c.rateLimiter.RecordRateLimitHit(rateLimitErr.RetryAfter)
				return retry.Retryable(err)
			}
			var apiErr *apiError
			if errors.As(err, &apiErr) {
				if apiErr.StatusCode >= 500 {
					return retry.Retryable(err)
				}
				return err
			}
			// Transport-level failures are worth another attempt.
			return retry.Retryable(err)
		})
	})
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, result interface{}) error {
	fullURL := c.config.BaseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	if c.config.Debug {
		c.log.Debug("lessonsai request",
			logger.String("method", method),
			logger.String("path", path))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := 60 * time.Second
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{
			RetryAfter: retryAfter,
			Message:    "rate limit exceeded",
		}
	}

	if resp.StatusCode >= 400 {
		var wrapped APIResponse[struct{}]
		msg := ""
		if err := json.Unmarshal(respBody, &wrapped); err == nil {
			msg = wrapped.Error
		}
		return &apiError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the generator API is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	err := c.doSingleRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	return err == nil
}

// ClientStatus describes the client's fault-tolerance state.
type ClientStatus struct {
	CircuitState string
	RateLimiter  RateLimiterStatus
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		CircuitState: c.breaker.State().String(),
		RateLimiter:  c.rateLimiter.Status(),
	}
}

// Reset clears fault-tolerance state. Useful in tests and after deploys.
func (c *Client) Reset() {
	c.breaker.Reset()
	c.rateLimiter.Reset()
}
