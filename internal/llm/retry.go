package llm

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig bounds the retry loop around generator calls.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  100 * time.Millisecond,
	MaxDelay:   5 * time.Second,
}

// sendWithRetry retries transient generator failures with exponential
// backoff and jitter. Permanent failures return immediately.
func (c *GeminiClient) sendWithRetry(ctx context.Context, request GeminiRequest) (*GeminiResponse, error) {
	config := DefaultRetryConfig

	var lastErr error
	for attempt := 0; ; attempt++ {
		response, err := c.sendGeminiRequest(ctx, request)
		if err == nil {
			return response, nil
		}
		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt == config.MaxRetries {
			return nil, fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
		}

		select {
		case <-time.After(backoffDelay(attempt, config)):
		case <-ctx.Done():
			return nil, fmt.Errorf("request cancelled during retry: %w", ctx.Err())
		}
	}
}

// permanentFragments name failures a retry cannot fix. Checked before the
// retryable set so an auth failure is never mistaken for a flaky call.
var permanentFragments = []string{
	"invalid API key",
	"unauthorized",
	"bad request",
	"API error 400",
	"API error 401",
	"API error 403",
}

var retryableFragments = []string{
	"rate limit exceeded",
	"internal error",
	"API error 500",
	"API error 502",
	"API error 503",
	"API error 504",
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"EOF",
}

// isRetryable classifies a generator failure by its message. Unknown
// failures are treated as permanent.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, fragment := range permanentFragments {
		if strings.Contains(msg, fragment) {
			return false
		}
	}
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// backoffDelay doubles the base delay per attempt, capped at MaxDelay, with
// a jitter factor between 0.5 and 1.5.
func backoffDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.BaseDelay << uint(attempt)
	if delay > config.MaxDelay || delay <= 0 {
		delay = config.MaxDelay
	}
	return time.Duration(float64(delay) * (0.5 + rand.Float64()))
}
