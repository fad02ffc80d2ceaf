package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/spendora/expense-qa/internal/observability"
)

var breakerLogger = observability.NewLogger("circuit-breaker")

// CircuitBreakerConfig tunes the breaker around generator calls.
type CircuitBreakerConfig struct {
	// MaxRequests is how many trial requests pass while half-open.
	MaxRequests uint32
	// Interval is the window over which failures are counted.
	Interval time.Duration
	// Timeout is how long the breaker stays open before a recovery trial.
	Timeout       time.Duration
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig trips on five consecutive failures or a 60%
// failure ratio over a ten second window, once at least three calls landed.
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests: 1,
	Interval:    10 * time.Second,
	Timeout:     30 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && (counts.ConsecutiveFailures >= 5 || failureRatio >= 0.6)
	},
	OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
		breakerLogger.Warn(context.Background(), "Circuit breaker state change", map[string]interface{}{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		})
	},
}

// CircuitBreakerClient guards a generator Client so a failing upstream
// sheds load fast instead of queueing timeouts.
type CircuitBreakerClient struct {
	client  Client
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient wraps client behind a named breaker.
func NewCircuitBreakerClient(client Client, name string, config CircuitBreakerConfig) *CircuitBreakerClient {
	return &CircuitBreakerClient{
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:          name,
			MaxRequests:   config.MaxRequests,
			Interval:      config.Interval,
			Timeout:       config.Timeout,
			ReadyToTrip:   config.ReadyToTrip,
			OnStateChange: config.OnStateChange,
		}),
	}
}

// Generate runs the wrapped Generate inside the breaker.
func (cb *CircuitBreakerClient) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.client.Generate(ctx, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("circuit breaker: %w", err)
	}
	return result.(string), nil
}

// State reports the breaker state.
func (cb *CircuitBreakerClient) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts reports the breaker's rolling counters.
func (cb *CircuitBreakerClient) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}
