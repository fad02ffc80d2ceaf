package observability

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// HealthStatus is the status of one check or of the whole service.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// CheckResult is the outcome of a single health check.
type CheckResult struct {
	Status     HealthStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"duration_ms"`
}

// HealthResponse is the aggregate health report returned by /health.
type HealthResponse struct {
	Service   string                 `json:"service"`
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// HealthChecker runs registered dependency checks concurrently.
type HealthChecker struct {
	mu       sync.RWMutex
	service  string
	timeout  time.Duration
	checks   map[string]CheckFunc
	optional map[string]bool
}

// NewHealthChecker creates a checker for the named service.
func NewHealthChecker(service string) *HealthChecker {
	return &HealthChecker{
		service:  service,
		timeout:  5 * time.Second,
		checks:   make(map[string]CheckFunc),
		optional: make(map[string]bool),
	}
}

// RegisterCheck adds a required dependency check. A failing required check
// makes the service unhealthy.
func (h *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RegisterOptionalCheck adds a check whose failure only degrades the service.
func (h *HealthChecker) RegisterOptionalCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
	h.optional[name] = true
}

// RunChecks executes all registered checks and aggregates the result.
func (h *HealthChecker) RunChecks(ctx context.Context) HealthResponse {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	optional := make(map[string]bool, len(h.optional))
	for name, opt := range h.optional {
		optional[name] = opt
	}
	timeout := h.timeout
	service := h.service
	h.mu.RUnlock()

	response := HealthResponse{
		Service:   service,
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	type outcome struct {
		name   string
		result CheckResult
	}

	results := make(chan outcome, len(checks))
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := check(checkCtx)
			result := CheckResult{
				Status:     StatusHealthy,
				DurationMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Error = err.Error()
			}
			results <- outcome{name: name, result: result}
		}(name, check)
	}

	wg.Wait()
	close(results)

	for out := range results {
		response.Checks[out.name] = out.result
		if out.result.Status != StatusUnhealthy {
			continue
		}
		if optional[out.name] {
			if response.Status == StatusHealthy {
				response.Status = StatusDegraded
			}
		} else {
			response.Status = StatusUnhealthy
		}
	}

	return response
}

// Pinger is the dependency shape every connection-backed check uses.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a connection ping as a health check.
func PingCheck(pinger Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return pinger.Ping(ctx)
	}
}

// MemoryCheck reports unhealthy when heap usage exceeds maxHeapBytes.
func MemoryCheck(maxHeapBytes uint64) CheckFunc {
	return func(ctx context.Context) error {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		if stats.HeapAlloc > maxHeapBytes {
			return &memoryPressureError{current: stats.HeapAlloc, limit: maxHeapBytes}
		}
		return nil
	}
}

type memoryPressureError struct {
	current uint64
	limit   uint64
}

func (e *memoryPressureError) Error() string {
	return "heap usage above limit"
}
