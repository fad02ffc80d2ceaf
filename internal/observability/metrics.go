package observability

import (
	"sync"
	"time"
)

// MetricsCollector accumulates in-process counters and latency summaries.
// It backs the /metrics endpoint and is safe for concurrent use.
type MetricsCollector struct {
	mu sync.RWMutex

	requestCount map[string]int64
	errorCount   map[string]int64
	durations    map[string]*durationSummary
}

type durationSummary struct {
	count int64
	total time.Duration
	max   time.Duration
}

// MetricsSnapshot is a point-in-time export of the collected metrics.
type MetricsSnapshot struct {
	Requests  map[string]int64           `json:"requests"`
	Errors    map[string]int64           `json:"errors"`
	Latencies map[string]LatencySnapshot `json:"latencies"`
	Timestamp time.Time                  `json:"timestamp"`
}

// LatencySnapshot summarizes the latency of one operation.
type LatencySnapshot struct {
	Count     int64   `json:"count"`
	AvgMillis float64 `json:"avg_ms"`
	MaxMillis float64 `json:"max_ms"`
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		durations:    make(map[string]*durationSummary),
	}
}

// Record registers one completed operation.
func (m *MetricsCollector) Record(operation string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestCount[operation]++
	if err != nil {
		m.errorCount[operation]++
	}

	summary, ok := m.durations[operation]
	if !ok {
		summary = &durationSummary{}
		m.durations[operation] = summary
	}
	summary.count++
	summary.total += duration
	if duration > summary.max {
		summary.max = duration
	}
}

// Snapshot exports the current metrics state.
func (m *MetricsCollector) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		Requests:  make(map[string]int64, len(m.requestCount)),
		Errors:    make(map[string]int64, len(m.errorCount)),
		Latencies: make(map[string]LatencySnapshot, len(m.durations)),
		Timestamp: time.Now().UTC(),
	}

	for operation, count := range m.requestCount {
		snapshot.Requests[operation] = count
	}
	for operation, count := range m.errorCount {
		snapshot.Errors[operation] = count
	}
	for operation, summary := range m.durations {
		latency := LatencySnapshot{
			Count:     summary.count,
			MaxMillis: float64(summary.max.Microseconds()) / 1000.0,
		}
		if summary.count > 0 {
			latency.AvgMillis = float64(summary.total.Microseconds()) / float64(summary.count) / 1000.0
		}
		snapshot.Latencies[operation] = latency
	}

	return snapshot
}

// Reset clears all collected metrics.
func (m *MetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestCount = make(map[string]int64)
	m.errorCount = make(map[string]int64)
	m.durations = make(map[string]*durationSummary)
}

// defaultCollector backs the package-level recording helpers.
var defaultCollector = NewMetricsCollector()

// DefaultCollector returns the process-wide collector.
func DefaultCollector() *MetricsCollector {
	return defaultCollector
}

// RecordRequestMetrics registers one handled HTTP request.
func RecordRequestMetrics(route string, duration time.Duration, err error) {
	defaultCollector.Record("http."+route, duration, err)
}

// RecordLLMMetrics registers one text-generator round-trip.
func RecordLLMMetrics(operation string, duration time.Duration, err error) {
	defaultCollector.Record("llm."+operation, duration, err)
}

// RecordStoreMetrics registers one expense-store operation.
func RecordStoreMetrics(operation string, duration time.Duration, err error) {
	defaultCollector.Record("store."+operation, duration, err)
}

// RecordCacheMetrics registers one cache operation.
func RecordCacheMetrics(operation string, duration time.Duration, err error) {
	defaultCollector.Record("cache."+operation, duration, err)
}

// RecordHistoryMetrics registers one translation-history operation.
func RecordHistoryMetrics(operation string, duration time.Duration, err error) {
	defaultCollector.Record("history."+operation, duration, err)
}
