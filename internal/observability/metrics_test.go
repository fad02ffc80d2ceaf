package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector_Record(t *testing.T) {
	m := NewMetricsCollector()

	m.Record("store.find", 10*time.Millisecond, nil)
	m.Record("store.find", 30*time.Millisecond, nil)
	m.Record("store.find", 20*time.Millisecond, assert.AnError)
	m.Record("llm.generate", 100*time.Millisecond, nil)

	snapshot := m.Snapshot()

	assert.Equal(t, int64(3), snapshot.Requests["store.find"])
	assert.Equal(t, int64(1), snapshot.Errors["store.find"])
	assert.Equal(t, int64(1), snapshot.Requests["llm.generate"])
	assert.Zero(t, snapshot.Errors["llm.generate"])

	latency, ok := snapshot.Latencies["store.find"]
	require.True(t, ok)
	assert.Equal(t, int64(3), latency.Count)
	assert.Equal(t, 20.0, latency.AvgMillis)
	assert.Equal(t, 30.0, latency.MaxMillis)
	assert.False(t, snapshot.Timestamp.IsZero())
}

func TestMetricsCollector_Reset(t *testing.T) {
	m := NewMetricsCollector()
	m.Record("store.find", time.Millisecond, nil)

	m.Reset()

	snapshot := m.Snapshot()
	assert.Empty(t, snapshot.Requests)
	assert.Empty(t, snapshot.Errors)
	assert.Empty(t, snapshot.Latencies)
}

func TestMetricsCollector_SnapshotIsDetached(t *testing.T) {
	m := NewMetricsCollector()
	m.Record("store.find", time.Millisecond, nil)

	snapshot := m.Snapshot()
	snapshot.Requests["store.find"] = 999

	assert.Equal(t, int64(1), m.Snapshot().Requests["store.find"])
}

func TestRecordHelpers_PrefixOperations(t *testing.T) {
	DefaultCollector().Reset()

	RecordRequestMetrics("POST /api/v1/query", time.Millisecond, nil)
	RecordLLMMetrics("generate", time.Millisecond, nil)
	RecordStoreMetrics("find", time.Millisecond, nil)
	RecordCacheMetrics("get", time.Millisecond, nil)
	RecordHistoryMetrics("record", time.Millisecond, nil)

	snapshot := DefaultCollector().Snapshot()
	assert.Contains(t, snapshot.Requests, "http.POST /api/v1/query")
	assert.Contains(t, snapshot.Requests, "llm.generate")
	assert.Contains(t, snapshot.Requests, "store.find")
	assert.Contains(t, snapshot.Requests, "cache.get")
	assert.Contains(t, snapshot.Requests, "history.record")

	DefaultCollector().Reset()
}
