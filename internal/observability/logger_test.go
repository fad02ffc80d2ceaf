package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_StructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("store").WithOutput(&buf)

	ctx := WithCorrelationID(context.Background(), "corr-123")
	ctx = WithTenantID(ctx, "u1")

	logger.Info(ctx, "query executed", map[string]interface{}{
		"count": 3,
	})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, LevelInfo, entry.Level)
	assert.Equal(t, "query executed", entry.Message)
	assert.Equal(t, "store", entry.Component)
	assert.Equal(t, "corr-123", entry.CorrelationID)
	assert.Equal(t, "u1", entry.TenantID)
	assert.Equal(t, float64(3), entry.Fields["count"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("store").WithOutput(&buf)

	logger.Debug(context.Background(), "too chatty", nil)
	assert.Zero(t, buf.Len(), "debug entries are dropped at the default level")

	logger.WithLevel(LevelDebug)
	logger.Debug(context.Background(), "now visible", nil)
	assert.NotZero(t, buf.Len())
}

func TestLogger_ErrorEntryCarriesError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("store").WithOutput(&buf)

	logger.Error(context.Background(), "query failed", assert.AnError, nil)

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, LevelError, entry.Level)
	assert.Equal(t, assert.AnError.Error(), entry.Fields["error"])
}

func TestCorrelationContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetCorrelationID(ctx))
	assert.Empty(t, GetTenantID(ctx))

	ctx = WithCorrelationID(ctx, "corr-1")
	ctx = WithTenantID(ctx, "tenant-1")
	assert.Equal(t, "corr-1", GetCorrelationID(ctx))
	assert.Equal(t, "tenant-1", GetTenantID(ctx))
}
