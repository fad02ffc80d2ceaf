package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, expiry time.Duration) *Manager {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewManager(client, expiry)
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	sessionID, err := m.Create(ctx, "u1", "alice", "jwt-token", []string{"user"})
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)

	session, err := m.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, "jwt-token", session.Token)
	assert.Equal(t, []string{"user"}, session.Roles)
	assert.True(t, session.ExpiresAt.After(session.CreatedAt))
}

func TestManager_GetUnknownSession(t *testing.T) {
	m := newTestManager(t, time.Hour)

	_, err := m.Get(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.EqualError(t, err, "session not found")
}

func TestManager_Delete(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	sessionID, err := m.Create(ctx, "u1", "alice", "jwt-token", nil)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, sessionID))

	_, err = m.Get(ctx, sessionID)
	assert.EqualError(t, err, "session not found")
}

func TestManager_ExpiredSessionIsRejected(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	m := NewManager(client, time.Hour)
	ctx := context.Background()

	// Plant a payload whose ExpiresAt is in the past even though the redis
	// key itself has not been evicted yet.
	stale := Session{
		UserID:    "u1",
		Username:  "alice",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, sessionPrefix+"stale-id", data, time.Hour).Err())

	_, err = m.Get(ctx, "stale-id")
	require.Error(t, err)
	assert.EqualError(t, err, "session expired")

	// Reading an expired session also deletes it.
	_, err = m.Get(ctx, "stale-id")
	assert.EqualError(t, err, "session not found")
}

func TestManager_SessionIDsAreUnique(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	first, err := m.Create(ctx, "u1", "alice", "t1", nil)
	require.NoError(t, err)
	second, err := m.Create(ctx, "u1", "alice", "t2", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
