package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestRateLimiter(perMinute int, at time.Time) *RateLimiter {
	rl := NewRateLimiter(perMinute)
	rl.now = func() time.Time { return at }
	return rl
}

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rl := newTestRateLimiter(3, time.Date(2025, 9, 17, 10, 0, 0, 0, time.UTC))

	assert.True(t, rl.Allow("ip:1.2.3.4"))
	assert.True(t, rl.Allow("ip:1.2.3.4"))
	assert.True(t, rl.Allow("ip:1.2.3.4"))
	assert.False(t, rl.Allow("ip:1.2.3.4"))
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	start := time.Date(2025, 9, 17, 10, 0, 0, 0, time.UTC)
	rl := newTestRateLimiter(3, start)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("ip:1.2.3.4"))
	}
	assert.False(t, rl.Allow("ip:1.2.3.4"))

	// 30 seconds at 3/min refills one and a half tokens.
	rl.now = func() time.Time { return start.Add(30 * time.Second) }
	assert.True(t, rl.Allow("ip:1.2.3.4"))
	assert.False(t, rl.Allow("ip:1.2.3.4"))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := newTestRateLimiter(1, time.Date(2025, 9, 17, 10, 0, 0, 0, time.UTC))

	assert.True(t, rl.Allow("ip:1.2.3.4"))
	assert.False(t, rl.Allow("ip:1.2.3.4"))
	assert.True(t, rl.Allow("ip:5.6.7.8"))
}

func TestRateLimiter_DisabledLimit(t *testing.T) {
	rl := newTestRateLimiter(0, time.Date(2025, 9, 17, 10, 0, 0, 0, time.UTC))

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("ip:1.2.3.4"))
	}
	assert.Empty(t, rl.buckets, "a disabled limiter keeps no per-client state")
}

func TestRateLimiter_PrunesStaleClients(t *testing.T) {
	start := time.Date(2025, 9, 17, 10, 0, 0, 0, time.UTC)
	rl := newTestRateLimiter(5, start)

	rl.Allow("ip:old")
	assert.Len(t, rl.buckets, 1)

	rl.now = func() time.Time { return start.Add(5 * time.Minute) }
	rl.Allow("ip:new")
	assert.Len(t, rl.buckets, 1)
	assert.Contains(t, rl.buckets, "ip:new")
}
