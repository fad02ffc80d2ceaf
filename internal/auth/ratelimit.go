package auth

import (
	"sync"
	"time"
)

// staleAfter is how long a client bucket may sit idle before it is pruned.
// An idle bucket refills to full anyway, so dropping it loses nothing.
const staleAfter = 2 * time.Minute

// RateLimiter throttles clients with a per-client token bucket. Each client
// gets a burst of perMinute tokens refilled continuously at perMinute per
// minute. A non-positive limit disables throttling.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	buckets   map[string]*tokenBucket
	now       func() time.Time
}

type tokenBucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		buckets:   make(map[string]*tokenBucket),
		now:       time.Now,
	}
}

// Allow reports whether the client may make a request now, consuming one
// token when it may.
func (rl *RateLimiter) Allow(clientID string) bool {
	if rl.perMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	burst := float64(rl.perMinute)

	bucket, ok := rl.buckets[clientID]
	if !ok {
		rl.pruneStale(now)
		bucket = &tokenBucket{tokens: burst, last: now}
		rl.buckets[clientID] = bucket
	} else {
		bucket.tokens += now.Sub(bucket.last).Minutes() * burst
		if bucket.tokens > burst {
			bucket.tokens = burst
		}
		bucket.last = now
	}

	if bucket.tokens < 1 {
		return false
	}

	bucket.tokens--
	return true
}

// pruneStale drops buckets idle long enough to have refilled completely.
// Called with the lock held, only when a new client shows up, so steady
// traffic never pays for a full sweep.
func (rl *RateLimiter) pruneStale(now time.Time) {
	for clientID, bucket := range rl.buckets {
		if now.Sub(bucket.last) > staleAfter {
			delete(rl.buckets, clientID)
		}
	}
}
