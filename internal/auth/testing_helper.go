package auth

import (
	"log"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/spendora/expense-qa/internal/session"
)

// NewTestManager creates a manager backed by an in-memory Redis for tests.
func NewTestManager(config Config) *Manager {
	mr, err := miniredis.Run()
	if err != nil {
		log.Fatalf("start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	if config.SessionExpiry == 0 {
		config.SessionExpiry = 7 * 24 * time.Hour
	}

	return NewManager(config, session.NewManager(client, config.SessionExpiry))
}
