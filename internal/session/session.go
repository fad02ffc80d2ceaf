// Package session stores login sessions in Redis, keyed by a random ID
// handed to the browser as a cookie.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	sessionPrefix = "session:"
	sessionIDLen  = 32
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// Session is the state stored per login.
type Session struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager reads and writes sessions in Redis.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewManager creates a session manager with the given lifetime.
func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	return &Manager{client: client, ttl: ttl}
}

// Create stores a session and returns its ID.
func (m *Manager) Create(ctx context.Context, userID, username, token string, roles []string) (string, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}

	now := time.Now()
	payload, err := json.Marshal(Session{
		UserID:    userID,
		Username:  username,
		Roles:     roles,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	if err := m.client.Set(ctx, key(sessionID), payload, m.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sessionID, nil
}

// Get loads a session. An expired payload is deleted and reported as such
// even if Redis has not evicted the key yet.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	raw, err := m.client.Get(ctx, key(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		_ = m.Delete(ctx, sessionID)
		return nil, ErrExpired
	}
	return &sess, nil
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.client.Del(ctx, key(sessionID)).Err()
}

// Refresh restarts the Redis TTL for a session.
func (m *Manager) Refresh(ctx context.Context, sessionID string) error {
	return m.client.Expire(ctx, key(sessionID), m.ttl).Err()
}

func key(sessionID string) string {
	return sessionPrefix + sessionID
}

func newSessionID() (string, error) {
	buf := make([]byte, sessionIDLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
