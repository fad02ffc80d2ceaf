// Package auth resolves the requesting user from a JWT, an API key, or a
// session cookie, and throttles clients. The authenticated user ID is the
// authoritative tenant for every expense query.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/spendora/expense-qa/internal/session"
)

const apiKeyPrefix = "spq_"

// User is an account that owns expenses.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`
	Roles        []string `json:"roles"`
	Active       bool     `json:"active"`
}

// APIKey is a long-lived credential for non-interactive clients. The
// plaintext key is only present on the response that issued it; afterwards
// only the hash is kept.
type APIKey struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Key        string    `json:"key,omitempty"`
	HashedKey  string    `json:"-"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	Active     bool      `json:"active"`
}

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Config holds authentication settings.
type Config struct {
	JWTSecret      string
	JWTExpiry      time.Duration
	SessionExpiry  time.Duration
	RateLimit      int
	AllowAnonymous bool
}

// Manager owns users, API keys, and the rate limiter, and brokers sessions.
type Manager struct {
	config   Config
	limiter  *RateLimiter
	sessions *session.Manager

	mu      sync.RWMutex
	users   map[string]*User
	byName  map[string]*User
	apiKeys map[string]*APIKey
}

// NewManager creates an authentication manager.
func NewManager(config Config, sessions *session.Manager) *Manager {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	if config.SessionExpiry == 0 {
		config.SessionExpiry = 7 * 24 * time.Hour
	}
	if config.RateLimit == 0 {
		config.RateLimit = 100
	}
	if config.JWTSecret == "" {
		config.JWTSecret = randomHex(32)
	}

	return &Manager{
		config:   config,
		limiter:  NewRateLimiter(config.RateLimit),
		sessions: sessions,
		users:    make(map[string]*User),
		byName:   make(map[string]*User),
		apiKeys:  make(map[string]*APIKey),
	}
}

// RegisterUser creates an account with a bcrypt-hashed password.
func (m *Manager) RegisterUser(username, email, password string) (*User, error) {
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byName[username]; taken {
		return nil, fmt.Errorf("username %q is taken", username)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		Roles:        []string{"user"},
		Active:       true,
	}
	m.users[user.ID] = user
	m.byName[username] = user

	return user, nil
}

// UserByID looks up an account by its ID.
func (m *Manager) UserByID(id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", id)
	}
	return user, nil
}

// UserByName looks up an account by username.
func (m *Manager) UserByName(username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byName[username]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", username)
	}
	return user, nil
}

// CheckPassword reports whether the password matches the stored hash.
func (m *Manager) CheckPassword(user *User, password string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// IssueToken signs a JWT for the user.
func (m *Manager) IssueToken(user *User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "expense-qa",
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.JWTExpiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a JWT and confirms the account is still active.
func (m *Manager) ParseToken(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(m.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	user, err := m.UserByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, fmt.Errorf("user %q is inactive", user.Username)
	}

	return claims, nil
}

// IssueAPIKey mints a key for the user. The plaintext is returned once.
func (m *Manager) IssueAPIKey(userID, name string, ttl time.Duration) (*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return nil, fmt.Errorf("unknown user %q", userID)
	}

	plaintext := apiKeyPrefix + randomHex(32)
	now := time.Now()

	key := &APIKey{
		ID:        uuid.New().String(),
		Name:      name,
		Key:       plaintext,
		HashedKey: hashAPIKey(plaintext),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Active:    true,
	}
	m.apiKeys[key.HashedKey] = key

	return key, nil
}

// ResolveAPIKey validates a key and returns its owner.
func (m *Manager) ResolveAPIKey(raw string) (*User, *APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.apiKeys[hashAPIKey(raw)]
	if !ok {
		return nil, nil, fmt.Errorf("unknown API key")
	}
	if !key.Active {
		return nil, nil, fmt.Errorf("API key is revoked")
	}
	if time.Now().After(key.ExpiresAt) {
		return nil, nil, fmt.Errorf("API key has expired")
	}

	user, ok := m.users[key.UserID]
	if !ok || !user.Active {
		return nil, nil, fmt.Errorf("API key owner is unavailable")
	}

	key.LastUsedAt = time.Now()
	return user, key, nil
}

// RevokeAPIKey deactivates a key by its ID.
func (m *Manager) RevokeAPIKey(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range m.apiKeys {
		if key.ID == keyID {
			key.Active = false
			return nil
		}
	}
	return fmt.Errorf("unknown API key %q", keyID)
}

// APIKeysFor lists a user's keys without the plaintext.
func (m *Manager) APIKeysFor(userID string) []*APIKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []*APIKey
	for _, key := range m.apiKeys {
		if key.UserID != userID {
			continue
		}
		redacted := *key
		redacted.Key = ""
		keys = append(keys, &redacted)
	}
	return keys
}

// PruneExpired drops expired API keys. Sessions expire via their Redis TTL.
func (m *Manager) PruneExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for hash, key := range m.apiKeys {
		if now.After(key.ExpiresAt) {
			delete(m.apiKeys, hash)
		}
	}
}

// OpenSession signs a JWT and backs it with a Redis session.
func (m *Manager) OpenSession(user *User) (token, sessionID string, err error) {
	token, err = m.IssueToken(user)
	if err != nil {
		return "", "", err
	}

	sessionID, err = m.sessions.Create(context.Background(), user.ID, user.Username, token, user.Roles)
	if err != nil {
		return "", "", fmt.Errorf("open session: %w", err)
	}
	return token, sessionID, nil
}

// ResolveSession maps a session ID back to its user and slides the TTL.
func (m *Manager) ResolveSession(sessionID string) (*User, error) {
	sess, err := m.sessions.Get(context.Background(), sessionID)
	if err != nil {
		return nil, err
	}

	user, err := m.UserByID(sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("session has no user: %w", err)
	}
	if !user.Active {
		return nil, fmt.Errorf("user %q is inactive", user.Username)
	}

	// Sliding expiry; a failed refresh does not invalidate the session.
	_ = m.sessions.Refresh(context.Background(), sessionID)

	return user, nil
}

// CloseSession deletes a session.
func (m *Manager) CloseSession(sessionID string) error {
	return m.sessions.Delete(context.Background(), sessionID)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func hashAPIKey(key string) string {
	digest := sha256.Sum256([]byte(key))
	return hex.EncodeToString(digest[:])
}
