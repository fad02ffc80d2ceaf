package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var errNoCredentials = fmt.Errorf("no credentials presented")

// Middleware authenticates the request via JWT, API key, or session cookie,
// in that order, and enforces the per-client rate limit. With anonymous
// access enabled, unauthenticated requests still reach the query endpoints
// and scope themselves with the userId from the request body.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if bypassesAuth(path) {
			c.Next()
			return
		}

		if !m.limiter.Allow(clientID(c)) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		user, err := m.resolveUser(c)
		if err != nil {
			if m.config.AllowAnonymous && allowsAnonymous(path) {
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Set("roles", user.Roles)

		c.Next()
	}
}

// resolveUser tries each credential the request may carry.
func (m *Manager) resolveUser(c *gin.Context) (*User, error) {
	if raw, ok := bearerToken(c); ok {
		claims, err := m.ParseToken(raw)
		if err != nil {
			return nil, err
		}
		return m.UserByID(claims.UserID)
	}

	if key := requestAPIKey(c); key != "" {
		user, _, err := m.ResolveAPIKey(key)
		return user, err
	}

	if sessionID, err := c.Cookie("session_id"); err == nil {
		return m.ResolveSession(sessionID)
	}

	return nil, errNoCredentials
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func requestAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}

// bypassesAuth lists paths that never require credentials.
func bypassesAuth(path string) bool {
	open := []string{
		"/health",
		"/metrics",
		"/api/v1/health",
		"/api/v1/auth/register",
		"/api/v1/auth/login",
		"/api/v1/auth/status",
	}

	for _, prefix := range open {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// allowsAnonymous lists endpoints reachable without credentials when
// anonymous access is configured.
func allowsAnonymous(path string) bool {
	anonymous := []string{
		"/api/v1/query",
		"/api/v1/expenses",
	}

	for _, endpoint := range anonymous {
		if path == endpoint {
			return true
		}
	}
	return false
}

// clientID identifies the caller for rate limiting. API keys are reduced to
// a fixed-length hash fingerprint, so header values of any length are safe
// and the plaintext never enters limiter state.
func clientID(c *gin.Context) string {
	if userID, ok := GetCurrentUserID(c); ok {
		return "user:" + userID
	}
	if key := c.GetHeader("X-API-Key"); key != "" {
		return "key:" + hashAPIKey(key)[:12]
	}
	return "ip:" + c.ClientIP()
}

// GetCurrentUser returns the authenticated user set by Middleware.
func GetCurrentUser(c *gin.Context) (*User, bool) {
	value, ok := c.Get("user")
	if !ok {
		return nil, false
	}
	user, ok := value.(*User)
	return user, ok
}

// GetCurrentUserID returns the authenticated user's ID set by Middleware.
func GetCurrentUserID(c *gin.Context) (string, bool) {
	value, ok := c.Get("user_id")
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok
}
