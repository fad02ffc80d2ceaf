package auth

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendora/expense-qa/internal/errors"
)

// Handlers exposes the authentication HTTP surface.
type Handlers struct {
	manager *Manager
}

// NewHandlers creates the auth handlers.
func NewHandlers(manager *Manager) *Handlers {
	return &Handlers{manager: manager}
}

// SetupRoutes mounts the auth endpoints. Register, login, and status are
// open; everything else runs through the auth middleware.
func (h *Handlers) SetupRoutes(r *gin.RouterGroup) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.manager.Middleware(), h.Me)
	r.GET("/auth/status", h.Status)

	r.GET("/api-keys", h.manager.Middleware(), h.ListAPIKeys)
	r.POST("/api-keys", h.manager.Middleware(), h.CreateAPIKey)
	r.DELETE("/api-keys/:id", h.manager.Middleware(), h.RevokeAPIKey)
}

// RegisterRequest is a new account request.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest is a credential check request.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionResponse is returned on successful register or login.
type SessionResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      *User  `json:"user"`
	Message   string `json:"message"`
}

// Register creates an account and opens a session for it.
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, formatAuthErrorResponse(
			errors.NewInvalidInputError("body", err.Error())))
		return
	}

	user, err := h.manager.RegisterUser(req.Username, req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusConflict, formatAuthErrorResponse(err))
		return
	}

	h.respondWithSession(c, http.StatusCreated, user, "Registration successful")
}

// Login checks credentials and opens a session.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, formatAuthErrorResponse(
			errors.NewInvalidInputError("body", err.Error())))
		return
	}

	user, err := h.manager.UserByName(req.Username)
	if err != nil || !h.manager.CheckPassword(user, req.Password) {
		c.JSON(http.StatusUnauthorized, formatAuthErrorResponse(errors.NewInvalidCredentialsError()))
		return
	}

	h.respondWithSession(c, http.StatusOK, user, "Login successful")
}

func (h *Handlers) respondWithSession(c *gin.Context, status int, user *User, message string) {
	token, sessionID, err := h.manager.OpenSession(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, formatAuthErrorResponse(
			errors.Wrap(err, errors.ErrCodeSessionCreation, "Failed to open session")))
		return
	}

	c.SetCookie("session_id", sessionID,
		int(h.manager.config.SessionExpiry.Seconds()), "/", "", false, true)

	c.JSON(status, SessionResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.manager.config.JWTExpiry).Format(time.RFC3339),
		User:      user,
		Message:   message,
	})
}

// Logout closes the session named by the cookie.
func (h *Handlers) Logout(c *gin.Context) {
	if sessionID, err := c.Cookie("session_id"); err == nil {
		_ = h.manager.CloseSession(sessionID)
	}

	c.SetCookie("session_id", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

// Me returns the authenticated user.
func (h *Handlers) Me(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, formatAuthErrorResponse(errors.NewNotAuthenticatedError()))
		return
	}
	c.JSON(http.StatusOK, user)
}

// Status reports the auth configuration and whether the caller is
// authenticated.
func (h *Handlers) Status(c *gin.Context) {
	status := gin.H{
		"authentication_enabled": true,
		"allow_anonymous":        h.manager.config.AllowAnonymous,
		"rate_limit":             h.manager.config.RateLimit,
		"jwt_expiry":             h.manager.config.JWTExpiry.String(),
		"session_expiry":         h.manager.config.SessionExpiry.String(),
	}

	if user, ok := GetCurrentUser(c); ok {
		status["authenticated"] = true
		status["user"] = user
	} else {
		status["authenticated"] = false
	}

	c.JSON(http.StatusOK, status)
}

// CreateAPIKeyRequest names a new key and optionally bounds its lifetime.
type CreateAPIKeyRequest struct {
	Name      string `json:"name" binding:"required"`
	ExpiresIn string `json:"expires_in"`
}

// CreateAPIKeyResponse carries the plaintext key. It is shown exactly once.
type CreateAPIKeyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAPIKey mints a key for the authenticated user.
func (h *Handlers) CreateAPIKey(c *gin.Context) {
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, formatAuthErrorResponse(
			errors.NewInvalidInputError("body", err.Error())))
		return
	}

	userID, ok := GetCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, formatAuthErrorResponse(errors.NewNotAuthenticatedError()))
		return
	}

	ttl, err := parseDuration(req.ExpiresIn)
	if err != nil {
		c.JSON(http.StatusBadRequest, formatAuthErrorResponse(
			errors.NewInvalidInputError("expires_in", "invalid expiry duration")))
		return
	}

	key, err := h.manager.IssueAPIKey(userID, req.Name, ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, formatAuthErrorResponse(err))
		return
	}

	c.JSON(http.StatusCreated, CreateAPIKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		Key:       key.Key,
		ExpiresAt: key.ExpiresAt,
		CreatedAt: key.CreatedAt,
	})
}

// ListAPIKeys lists the authenticated user's keys, plaintext redacted.
func (h *Handlers) ListAPIKeys(c *gin.Context) {
	userID, ok := GetCurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, formatAuthErrorResponse(errors.NewNotAuthenticatedError()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"api_keys": h.manager.APIKeysFor(userID)})
}

// RevokeAPIKey deactivates one of the caller's keys.
func (h *Handlers) RevokeAPIKey(c *gin.Context) {
	if err := h.manager.RevokeAPIKey(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, formatAuthErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key revoked successfully"})
}

// formatAuthErrorResponse renders a structured error envelope, keeping the
// error code and suggestion visible to API clients.
func formatAuthErrorResponse(err error) gin.H {
	if enhanced, ok := err.(*errors.EnhancedError); ok {
		errorObj := gin.H{
			"code":    enhanced.Code,
			"message": enhanced.Message,
		}
		if enhanced.Details != "" {
			errorObj["details"] = enhanced.Details
		}
		if enhanced.Suggestion != "" {
			errorObj["suggestion"] = enhanced.Suggestion
		}
		if len(enhanced.Metadata) > 0 {
			errorObj["metadata"] = enhanced.Metadata
		}
		return gin.H{"error": errorObj}
	}

	return gin.H{"error": gin.H{
		"code":    "INTERNAL_ERROR",
		"message": err.Error(),
	}}
}

// parseDuration accepts day, week, and year suffixes on top of the standard
// duration forms. An empty value defaults to thirty days.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 30 * 24 * time.Hour, nil
	}

	multipliers := map[byte]time.Duration{
		'd': 24 * time.Hour,
		'w': 7 * 24 * time.Hour,
		'y': 365 * 24 * time.Hour,
	}
	if unit, ok := multipliers[s[len(s)-1]]; ok {
		n, err := strconv.Atoi(strings.TrimRight(s, "dwy"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * unit, nil
	}

	return time.ParseDuration(s)
}
