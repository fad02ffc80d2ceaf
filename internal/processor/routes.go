package processor

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendora/expense-qa/internal/auth"
	"github.com/spendora/expense-qa/internal/errors"
	"github.com/spendora/expense-qa/internal/observability"
	"github.com/spendora/expense-qa/internal/query"
	"github.com/spendora/expense-qa/internal/store"
)

// AuthMiddleware is the authentication hook for protected routes.
type AuthMiddleware interface {
	Middleware() gin.HandlerFunc
}

// ExpenseRequest is the insert payload for one expense entry.
type ExpenseRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	Reason        string  `json:"reason" binding:"required"`
	Category      string  `json:"category"`
	Date          string  `json:"date"`
	PaymentMethod string  `json:"paymentMethod"`
	Type          string  `json:"type"`
	UserID        string  `json:"userId,omitempty"`
}

// SetupRoutes configures the HTTP surface with optional authentication.
func (p *Processor) SetupRoutes(authMiddleware AuthMiddleware) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.CorrelationMiddleware())
	r.Use(observability.RequestLoggingMiddleware(p.logger))

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Correlation-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", p.handleHealth)
	r.GET("/metrics", p.handleMetrics)

	api := r.Group("/api/v1")
	if authMiddleware != nil {
		api.Use(authMiddleware.Middleware())
	}
	{
		api.GET("/health", p.handleHealth)
		api.POST("/query", p.handleQuery)
		api.POST("/expenses", p.handleInsertExpense)
		api.GET("/expenses", p.handleListExpenses)
		api.GET("/history", p.handleHistory)
	}

	return r
}

func (p *Processor) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, formatErrorResponse(
			errors.NewInvalidInputError("request body", err.Error())))
		return
	}

	// The authenticated identity is the authoritative tenant id; the body
	// value only applies for anonymous requests.
	if userID, ok := auth.GetCurrentUserID(c); ok {
		req.UserID = userID
	}

	response, err := p.ProcessQuestion(c.Request.Context(), &req)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, response)
}

func (p *Processor) handleInsertExpense(c *gin.Context) {
	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, formatErrorResponse(
			errors.NewInvalidInputError("request body", err.Error())))
		return
	}

	tenantID := p.resolveTenant(c, req.UserID)
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, formatErrorResponse(errors.NewMissingFieldError("userId")))
		return
	}

	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = p.now().Format(query.DateFormat)
	} else if _, err := time.Parse(query.DateFormat, date); err != nil {
		c.JSON(http.StatusBadRequest, formatErrorResponse(
			errors.NewInvalidInputError("date", "expected dd/mm/yyyy")))
		return
	}

	expense := &store.Expense{
		Amount:          req.Amount,
		Reason:          req.Reason,
		Category:        req.Category,
		Date:            date,
		PaymentMethod:   req.PaymentMethod,
		Type:            req.Type,
		UserID:          tenantID,
		InsertTimestamp: p.now().UTC(),
	}

	id, err := p.executor.Insert(c.Request.Context(), expense)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      id,
		"expense": expense,
	})
}

func (p *Processor) handleListExpenses(c *gin.Context) {
	tenantID := p.resolveTenant(c, c.Query("userId"))
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, formatErrorResponse(errors.NewMissingFieldError("userId")))
		return
	}

	limit := int64(100)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, formatErrorResponse(
				errors.NewInvalidInputError("limit", "expected a positive integer")))
			return
		}
		limit = parsed
	}

	expenses, err := p.executor.List(c.Request.Context(), tenantID, limit)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"expenses": expenses,
		"count":    len(expenses),
	})
}

func (p *Processor) handleHistory(c *gin.Context) {
	tenantID := p.resolveTenant(c, c.Query("userId"))
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, formatErrorResponse(errors.NewMissingFieldError("userId")))
		return
	}

	if p.historyStore == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []interface{}{}, "count": 0})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, formatErrorResponse(
				errors.NewInvalidInputError("limit", "expected a positive integer")))
			return
		}
		limit = parsed
	}

	entries, err := p.historyStore.List(c.Request.Context(), tenantID, limit)
	if err != nil {
		c.JSON(getErrorStatusCode(err), formatErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (p *Processor) handleHealth(c *gin.Context) {
	if p.healthChecker == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "expense-qa",
		})
		return
	}

	response := p.healthChecker.RunChecks(c.Request.Context())
	statusCode := http.StatusOK
	if response.Status == observability.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

func (p *Processor) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, observability.DefaultCollector().Snapshot())
}

// resolveTenant prefers the authenticated user id over a caller-supplied one.
func (p *Processor) resolveTenant(c *gin.Context, fallback string) string {
	if userID, ok := auth.GetCurrentUserID(c); ok {
		return userID
	}
	return strings.TrimSpace(fallback)
}

// formatErrorResponse renders the structured error envelope.
func formatErrorResponse(err error) gin.H {
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

// getErrorStatusCode maps error codes to HTTP statuses.
func getErrorStatusCode(err error) int {
	if enhanced, ok := err.(*errors.EnhancedError); ok {
		switch enhanced.Code {
		case errors.ErrCodeInvalidInput, errors.ErrCodeMissingRequired:
			return http.StatusBadRequest
		case errors.ErrCodeInvalidCredentials, errors.ErrCodeNotAuthenticated:
			return http.StatusUnauthorized
		case errors.ErrCodeBudgetExceeded:
			return http.StatusTooManyRequests
		case errors.ErrCodeTranslationFailed, errors.ErrCodeNoCandidate,
			errors.ErrCodeExtractionFailed, errors.ErrCodeParseFailed,
			errors.ErrCodeNetworkError:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
