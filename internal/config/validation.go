package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation error(s):\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate performs comprehensive validation on the configuration
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateMongo()...)
	errors = append(errors, c.validateHistory()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateGemini()...)
	errors = append(errors, c.validateAuth()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateQuery()...)
	errors = append(errors, c.validateBudget()...)

	if errors.HasErrors() {
		return errors
	}

	return nil
}

func (c *Config) validateMongo() []ValidationError {
	var errors []ValidationError

	if c.Mongo.URI == "" {
		errors = append(errors, ValidationError{
			Field:   "Mongo.URI",
			Message: "mongo URI is required",
		})
	}

	if c.Mongo.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "Mongo.Database",
			Message: "mongo database name is required",
		})
	}

	if c.Mongo.Collection == "" {
		errors = append(errors, ValidationError{
			Field:   "Mongo.Collection",
			Message: "mongo collection name is required",
		})
	}

	if c.Mongo.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Mongo.Timeout",
			Message: "mongo timeout must be positive",
		})
	}

	return errors
}

func (c *Config) validateHistory() []ValidationError {
	var errors []ValidationError

	// History is optional; only validate when enabled
	if !c.History.Enabled {
		return errors
	}

	if c.History.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "History.Host",
			Message: "history database host is required",
		})
	}

	if c.History.Port == "" {
		errors = append(errors, ValidationError{
			Field:   "History.Port",
			Message: "history database port is required",
		})
	}

	if c.History.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "History.Database",
			Message: "history database name is required",
		})
	}

	if c.History.Username == "" {
		errors = append(errors, ValidationError{
			Field:   "History.Username",
			Message: "history database username is required",
		})
	}

	return errors
}

func (c *Config) validateRedis() []ValidationError {
	var errors []ValidationError

	if c.Redis.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "Redis.Addr",
			Message: "redis address is required",
		})
	}

	return errors
}

func (c *Config) validateGemini() []ValidationError {
	var errors []ValidationError

	if c.Gemini.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "Gemini.APIKey",
			Message: "Gemini API key is required",
		})
	}

	if c.Gemini.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "Gemini.Model",
			Message: "Gemini model is required",
		})
	}

	return errors
}

func (c *Config) validateAuth() []ValidationError {
	var errors []ValidationError

	if c.Auth.JWTSecret == "" {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTSecret",
			Message: "JWT secret is required",
		})
	}

	if c.Auth.JWTExpiry <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTExpiry",
			Message: "JWT expiry must be positive",
		})
	}

	if c.Auth.SessionExpiry <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Auth.SessionExpiry",
			Message: "session expiry must be positive",
		})
	}

	if c.Auth.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "Auth.RateLimit",
			Message: "rate limit must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Port == "" {
		errors = append(errors, ValidationError{
			Field:   "Server.Port",
			Message: "server port is required",
		})
	}

	// Validate GinMode
	validModes := []string{"debug", "release", "test"}
	isValid := false
	for _, mode := range validModes {
		if c.Server.GinMode == mode {
			isValid = true
			break
		}
	}
	if !isValid {
		errors = append(errors, ValidationError{
			Field:   "Server.GinMode",
			Message: fmt.Sprintf("invalid gin mode: %s (must be 'debug', 'release', or 'test')", c.Server.GinMode),
		})
	}

	return errors
}

func (c *Config) validateQuery() []ValidationError {
	var errors []ValidationError

	if c.Query.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Query.Timeout",
			Message: "query timeout must be positive",
		})
	}

	if c.Query.CacheTTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "Query.CacheTTL",
			Message: "cache TTL must be non-negative",
		})
	}

	if c.Query.MaxQuestionLength <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Query.MaxQuestionLength",
			Message: "max question length must be positive",
		})
	}

	if c.Query.MaxResultRecords <= 0 {
		errors = append(errors, ValidationError{
			Field:   "Query.MaxResultRecords",
			Message: "max result records must be positive",
		})
	}

	return errors
}

func (c *Config) validateBudget() []ValidationError {
	var errors []ValidationError

	if c.Budget.DailyUSD < 0 {
		errors = append(errors, ValidationError{
			Field:   "Budget.DailyUSD",
			Message: "daily budget must be non-negative",
		})
	}

	if c.Budget.MonthlyUSD < 0 {
		errors = append(errors, ValidationError{
			Field:   "Budget.MonthlyUSD",
			Message: "monthly budget must be non-negative",
		})
	}

	return errors
}

// ValidateProduction performs additional validation for production environments
// It checks for insecure default values that should not be used in production
func (c *Config) ValidateProduction() error {
	var errors ValidationErrors

	if c.History.Enabled && (c.History.Password == "" || c.History.Password == "changeme") {
		errors = append(errors, ValidationError{
			Field:   "History.Password",
			Message: "production deployment must not use default or empty database password",
		})
	}

	if c.Redis.Password == "" || c.Redis.Password == "changeme" {
		errors = append(errors, ValidationError{
			Field:   "Redis.Password",
			Message: "production deployment must not use default or empty Redis password",
		})
	}

	insecureJWTSecrets := []string{
		"",
		"your-secret-key-change-in-production",
		"change-this-in-production",
		"secret",
		"jwt-secret",
	}
	for _, insecure := range insecureJWTSecrets {
		if c.Auth.JWTSecret == insecure {
			errors = append(errors, ValidationError{
				Field:   "Auth.JWTSecret",
				Message: "production deployment must not use default or insecure JWT secret",
			})
			break
		}
	}

	// Check JWT secret length (should be at least 32 characters)
	if len(c.Auth.JWTSecret) < 32 {
		errors = append(errors, ValidationError{
			Field:   "Auth.JWTSecret",
			Message: "JWT secret should be at least 32 characters for production use",
		})
	}

	if c.Gemini.APIKey == "your-api-key-here" || c.Gemini.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "Gemini.APIKey",
			Message: "production deployment requires a valid Gemini API key",
		})
	}

	if c.Server.GinMode != "release" {
		errors = append(errors, ValidationError{
			Field:   "Server.GinMode",
			Message: "production deployment should use 'release' mode",
		})
	}

	if c.Auth.AllowAnonymous {
		errors = append(errors, ValidationError{
			Field:   "Auth.AllowAnonymous",
			Message: "production deployment should not allow anonymous access",
		})
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// IsProduction determines if the current environment is production
// based on the GinMode setting
func (c *Config) IsProduction() bool {
	return c.Server.GinMode == "release"
}

// ValidateWithContext validates configuration and runs production checks if appropriate
func (c *Config) ValidateWithContext() error {
	// Always run basic validation
	if err := c.Validate(); err != nil {
		return err
	}

	// Run production validation if in production mode
	if c.IsProduction() {
		if err := c.ValidateProduction(); err != nil {
			return fmt.Errorf("production validation failed: %w", err)
		}
	}

	return nil
}
