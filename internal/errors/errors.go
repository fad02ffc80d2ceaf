// Package errors provides enhanced error types with helpful context and suggestions
package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Translation-stage errors. All of these are caught at the translator
	// boundary and surfaced as a single TRANSLATION_FAILED outcome.
	ErrCodeNoCandidate       ErrorCode = "NO_CANDIDATE"
	ErrCodeExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrCodeParseFailed       ErrorCode = "PARSE_FAILED"
	ErrCodeNetworkError      ErrorCode = "NETWORK_ERROR"
	ErrCodeTranslationFailed ErrorCode = "TRANSLATION_FAILED"

	// Execution-stage errors
	ErrCodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// Database errors (history store)
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQuery      ErrorCode = "DATABASE_QUERY_FAILED"

	// Authentication errors
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeTokenCreation      ErrorCode = "TOKEN_CREATION_FAILED"
	ErrCodeSessionCreation    ErrorCode = "SESSION_CREATION_FAILED"
	ErrCodeNotAuthenticated   ErrorCode = "NOT_AUTHENTICATED"

	// Input validation errors
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED_FIELD"

	// Cache errors
	ErrCodeCacheRead  ErrorCode = "CACHE_READ_FAILED"
	ErrCodeCacheWrite ErrorCode = "CACHE_WRITE_FAILED"

	// Quota errors
	ErrCodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"
)

// EnhancedError represents an error with additional context and helpful information
type EnhancedError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))
	if e.Details != "" {
		sb.WriteString(fmt.Sprintf(": %s", e.Details))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(" (cause: %v)", e.Cause))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain unwrapping
func (e *EnhancedError) Unwrap() error {
	return e.Cause
}

// New creates a new EnhancedError
func New(code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with enhanced context
func Wrap(err error, code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Cause:    err,
		Metadata: make(map[string]interface{}),
	}
}

// WithDetails adds detailed information about the error
func (e *EnhancedError) WithDetails(details string) *EnhancedError {
	e.Details = details
	return e
}

// WithSuggestion adds a suggestion on how to fix the error
func (e *EnhancedError) WithSuggestion(suggestion string) *EnhancedError {
	e.Suggestion = suggestion
	return e
}

// WithMetadata adds additional metadata to the error
func (e *EnhancedError) WithMetadata(key string, value interface{}) *EnhancedError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Code extracts the ErrorCode from an error, or "" for plain errors.
func Code(err error) ErrorCode {
	if enhanced, ok := err.(*EnhancedError); ok {
		return enhanced.Code
	}
	return ""
}

// Common error constructors with pre-configured messages

// NewNoCandidateError indicates the text generator returned no usable output
func NewNoCandidateError() *EnhancedError {
	return New(ErrCodeNoCandidate, "No candidates returned from the text generator").
		WithDetails("The generator response contained no candidate output to extract a query from").
		WithSuggestion("This is typically a temporary issue with the generator. Please try your question again.").
		WithMetadata("retryable", true)
}

// NewExtractionError indicates no JSON-like structure was found in generator output
func NewExtractionError(raw string) *EnhancedError {
	return New(ErrCodeExtractionFailed, "No structured payload found in generator output").
		WithDetails("The generator response did not contain a bounded JSON object or array").
		WithSuggestion("Try rephrasing your question to be more specific about the expenses you want to query.").
		WithMetadata("raw_length", len(raw))
}

// NewParseError indicates the bounded substring could not be parsed even leniently
func NewParseError(err error) *EnhancedError {
	return Wrap(err, ErrCodeParseFailed, "Failed to parse generator output").
		WithDetails("The extracted payload was not parseable as a query, even with lenient parsing").
		WithSuggestion("Try rephrasing your question. If the problem persists, the generator may be producing malformed output.")
}

// NewNetworkError indicates a transport failure calling the generator
func NewNetworkError(err error) *EnhancedError {
	return Wrap(err, ErrCodeNetworkError, "Text generator request failed").
		WithDetails("A transport error occurred while calling the text generator").
		WithSuggestion("This is typically a temporary issue. Please try again in a moment.").
		WithMetadata("retryable", true)
}

// NewTranslationError wraps any translation-stage failure into the single
// typed outcome the caller sees.
func NewTranslationError(err error) *EnhancedError {
	return Wrap(err, ErrCodeTranslationFailed, "Failed to translate question into a query").
		WithDetails("The question could not be converted into an executable expense query").
		WithSuggestion("Try simplifying your question or being more specific. For example: 'How much did I spend on groceries this month?'")
}

// NewExecutionError indicates the persistence engine rejected or failed the query
func NewExecutionError(err error, operation string) *EnhancedError {
	return Wrap(err, ErrCodeExecutionFailed, "Failed to execute expense query").
		WithDetails(fmt.Sprintf("The datastore rejected the %s operation", operation)).
		WithSuggestion("This is an internal error. If the problem persists, contact support.").
		WithMetadata("operation", operation)
}

// NewDatabaseQueryError creates an error for history store failures
func NewDatabaseQueryError(err error, operation string) *EnhancedError {
	return Wrap(err, ErrCodeDatabaseQuery, "Database query failed").
		WithDetails(fmt.Sprintf("Failed to execute database operation: %s", operation)).
		WithSuggestion("This is an internal server error. If the problem persists, contact support.").
		WithMetadata("retryable", true)
}

// NewInvalidCredentialsError creates an error for authentication failures
func NewInvalidCredentialsError() *EnhancedError {
	return New(ErrCodeInvalidCredentials, "Invalid username or password").
		WithDetails("Authentication failed with the provided credentials").
		WithSuggestion("Please check your username and password and try again.")
}

// NewNotAuthenticatedError creates an error for unauthenticated requests
func NewNotAuthenticatedError() *EnhancedError {
	return New(ErrCodeNotAuthenticated, "Authentication required").
		WithDetails("This endpoint requires authentication").
		WithSuggestion("Please log in using the /api/v1/auth/login endpoint, or include a valid API key in the 'X-API-Key' header.")
}

// NewInvalidInputError creates an error for invalid input
func NewInvalidInputError(field string, reason string) *EnhancedError {
	return New(ErrCodeInvalidInput, "Invalid input").
		WithDetails(fmt.Sprintf("Field '%s' is invalid: %s", field, reason)).
		WithSuggestion("Please check the API documentation for the expected format and try again.")
}

// NewMissingFieldError creates an error for a missing required request field
func NewMissingFieldError(field string) *EnhancedError {
	return New(ErrCodeMissingRequired, "Missing required field").
		WithDetails(fmt.Sprintf("Field '%s' is required", field)).
		WithSuggestion("Include both 'question' and 'userId' in the request body.")
}
