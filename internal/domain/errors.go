package domain

import (
	"errors"
	"fmt"
	"time"
)

// WidgetError is the error envelope returned by the HTTP API.
type WidgetError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *WidgetError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput     = "INVALID_INPUT"
	ErrStorageError     = "STORAGE_ERROR"
	ErrQuoteAPI         = "QUOTE_API_ERROR"
	ErrSessionMissing   = "SESSION_NOT_FOUND"
	ErrComparisonState  = "COMPARISON_STATE"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrValidation       = "VALIDATION_ERROR"
	ErrUpstreamDegraded = "UPSTREAM_UNAVAILABLE"
)

// Sentinel errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrComparisonActive = errors.New("comparison is active; filters are disabled")
	ErrComparisonFull   = errors.New("comparison already holds the maximum number of plans")
	ErrPlanNotSelected  = errors.New("plan is not part of the comparison")
	ErrEmptyComparison  = errors.New("comparison needs at least one plan")
	ErrUnknownField     = errors.New("unknown filter field")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewWidgetError creates a new WidgetError with timestamp
func NewWidgetError(code, message, details, requestID string) *WidgetError {
	return &WidgetError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
