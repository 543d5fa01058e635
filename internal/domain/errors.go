package domain

import (
	"fmt"
	"strings"
	"time"
)

// MCPError represents a standardized error returned from MCP tool calls
type MCPError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   []string  `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *MCPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrDatabaseError  = "DATABASE_ERROR"
	ErrCalculation    = "CALCULATION_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrValidation     = "VALIDATION_ERROR"
	ErrNotFoundCode   = "NOT_FOUND"
)

// NewMCPError creates a new MCPError with timestamp
func NewMCPError(code, message string, details ...string) *MCPError {
	return &MCPError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// ValidationErrors is the ordered list of field-level constraint violations found
// for one input. It is reported to callers as a list, not a single message.
type ValidationErrors struct {
	Errors []string `json:"errors"`
}

// Error implements the error interface
func (e *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// NewValidationErrors creates a ValidationErrors from messages in order.
func NewValidationErrors(messages ...string) *ValidationErrors {
	return &ValidationErrors{Errors: append([]string(nil), messages...)}
}

// ComputationError reports an unexpected failure while classifying an assessment.
// Callers must treat it as fatal for the request and never substitute a default result.
type ComputationError struct {
	AssessmentID string
	Cause        error
}

// Error implements the error interface
func (e *ComputationError) Error() string {
	if e.AssessmentID == "" {
		return fmt.Sprintf("risk computation failed: %v", e.Cause)
	}
	return fmt.Sprintf("risk computation failed for assessment %s: %v", e.AssessmentID, e.Cause)
}

// Unwrap returns the underlying cause
func (e *ComputationError) Unwrap() error {
	return e.Cause
}
