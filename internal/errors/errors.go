// Package errors provides a lightweight structured error type (WeaverError)
// for category-based classification and retry semantics across the assembly
// and rendering pipeline.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a docweaver error for classification
type ErrorCategory string

const (
	// Content-quality failures from model output
	CategoryMalformedJSON ErrorCategory = "malformed_json"

	// Resolver failures
	CategoryDocumentNotFound   ErrorCategory = "document_not_found"
	CategoryContentUnavailable ErrorCategory = "content_unavailable"

	// Validation failures raised before any side effect
	CategoryMissingDocumentIdentity ErrorCategory = "missing_document_identity"
	CategoryMissingDocumentKey      ErrorCategory = "missing_document_key"
	CategoryValidation              ErrorCategory = "validation"

	// Infrastructure failures
	CategoryPersistence ErrorCategory = "persistence"
	CategoryRender      ErrorCategory = "render"
	CategoryConfig      ErrorCategory = "config"
	CategoryInternal    ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the operation
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// WeaverError is a structured error with category, retryability, and context
type WeaverError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for WeaverError
type ContextFields map[string]any

// Error implements the error interface
func (e *WeaverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *WeaverError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *WeaverError) WithContext(key string, value any) *WeaverError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new WeaverError
func New(category ErrorCategory, severity ErrorSeverity, message string) *WeaverError {
	return &WeaverError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new WeaverError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *WeaverError {
	return &WeaverError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var we *WeaverError
	if errors.As(err, &we) {
		return we.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var we *WeaverError
	if errors.As(err, &we) {
		return we.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if the error is not a WeaverError.
func GetCategory(err error) ErrorCategory {
	var we *WeaverError
	if errors.As(err, &we) {
		return we.Category
	}
	return CategoryInternal
}
