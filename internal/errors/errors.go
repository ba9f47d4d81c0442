package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// NBSError is the structured error type for the retrieval engine.
// It provides rich context for error handling, logging, and user presentation.
type NBSError struct {
	// Code is the unique error code (e.g., "ERR_402_DIMENSION_MISMATCH").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Parse, External, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *NBSError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *NBSError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with NBSError.
func (e *NBSError) Is(target error) bool {
	if t, ok := target.(*NBSError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *NBSError) WithDetail(key, value string) *NBSError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *NBSError) WithSuggestion(suggestion string) *NBSError {
	e.Suggestion = suggestion
	return e
}

// New creates a new NBSError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *NBSError {
	return &NBSError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an NBSError from an existing error.
// The error's message becomes the NBSError message.
func Wrap(code string, err error) *NBSError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(message string, cause error) *NBSError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ParseError creates an error for a malformed stored item.
func ParseError(message string, cause error) *NBSError {
	return New(ErrCodeEmbeddingParse, message, cause)
}

// ExternalServiceError creates an error for a failing collaborator.
// Deadline and cancellation causes are reported as timeouts.
func ExternalServiceError(message string, cause error) *NBSError {
	if cause != nil && (stderrors.Is(cause, context.DeadlineExceeded) || stderrors.Is(cause, context.Canceled)) {
		return New(ErrCodeFusionTimeout, message, cause)
	}
	return New(ErrCodeFusionFailed, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *NBSError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *NBSError {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first NBSError in err's chain.
func As(err error) (*NBSError, bool) {
	var ne *NBSError
	if stderrors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if ne, ok := As(err); ok {
		return ne.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an NBSError.
// Returns empty string if not an NBSError.
func GetCode(err error) string {
	if ne, ok := As(err); ok {
		return ne.Code
	}
	return ""
}

// GetCategory extracts the category from an NBSError.
// Returns empty string if not an NBSError.
func GetCategory(err error) Category {
	if ne, ok := As(err); ok {
		return ne.Category
	}
	return ""
}

// HasCategory reports whether err is an NBSError of the given category.
func HasCategory(err error, category Category) bool {
	return GetCategory(err) == category
}
