package errors

import (
	"fmt"
)

// QAError is the structured error type for onboardqa.
// It provides rich context for error handling, logging, and user presentation.
type QAError struct {
	// Code is the unique error code (e.g., "ERR_201_CORPUS_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Service, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *QAError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QAError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with QAError.
func (e *QAError) Is(target error) bool {
	if t, ok := target.(*QAError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *QAError) WithDetail(key, value string) *QAError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *QAError) WithSuggestion(suggestion string) *QAError {
	e.Suggestion = suggestion
	return e
}

// New creates a new QAError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *QAError {
	return &QAError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a QAError from an existing error.
// The error's message becomes the QAError message.
func Wrap(code string, err error) *QAError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// CorpusNotFound creates an error for a missing or empty policies directory.
func CorpusNotFound(path string) *QAError {
	return New(ErrCodeCorpusNotFound, fmt.Sprintf("policy corpus not found at %s", path), nil).
		WithDetail("path", path).
		WithSuggestion("check the policies directory and run 'onboardqa ingest'")
}

// ClassifierMissing creates an error for an absent classifier artifact.
// Non-fatal: the router degrades to keyword-only mode.
func ClassifierMissing(path string) *QAError {
	return New(ErrCodeClassifierMissing, fmt.Sprintf("classifier artifact not found at %s", path), nil).
		WithDetail("path", path).
		WithSuggestion("routing degrades to keyword-only mode until a model is trained")
}

// EmbedderUnavailable creates an error for an unreachable embedding backend.
func EmbedderUnavailable(message string, cause error) *QAError {
	return New(ErrCodeEmbedderUnavailable, message, cause)
}

// TextGeneratorError creates an error for a failed or timed-out LLM call.
func TextGeneratorError(message string, cause error) *QAError {
	return New(ErrCodeTextGenerator, message, cause)
}

// CacheError creates a cache backend error. Callers treat it as a
// cache miss on read and a no-op on write.
func CacheError(message string, cause error) *QAError {
	return New(ErrCodeCacheBackend, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *QAError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *QAError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a QAError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QAError); ok {
		return qe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QAError); ok {
		return qe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a QAError.
// Returns empty string if not a QAError.
func GetCode(err error) string {
	if qe, ok := err.(*QAError); ok {
		return qe.Code
	}
	return ""
}

// GetCategory extracts the category from a QAError.
// Returns empty string if not a QAError.
func GetCategory(err error) Category {
	if qe, ok := err.(*QAError); ok {
		return qe.Category
	}
	return ""
}
