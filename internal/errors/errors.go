package errors

import (
	"fmt"
)

// SymdexError is the structured error type for symdex.
// It provides context for error handling, logging, and user presentation.
type SymdexError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
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
func (e *SymdexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SymdexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SymdexError.
func (e *SymdexError) Is(target error) bool {
	if t, ok := target.(*SymdexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SymdexError) WithDetail(key, value string) *SymdexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SymdexError) WithSuggestion(suggestion string) *SymdexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SymdexError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SymdexError {
	return &SymdexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SymdexError from an existing error.
// The error's message becomes the SymdexError message.
func Wrap(code string, err error) *SymdexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SymdexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *SymdexError {
	return New(ErrCodeStoreIO, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SymdexError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SymdexError {
	return New(ErrCodeInternal, message, cause)
}

// NotInitialized creates the error returned by operations invoked before
// their workspace or store has been initialized.
func NotInitialized(what string) *SymdexError {
	return New(ErrCodeNotInitialized, what+" not initialized", nil).
		WithSuggestion("run 'symdex index' to initialize the workspace")
}

// WorkspaceMismatch creates the error raised when an operation would touch
// a store using another workspace's identifier. Callers must treat it as
// a refusal, log it, and skip the operation.
func WorkspaceMismatch(wantID, gotID string) *SymdexError {
	return New(ErrCodeWorkspaceMismatch, "store does not belong to workspace", nil).
		WithDetail("want", wantID).
		WithDetail("got", gotID)
}

// IsNotInitialized reports whether err is a not-initialized error.
func IsNotInitialized(err error) bool {
	if ae, ok := err.(*SymdexError); ok {
		return ae.Code == ErrCodeNotInitialized
	}
	return false
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a SymdexError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*SymdexError); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*SymdexError); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SymdexError.
// Returns empty string if not a SymdexError.
func GetCode(err error) string {
	if ae, ok := err.(*SymdexError); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from a SymdexError.
// Returns empty string if not a SymdexError.
func GetCategory(err error) Category {
	if ae, ok := err.(*SymdexError); ok {
		return ae.Category
	}
	return ""
}
