package errors

import (
	stderrors "errors"
	"fmt"
)

// CuriaError is the structured error type for curia.
// It carries enough context for logging, retry decisions and user presentation.
type CuriaError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Provider, etc.).
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
func (e *CuriaError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CuriaError) Unwrap() error {
	return e.Cause
}

// Is matches another CuriaError by code, so sentinel values work with errors.Is.
func (e *CuriaError) Is(target error) bool {
	if t, ok := target.(*CuriaError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *CuriaError) WithDetail(key, value string) *CuriaError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *CuriaError) WithSuggestion(suggestion string) *CuriaError {
	e.Suggestion = suggestion
	return e
}

// New creates a new CuriaError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *CuriaError {
	return &CuriaError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CuriaError from an existing error.
// The error's message becomes the CuriaError message.
func Wrap(code string, err error) *CuriaError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *CuriaError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O error for a source file.
func IOError(message string, cause error) *CuriaError {
	return New(ErrCodeFileRead, message, cause)
}

// ProviderError creates a non-retryable provider error (bad status, bad payload).
func ProviderError(message string, cause error) *CuriaError {
	return New(ErrCodeProviderResponse, message, cause)
}

// TimeoutError creates a retryable provider timeout error.
func TimeoutError(message string, cause error) *CuriaError {
	return New(ErrCodeProviderTimeout, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *CuriaError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *CuriaError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first CuriaError in err's chain.
func As(err error) (*CuriaError, bool) {
	var ce *CuriaError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsRetryable reports whether any CuriaError in the chain is retryable.
func IsRetryable(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first CuriaError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category from the first CuriaError in the chain.
func GetCategory(err error) Category {
	if ce, ok := As(err); ok {
		return ce.Category
	}
	return ""
}
