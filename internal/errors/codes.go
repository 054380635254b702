// Package errors provides structured error handling for curia.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and persistence errors (source files, ledger, vector store)
//   - 3XX: Provider errors (embedding model, language model)
//   - 4XX: Content and validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, ledger and store I/O errors.
	CategoryIO Category = "IO"
	// CategoryProvider indicates embedding or language model failures.
	CategoryProvider Category = "PROVIDER"
	// CategoryContent indicates unusable input documents or queries.
	CategoryContent Category = "CONTENT"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeFileRead       = "ERR_203_FILE_READ"
	ErrCodeLedgerWrite    = "ERR_204_LEDGER_WRITE"
	ErrCodeCorruptIndex   = "ERR_205_CORRUPT_INDEX"
	ErrCodeStoreWrite     = "ERR_206_STORE_WRITE"
	ErrCodeIndexLocked    = "ERR_207_INDEX_LOCKED"

	// Provider errors (300-399)
	ErrCodeProviderTimeout     = "ERR_301_PROVIDER_TIMEOUT"
	ErrCodeProviderUnavailable = "ERR_302_PROVIDER_UNAVAILABLE"
	ErrCodeModelNotFound       = "ERR_303_MODEL_NOT_FOUND"
	ErrCodeProviderResponse    = "ERR_304_PROVIDER_RESPONSE"

	// Content and validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeNoExtractableText = "ERR_403_NO_EXTRACTABLE_TEXT"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeDependencyMissing = "ERR_405_DEPENDENCY_MISSING"

	// Internal errors (500-599)
	ErrCodeInternal    = "ERR_501_INTERNAL"
	ErrCodeBuildFailed = "ERR_502_BUILD_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryProvider
	case '4':
		return CategoryContent
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeNoExtractableText:
		// Callers may skip the document and keep going.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports failures that can succeed unchanged on a later
// attempt: a provider that is slow or not up yet, or a build lock held by
// another process.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderTimeout, ErrCodeProviderUnavailable, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
