// Package errors provides structured error handling for onboardqa.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Corpus and storage errors
//   - 3XX: External service errors (embedder, text generator)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates corpus, index, and cache storage errors.
	CategoryStorage Category = "STORAGE"
	// CategoryService indicates external service errors (embedder, LLM).
	CategoryService Category = "SERVICE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
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

	// Corpus and storage errors (200-299)
	ErrCodeCorpusNotFound    = "ERR_201_CORPUS_NOT_FOUND"
	ErrCodeClassifierMissing = "ERR_202_CLASSIFIER_MISSING"
	ErrCodeCorruptIndex      = "ERR_203_CORRUPT_INDEX"
	ErrCodeCacheBackend      = "ERR_204_CACHE_BACKEND"
	ErrCodeStoreClosed       = "ERR_205_STORE_CLOSED"
	ErrCodeIngestLocked      = "ERR_206_INGEST_LOCKED"

	// External service errors (300-399)
	ErrCodeEmbedderUnavailable = "ERR_301_EMBEDDER_UNAVAILABLE"
	ErrCodeTextGenerator       = "ERR_302_TEXT_GENERATOR"
	ErrCodeServiceTimeout      = "ERR_303_SERVICE_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeQueryEmpty          = "ERR_401_QUERY_EMPTY"
	ErrCodeQueryTooLong        = "ERR_402_QUERY_TOO_LONG"
	ErrCodeDimensionMismatch   = "ERR_403_DIMENSION_MISMATCH"
	ErrCodeInvalidInput        = "ERR_404_INVALID_INPUT"
	ErrCodeMalformedTaskUpdate = "ERR_405_MALFORMED_TASK_UPDATE"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeRetrievalPartial = "ERR_502_RETRIEVAL_PARTIAL"
	ErrCodeRetrievalEmpty   = "ERR_503_RETRIEVAL_EMPTY"
	ErrCodeChunkingFailed   = "ERR_504_CHUNKING_FAILED"
	ErrCodeIngestFailed     = "ERR_505_INGEST_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryService
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorpusNotFound, ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeClassifierMissing, ErrCodeRetrievalPartial, ErrCodeCacheBackend, ErrCodeMalformedTaskUpdate:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedderUnavailable, ErrCodeTextGenerator, ErrCodeServiceTimeout:
		return true
	default:
		return false
	}
}
