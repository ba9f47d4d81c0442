// Package errors provides structured error handling for the retrieval engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Parse errors (serialized embeddings, documents)
//   - 3XX: External service errors (LLM, embedding provider, database)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates missing or invalid configuration.
	CategoryConfig Category = "CONFIG"
	// CategoryParse indicates malformed stored data for a single item.
	CategoryParse Category = "PARSE"
	// CategoryExternal indicates a failing or unreachable collaborator.
	CategoryExternal Category = "EXTERNAL"
	// CategoryValidation indicates a contract violation by the caller.
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
	ErrCodeConfigNotFound        = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid         = "ERR_102_CONFIG_INVALID"
	ErrCodeFusionNotConfigured   = "ERR_103_FUSION_NOT_CONFIGURED"
	ErrCodeEmbedderNotConfigured = "ERR_104_EMBEDDER_NOT_CONFIGURED"

	// Parse errors (200-299)
	ErrCodeEmbeddingParse = "ERR_201_EMBEDDING_PARSE"
	ErrCodeDocumentParse  = "ERR_202_DOCUMENT_PARSE"

	// External service errors (300-399)
	ErrCodeFusionFailed     = "ERR_301_FUSION_FAILED"
	ErrCodeFusionTimeout    = "ERR_302_FUSION_TIMEOUT"
	ErrCodeEmbeddingFailed  = "ERR_303_EMBEDDING_FAILED"
	ErrCodeStoreUnavailable = "ERR_304_STORE_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidAlpha      = "ERR_403_INVALID_ALPHA"
	ErrCodeQueryEmpty        = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidTopK       = "ERR_405_INVALID_TOP_K"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_503_INDEX_FAILED"
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
		return CategoryParse
	case '3':
		return CategoryExternal
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryParse, CategoryExternal:
		// Per-item parse failures and collaborator outages degrade results
		// instead of failing the request.
		return SeverityWarning
	case CategoryConfig:
		if code == ErrCodeConfigInvalid {
			return SeverityFatal
		}
	}
	return SeverityError
}
