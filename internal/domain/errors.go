package domain

import (
	"errors"
	"fmt"
)

// KeyPrefix namespaces every key this service owns outside listing documents.
const KeyPrefix = "listingsearch:"

var (
	// ErrStore signals that the document store is unreachable or rejected an operation.
	ErrStore = errors.New("store error")
	// ErrEmbeddingService signals an embedding provider failure.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrRerankService signals a rerank provider failure.
	ErrRerankService = errors.New("rerank service error")
	// ErrValidation signals invalid caller input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrIndexExists signals that the vector index was already provisioned.
	ErrIndexExists = errors.New("index already exists")
	// ErrBackfillRunning signals that another backfill run is in progress.
	ErrBackfillRunning = errors.New("backfill already running")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for a field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
