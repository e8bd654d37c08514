package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/listingsearch/internal/domain"
)

// ErrorCode is the machine-readable error code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeNotFound           ErrorCode = "not_found"
	CodeBackfillRunning    ErrorCode = "backfill_running"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeQuotaExceeded      ErrorCode = "embedding_quota_exceeded"
	CodeEmbeddingError     ErrorCode = "embedding_provider_error"
	CodeRerankError        ErrorCode = "rerank_provider_error"
	CodeStoreError         ErrorCode = "store_error"
	CodeIndexAlreadyExists ErrorCode = "index_already_exists"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// defaultErrorHandlers are checked in order. Refinements come before the
// sentinels they also wrap (rate limited and quota both wrap ErrEmbeddingService).
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrBackfillRunning, http.StatusConflict, CodeBackfillRunning),
		sentinelHandler(domain.ErrIndexExists, http.StatusConflict, CodeIndexAlreadyExists),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, CodeQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingService, http.StatusBadGateway, CodeEmbeddingError),
		sentinelHandler(domain.ErrRerankService, http.StatusBadGateway, CodeRerankError),
		sentinelHandler(domain.ErrStore, http.StatusBadGateway, CodeStoreError),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrBackfillRunning,
		domain.ErrIndexExists,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingService,
		domain.ErrRerankService,
		domain.ErrStore,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler reports the offending field. Validation messages never carry internals.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	resp := ErrorResponse{Code: CodeValidationFailed, Message: domain.ErrValidation.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
		resp.Message = ve.Field + " " + ve.Reason
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
