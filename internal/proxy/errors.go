package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/mixaill76/claude_openai_bridge/internal/converter/anthropic"
)

// Anthropic error envelope types.
const (
	errTypeAuthentication = "authentication_error"
	errTypeInvalidRequest = "invalid_request_error"
	errTypeRateLimit      = "rate_limit_error"
	errTypeAPIError       = "api_error"
)

// WriteError writes an Anthropic error envelope with the given status.
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(anthropic.ErrorResponse{
		Type: "error",
		Error: anthropic.ErrorDetail{
			Type:    errorType,
			Message: message,
		},
	})
}

// WriteErrorUnauthorized writes a 401 authentication_error envelope.
func WriteErrorUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, errTypeAuthentication, message)
}

// WriteErrorBadRequest writes a 400 invalid_request_error envelope.
func WriteErrorBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, errTypeInvalidRequest, message)
}

// WriteErrorTooLarge writes a 413 invalid_request_error envelope.
func WriteErrorTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, errTypeInvalidRequest, message)
}

// WriteErrorRateLimit writes a 429 rate_limit_error envelope.
func WriteErrorRateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, errTypeRateLimit, message)
}

// WriteErrorInternal writes a 500 api_error envelope.
func WriteErrorInternal(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, errTypeAPIError, message)
}

// writeUpstreamError maps an already-classified upstream failure onto the
// wire: the status is preserved (4xx passthrough, 5xx already collapsed to
// 502, transport failures to 504) and the envelope is always api_error.
func writeUpstreamError(w http.ResponseWriter, status int, message string) {
	WriteError(w, status, errTypeAPIError, message)
}
