package apperrors

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorResponse is the envelope for every failed API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable machine code and a human-readable message.
// Details is only set when the caller can act on it (for example the list of
// columns found in an uploaded file).
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Details   any    `json:"details,omitempty"`
}

// SuccessResponse is the envelope for every successful API response.
type SuccessResponse struct {
	RequestID string `json:"request_id"`
	Data      any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to encode response body")
	}
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	WriteErrorWithDetails(w, r, statusCode, code, message, nil)
}

// WriteErrorWithDetails writes an error envelope with an extra details payload.
func WriteErrorWithDetails(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, details any) {
	writeJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: GetRequestID(r.Context()),
			Details:   details,
		},
	})
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	writeJSON(w, statusCode, SuccessResponse{
		RequestID: GetRequestID(r.Context()),
		Data:      data,
	})
}

func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusConflict, "conflict", message)
}

func WriteGone(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusGone, "gone", message)
}

func WritePayloadTooLarge(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", message)
}

func WriteTooManyRequests(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusTooManyRequests, "too_many_requests", message)
}

func WriteInternalError(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusInternalServerError, "internal_error", message)
}

// WriteBadGateway reports a failure of an upstream collaborator such as the
// email provider.
func WriteBadGateway(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadGateway, "upstream_failure", message)
}

func WriteServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusServiceUnavailable, "service_unavailable", message)
}
