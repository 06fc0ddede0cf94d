package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/telemetry"
	"github.com/phuslu/log"
)

// StatusClientClosedRequest is reported when the caller went away.
const StatusClientClosedRequest = 499

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse represents an error API response. Extraction failures carry
// the model's raw output for auditing.
type ErrorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Warn().Err(err).Msg("failed to encode response")
		}
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

var codeStatus = map[string]int{
	domain.ErrCodeValidation:            http.StatusBadRequest,
	domain.ErrCodeConfiguration:         http.StatusBadRequest,
	domain.ErrCodeInvalidArgument:       http.StatusBadRequest,
	domain.ErrCodeNotFound:              http.StatusNotFound,
	domain.ErrCodeAlreadyExists:         http.StatusConflict,
	domain.ErrCodeUnauthorized:          http.StatusUnauthorized,
	domain.ErrCodeInternalError:         http.StatusInternalServerError,
	domain.ErrCodeOCRUnavailable:        http.StatusServiceUnavailable,
	domain.ErrCodeUnsupportedFormat:     http.StatusUnsupportedMediaType,
	domain.ErrCodeEmbeddingUnavailable:  http.StatusServiceUnavailable,
	domain.ErrCodeCapabilityUnavailable: http.StatusServiceUnavailable,
	domain.ErrCodeRateLimited:           http.StatusTooManyRequests,
	domain.ErrCodeTimeout:               http.StatusGatewayTimeout,
	domain.ErrCodeCapabilityAuth:        http.StatusBadGateway,
	domain.ErrCodeDimensionMismatch:     http.StatusConflict,
	domain.ErrCodeExtractionParse:       http.StatusUnprocessableEntity,
	domain.ErrCodeExtractionFailed:      http.StatusUnprocessableEntity,
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	}

	if status, ok := codeStatus[domain.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes an appropriate error response based on the error type.
// Unexpected errors are logged and reported to Sentry.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status := DomainErrorToHTTP(err)
	resp := ErrorResponse{Error: err.Error(), Code: domain.CodeOf(err)}

	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) {
		resp.RawResponse = extErr.RawResponse
		resp.Attempts = extErr.Attempts
	}

	if status >= http.StatusInternalServerError && resp.Code == "" {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		telemetry.CaptureError(r.Context(), err)
		resp.Error = "internal server error"
	}
	JSON(w, status, resp)
}
