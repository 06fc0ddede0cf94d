package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "value", result["key"])
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var result SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	data, ok := result.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "123", data["id"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "invalid input", result.Error)
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"configuration", domain.Configurationf("bad overlap"), http.StatusBadRequest},
		{"invalid argument", domain.ErrEmptyQuery, http.StatusBadRequest},
		{"not found", domain.ErrDocumentNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", domain.ErrDocumentNotFound), http.StatusNotFound},
		{"ocr unavailable", domain.NewDomainError(domain.ErrCodeOCRUnavailable, "no tesseract"), http.StatusServiceUnavailable},
		{"unsupported format", domain.NewDomainError(domain.ErrCodeUnsupportedFormat, "zip"), http.StatusUnsupportedMediaType},
		{"embedding unavailable", domain.NewDomainError(domain.ErrCodeEmbeddingUnavailable, "down"), http.StatusServiceUnavailable},
		{"rate limited", domain.NewDomainError(domain.ErrCodeRateLimited, "429"), http.StatusTooManyRequests},
		{"timeout", domain.NewDomainError(domain.ErrCodeTimeout, "slow"), http.StatusGatewayTimeout},
		{"capability auth", domain.NewDomainError(domain.ErrCodeCapabilityAuth, "bad key"), http.StatusBadGateway},
		{"dimension mismatch", domain.DimensionMismatch("a", 384, "b", 768), http.StatusConflict},
		{"extraction failed", domain.NewExtractionFailedError("raw", 3, nil), http.StatusUnprocessableEntity},
		{"unauthorized", domain.ErrInvalidAPIKey, http.StatusUnauthorized},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, StatusClientClosedRequest},
		{"unknown domain error", domain.NewDomainError("UNKNOWN", "unknown"), http.StatusInternalServerError},
		{"non-domain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DomainErrorToHTTP(tt.err))
		})
	}
}

func TestHandleError_ExtractionCarriesRawResponse(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/extract", nil)

	HandleError(w, r, domain.NewExtractionFailedError("Sorry, I cannot help", 3, assert.AnError))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.ErrCodeExtractionFailed, result.Code)
	assert.Equal(t, "Sorry, I cannot help", result.RawResponse)
	assert.Equal(t, 3, result.Attempts)
}

func TestHandleError_HidesUnexpectedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/documents", nil)

	HandleError(w, r, fmt.Errorf("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "internal server error", result.Error)
	assert.Empty(t, result.Code)
}
