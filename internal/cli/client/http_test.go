package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReader_ReportsProgress(t *testing.T) {
	data := []byte("hello world this is test data")
	reader := bytes.NewReader(data)

	var progressCalls []struct{ current, total int64 }
	pr := &progressReader{
		reader: reader,
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			progressCalls = append(progressCalls, struct{ current, total int64 }{current, total})
		},
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)

	// Progress should have been called at least once
	assert.NotEmpty(t, progressCalls)

	// Final progress should equal total
	lastCall := progressCalls[len(progressCalls)-1]
	assert.Equal(t, int64(len(data)), lastCall.current)
	assert.Equal(t, int64(len(data)), lastCall.total)
}

func TestProgressReader_NilCallback(t *testing.T) {
	data := []byte("hello world")
	reader := bytes.NewReader(data)

	pr := &progressReader{
		reader:     reader,
		total:      int64(len(data)),
		onProgress: nil, // No callback
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}

func TestProgressReader_SmallReads(t *testing.T) {
	data := []byte("hello world")
	reader := bytes.NewReader(data)

	var progressValues []int64
	pr := &progressReader{
		reader: reader,
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			progressValues = append(progressValues, current)
		},
	}

	// Read one byte at a time
	buf := make([]byte, 1)
	for {
		n, err := pr.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	// Progress should increase monotonically
	for i := 1; i < len(progressValues); i++ {
		assert.GreaterOrEqual(t, progressValues[i], progressValues[i-1])
	}
}

func TestAPIClient_SendsBearerAndDecodesData(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	api := NewAPIClientWithConfig("drg_test_key_0123456789", srv.URL, time.Second)
	resp, err := api.Post(context.Background(), "/search", SearchRequest{Query: "premium"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer drg_test_key_0123456789", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"status":"ok"}`, string(resp.Data))
}

func TestAPIClient_NoKeyNoAuthorizationHeader(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig("", srv.URL, time.Second).Get(context.Background(), "/documents")
	require.NoError(t, err)
	assert.False(t, sawAuth)
}

func TestAPIClient_ErrorCarriesCodeAndRawResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"extraction failed","code":"EXTRACTION_FAILED","raw_response":"not json","attempts":3}`))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig("", srv.URL, time.Second).Post(context.Background(), "/extract", map[string]string{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "EXTRACTION_FAILED", apiErr.Code)
	assert.Equal(t, "not json", apiErr.RawResponse)
	assert.Contains(t, apiErr.Error(), "EXTRACTION_FAILED")
}

func TestAPIClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig("", srv.URL, time.Second).Get(context.Background(), "/stats")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestAPIClient_EmptyBodyOnNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := NewAPIClientWithConfig("", srv.URL, time.Second).Delete(context.Background(), "/documents/doc-1")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

func TestAPIClient_PostMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "invoice.pdf", r.FormValue("name"))
		assert.Equal(t, "true", r.FormValue("sync"))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.4 test", string(body))
		assert.Equal(t, "invoice.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"skipped":false}}`))
	}))
	defer srv.Close()

	var last int64
	api := NewAPIClientWithConfig("", srv.URL, time.Second)
	_, err := api.PostMultipart(context.Background(), "/documents",
		map[string]string{"name": "invoice.pdf", "sync": "true"},
		FilePart{Field: "file", Filename: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 test")},
		func(current, total int64) { last = current; assert.LessOrEqual(t, current, total) },
	)
	require.NoError(t, err)
	assert.Positive(t, last)
}

func TestAPIClient_ReadsNextCursorHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Next-Cursor", "next-page")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	resp, err := NewAPIClientWithConfig("", srv.URL, time.Second).Get(context.Background(), "/documents?limit=1")
	require.NoError(t, err)
	assert.Equal(t, "next-page", resp.NextCursor)
}
