package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/pagination"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, input service.UploadInput) (*service.UploadResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockDocumentService) Reindex(ctx context.Context, id string, sync bool) (*service.UploadResult, error) {
	args := m.Called(ctx, id, sync)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, opts domain.DocumentListOptions) ([]*domain.Document, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentStats), args.Error(1)
}

func (m *MockDocumentService) ListChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentService) Clear(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func testDocument(status domain.DocumentStatus) *domain.Document {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Document{
		ID:          "abc123",
		Name:        "policy.pdf",
		ContentType: "application/pdf",
		Size:        2048,
		Status:      status,
		PageOffsets: []int{0, 600},
		ChunkCount:  3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func multipartRequest(t *testing.T, target string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", "upload.txt")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

func TestDocumentHandler_UploadAsync(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
		return in.Name == "schedule" && in.ContentType == "text/plain; charset=utf-8" &&
			string(in.Data) == "POLICY NUMBER: P-1" && in.Force && !in.Sync
	})).Return(&service.UploadResult{Document: testDocument(domain.DocumentStatusUploaded), JobID: "job-1"}, nil)

	req := multipartRequest(t, "/documents", map[string]string{"name": "schedule", "force": "true"}, []byte("POLICY NUMBER: P-1"))
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var resp UploadResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "uploaded", resp.Document.Status)
	assert.Equal(t, "pending", resp.Document.Phase)
	assert.Equal(t, 2, resp.Document.PageCount)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_UploadSyncAndSkipped(t *testing.T) {
	tests := []struct {
		name     string
		result   *service.UploadResult
		expected int
	}{
		{"indexed", &service.UploadResult{Document: testDocument(domain.DocumentStatusIndexed)}, http.StatusCreated},
		{"skipped", &service.UploadResult{Document: testDocument(domain.DocumentStatusIndexed), Skipped: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockDocumentService)
			mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
				return in.Sync && in.Name == "upload.txt"
			})).Return(tt.result, nil)

			req := multipartRequest(t, "/documents", map[string]string{"sync": "true"}, []byte("hello"))
			w := httptest.NewRecorder()

			NewDocumentHandler(mockSvc).Upload(w, req)

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestDocumentHandler_UploadValidation(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
	}{
		{"not multipart", func(t *testing.T) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader([]byte("{}")))
		}, http.StatusBadRequest},
		{"missing file", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/documents", map[string]string{"name": "x"}, nil)
		}, http.StatusBadRequest},
		{"empty file", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/documents", nil, []byte{})
		}, http.StatusBadRequest},
		{"bad force flag", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/documents", map[string]string{"force": "maybe"}, []byte("x"))
		}, http.StatusBadRequest},
		{"bad metadata", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/documents", map[string]string{"metadata": "{"}, []byte("x"))
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockDocumentService)
			w := httptest.NewRecorder()

			NewDocumentHandler(mockSvc).Upload(w, tt.req(t))

			assert.Equal(t, tt.status, w.Code)
			mockSvc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
		})
	}
}

func TestDocumentHandler_UploadUnsupportedFormat(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Upload", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainError(domain.ErrCodeUnsupportedFormat, "unsupported document format application/zip"))

	req := multipartRequest(t, "/documents", nil, []byte("PK\x03\x04"))
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Upload(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestDocumentHandler_List(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("List", mock.Anything, domain.DocumentListOptions{Status: domain.DocumentStatusFailed, Limit: 10, Offset: 20}).
		Return([]*domain.Document{testDocument(domain.DocumentStatusFailed)}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents?status=failed&limit=10&offset=20", nil)
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []DocumentResponse
	decodeData(t, w, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "failed", resp[0].Phase)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_ListCursor(t *testing.T) {
	doc := testDocument(domain.DocumentStatusIndexed)
	cursor := pagination.EncodeCursor("prev-id", doc.CreatedAt.Add(time.Hour))

	mockSvc := new(MockDocumentService)
	mockSvc.On("List", mock.Anything, mock.MatchedBy(func(opts domain.DocumentListOptions) bool {
		return opts.Limit == 1 && opts.AfterID == "prev-id" && opts.AfterCreatedAt.Equal(doc.CreatedAt.Add(time.Hour))
	})).Return([]*domain.Document{doc}, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(mockSvc).List(w, httptest.NewRequest(http.MethodGet, "/documents?limit=1&cursor="+cursor, nil))

	require.Equal(t, http.StatusOK, w.Code)
	next, err := pagination.DecodeCursor(w.Header().Get(pagination.NextCursorHeader))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, doc.ID, next.LastID)
	assert.True(t, next.CreatedAt.Equal(doc.CreatedAt))
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_ListLastPageHasNoCursor(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("List", mock.Anything, mock.Anything).
		Return([]*domain.Document{testDocument(domain.DocumentStatusIndexed)}, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(mockSvc).List(w, httptest.NewRequest(http.MethodGet, "/documents?limit=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(pagination.NextCursorHeader))
}

func TestDocumentHandler_ListInvalidCursor(t *testing.T) {
	mockSvc := new(MockDocumentService)
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).List(w, httptest.NewRequest(http.MethodGet, "/documents?cursor=%21%21", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestDocumentHandler_ListInvalidLimit(t *testing.T) {
	mockSvc := new(MockDocumentService)
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).List(w, httptest.NewRequest(http.MethodGet, "/documents?limit=ten", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_GetNotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Get", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/documents/missing", nil), "id", "missing")
	w := httptest.NewRecorder()

	NewDocumentHandler(mockSvc).Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_DeleteAndClear(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Delete", mock.Anything, "abc123").Return(nil)
	mockSvc.On("Clear", mock.Anything).Return(int64(4), nil)
	handler := NewDocumentHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.Delete(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/documents/abc123", nil), "id", "abc123"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.Clear(w, httptest.NewRequest(http.MethodDelete, "/documents", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var resp ClearResponse
	decodeData(t, w, &resp)
	assert.Equal(t, int64(4), resp.Deleted)
}

func TestDocumentHandler_Reingest(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Reindex", mock.Anything, "abc123", false).
		Return(&service.UploadResult{Document: testDocument(domain.DocumentStatusIndexed), JobID: "job-2"}, nil)
	mockSvc.On("Reindex", mock.Anything, "abc123", true).
		Return(&service.UploadResult{Document: testDocument(domain.DocumentStatusIndexed)}, nil)
	handler := NewDocumentHandler(mockSvc)

	w := httptest.NewRecorder()
	handler.Reingest(w, withURLParam(httptest.NewRequest(http.MethodPost, "/documents/abc123/reingest", nil), "id", "abc123"))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	handler.Reingest(w, withURLParam(httptest.NewRequest(http.MethodPost, "/documents/abc123/reingest?sync=true", nil), "id", "abc123"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.Reingest(w, withURLParam(httptest.NewRequest(http.MethodPost, "/documents/abc123/reingest?sync=soon", nil), "id", "abc123"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Chunks(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("ListChunks", mock.Anything, "abc123").Return([]domain.Chunk{
		{DocumentID: "abc123", Index: 0, Text: "first", Page: 1, CharStart: 0, CharEnd: 5, Embedding: domain.Vector{ModelID: "hashing-v1-384"}},
	}, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(mockSvc).Chunks(w, withURLParam(httptest.NewRequest(http.MethodGet, "/documents/abc123/chunks", nil), "id", "abc123"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []ChunkResponse
	decodeData(t, w, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, "first", resp[0].Text)
	assert.Equal(t, "hashing-v1-384", resp[0].ModelID)
}

func TestDocumentHandler_Stats(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Stats", mock.Anything).Return(&domain.DocumentStats{
		TotalDocuments:       2,
		TotalChunks:          6,
		AvgChunksPerDocument: 3,
		ByStatus:             map[domain.DocumentStatus]int{domain.DocumentStatusIndexed: 2},
	}, nil)

	w := httptest.NewRecorder()
	NewDocumentHandler(mockSvc).Stats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp domain.DocumentStats
	decodeData(t, w, &resp)
	assert.Equal(t, 6, resp.TotalChunks)
	assert.Equal(t, 2, resp.ByStatus[domain.DocumentStatusIndexed])
}
