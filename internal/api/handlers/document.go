package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/api"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/pagination"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/service"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
)

// maxMultipartMemory is the part of an upload kept in memory before spilling to disk.
const maxMultipartMemory = 32 << 20

type DocumentService interface {
	Upload(ctx context.Context, input service.UploadInput) (*service.UploadResult, error)
	Reindex(ctx context.Context, id string, sync bool) (*service.UploadResult, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, opts domain.DocumentListOptions) ([]*domain.Document, error)
	Stats(ctx context.Context) (*domain.DocumentStats, error)
	ListChunks(ctx context.Context, id string) ([]domain.Chunk, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int64, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ContentType string          `json:"content_type"`
	Size        int64           `json:"size"`
	Status      string          `json:"status"`
	Phase       string          `json:"phase"`
	FailedStage string          `json:"failed_stage,omitempty"`
	Error       string          `json:"error,omitempty"`
	ChunkCount  int             `json:"chunk_count"`
	PageCount   int             `json:"page_count"`
	ModelID     string          `json:"model_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IngestedAt  string          `json:"ingested_at,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type UploadResponse struct {
	Document *DocumentResponse `json:"document"`
	JobID    string            `json:"job_id,omitempty"`
	Skipped  bool              `json:"skipped"`
}

type ChunkResponse struct {
	Index     int     `json:"index"`
	Text      string  `json:"text"`
	Page      int     `json:"page"`
	CharStart int     `json:"char_start"`
	CharEnd   int     `json:"char_end"`
	ModelID   string  `json:"model_id,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

type ClearResponse struct {
	Deleted int64 `json:"deleted"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:          d.ID,
		Name:        d.Name,
		ContentType: d.ContentType,
		Size:        d.Size,
		Status:      string(d.Status),
		Phase:       string(d.Phase()),
		FailedStage: string(d.FailedStage),
		Error:       d.Error,
		ChunkCount:  d.ChunkCount,
		PageCount:   len(d.PageOffsets),
		ModelID:     d.ModelID,
		Metadata:    d.Metadata,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.Format(time.RFC3339),
	}
	if d.IngestedAt != nil {
		resp.IngestedAt = d.IngestedAt.Format(time.RFC3339)
	}
	return resp
}

func uploadToResponse(res *service.UploadResult) *UploadResponse {
	return &UploadResponse{
		Document: documentToResponse(res.Document),
		JobID:    res.JobID,
		Skipped:  res.Skipped,
	}
}

func chunkToResponse(c domain.Chunk) ChunkResponse {
	return ChunkResponse{
		Index:     c.Index,
		Text:      c.Text,
		Page:      c.Page,
		CharStart: c.CharStart,
		CharEnd:   c.CharEnd,
		ModelID:   c.Embedding.ModelID,
	}
}

func scoredToResponse(chunks []domain.ScoredChunk) []SourceResponse {
	out := make([]SourceResponse, len(chunks))
	for i, sc := range chunks {
		out[i] = SourceResponse{
			DocumentID: sc.Chunk.DocumentID,
			Index:      sc.Chunk.Index,
			Page:       sc.Chunk.Page,
			Text:       sc.Chunk.Text,
			Score:      sc.Score,
		}
	}
	return out
}

// readUpload returns the bytes and detected content type of the multipart
// "file" field.
func readUpload(r *http.Request) ([]byte, string, string, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", "", err
		}
		return nil, "", "", domain.InvalidArgumentf("expected multipart form with a file field")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", "", domain.InvalidArgumentf("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", err
	}
	if len(data) == 0 {
		return nil, "", "", domain.ErrEmptyDocumentData
	}

	contentType := mimetype.Detect(data).String()
	if declared := header.Header.Get("Content-Type"); contentType == "application/octet-stream" && declared != "" {
		contentType = declared
	}
	return data, contentType, header.Filename, nil
}

func writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	api.HandleError(w, r, err)
}

func formBool(r *http.Request, key string) (bool, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.InvalidArgumentf("%s must be a boolean", key)
	}
	return b, nil
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	data, contentType, filename, err := readUpload(r)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}

	force, err := formBool(r, "force")
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	sync, err := formBool(r, "sync")
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = filename
	}

	var metadata json.RawMessage
	if raw := strings.TrimSpace(r.FormValue("metadata")); raw != "" {
		if !json.Valid([]byte(raw)) {
			api.Error(w, http.StatusBadRequest, "metadata must be valid JSON")
			return
		}
		metadata = json.RawMessage(raw)
	}

	res, err := h.svc.Upload(r.Context(), service.UploadInput{
		Name:        name,
		ContentType: contentType,
		Data:        data,
		Force:       force,
		Sync:        sync,
		Metadata:    metadata,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	status := http.StatusAccepted
	switch {
	case res.Skipped:
		status = http.StatusOK
	case sync:
		status = http.StatusCreated
	}
	api.Success(w, status, uploadToResponse(res))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := domain.DocumentListOptions{Status: domain.DocumentStatus(r.URL.Query().Get("status"))}

	var err error
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid offset")
		return
	}
	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}
	if cursor != nil {
		opts.AfterID, opts.AfterCreatedAt = cursor.LastID, cursor.CreatedAt
	}

	docs, err := h.svc.List(r.Context(), opts)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	next := pagination.NextCursor(docs, opts.Limit,
		func(d *domain.Document) string { return d.ID },
		func(d *domain.Document) time.Time { return d.CreatedAt })
	if next != "" {
		w.Header().Set(pagination.NextCursorHeader, next)
	}

	resp := make([]*DocumentResponse, len(docs))
	for i, d := range docs {
		resp[i] = documentToResponse(d)
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Clear(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, ClearResponse{Deleted: n})
}

func (h *DocumentHandler) Reingest(w http.ResponseWriter, r *http.Request) {
	sync, err := strconv.ParseBool(defaultString(r.URL.Query().Get("sync"), "false"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "sync must be a boolean")
		return
	}

	res, err := h.svc.Reindex(r.Context(), chi.URLParam(r, "id"), sync)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if sync {
		status = http.StatusOK
	}
	api.Success(w, status, uploadToResponse(res))
}

func (h *DocumentHandler) Chunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := h.svc.ListChunks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	resp := make([]ChunkResponse, len(chunks))
	for i, c := range chunks {
		resp[i] = chunkToResponse(c)
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
