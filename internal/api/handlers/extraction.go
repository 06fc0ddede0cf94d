package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/api"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/extraction"
	"github.com/go-chi/chi/v5"
)

type ExtractionService interface {
	Schemas() []extraction.Schema
	ExtractDocument(ctx context.Context, documentID, schemaName string) (*domain.StructuredRecord, error)
	ExtractText(ctx context.Context, text, schemaName string) (*domain.StructuredRecord, error)
	ExtractUpload(ctx context.Context, data []byte, contentType, schemaName string) (*domain.StructuredRecord, error)
	Records(ctx context.Context, documentID string) ([]*domain.StructuredRecord, error)
}

type ExtractionHandler struct {
	svc ExtractionService
}

func NewExtractionHandler(svc ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{svc: svc}
}

type ExtractDocumentRequest struct {
	Schema string `json:"schema" validate:"required"`
}

type ExtractTextRequest struct {
	Schema string `json:"schema" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

type SchemaResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Fields      []string `json:"fields"`
}

func (h *ExtractionHandler) ExtractDocument(w http.ResponseWriter, r *http.Request) {
	var req ExtractDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, r, err)
		return
	}

	rec, err := h.svc.ExtractDocument(r.Context(), chi.URLParam(r, "id"), req.Schema)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, rec)
}

func (h *ExtractionHandler) Records(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Records(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, recs)
}

// Extract accepts either a JSON body with text or a multipart upload with a
// file and a schema field.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		h.extractUpload(w, r)
		return
	}

	var req ExtractTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, r, err)
		return
	}

	rec, err := h.svc.ExtractText(r.Context(), req.Text, req.Schema)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, rec)
}

func (h *ExtractionHandler) extractUpload(w http.ResponseWriter, r *http.Request) {
	data, contentType, _, err := readUpload(r)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}

	schema := strings.TrimSpace(r.FormValue("schema"))
	if schema == "" {
		api.Error(w, http.StatusBadRequest, "schema is required")
		return
	}

	rec, err := h.svc.ExtractUpload(r.Context(), data, contentType, schema)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, rec)
}

func (h *ExtractionHandler) Schemas(w http.ResponseWriter, r *http.Request) {
	schemas := h.svc.Schemas()
	resp := make([]SchemaResponse, len(schemas))
	for i, s := range schemas {
		fields := make([]string, len(s.Fields))
		for j, f := range s.Fields {
			fields[j] = f.Name
		}
		resp[i] = SchemaResponse{Name: s.Name, Description: s.Description, Fields: fields}
	}
	api.Success(w, http.StatusOK, resp)
}
