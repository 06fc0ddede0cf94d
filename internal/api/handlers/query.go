package handlers

import (
	"context"
	"net/http"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/api"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]domain.ScoredChunk, error)
}

type AskService interface {
	Ask(ctx context.Context, input service.AskInput) (*service.AskResult, error)
}

type QueryHandler struct {
	search SearchService
	ask    AskService
}

func NewQueryHandler(search SearchService, ask AskService) *QueryHandler {
	return &QueryHandler{search: search, ask: ask}
}

type SearchRequest struct {
	Query       string   `json:"query" validate:"required"`
	DocumentIDs []string `json:"document_ids"`
	TopK        int      `json:"top_k" validate:"gte=0,lte=100"`
	MinPage     int      `json:"min_page" validate:"gte=0"`
}

type AskRequest struct {
	Question    string   `json:"question" validate:"required"`
	DocumentIDs []string `json:"document_ids"`
	TopK        int      `json:"top_k" validate:"gte=0,lte=100"`
	MinPage     int      `json:"min_page" validate:"gte=0"`
}

type SourceResponse struct {
	DocumentID string  `json:"document_id"`
	Index      int     `json:"chunk_index"`
	Page       int     `json:"page"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type AskResponse struct {
	Answer  string           `json:"answer"`
	Sources []SourceResponse `json:"sources"`
}

func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, r, err)
		return
	}

	results, err := h.search.Search(r.Context(), service.SearchInput{
		Query:       req.Query,
		DocumentIDs: req.DocumentIDs,
		TopK:        req.TopK,
		MinPage:     req.MinPage,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, scoredToResponse(results))
}

func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, r, err)
		return
	}

	res, err := h.ask.Ask(r.Context(), service.AskInput{
		Question:    req.Question,
		DocumentIDs: req.DocumentIDs,
		TopK:        req.TopK,
		MinPage:     req.MinPage,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, AskResponse{Answer: res.Answer, Sources: scoredToResponse(res.Sources)})
}
