package handlers

import (
	"context"
	"net/http"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/api"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/service"
)

type CoverageService interface {
	Analyze(ctx context.Context, input service.CoverageInput) (*domain.CoverageAnalysis, error)
}

type ClaimHandler struct {
	coverage CoverageService
}

func NewClaimHandler(coverage CoverageService) *ClaimHandler {
	return &ClaimHandler{coverage: coverage}
}

type ValidateClaimRequest struct {
	Policy map[string]any `json:"policy" validate:"required"`
	Claim  map[string]any `json:"claim" validate:"required"`
}

type CoverageRequest struct {
	Claim            map[string]any `json:"claim" validate:"required"`
	PolicyDocumentID string         `json:"policy_document_id"`
	TopK             int            `json:"top_k" validate:"gte=0,lte=100"`
}

// Validate runs the rule-based consistency checks between an extracted
// policy and claim. It never calls a model.
func (h *ClaimHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, service.ValidateClaim(req.Policy, req.Claim))
}

func (h *ClaimHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	var req CoverageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, r, err)
		return
	}

	analysis, err := h.coverage.Analyze(r.Context(), service.CoverageInput{
		Claim:            req.Claim,
		PolicyDocumentID: req.PolicyDocumentID,
		TopK:             req.TopK,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, analysis)
}
