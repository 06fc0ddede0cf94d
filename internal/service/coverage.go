package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/extraction"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retrieval"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/telemetry"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/vectorstore"
)

// StructuredExtractor turns source text into a validated record.
type StructuredExtractor interface {
	Extract(ctx context.Context, sourceText string, schema extraction.Schema) (*domain.StructuredRecord, error)
}

// SchemaLookup resolves extraction schemas by name.
type SchemaLookup interface {
	Get(name string) (extraction.Schema, error)
}

// CoverageService decides whether a claimed incident is covered by indexed
// policy wording.
type CoverageService struct {
	retriever ContextRetriever
	extractor StructuredExtractor
	schemas   SchemaLookup
	cfg       RetrievalConfig
}

func NewCoverageService(retriever ContextRetriever, extractor StructuredExtractor, schemas SchemaLookup, cfg RetrievalConfig) *CoverageService {
	return &CoverageService{retriever: retriever, extractor: extractor, schemas: schemas, cfg: cfg}
}

type CoverageInput struct {
	Claim            map[string]any
	PolicyDocumentID string
	TopK             int
}

// Analyze searches the policy for the claim's incident description and asks
// the model for a coverage decision.
func (s *CoverageService) Analyze(ctx context.Context, input CoverageInput) (*domain.CoverageAnalysis, error) {
	ctx, span := telemetry.StartSpan(ctx, "CoverageService.Analyze", telemetry.SpanAttributes{
		DocumentID: input.PolicyDocumentID,
		Schema:     extraction.SchemaCoverageAnalysis,
		Operation:  "coverage",
	})
	defer span.End()

	incident := strings.TrimSpace(stringField(input.Claim, "incident_description"))
	if incident == "" {
		return nil, domain.InvalidArgumentf("claim has no incident_description")
	}

	schema, err := s.schemas.Get(extraction.SchemaCoverageAnalysis)
	if err != nil {
		return nil, err
	}

	var filter vectorstore.Filter
	if input.PolicyDocumentID != "" {
		filter.DocumentIDs = []string{input.PolicyDocumentID}
	}
	chunks, err := s.retriever.Retrieve(ctx, incident, s.cfg.topK(input.TopK), s.cfg.MaxContextChars, filter)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeNotFound, "could not find relevant policy sections")
	}

	rec, err := s.extractor.Extract(ctx, CoverageSource(incident, chunks), schema)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &domain.CoverageAnalysis{
		IsCovered:          stringField(rec.Fields, "is_covered"),
		Confidence:         stringField(rec.Fields, "confidence"),
		Reasoning:          stringField(rec.Fields, "reasoning"),
		RelevantPolicyText: stringField(rec.Fields, "relevant_policy_text"),
		Record:             rec,
		Sources:            chunks,
	}, nil
}

// CoverageSource is the text the coverage schema is extracted from.
func CoverageSource(incident string, chunks []domain.ScoredChunk) string {
	return fmt.Sprintf("INCIDENT DESCRIPTION:\n%s\n\nRELEVANT POLICY SECTIONS:\n%s", incident, retrieval.FormatContext(chunks))
}

// stringField renders a field for comparison. Missing and null are "".
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
