package service

import (
	"context"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/chunking"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/extraction"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/ocr"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/telemetry"
	"github.com/phuslu/log"
)

// ExtractionRepositoryInterface persists structured records.
type ExtractionRepositoryInterface interface {
	Create(ctx context.Context, rec *domain.StructuredRecord) error
	ListByDocument(ctx context.Context, documentID string) ([]*domain.StructuredRecord, error)
}

// DocumentGetter loads one document.
type DocumentGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// ExtractionService extracts schema-shaped records from documents and text.
type ExtractionService struct {
	docs      DocumentGetter
	records   ExtractionRepositoryInterface
	extractor StructuredExtractor
	registry  *extraction.Registry
	ocr       ocr.Extractor
	uuidGen   UUIDGenerator
}

func NewExtractionService(
	docs DocumentGetter,
	records ExtractionRepositoryInterface,
	extractor StructuredExtractor,
	registry *extraction.Registry,
	textExtractor ocr.Extractor,
) *ExtractionService {
	return &ExtractionService{
		docs:      docs,
		records:   records,
		extractor: extractor,
		registry:  registry,
		ocr:       textExtractor,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// Schemas lists the registered schemas by name.
func (s *ExtractionService) Schemas() []extraction.Schema {
	return s.registry.List()
}

// ExtractDocument runs a schema over a stored document's OCR text and keeps
// the record, raw response included.
func (s *ExtractionService) ExtractDocument(ctx context.Context, documentID, schemaName string) (*domain.StructuredRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "ExtractionService.ExtractDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Schema:     schemaName,
		Operation:  "extract",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, domain.InvalidArgumentf("document %s has no extracted text (status %s)", documentID, doc.Status)
	}

	rec, err := s.extract(ctx, doc.Text, schemaName)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	rec.ID = s.uuidGen.NewString()
	rec.DocumentID = documentID
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	log.Info().
		Str("document_id", documentID).
		Str("schema", schemaName).
		Str("status", string(rec.Status)).
		Int("problems", len(rec.Problems)).
		Msg("extraction record stored")
	return rec, nil
}

// ExtractText runs a schema over caller-supplied text. Nothing is stored.
func (s *ExtractionService) ExtractText(ctx context.Context, text, schemaName string) (*domain.StructuredRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "ExtractionService.ExtractText", telemetry.SpanAttributes{
		Schema:    schemaName,
		Operation: "extract",
	})
	defer span.End()

	rec, err := s.extract(ctx, text, schemaName)
	if err != nil {
		span.SetError(err)
	}
	return rec, err
}

// ExtractUpload OCRs an uploaded file and runs a schema over its text.
func (s *ExtractionService) ExtractUpload(ctx context.Context, data []byte, contentType, schemaName string) (*domain.StructuredRecord, error) {
	if _, err := s.registry.Get(schemaName); err != nil {
		return nil, err
	}
	res, err := s.ocr.Extract(ctx, data, contentType)
	if err != nil {
		return nil, err
	}

	pages := make([]string, len(res.Pages))
	for i, p := range res.Pages {
		pages[i] = chunking.Clean(p)
	}
	text := ocr.JoinPages(pages).Text
	if strings.TrimSpace(strings.Join(pages, "")) == "" {
		return nil, domain.InvalidArgumentf("no text could be extracted from the document")
	}
	return s.ExtractText(ctx, text, schemaName)
}

// Records lists the stored records of a document.
func (s *ExtractionService) Records(ctx context.Context, documentID string) ([]*domain.StructuredRecord, error) {
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	return s.records.ListByDocument(ctx, documentID)
}

func (s *ExtractionService) extract(ctx context.Context, text, schemaName string) (*domain.StructuredRecord, error) {
	schema, err := s.registry.Get(schemaName)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, text, schema)
}
