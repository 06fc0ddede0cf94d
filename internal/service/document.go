package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/ingestion"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/storage"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/telemetry"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/phuslu/log"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Update(ctx context.Context, doc *domain.Document) error
	List(ctx context.Context, opts domain.DocumentListOptions) ([]*domain.Document, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*domain.DocumentStats, error)
}

// IngestionJobRepositoryInterface defines the repository interface for queued ingestion
type IngestionJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
}

// Ingester runs the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, req ingestion.IngestRequest) (*domain.Document, error)
	Process(ctx context.Context, documentID string, force bool) (*domain.Document, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService handles uploads and the document lifecycle.
type DocumentService struct {
	docs     DocumentRepositoryInterface
	chunks   vectorstore.Store
	sources  storage.Store
	pipeline Ingester
	tx       TxRunner
	uuidGen  UUIDGenerator
	onQueued func()
}

// NewDocumentService creates a DocumentService. tx may be nil, in which case
// only synchronous uploads are available.
func NewDocumentService(
	docs DocumentRepositoryInterface,
	chunks vectorstore.Store,
	sources storage.Store,
	pipeline Ingester,
	tx TxRunner,
) *DocumentService {
	return NewDocumentServiceWithUUIDGen(docs, chunks, sources, pipeline, tx, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with a custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	docs DocumentRepositoryInterface,
	chunks vectorstore.Store,
	sources storage.Store,
	pipeline Ingester,
	tx TxRunner,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		docs:     docs,
		chunks:   chunks,
		sources:  sources,
		pipeline: pipeline,
		tx:       tx,
		uuidGen:  uuidGen,
	}
}

type UploadInput struct {
	Name        string
	ContentType string
	Data        []byte
	Force       bool
	Sync        bool
	Metadata    json.RawMessage
}

// UploadResult is the uploaded document. JobID is set when processing was
// queued; Skipped when the document was already indexed.
type UploadResult struct {
	Document *domain.Document `json:"document"`
	JobID    string           `json:"job_id,omitempty"`
	Skipped  bool             `json:"skipped"`
}

// OnJobQueued registers fn to run after an ingestion job is committed, e.g.
// to wake the background worker.
func (s *DocumentService) OnJobQueued(fn func()) {
	s.onQueued = fn
}

func (s *DocumentService) jobQueued() {
	if s.onQueued != nil {
		s.onQueued()
	}
}

// Upload stores a document. With Sync it runs the pipeline before returning,
// otherwise it queues an ingestion job in the same transaction that creates
// the document.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		Operation: "upload",
	})
	defer span.End()

	if len(input.Data) == 0 {
		return nil, domain.ErrEmptyDocumentData
	}

	req := ingestion.IngestRequest{
		Name:        input.Name,
		ContentType: input.ContentType,
		Data:        input.Data,
		Force:       input.Force,
		Metadata:    input.Metadata,
	}

	if input.Sync {
		doc, err := s.pipeline.Ingest(ctx, req)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		return &UploadResult{Document: doc}, nil
	}

	if s.tx == nil {
		return nil, domain.Configurationf("asynchronous ingestion requires a database")
	}

	var result UploadResult
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		doc, err := repos.Documents().GetByID(ctx, domain.DocumentID(input.Data))
		switch {
		case err == nil:
			if doc.Status == domain.DocumentStatusIndexed && !input.Force {
				result = UploadResult{Document: doc, Skipped: true}
				return nil
			}
		case errors.Is(err, domain.ErrDocumentNotFound):
			doc = ingestion.NewDocument(req)
			if err := repos.Documents().Create(ctx, doc); err != nil {
				return err
			}
		default:
			return err
		}

		if err := repos.Sources().Put(ctx, doc.ID, input.Data, input.ContentType); err != nil {
			return fmt.Errorf("store source of %s: %w", doc.ID, err)
		}

		job := domain.NewIngestionJob(s.uuidGen.NewString(), doc.ID, input.Force, time.Now().UTC())
		if err := repos.Jobs().Create(ctx, job); err != nil {
			return fmt.Errorf("queue ingestion of %s: %w", doc.ID, err)
		}
		result = UploadResult{Document: doc, JobID: job.ID}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if result.JobID != "" {
		log.Info().Str("document_id", result.Document.ID).Str("job_id", result.JobID).Msg("ingestion queued")
		s.jobQueued()
	}
	return &result, nil
}

// Reindex re-runs the pipeline for a stored document from its source bytes.
func (s *DocumentService) Reindex(ctx context.Context, id string, sync bool) (*UploadResult, error) {
	if sync {
		doc, err := s.pipeline.Process(ctx, id, true)
		if err != nil {
			return nil, err
		}
		return &UploadResult{Document: doc}, nil
	}

	if s.tx == nil {
		return nil, domain.Configurationf("asynchronous ingestion requires a database")
	}

	var result UploadResult
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		doc, err := repos.Documents().GetByID(ctx, id)
		if err != nil {
			return err
		}
		job := domain.NewIngestionJob(s.uuidGen.NewString(), id, true, time.Now().UTC())
		if err := repos.Jobs().Create(ctx, job); err != nil {
			return err
		}
		result = UploadResult{Document: doc, JobID: job.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.jobQueued()
	return &result, nil
}

// ReindexAll re-runs every stored document in turn and reports how many were
// indexed. Failures do not stop the run.
func (s *DocumentService) ReindexAll(ctx context.Context) (int, error) {
	docs, err := s.docs.List(ctx, domain.DocumentListOptions{})
	if err != nil {
		return 0, err
	}

	var errs []error
	indexed := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if _, err := s.pipeline.Process(ctx, doc.ID, true); err != nil {
			errs = append(errs, err)
			continue
		}
		indexed++
	}
	return indexed, errors.Join(errs...)
}

func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.docs.GetByID(ctx, id)
}

func (s *DocumentService) List(ctx context.Context, opts domain.DocumentListOptions) ([]*domain.Document, error) {
	if opts.Status != "" && !domain.IsValidDocumentStatus(opts.Status) {
		return nil, domain.InvalidArgumentf("unknown document status %q", opts.Status)
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, domain.InvalidArgumentf("limit and offset must not be negative")
	}
	if opts.AfterID != "" && opts.Offset > 0 {
		return nil, domain.InvalidArgumentf("cursor and offset cannot be combined")
	}
	return s.docs.List(ctx, opts)
}

func (s *DocumentService) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	return s.docs.Stats(ctx)
}

// ListChunks returns a document's indexed chunks in order.
func (s *DocumentService) ListChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	if _, err := s.docs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.chunks.ListChunks(ctx, id)
}

// Delete removes a document with its chunks and source bytes.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	if _, err := s.docs.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.chunks.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", id, err)
	}
	if err := s.sources.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Str("document_id", id).Msg("failed to delete document source")
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Str("document_id", id).Msg("document deleted")
	return nil
}

// Clear removes every document and reports how many were deleted.
func (s *DocumentService) Clear(ctx context.Context) (int64, error) {
	docs, err := s.docs.List(ctx, domain.DocumentListOptions{})
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		if err := s.sources.Delete(ctx, doc.ID); err != nil {
			log.Warn().Err(err).Str("document_id", doc.ID).Msg("failed to delete document source")
		}
	}
	if err := s.chunks.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear chunks: %w", err)
	}
	n, err := s.docs.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("documents", n).Msg("knowledge base cleared")
	return n, nil
}
