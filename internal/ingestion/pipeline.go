// Package ingestion runs documents through OCR, chunking, embedding and
// indexing, persisting the document state after every stage.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/chunking"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/ocr"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retry"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/storage"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/telemetry"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/vectorstore"
	"github.com/phuslu/log"
)

// DocumentStore persists documents.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Update(ctx context.Context, doc *domain.Document) error
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([]domain.Vector, error)
	ModelID() string
}

// Config configures a Pipeline. Stages without an entry in Policies use Retry.
type Config struct {
	ChunkSize int
	Overlap   int
	Retry     retry.Policy
	Policies  map[domain.Stage]retry.Policy
}

// DefaultConfig returns the default chunk sizes and retry policy.
func DefaultConfig() Config {
	c := chunking.DefaultConfig()
	return Config{
		ChunkSize: c.MaxChunkSize,
		Overlap:   c.Overlap,
		Retry:     retry.DefaultPolicy("ingestion"),
	}
}

func (c Config) policy(stage domain.Stage) retry.Policy {
	p, ok := c.Policies[stage]
	if !ok {
		p = c.Retry
	}
	p.Name = "ingestion." + string(stage)
	return p
}

// IngestRequest is a new source document.
type IngestRequest struct {
	Name        string
	ContentType string
	Data        []byte
	Force       bool
	Metadata    json.RawMessage
}

// StageError reports the stage a document failed in.
type StageError struct {
	DocumentID string
	Stage      domain.Stage
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("document %s failed at %s: %v", e.DocumentID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline moves documents through uploaded → ocr_extracted → chunked →
// embedded → indexed. Runs for the same document id are serialized.
type Pipeline struct {
	docs      DocumentStore
	sources   storage.Store
	extractor ocr.Extractor
	chunker   *chunking.Chunker
	embedder  Embedder
	store     vectorstore.Store
	cfg       Config
	locks     *keyedMutex
}

func NewPipeline(
	docs DocumentStore,
	sources storage.Store,
	extractor ocr.Extractor,
	embedder Embedder,
	store vectorstore.Store,
	cfg Config,
) *Pipeline {
	return &Pipeline{
		docs:      docs,
		sources:   sources,
		extractor: extractor,
		chunker:   chunking.NewChunker(chunking.Config{MaxChunkSize: cfg.ChunkSize, Overlap: cfg.Overlap}),
		embedder:  embedder,
		store:     store,
		cfg:       cfg,
		locks:     newKeyedMutex(),
	}
}

// Ingest stores the source bytes and runs the whole pipeline. Re-ingesting an
// indexed document without Force returns it unchanged.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*domain.Document, error) {
	if len(req.Data) == 0 {
		return nil, domain.ErrEmptyDocumentData
	}
	if err := p.validateConfig(); err != nil {
		return nil, err
	}

	id := domain.DocumentID(req.Data)
	unlock, err := p.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, created, err := p.register(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if !created && doc.Status == domain.DocumentStatusIndexed && !req.Force {
		log.Info().Str("document_id", id).Msg("document already indexed, skipping")
		return doc, nil
	}
	if !created {
		if err := p.reset(ctx, doc); err != nil {
			return nil, err
		}
	}
	return p.run(ctx, doc, req.Data)
}

// Process runs the pipeline for a stored document from its source bytes.
func (p *Pipeline) Process(ctx context.Context, documentID string, force bool) (*domain.Document, error) {
	if err := p.validateConfig(); err != nil {
		return nil, err
	}

	unlock, err := p.locks.Lock(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.DocumentStatusIndexed && !force {
		return doc, nil
	}

	data, err := p.sources.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load source of %s: %w", documentID, err)
	}
	if err := p.reset(ctx, doc); err != nil {
		return nil, err
	}
	return p.run(ctx, doc, data)
}

func (p *Pipeline) validateConfig() error {
	return chunking.Config{MaxChunkSize: p.cfg.ChunkSize, Overlap: p.cfg.Overlap}.Validate()
}

// NewDocument builds the uploaded-state document for a request.
func NewDocument(req IngestRequest) *domain.Document {
	id := domain.DocumentID(req.Data)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = id[:12]
	}
	return &domain.Document{
		ID:          id,
		Name:        name,
		ContentType: req.ContentType,
		SourceKey:   id,
		Size:        int64(len(req.Data)),
		Status:      domain.DocumentStatusUploaded,
		Metadata:    req.Metadata,
	}
}

// register returns the document for req, creating it if new, and stores the
// source bytes. The document row exists before its source.
func (p *Pipeline) register(ctx context.Context, id string, req IngestRequest) (*domain.Document, bool, error) {
	created := false
	doc, err := p.docs.GetByID(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDocumentNotFound):
		doc = NewDocument(req)
		if err := p.docs.Create(ctx, doc); err != nil {
			if domain.CodeOf(err) != domain.ErrCodeAlreadyExists {
				return nil, false, err
			}
			if doc, err = p.docs.GetByID(ctx, id); err != nil {
				return nil, false, err
			}
		} else {
			created = true
			log.Info().Str("document_id", id).Str("name", doc.Name).Int64("size", doc.Size).Msg("document registered")
		}
	default:
		return nil, false, err
	}

	if err := p.sources.Put(ctx, id, req.Data, req.ContentType); err != nil {
		return nil, false, fmt.Errorf("store source of %s: %w", id, err)
	}
	return doc, created, nil
}

// reset returns a document to uploaded before a re-run.
func (p *Pipeline) reset(ctx context.Context, doc *domain.Document) error {
	doc.Status = domain.DocumentStatusUploaded
	doc.FailedStage = ""
	doc.Error = ""
	return p.docs.Update(ctx, doc)
}

func (p *Pipeline) run(ctx context.Context, doc *domain.Document, data []byte) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingestion.pipeline", telemetry.SpanAttributes{
		DocumentID: doc.ID,
		Operation:  "ingest",
	})
	defer span.End()

	start := time.Now()
	var chunks []domain.Chunk

	stages := []struct {
		stage domain.Stage
		next  domain.DocumentStatus
		run   func(ctx context.Context) error
	}{
		{domain.StageOCR, domain.DocumentStatusOCRExtracted, func(ctx context.Context) error {
			return p.extractText(ctx, doc, data)
		}},
		{domain.StageChunk, domain.DocumentStatusChunked, func(ctx context.Context) error {
			var err error
			chunks, err = p.chunker.ChunkDocument(doc)
			return err
		}},
		{domain.StageEmbed, domain.DocumentStatusEmbedded, func(ctx context.Context) error {
			return p.embed(ctx, chunks)
		}},
		{domain.StageIndex, domain.DocumentStatusIndexed, func(ctx context.Context) error {
			return p.index(ctx, doc, chunks)
		}},
	}

	for _, s := range stages {
		if err := p.runStage(ctx, doc, s.stage, s.run); err != nil {
			span.SetError(err)
			return doc, p.fail(ctx, doc, s.stage, err)
		}

		doc.Status = s.next
		if s.next == domain.DocumentStatusIndexed {
			now := time.Now().UTC()
			doc.IngestedAt = &now
		}
		if err := p.docs.Update(ctx, doc); err != nil {
			span.SetError(err)
			return doc, fmt.Errorf("persist %s status of %s: %w", s.next, doc.ID, err)
		}
		telemetry.AddBreadcrumb(ctx, "ingestion", fmt.Sprintf("%s → %s", doc.ID, s.next))
		log.Debug().Str("document_id", doc.ID).Str("status", string(s.next)).Msg("document advanced")
	}

	log.Info().
		Str("document_id", doc.ID).
		Int("chunks", doc.ChunkCount).
		Str("model_id", doc.ModelID).
		Dur("duration", time.Since(start)).
		Msg("document indexed")
	return doc, nil
}

func (p *Pipeline) runStage(ctx context.Context, doc *domain.Document, stage domain.Stage, fn func(ctx context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "ingestion."+string(stage), telemetry.SpanAttributes{
		DocumentID: doc.ID,
		Stage:      string(stage),
	})
	defer span.End()

	start := time.Now()
	attempts, err := p.cfg.policy(stage).DoCount(ctx, fn)
	if err != nil {
		return err
	}
	log.Info().
		Str("document_id", doc.ID).
		Str("stage", string(stage)).
		Int("attempts", attempts).
		Dur("duration", time.Since(start)).
		Msg("stage complete")
	return nil
}

func (p *Pipeline) extractText(ctx context.Context, doc *domain.Document, data []byte) error {
	res, err := p.extractor.Extract(ctx, data, doc.ContentType)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		log.Warn().Str("document_id", doc.ID).Str("method", res.Method).Msg(w)
	}

	pages := make([]string, len(res.Pages))
	blank := true
	for i, page := range res.Pages {
		pages[i] = chunking.Clean(page)
		if strings.TrimSpace(pages[i]) != "" {
			blank = false
		}
	}
	if blank {
		return domain.InvalidArgumentf("no text could be extracted from the document")
	}
	joined := ocr.JoinPages(pages)
	doc.Text = joined.Text
	doc.PageOffsets = joined.PageOffsets
	return nil
}

func (p *Pipeline) embed(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return domain.NewDomainError(domain.ErrCodeEmbeddingUnavailable,
			fmt.Sprintf("got %d vectors for %d chunks", len(vectors), len(chunks)))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return nil
}

// index replaces the stored chunks. The document's chunk count and model
// describe what is indexed, so they change only once the upsert succeeds.
func (p *Pipeline) index(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if err := p.store.Upsert(ctx, doc.ID, chunks); err != nil {
		return err
	}
	doc.ChunkCount = len(chunks)
	doc.ModelID = p.embedder.ModelID()
	return nil
}

// fail records the failed stage. The update survives cancellation of ctx so
// an abandoned run never leaves the document mid-pipeline.
func (p *Pipeline) fail(ctx context.Context, doc *domain.Document, stage domain.Stage, cause error) error {
	doc.Status = domain.DocumentStatusFailed
	doc.FailedStage = stage
	doc.Error = cause.Error()

	if err := p.docs.Update(context.WithoutCancel(ctx), doc); err != nil {
		log.Error().Err(err).Str("document_id", doc.ID).Msg("failed to record document failure")
	}
	log.Error().
		Str("document_id", doc.ID).
		Str("stage", string(stage)).
		Err(cause).
		Msg("document failed")
	return &StageError{DocumentID: doc.ID, Stage: stage, Err: cause}
}
