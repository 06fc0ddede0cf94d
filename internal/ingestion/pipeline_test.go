package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/embedding"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/ocr"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retry"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/storage"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryDocuments records every persisted status so tests can check the
// transition sequence.
type memoryDocuments struct {
	mu       sync.Mutex
	docs     map[string]domain.Document
	statuses []domain.DocumentStatus
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{docs: map[string]domain.Document{}}
}

func (m *memoryDocuments) Create(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return domain.NewDomainError(domain.ErrCodeAlreadyExists, "document already exists")
	}
	m.docs[doc.ID] = *doc
	m.statuses = append(m.statuses, doc.Status)
	return nil
}

func (m *memoryDocuments) GetByID(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &doc, nil
}

func (m *memoryDocuments) Update(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		return domain.ErrDocumentNotFound
	}
	m.docs[doc.ID] = *doc
	m.statuses = append(m.statuses, doc.Status)
	return nil
}

func (m *memoryDocuments) history() []domain.DocumentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DocumentStatus(nil), m.statuses...)
}

type fakeOCR struct {
	pages []string
	errs  []error
	calls atomic.Int32
}

func (f *fakeOCR) Extract(_ context.Context, data []byte, _ string) (*ocr.Result, error) {
	n := int(f.calls.Add(1))
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return nil, f.errs[n-1]
	}
	pages := f.pages
	if pages == nil {
		pages = []string{string(data)}
	}
	return &ocr.Result{Pages: pages, Method: ocr.MethodPlainText}, nil
}

type failingEmbedder struct {
	err   error
	calls atomic.Int32
}

func (f *failingEmbedder) Embed(context.Context, []string) ([]domain.Vector, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *failingEmbedder) ModelID() string { return "failing" }

type fixture struct {
	pipeline *Pipeline
	docs     *memoryDocuments
	sources  *storage.Memory
	store    *vectorstore.Memory
	ocr      *fakeOCR
}

func testConfig() Config {
	return Config{
		ChunkSize: 200,
		Overlap:   20,
		Retry:     retry.Policy{Name: "test", MaxAttempts: 3, Backoff: retry.Immediate()},
	}
}

func newFixture(t *testing.T, extractor *fakeOCR, embedder Embedder) *fixture {
	t.Helper()
	if embedder == nil {
		engine := embedding.NewEngine(embedding.NewHashingModel(64), embedding.DefaultConfig())
		require.NoError(t, engine.Start(context.Background()))
		t.Cleanup(func() { _ = engine.Close() })
		embedder = engine
	}
	f := &fixture{
		docs:    newMemoryDocuments(),
		sources: storage.NewMemory(),
		store:   vectorstore.NewMemory(),
		ocr:     extractor,
	}
	f.pipeline = NewPipeline(f.docs, f.sources, extractor, embedder, f.store, testConfig())
	return f
}

func policyText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString("coverage")
	}
	return b.String()
}

func TestPipeline_IngestIndexesDocument(t *testing.T) {
	extractor := &fakeOCR{pages: []string{
		policyText(40) + ". Policy number POL-1.",
		policyText(40) + ". Flood damage is excluded.",
	}}
	f := newFixture(t, extractor, nil)

	doc, err := f.pipeline.Ingest(context.Background(), IngestRequest{
		Name:        "policy.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4 fake"),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentID([]byte("%PDF-1.4 fake")), doc.ID)
	assert.Equal(t, domain.DocumentStatusIndexed, doc.Status)
	assert.NotNil(t, doc.IngestedAt)
	assert.Equal(t, "hashing-v1-64", doc.ModelID)
	assert.True(t, strings.HasPrefix(doc.Text, "--- Page 1 ---\n"))
	require.Len(t, doc.PageOffsets, 2)

	assert.Equal(t, []domain.DocumentStatus{
		domain.DocumentStatusUploaded,
		domain.DocumentStatusOCRExtracted,
		domain.DocumentStatusChunked,
		domain.DocumentStatusEmbedded,
		domain.DocumentStatusIndexed,
	}, f.docs.history())

	chunks, err := f.store.ListChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, doc.ChunkCount)
	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[len(chunks)-1].Page)

	source, err := f.sources.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(source))
}

func TestPipeline_ReingestIndexedIsNoop(t *testing.T) {
	f := newFixture(t, &fakeOCR{}, nil)
	req := IngestRequest{Name: "a.txt", ContentType: "text/plain", Data: []byte("Sum insured 10000.")}

	first, err := f.pipeline.Ingest(context.Background(), req)
	require.NoError(t, err)

	second, err := f.pipeline.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(1), f.ocr.calls.Load())

	req.Force = true
	_, err = f.pipeline.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.ocr.calls.Load())
}

func TestPipeline_PermanentFailureMarksStage(t *testing.T) {
	unsupported := domain.NewDomainError(domain.ErrCodeUnsupportedFormat, "unsupported format application/zip")
	f := newFixture(t, &fakeOCR{errs: []error{unsupported}}, nil)

	doc, err := f.pipeline.Ingest(context.Background(), IngestRequest{Name: "a.zip", Data: []byte("PK")})
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, domain.StageOCR, stageErr.Stage)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Equal(t, int32(1), f.ocr.calls.Load())

	stored, getErr := f.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.DocumentStatusFailed, stored.Status)
	assert.Equal(t, domain.StageOCR, stored.FailedStage)
	assert.Contains(t, stored.Error, "unsupported format")
}

func TestPipeline_TransientFailureIsRetried(t *testing.T) {
	unavailable := domain.NewDomainError(domain.ErrCodeOCRUnavailable, "tesseract crashed")
	f := newFixture(t, &fakeOCR{errs: []error{unavailable, unavailable}}, nil)

	doc, err := f.pipeline.Ingest(context.Background(), IngestRequest{Name: "a.txt", Data: []byte("Deductible 500.")})
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusIndexed, doc.Status)
	assert.Equal(t, int32(3), f.ocr.calls.Load())
}

func TestPipeline_ExhaustedRetriesFailEmbedStage(t *testing.T) {
	embedder := &failingEmbedder{err: domain.NewDomainError(domain.ErrCodeEmbeddingUnavailable, "model offline")}
	f := newFixture(t, &fakeOCR{}, embedder)

	doc, err := f.pipeline.Ingest(context.Background(), IngestRequest{Name: "a.txt", Data: []byte("Premium 1200.")})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, int32(3), embedder.calls.Load())
	assert.Equal(t, domain.DocumentStatusFailed, doc.Status)
	assert.Equal(t, domain.StageEmbed, doc.FailedStage)

	n, err := f.store.Count(context.Background(), vectorstore.Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPipeline_FailedReindexKeepsIndexedCounts(t *testing.T) {
	extractor := &fakeOCR{pages: []string{policyText(60), policyText(60)}}
	f := newFixture(t, extractor, nil)
	ctx := context.Background()
	req := IngestRequest{Name: "policy.txt", Data: []byte("policy v1")}

	indexed, err := f.pipeline.Ingest(ctx, req)
	require.NoError(t, err)
	require.Greater(t, indexed.ChunkCount, 1)

	extractor.pages = []string{policyText(10)}
	embedder := &failingEmbedder{err: domain.NewDomainError(domain.ErrCodeCapabilityAuth, "bad api key")}
	broken := NewPipeline(f.docs, f.sources, extractor, embedder, f.store, testConfig())
	req.Force = true
	_, err = broken.Ingest(ctx, req)
	require.Error(t, err)

	stored, err := f.docs.GetByID(ctx, indexed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageEmbed, stored.FailedStage)
	assert.Equal(t, indexed.ChunkCount, stored.ChunkCount)
	assert.Equal(t, "hashing-v1-64", stored.ModelID)

	chunks, err := f.store.ListChunks(ctx, indexed.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, stored.ChunkCount)
}

func TestPipeline_BlankTextFailsOCRStage(t *testing.T) {
	f := newFixture(t, &fakeOCR{pages: []string{"   ", "\n"}}, nil)

	_, err := f.pipeline.Ingest(context.Background(), IngestRequest{Name: "scan.png", Data: []byte("img")})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestPipeline_ProcessStoredDocument(t *testing.T) {
	f := newFixture(t, &fakeOCR{}, nil)
	ctx := context.Background()

	req := IngestRequest{Name: "claim.txt", Data: []byte("Claim amount 4500.")}
	doc := NewDocument(req)
	require.NoError(t, f.docs.Create(ctx, doc))
	require.NoError(t, f.sources.Put(ctx, doc.ID, req.Data, "text/plain"))

	processed, err := f.pipeline.Process(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusIndexed, processed.Status)
	assert.Equal(t, int32(1), f.ocr.calls.Load())

	_, err = f.pipeline.Process(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.ocr.calls.Load())

	_, err = f.pipeline.Process(ctx, doc.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.ocr.calls.Load())
}

func TestNewDocument_DefaultsName(t *testing.T) {
	doc := NewDocument(IngestRequest{Data: []byte("abc"), ContentType: "text/plain"})
	assert.Equal(t, domain.DocumentID([]byte("abc"))[:12], doc.Name)
	assert.Equal(t, doc.ID, doc.SourceKey)
	assert.Equal(t, int64(3), doc.Size)
	assert.Equal(t, domain.DocumentStatusUploaded, doc.Status)
}

func TestPipeline_ProcessErrors(t *testing.T) {
	f := newFixture(t, &fakeOCR{}, nil)
	ctx := context.Background()

	_, err := f.pipeline.Process(ctx, "missing", false)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	require.NoError(t, f.docs.Create(ctx, &domain.Document{ID: "orphan", Status: domain.DocumentStatusUploaded}))
	_, err = f.pipeline.Process(ctx, "orphan", false)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestPipeline_RejectsEmptyDataAndBadConfig(t *testing.T) {
	f := newFixture(t, &fakeOCR{}, nil)
	_, err := f.pipeline.Ingest(context.Background(), IngestRequest{Name: "empty"})
	assert.ErrorIs(t, err, domain.ErrEmptyDocumentData)

	cfg := testConfig()
	cfg.Overlap = cfg.ChunkSize
	p := NewPipeline(f.docs, f.sources, f.ocr, nil, f.store, cfg)
	_, err = p.Ingest(context.Background(), IngestRequest{Name: "a", Data: []byte("x")})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestPipeline_ConcurrentIngestOfSameDocumentRunsOnce(t *testing.T) {
	f := newFixture(t, &fakeOCR{}, nil)
	req := IngestRequest{Name: "a.txt", Data: []byte("Insured vehicle KA01AB1234.")}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Ingest(context.Background(), req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.ocr.calls.Load())
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	// Distinct keys do not block.
	unlockB, err := k.Lock(context.Background(), "b")
	require.NoError(t, err)
	unlockB()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock, err = k.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
