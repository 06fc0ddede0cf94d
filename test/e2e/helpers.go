//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/api/handlers"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/api/middleware"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/embedding"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/extraction"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/ingestion"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/jobs"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/llm"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/ocr"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/repository"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retrieval"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retry"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/server"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/service"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/storage"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "e2e-test-key-0123456789"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	Worker     *jobs.IngestionWorker
	Prompts    *[]string
	HTTPClient *http.Client
}

// pageOCR treats uploads as plain text with form feeds between pages.
type pageOCR struct{}

func (pageOCR) Extract(_ context.Context, data []byte, _ string) (*ocr.Result, error) {
	pages := strings.Split(string(data), "\f")
	return &ocr.Result{Text: ocr.JoinPages(pages).Text, Pages: pages, Method: ocr.MethodPlainText}, nil
}

const invoiceJSON = `{
  "invoice_number": "INV-2024-001",
  "invoice_date": "15/03/2024",
  "vendor_name": "Garage Rossi",
  "currency": "EUR",
  "line_items": [
    {"description": "Front bumper", "quantity": 1, "unit_price": 400, "amount": 400},
    {"description": "Labour", "quantity": 2, "unit_price": 50, "amount": 100}
  ],
  "tax": 110,
  "total_amount": 610
}`

// scriptedLLM answers extraction prompts with a fixed invoice and everything
// else with a fixed answer.
func scriptedLLM(prompts *[]string) llm.Completer {
	return llm.CompleterFunc(func(_ context.Context, prompt string, _ llm.Options) (string, error) {
		*prompts = append(*prompts, prompt)
		if strings.Contains(prompt, "invoice information extractor") {
			return "```json\n" + invoiceJSON + "\n```", nil
		}
		return "The deductible is 500 EUR.", nil
	})
}

// SetupE2EEnv starts Postgres and serves the full API with the hashing
// embedding model, an in-memory source store and a scripted LLM.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	fastRetry := retry.NewPolicy("e2e", 2, time.Millisecond, 5*time.Millisecond)

	engine := embedding.NewEngine(embedding.NewHashingModel(384), embedding.Config{BatchSize: 16, Concurrency: 2, Retry: fastRetry})
	require.NoError(t, engine.Start(ctx))
	t.Cleanup(func() { _ = engine.Close() })

	var prompts []string
	completer := scriptedLLM(&prompts)

	sources := storage.NewMemory()
	docs := repository.NewDocumentRepository(pool)
	chunks := repository.NewChunkRepository(pool)
	jobRepo := repository.NewIngestionJobRepository(pool)
	records := repository.NewExtractionRepository(pool)
	registry := extraction.NewRegistry()

	pipeline := ingestion.NewPipeline(docs, sources, pageOCR{}, engine, chunks, ingestion.Config{
		ChunkSize: 500,
		Overlap:   50,
		Retry:     fastRetry,
	})
	extractor := extraction.NewExtractor(completer, extraction.Config{
		Retry:       fastRetry,
		CallTimeout: 10 * time.Second,
		Tolerance:   0.01,
		Repairs:     extraction.DefaultRepairs(),
	})
	retriever := retrieval.NewRetriever(engine, chunks)
	retrievalCfg := service.RetrievalConfig{TopK: 5, MaxContextChars: 4000}

	documents := service.NewDocumentService(docs, chunks, sources, pipeline, repository.NewTxRunner(pool, sources))
	search := service.NewSearchService(retriever, retrievalCfg)
	ask := service.NewAskService(retriever, completer, service.AskConfig{Retrieval: retrievalCfg, Retry: fastRetry})
	coverage := service.NewCoverageService(retriever, extractor, registry, retrievalCfg)
	extractionSvc := service.NewExtractionService(docs, records, extractor, registry, pageOCR{})

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:     middleware.NewStaticKeys([]string{testAPIKey}),
		Health:            func(ctx context.Context) error { return pool.Ping(ctx) },
		DocumentHandler:   handlers.NewDocumentHandler(documents),
		QueryHandler:      handlers.NewQueryHandler(search, ask),
		ExtractionHandler: handlers.NewExtractionHandler(extractionSvc),
		ClaimHandler:      handlers.NewClaimHandler(coverage),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	worker := jobs.NewIngestionWorker(jobRepo, pipeline, jobs.IngestionWorkerConfig{
		Concurrency: 2,
		BatchSize:   10,
		MaxRetries:  2,
		StaleAfter:  time.Minute,
	})

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Pool:       pool,
		Server:     srv,
		Worker:     worker,
		Prompts:    &prompts,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiResponse is the envelope of every API response.
type apiResponse struct {
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	Code        string          `json:"code"`
	RawResponse string          `json:"raw_response"`
}

func (env *E2ETestEnv) do(req *http.Request) (int, apiResponse) {
	env.T.Helper()
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp, err := env.HTTPClient.Do(req)
	require.NoError(env.T, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(env.T, err)

	var out apiResponse
	if len(bytes.TrimSpace(body)) > 0 {
		require.NoError(env.T, json.Unmarshal(body, &out), string(body))
	}
	return resp.StatusCode, out
}

// JSON sends a request with an optional JSON body.
func (env *E2ETestEnv) JSON(method, path string, body any) (int, apiResponse) {
	env.T.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(env.T, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(env.Ctx, method, env.Server.URL+path, r)
	require.NoError(env.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return env.do(req)
}

// Upload posts a document as multipart form data.
func (env *E2ETestEnv) Upload(name string, data []byte, fields map[string]string) (int, apiResponse) {
	env.T.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(env.T, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", name)
	require.NoError(env.T, err)
	_, err = part.Write(data)
	require.NoError(env.T, err)
	require.NoError(env.T, mw.Close())

	req, err := http.NewRequestWithContext(env.Ctx, http.MethodPost, env.Server.URL+"/documents", &buf)
	require.NoError(env.T, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return env.do(req)
}

func decode[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v), string(resp.Data))
	return v
}
