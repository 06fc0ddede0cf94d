package admin

import (
	"context"
	"fmt"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/config"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/database"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/embedding"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/extraction"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/ingestion"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/llm"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/ocr"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/openai"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/repository"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retrieval"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/service"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/storage"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/vectorstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phuslu/log"
)

// Components is the wired application graph shared by serve and the admin
// commands.
type Components struct {
	Config     *config.Config
	Pool       *pgxpool.Pool
	Engine     *embedding.Engine
	Pipeline   *ingestion.Pipeline
	Jobs       *repository.IngestionJobRepository
	Documents  *service.DocumentService
	Search     *service.SearchService
	Ask        *service.AskService
	Coverage   *service.CoverageService
	Extraction *service.ExtractionService
}

// NewComponents connects to the database, loads the embedding model and
// builds every service. Close releases what it opened.
func NewComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:              cfg.DatabaseURL,
		MaxConns:         cfg.DBMaxConns,
		MinConns:         cfg.DBMinConns,
		StatementTimeout: cfg.StatementTimeout,
	})
	if err != nil {
		return nil, err
	}

	c, err := buildComponents(ctx, cfg, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func buildComponents(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*Components, error) {
	sources, external, err := newSourceStore(ctx, cfg, pool)
	if err != nil {
		return nil, err
	}

	engine, err := startEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}

	completer := NewCompleter(ctx, cfg)

	registry := extraction.NewRegistry()
	if cfg.SchemaDir != "" {
		n, err := registry.LoadDir(cfg.SchemaDir)
		if err != nil {
			_ = engine.Close()
			return nil, fmt.Errorf("failed to load schemas from %s: %w", cfg.SchemaDir, err)
		}
		log.Info().Int("schemas", n).Str("dir", cfg.SchemaDir).Msg("custom schemas loaded")
	}

	textExtractor := newTextExtractor(cfg)

	docs := repository.NewDocumentRepository(pool)
	chunks := repository.NewChunkRepository(pool)
	jobRepo := repository.NewIngestionJobRepository(pool)
	records := repository.NewExtractionRepository(pool)

	pipeline := ingestion.NewPipeline(docs, sources, textExtractor, engine, chunks, pipelineConfig(cfg))

	extractor := extraction.NewExtractor(completer, extractionConfig(cfg))
	retriever := retrieval.NewRetriever(engine, chunks)
	retrievalCfg := service.RetrievalConfig{TopK: cfg.TopK, MaxContextChars: cfg.MaxContextChars}

	return &Components{
		Config:    cfg,
		Pool:      pool,
		Engine:    engine,
		Pipeline:  pipeline,
		Jobs:      jobRepo,
		Documents: service.NewDocumentService(docs, chunks, sources, pipeline, repository.NewTxRunner(pool, external)),
		Search:    service.NewSearchService(retriever, retrievalCfg),
		Ask: service.NewAskService(retriever, completer, service.AskConfig{
			Retrieval: retrievalCfg,
			Options:   llmOptions(cfg),
			Retry:     cfg.RetryPolicy("ask"),
		}),
		Coverage:   service.NewCoverageService(retriever, extractor, registry, retrievalCfg),
		Extraction: service.NewExtractionService(docs, records, extractor, registry, textExtractor),
	}, nil
}

// Preview runs the ingestion pipeline entirely in process. Nothing it indexes
// outlives the command, and it never touches the database.
type Preview struct {
	Engine    *embedding.Engine
	Pipeline  *ingestion.Pipeline
	Retriever *retrieval.Retriever
	Store     *vectorstore.Memory
}

func NewPreview(ctx context.Context, cfg *config.Config) (*Preview, error) {
	engine, err := startEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := vectorstore.NewMemory()
	return &Preview{
		Engine: engine,
		Pipeline: ingestion.NewPipeline(ingestion.NewMemoryDocuments(), storage.NewMemory(),
			newTextExtractor(cfg), engine, store, pipelineConfig(cfg)),
		Retriever: retrieval.NewRetriever(engine, store),
		Store:     store,
	}, nil
}

func (p *Preview) Close() {
	if err := p.Engine.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close embedding model")
	}
}

func startEngine(ctx context.Context, cfg *config.Config) (*embedding.Engine, error) {
	model, err := NewEmbeddingModel(cfg)
	if err != nil {
		return nil, err
	}
	engine := embedding.NewEngine(model, embedding.Config{
		BatchSize:   cfg.EmbeddingBatchSize,
		Concurrency: cfg.EmbeddingConcurrency,
		Retry:       cfg.RetryPolicy("embedding"),
	})
	if err := engine.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to load embedding model %s: %w", model.ID(), err)
	}
	log.Info().Str("model_id", engine.ModelID()).Int("dimensions", engine.Dimensions()).Msg("embedding model loaded")
	return engine, nil
}

func newTextExtractor(cfg *config.Config) *ocr.Service {
	return ocr.NewService(ocr.Config{
		TesseractPath: cfg.TesseractPath,
		PSM:           cfg.TesseractPSM,
		Language:      cfg.OCRLanguage,
	})
}

func pipelineConfig(cfg *config.Config) ingestion.Config {
	return ingestion.Config{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
		Retry:     cfg.RetryPolicy("ingestion"),
	}
}

func (c *Components) Close() {
	if c.Engine != nil {
		if err := c.Engine.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close embedding model")
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// newSourceStore returns the S3 bucket when configured, otherwise the
// document_sources table. external is nil for the table store, which then
// joins upload transactions.
func newSourceStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (storage.Store, storage.Store, error) {
	if !cfg.HasS3() {
		return repository.NewSourceRepository(pool), nil, nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Msg("S3 bucket ready")
	return s3Client, s3Client, nil
}

// NewEmbeddingModel picks the embedding provider.
func NewEmbeddingModel(cfg *config.Config) (embedding.Model, error) {
	switch cfg.EmbeddingProvider {
	case "", "hashing":
		return embedding.NewHashingModel(cfg.EmbeddingDimensions), nil
	case "openai":
		apiKey := cfg.OpenAIAPIKey
		if apiKey == "" {
			return nil, domain.Configurationf("DOCRAG_OPENAI_API_KEY is required for openai embeddings")
		}
		baseURL := cfg.EmbeddingBaseURL
		if baseURL == "" {
			baseURL = cfg.OpenAIBaseURL
		}
		return openai.NewEmbeddingModel(openai.Config{APIKey: apiKey, BaseURL: baseURL}, cfg.EmbeddingModelID, cfg.EmbeddingDimensions), nil
	case "gemini":
		return llm.NewGeminiEmbeddingModel(cfg.GoogleAPIKey, cfg.EmbeddingModelID, cfg.EmbeddingDimensions), nil
	default:
		return nil, domain.Configurationf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// NewCompleter builds the rate-limited LLM client. A provider that cannot be
// built yields a completer failing with CAPABILITY_UNAVAILABLE, so ingestion
// and search keep working without model credentials.
func NewCompleter(ctx context.Context, cfg *config.Config) llm.Completer {
	next, err := newProviderCompleter(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.LLMProvider).Msg("llm unavailable, ask and extraction are disabled")
		return unavailableCompleter(cfg.LLMProvider, err)
	}
	return llm.NewRateLimited(next, cfg.LLMRatePerSecond, cfg.LLMBurst)
}

func newProviderCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case "", "gemini":
		return llm.NewGemini(ctx, llm.GeminiConfig{APIKey: cfg.GoogleAPIKey, Model: cfg.LLMModel})
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, domain.Configurationf("openai API key is required")
		}
		return openai.NewCompleter(openai.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}, cfg.LLMModel)
	case "anthropic":
		return llm.NewAnthropic(llm.AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Model: cfg.LLMModel})
	default:
		return nil, domain.Configurationf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func unavailableCompleter(provider string, cause error) llm.Completer {
	return llm.CompleterFunc(func(context.Context, string, llm.Options) (string, error) {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeCapabilityUnavailable,
			fmt.Sprintf("%s completions are not configured", provider), cause)
	})
}

func llmOptions(cfg *config.Config) llm.Options {
	return llm.Options{MaxTokens: cfg.LLMMaxTokens, Temperature: cfg.LLMTemperature}
}

func extractionConfig(cfg *config.Config) extraction.Config {
	ec := extraction.DefaultConfig()
	ec.Retry = cfg.RetryPolicy("extraction")
	ec.CallTimeout = cfg.LLMTimeout
	ec.Tolerance = cfg.ReconcileTolerance
	ec.Options = llmOptions(cfg)
	if cfg.RepairTrailingCommas {
		ec.Repairs = append(ec.Repairs, extraction.RemoveTrailingCommas)
	}
	return ec
}
