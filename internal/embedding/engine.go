package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retry"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize   = 32
	DefaultConcurrency = 4
)

// Config controls batching and retries.
type Config struct {
	BatchSize   int
	Concurrency int
	Retry       retry.Policy
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:   DefaultBatchSize,
		Concurrency: DefaultConcurrency,
		Retry:       retry.DefaultPolicy("embedding"),
	}
}

// Engine embeds texts in batches on a bounded pool of workers.
type Engine struct {
	model   Model
	cfg     Config
	started atomic.Bool
}

// NewEngine wraps a model. Start must be called before Embed.
func NewEngine(model Model, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Retry.Name == "" {
		cfg.Retry.Name = "embedding"
	}
	return &Engine{model: model, cfg: cfg}
}

// Start loads the model.
func (e *Engine) Start(ctx context.Context) error {
	start := time.Now()
	if err := e.model.Load(ctx); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
			fmt.Sprintf("failed to load embedding model %s", e.model.ID()), err)
	}
	e.started.Store(true)
	log.Info().
		Str("model_id", e.model.ID()).
		Int("dimensions", e.model.Dimensions()).
		Dur("took", time.Since(start)).
		Msg("embedding model loaded")
	return nil
}

// Close releases the model. The engine cannot be used afterwards.
func (e *Engine) Close() error {
	if !e.started.Swap(false) {
		return nil
	}
	return e.model.Close()
}

// ModelID returns the id stamped on every produced vector.
func (e *Engine) ModelID() string {
	return e.model.ID()
}

// Dimensions returns the length of every produced vector.
func (e *Engine) Dimensions() int {
	return e.model.Dimensions()
}

// Embed returns one vector per text in input order. Either every text is
// embedded or an error is returned.
func (e *Engine) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if !e.started.Load() {
		return nil, domain.NewDomainError(domain.ErrCodeEmbeddingUnavailable, "embedding engine is not started")
	}
	if len(texts) == 0 {
		return []domain.Vector{}, nil
	}

	modelID := e.model.ID()
	dims := e.model.Dimensions()
	out := make([]domain.Vector, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		g.Go(func() error {
			batch := texts[start:end]

			var values [][]float32
			err := e.cfg.Retry.Do(gctx, func(ctx context.Context) error {
				v, err := e.model.EmbedBatch(ctx, batch)
				if err != nil {
					return err
				}
				values = v
				return nil
			})
			if err != nil {
				return e.unavailable(gctx, err)
			}

			if len(values) != len(batch) {
				return domain.NewDomainError(domain.ErrCodeEmbeddingUnavailable,
					fmt.Sprintf("model %s returned %d vectors for %d texts", modelID, len(values), len(batch)))
			}
			for i, v := range values {
				if len(v) != dims {
					return domain.DimensionMismatch(modelID, dims, modelID, len(v))
				}
				out[start+i] = domain.Vector{ModelID: modelID, Values: v}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (e *Engine) EmbedQuery(ctx context.Context, text string) (domain.Vector, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return domain.Vector{}, err
	}
	return vectors[0], nil
}

func (e *Engine) unavailable(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if errors.Is(err, domain.ErrDimensionMismatch) || errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return err
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
		fmt.Sprintf("embedding model %s failed", e.model.ID()), err)
}
