package openai

import (
	"context"
	"fmt"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/embedding"
	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingModel serves embeddings from the OpenAI embeddings endpoint.
type EmbeddingModel struct {
	cfg   Config
	model openai.EmbeddingModel
	dims  int
	api   API
}

var _ embedding.Model = (*EmbeddingModel)(nil)

// NewEmbeddingModel creates a model handle; the client is built by Load.
func NewEmbeddingModel(cfg Config, model string, dims int) *EmbeddingModel {
	m := openai.EmbeddingModel(model)
	if m == "" {
		m = DefaultEmbeddingModel
	}
	return &EmbeddingModel{cfg: cfg, model: m, dims: dims}
}

// NewEmbeddingModelWithAPI uses a ready API, e.g. a test double.
func NewEmbeddingModelWithAPI(api API, model string, dims int) *EmbeddingModel {
	m := NewEmbeddingModel(Config{}, model, dims)
	m.api = api
	return m
}

func (m *EmbeddingModel) ID() string {
	return fmt.Sprintf("openai:%s-%d", m.model, m.dims)
}

func (m *EmbeddingModel) Dimensions() int { return m.dims }

func (m *EmbeddingModel) Load(ctx context.Context) error {
	if m.dims <= 0 {
		return domain.Configurationf("embedding dimensions must be positive, got %d", m.dims)
	}
	if m.api != nil {
		return nil
	}
	adapter, err := NewAdapter(m.cfg)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "openai embeddings", err)
	}
	m.api = adapter
	return nil
}

func (m *EmbeddingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.api == nil {
		return nil, fmt.Errorf("openai embedding model is not loaded")
	}
	return m.api.CreateEmbeddings(ctx, texts, m.model, m.dims)
}

func (m *EmbeddingModel) Close() error { return nil }
