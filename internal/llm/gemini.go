package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/embedding"
	"github.com/phuslu/log"
	"google.golang.org/genai"
)

const (
	DefaultGeminiModel          = "gemini-2.0-flash"
	DefaultGeminiEmbeddingModel = "gemini-embedding-001"
)

const providerGemini = "gemini"

// GeminiConfig configures the Gemini API client.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Completer = (*Gemini)(nil)

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, domain.Configurationf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := newGenAIClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	log.Info().Str("model", cfg.Model).Msg("gemini completer initialized")
	return &Gemini{client: client, model: cfg.Model}, nil
}

func newGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}
	return client, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", ClassifyMessage(providerGemini, err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", domain.NewDomainError(domain.ErrCodeCapabilityUnavailable, "gemini returned no text")
	}
	return out.String(), nil
}

// GeminiEmbeddingModel embeds text with a Gemini embedding model truncated
// to a fixed output dimensionality.
type GeminiEmbeddingModel struct {
	apiKey string
	model  string
	dims   int

	mu     sync.RWMutex
	client *genai.Client
}

var _ embedding.Model = (*GeminiEmbeddingModel)(nil)

func NewGeminiEmbeddingModel(apiKey, model string, dims int) *GeminiEmbeddingModel {
	if model == "" {
		model = DefaultGeminiEmbeddingModel
	}
	return &GeminiEmbeddingModel{apiKey: apiKey, model: model, dims: dims}
}

func (m *GeminiEmbeddingModel) ID() string {
	return fmt.Sprintf("gemini:%s-%d", m.model, m.dims)
}

func (m *GeminiEmbeddingModel) Dimensions() int { return m.dims }

func (m *GeminiEmbeddingModel) Load(ctx context.Context) error {
	if m.apiKey == "" {
		return domain.Configurationf("gemini API key is required for gemini embeddings")
	}
	if m.dims <= 0 {
		return domain.Configurationf("embedding dimensions must be positive, got %d", m.dims)
	}
	client, err := newGenAIClient(ctx, m.apiKey)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	return nil
}

func (m *GeminiEmbeddingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return nil, errors.New("gemini embedding model is not loaded")
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	outputDim := int32(m.dims)
	result, err := client.Models.EmbedContent(ctx, m.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	})
	if err != nil {
		return nil, ClassifyMessage(providerGemini, err)
	}
	if result == nil {
		return nil, errors.New("no embeddings returned from gemini")
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		if e != nil {
			vectors[i] = e.Values
		}
	}
	return vectors, nil
}

// Close drops the client; genai clients hold no resources to release.
func (m *GeminiEmbeddingModel) Close() error {
	m.mu.Lock()
	m.client = nil
	m.mu.Unlock()
	return nil
}
