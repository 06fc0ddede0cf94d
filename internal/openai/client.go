// Package openai adapts the OpenAI API, and OpenAI-compatible local servers,
// to the embedding and completion interfaces.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/llm"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultChatModel is used for completions when no model is configured.
	DefaultChatModel = "gpt-4o-mini"
)

const provider = "openai"

// ErrNoAPIKey is returned when the hosted API is used without a key.
var ErrNoAPIKey = errors.New("OpenAI API key not set")

// API is the subset of the OpenAI client used here.
type API interface {
	CreateEmbeddings(ctx context.Context, texts []string, model openai.EmbeddingModel, dimensions int) ([][]float32, error)
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (string, error)
}

// Config configures the client. BaseURL points at an OpenAI-compatible
// server; an empty APIKey is allowed only together with BaseURL.
type Config struct {
	APIKey  string
	BaseURL string
}

// Adapter implements API on top of go-openai.
type Adapter struct {
	client *openai.Client
}

var _ API = (*Adapter)(nil)

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ErrNoAPIKey
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Adapter{client: openai.NewClientWithConfig(clientCfg)}, nil
}

// CreateEmbeddings embeds texts in one request and returns the vectors in
// input order.
func (a *Adapter) CreateEmbeddings(ctx context.Context, texts []string, model openai.EmbeddingModel, dimensions int) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: model,
	}
	if dimensions > 0 && model != openai.AdaEmbeddingV2 {
		req.Dimensions = dimensions
	}

	resp, err := a.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (a *Adapter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.ClassifyStatus(provider, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.ClassifyStatus(provider, reqErr.HTTPStatusCode, err)
	}
	if classified := llm.ClassifyTransport(provider, err); classified != nil {
		return classified
	}
	return fmt.Errorf("openai request failed: %w", err)
}
