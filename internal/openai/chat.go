package openai

import (
	"context"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/llm"
	openai "github.com/sashabaranov/go-openai"
)

// Completer runs prompts through chat completions.
type Completer struct {
	api   API
	model string
}

var _ llm.Completer = (*Completer)(nil)

func NewCompleter(cfg Config, model string) (*Completer, error) {
	adapter, err := NewAdapter(cfg)
	if err != nil {
		return nil, err
	}
	return NewCompleterWithAPI(adapter, model), nil
}

func NewCompleterWithAPI(api API, model string) *Completer {
	if model == "" {
		model = DefaultChatModel
	}
	return &Completer{api: api, model: model}
}

func (c *Completer) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	return c.api.CreateChatCompletion(ctx, req)
}
