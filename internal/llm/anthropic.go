package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phuslu/log"
)

const (
	DefaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 8192
)

const providerAnthropic = "anthropic"

// messageAPI is the part of the Anthropic messages service used here.
type messageAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicConfig configures the Anthropic client.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// Anthropic completes prompts with the Anthropic messages API.
type Anthropic struct {
	messages messageAPI
	model    string
}

var _ Completer = (*Anthropic)(nil)

func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, domain.Configurationf("anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	log.Info().Str("model", cfg.Model).Msg("anthropic completer initialized")
	return &Anthropic{messages: &client.Messages, model: cfg.Model}, nil
}

func (a *Anthropic) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	resp, err := a.messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropic(err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", domain.NewDomainError(domain.ErrCodeCapabilityUnavailable, "anthropic returned no text")
	}
	return out.String(), nil
}

func classifyAnthropic(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ClassifyStatus(providerAnthropic, apiErr.StatusCode, err)
	}
	if classified := ClassifyTransport(providerAnthropic, err); classified != nil {
		return classified
	}
	return ClassifyMessage(providerAnthropic, err)
}
