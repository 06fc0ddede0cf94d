package extraction

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/llm"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/retry"
	"github.com/phuslu/log"
)

// DefaultCallTimeout bounds a single model call.
const DefaultCallTimeout = 90 * time.Second

// Config configures an Extractor.
type Config struct {
	Retry       retry.Policy
	CallTimeout time.Duration
	Tolerance   float64
	Repairs     []RepairStep
	Options     llm.Options
}

// DefaultConfig returns the default extraction settings.
func DefaultConfig() Config {
	return Config{
		Retry:       retry.DefaultPolicy("extraction"),
		CallTimeout: DefaultCallTimeout,
		Tolerance:   DefaultTolerance,
		Repairs:     DefaultRepairs(),
		Options:     llm.Options{MaxTokens: 8192, Temperature: 0.2},
	}
}

// Extractor prompts a model for a schema, parses and validates the answer.
type Extractor struct {
	llm       llm.Completer
	cfg       Config
	parser    Parser
	validator Validator
}

func NewExtractor(completer llm.Completer, cfg Config) *Extractor {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Repairs == nil {
		cfg.Repairs = DefaultRepairs()
	}
	if cfg.Retry.Name == "" {
		cfg.Retry.Name = "extraction"
	}
	cfg.Retry.Retryable = retryable
	return &Extractor{
		llm:       completer,
		cfg:       cfg,
		parser:    NewParser(cfg.Repairs),
		validator: NewValidator(cfg.Tolerance),
	}
}

// retryable accepts unparseable output and transient capability failures.
// Authentication failures are never retried.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrCapabilityAuth) {
		return false
	}
	return errors.Is(err, domain.ErrExtractionParse) || domain.IsTransient(err)
}

// Extract runs the schema prompt over sourceText. The returned record may be
// incomplete; it is an error only when no parseable answer was obtained.
func (e *Extractor) Extract(ctx context.Context, sourceText string, schema Schema) (*domain.StructuredRecord, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sourceText) == "" {
		return nil, domain.InvalidArgumentf("source text is empty")
	}

	prompt := BuildPrompt(schema, sourceText)
	var lastRaw string
	var fields map[string]any

	start := time.Now()
	attempts, err := e.cfg.Retry.DoCount(ctx, func(ctx context.Context) error {
		raw, err := e.complete(ctx, prompt)
		if err != nil {
			return err
		}
		lastRaw = raw
		fields, err = e.parser.Parse(raw)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, domain.ErrCapabilityAuth) {
			return nil, err
		}
		log.Warn().
			Str("schema", schema.Name).
			Int("attempts", attempts).
			Err(err).
			Msg("extraction failed")
		return nil, domain.NewExtractionFailedError(lastRaw, attempts, err)
	}

	rec := e.validator.Validate(schema, fields)
	rec.RawResponse = lastRaw
	rec.Attempts = attempts
	rec.CreatedAt = time.Now().UTC()

	log.Info().
		Str("schema", schema.Name).
		Str("status", string(rec.Status)).
		Int("problems", len(rec.Problems)).
		Int("attempts", attempts).
		Dur("duration", time.Since(start)).
		Msg("extraction complete")
	return rec, nil
}

// complete calls the model under the per-call timeout. A call that runs out
// of its own time budget is a TimeoutError.
func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	raw, err := e.llm.Complete(callCtx, prompt, e.cfg.Options)
	if err == nil {
		return raw, nil
	}
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && domain.CodeOf(err) == "" {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, "model call timed out", err)
	}
	return "", err
}
