// Package telemetry reports errors and traces pipeline stages to Sentry.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/getsentry/sentry-go"
	"github.com/phuslu/log"
)

const serviceName = "docragd"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

// expectedCodes are caller mistakes and missing documents. They are part of
// normal operation and never reported as Sentry events.
var expectedCodes = map[string]bool{
	domain.ErrCodeValidation:        true,
	domain.ErrCodeInvalidArgument:   true,
	domain.ErrCodeNotFound:          true,
	domain.ErrCodeAlreadyExists:     true,
	domain.ErrCodeUnauthorized:      true,
	domain.ErrCodeUnsupportedFormat: true,
}

// Reportable reports whether err should become a Sentry event.
func Reportable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !expectedCodes[domain.CodeOf(err)]
}

// Init initializes Sentry with tracing enabled and returns a flush function.
// With an empty DSN it does nothing.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			if ctx.Span.Name == "GET /health" {
				return 0.0
			}
			var emptySpanID sentry.SpanID
			if ctx.Span.ParentSpanID != emptySpanID {
				if ctx.Span.Sampled.Bool() {
					return 1.0
				}
				return 0.0
			}
			return cfg.TracesSampleRate
		}),
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if hint != nil && hint.OriginalException != nil && !Reportable(hint.OriginalException) {
				return nil
			}
			return event
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("sentry: failed to initialize (continuing without tracing)")
		return func() {}, nil
	}

	log.Info().
		Str("environment", cfg.Environment).
		Float64("sample_rate", cfg.TracesSampleRate).
		Msg("sentry: tracing initialized")
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// SpanAttributes tags pipeline and service spans.
type SpanAttributes struct {
	DocumentID string
	Stage      string
	Schema     string
	Model      string
	Operation  string
}

// Span wraps sentry.Span. The zero value is a no-op.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetTag adds a tag once the value is known, e.g. a chunk count.
func (s *Span) SetTag(key, value string) {
	if s.inner != nil {
		s.inner.SetTag(key, value)
	}
}

// SetError marks the span failed and tags the error code. Only reportable
// errors are captured as events.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = spanStatusFor(err)
	if code := domain.CodeOf(err); code != "" {
		s.inner.SetTag("error.code", code)
	}
	if Reportable(err) {
		CaptureError(s.inner.Context(), err)
	}
}

func spanStatusFor(err error) sentry.SpanStatus {
	switch domain.CodeOf(err) {
	case domain.ErrCodeNotFound:
		return sentry.SpanStatusNotFound
	case domain.ErrCodeValidation, domain.ErrCodeInvalidArgument, domain.ErrCodeUnsupportedFormat:
		return sentry.SpanStatusInvalidArgument
	case domain.ErrCodeAlreadyExists:
		return sentry.SpanStatusAlreadyExists
	case domain.ErrCodeRateLimited:
		return sentry.SpanStatusResourceExhausted
	case domain.ErrCodeTimeout:
		return sentry.SpanStatusDeadlineExceeded
	case domain.ErrCodeCapabilityUnavailable, domain.ErrCodeOCRUnavailable, domain.ErrCodeEmbeddingUnavailable:
		return sentry.SpanStatusUnavailable
	}
	if errors.Is(err, context.Canceled) {
		return sentry.SpanStatusCanceled
	}
	return sentry.SpanStatusInternalError
}

func setAttributes(span *sentry.Span, attrs SpanAttributes) {
	if span == nil {
		return
	}
	if attrs.DocumentID != "" {
		span.SetTag("document_id", attrs.DocumentID)
	}
	if attrs.Stage != "" {
		span.SetTag("stage", attrs.Stage)
	}
	if attrs.Schema != "" {
		span.SetTag("schema", attrs.Schema)
	}
	if attrs.Model != "" {
		span.SetTag("model_id", attrs.Model)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	setAttributes(span, attrs)
	return span.Context(), &Span{inner: span}
}

// CaptureError captures an error to Sentry with the current context.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
}

// AddBreadcrumb records a pipeline transition on the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
	} else {
		sentry.AddBreadcrumb(breadcrumb)
	}
}
