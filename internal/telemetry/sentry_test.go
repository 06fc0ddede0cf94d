package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportable(t *testing.T) {
	assert.False(t, Reportable(nil))
	assert.False(t, Reportable(context.Canceled))
	assert.False(t, Reportable(fmt.Errorf("get: %w", domain.ErrDocumentNotFound)))
	assert.False(t, Reportable(domain.InvalidArgumentf("bad k")))

	assert.True(t, Reportable(errors.New("connection reset")))
	assert.True(t, Reportable(domain.NewDomainError(domain.ErrCodeExtractionFailed, "no valid JSON")))
}

func TestSpanStatusFor(t *testing.T) {
	assert.Equal(t, sentry.SpanStatusNotFound, spanStatusFor(domain.ErrDocumentNotFound))
	assert.Equal(t, sentry.SpanStatusInvalidArgument, spanStatusFor(domain.InvalidArgumentf("x")))
	assert.Equal(t, sentry.SpanStatusResourceExhausted, spanStatusFor(domain.NewDomainError(domain.ErrCodeRateLimited, "slow down")))
	assert.Equal(t, sentry.SpanStatusCanceled, spanStatusFor(context.Canceled))
	assert.Equal(t, sentry.SpanStatusInternalError, spanStatusFor(errors.New("boom")))
}

func TestInit_EmptyDSNIsNoop(t *testing.T) {
	flush, err := Init(Config{})
	require.NoError(t, err)
	flush()
}

func TestSpan_ZeroValueIsNoop(t *testing.T) {
	var s Span
	s.SetTag("chunks", "3")
	s.SetError(errors.New("boom"))
	s.End()
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "ingestion.pipeline", SpanAttributes{DocumentID: "doc-1"})
	defer parent.End()

	_, child := StartSpan(ctx, "ingestion.ocr", SpanAttributes{DocumentID: "doc-1", Stage: "ocr"})
	defer child.End()

	require.NotNil(t, child.inner)
	assert.Equal(t, parent.inner.SpanID, child.inner.ParentSpanID)
	assert.Equal(t, "ocr", child.inner.Tags["stage"])
}
