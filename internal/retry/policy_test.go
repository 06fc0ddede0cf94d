package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = domain.NewDomainError(domain.ErrCodeTimeout, "deadline exceeded")

func TestPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	p := Policy{MaxAttempts: 3, Backoff: Immediate()}

	calls := 0
	attempts, err := p.DoCount(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPolicy_StopsAtMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 4, Backoff: Immediate()}

	attempts, err := p.DoCount(context.Background(), func(ctx context.Context) error {
		return errTransient
	})

	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, 4, attempts)
}

func TestPolicy_DoesNotRetryPermanentErrors(t *testing.T) {
	p := Policy{MaxAttempts: 5, Backoff: Immediate()}
	permanent := domain.NewDomainError(domain.ErrCodeCapabilityAuth, "invalid api key")

	attempts, err := p.DoCount(context.Background(), func(ctx context.Context) error {
		return permanent
	})

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_CustomRetryable(t *testing.T) {
	flaky := errors.New("flaky")
	p := Policy{
		MaxAttempts: 2,
		Backoff:     Immediate(),
		Retryable:   func(err error) bool { return errors.Is(err, flaky) },
	}

	attempts, err := p.DoCount(context.Background(), func(ctx context.Context) error {
		return flaky
	})

	assert.ErrorIs(t, err, flaky)
	assert.Equal(t, 2, attempts)
}

func TestPolicy_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	p := Policy{}

	attempts, err := p.DoCount(context.Background(), func(ctx context.Context) error {
		return errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_ContextCancelledStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 10, Backoff: Constant(10 * time.Millisecond)}

	attempts, err := p.DoCount(ctx, func(ctx context.Context) error {
		cancel()
		return errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestExponential_GrowsAndCaps(t *testing.T) {
	b := Exponential(100*time.Millisecond, 300*time.Millisecond, 2)()

	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())
}
