package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/phuslu/log"
	"golang.org/x/time/rate"
)

// maxPause caps how long a server-suggested delay can hold back new calls.
const maxPause = 2 * time.Minute

// RateLimited throttles calls to a Completer with a token bucket and pauses
// after the provider reports a rate limit.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

var _ Completer = (*RateLimited)(nil)

// NewRateLimited allows perSecond calls on average with bursts of burst.
// A non-positive perSecond disables throttling.
func NewRateLimited(next Completer, perSecond float64, burst int) *RateLimited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}

	out, err := r.next.Complete(ctx, prompt, opts)
	if err != nil && errors.Is(err, domain.ErrRateLimited) {
		r.pause(RetryDelay(err))
	}
	return out, err
}

func (r *RateLimited) wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Wait fails early when the deadline would pass before a token frees up.
		return domain.NewDomainErrorWithCause(domain.ErrCodeRateLimited, "client-side rate limit", err)
	}
	return nil
}

func (r *RateLimited) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	if d > maxPause {
		d = maxPause
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if until := time.Now().Add(d); until.After(r.retryAt) {
		r.retryAt = until
		log.Warn().Dur("pause", d).Msg("llm rate limited, pausing new calls")
	}
}
