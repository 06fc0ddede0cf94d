// Package retry provides a bounded retry policy shared by the embedding
// engine, the vector store, the structured extractor and the pipeline.
package retry

import (
	"context"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/phuslu/log"
)

// Default retry constants.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff        = 10 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Strategy produces a fresh backoff sequence for one Do call.
type Strategy func() backoff.BackOff

// Policy is a bounded retry policy: at most MaxAttempts calls, spaced by
// Backoff. Only errors accepted by Retryable are retried.
type Policy struct {
	Name        string
	MaxAttempts int
	Backoff     Strategy
	Retryable   func(error) bool
}

// Exponential returns a jitter-free exponential strategy capped at max.
func Exponential(initial, max time.Duration, multiplier float64) Strategy {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.Multiplier = multiplier
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

// Constant waits the same interval between attempts.
func Constant(d time.Duration) Strategy {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// Immediate retries without waiting.
func Immediate() Strategy {
	return func() backoff.BackOff {
		return &backoff.ZeroBackOff{}
	}
}

// NewPolicy builds an exponential policy retrying transient domain errors.
func NewPolicy(name string, maxAttempts int, initial, max time.Duration) Policy {
	return Policy{
		Name:        name,
		MaxAttempts: maxAttempts,
		Backoff:     Exponential(initial, max, DefaultBackoffMultiplier),
		Retryable:   domain.IsTransient,
	}
}

// DefaultPolicy returns NewPolicy with the package defaults.
func DefaultPolicy(name string) Policy {
	return NewPolicy(name, DefaultMaxAttempts, DefaultInitialBackoff, DefaultMaxBackoff)
}

// Do calls op until it succeeds, returns a non-retryable error, the attempt
// bound is reached, or ctx is done. The last error from op is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := p.DoCount(ctx, op)
	return err
}

// DoCount is Do that also reports how many times op was called.
func (p Policy) DoCount(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	strategy := p.Backoff
	if strategy == nil {
		strategy = Immediate()
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsTransient
	}

	b := backoff.WithContext(backoff.WithMaxRetries(strategy(), uint64(maxAttempts-1)), ctx)

	attempts := 0
	operation := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().
			Str("policy", p.Name).
			Int("attempt", attempts).
			Int("max_attempts", maxAttempts).
			Dur("wait", wait).
			Err(err).
			Msg("retrying after transient failure")
	}

	err := backoff.RetryNotify(operation, b, notify)
	return attempts, err
}
