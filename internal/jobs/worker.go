// Package jobs runs queued ingestion work in the background.
package jobs

import (
	"context"
	"time"

	"github.com/phuslu/log"
)

// JobProcessor handles one polling round.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs its processor once at start, on every tick, and whenever Wake
// is called, until stopped. Rounds never overlap.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	wake         chan struct{}
	stopChan     chan struct{}
	doneChan     chan struct{}
}

func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Wake requests a round without waiting for the next tick. Calls made while
// a round is pending collapse into one.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start blocks running the polling loop.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Info().Dur("poll_interval", w.pollInterval).Msg("ingestion worker started")
	w.round(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("ingestion worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Info().Msg("ingestion worker stopped: stop signal received")
			return
		case <-w.wake:
			w.round(ctx, "wake")
		case <-ticker.C:
			w.round(ctx, "tick")
		}
	}
}

func (w *Worker) round(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Error().Err(err).Str("trigger", trigger).Msg("ingestion round failed")
		return
	}
	log.Debug().Str("trigger", trigger).Dur("took", time.Since(start)).Msg("ingestion round done")
}

// Stop ends the loop and waits for the current round to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Info().Msg("ingestion worker shutdown complete")
}
