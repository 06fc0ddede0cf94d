package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/telemetry"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxRetries  = 3
	DefaultConcurrency = 2
	DefaultBatchSize   = 10
	DefaultStaleAfter  = 15 * time.Minute
)

// IngestionJobRepository claims and updates queued jobs.
type IngestionJobRepository interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestionJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// DocumentProcessor runs the ingestion pipeline for a stored document.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID string, force bool) (*domain.Document, error)
}

type IngestionWorkerConfig struct {
	Concurrency int
	BatchSize   int
	MaxRetries  int
	StaleAfter  time.Duration
}

// IngestionWorker processes ingestion jobs, several documents at a time.
type IngestionWorker struct {
	repo      IngestionJobRepository
	processor DocumentProcessor
	cfg       IngestionWorkerConfig
}

func NewIngestionWorker(repo IngestionJobRepository, processor DocumentProcessor, cfg IngestionWorkerConfig) *IngestionWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	return &IngestionWorker{repo: repo, processor: processor, cfg: cfg}
}

// ProcessJobs implements JobProcessor.
func (w *IngestionWorker) ProcessJobs(ctx context.Context) error {
	reset, err := w.repo.ResetStale(ctx, w.cfg.StaleAfter)
	if err != nil {
		log.Warn().Err(err).Msg("failed to reset stale ingestion jobs")
	} else if reset > 0 {
		log.Warn().Int64("jobs", reset).Msg("reset stale ingestion jobs to pending")
	}

	jobs, err := w.repo.ClaimPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	log.Info().Int("jobs", len(jobs)).Msg("processing pending ingestion jobs")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			if err := w.processJob(gctx, job); err != nil {
				log.Error().Err(err).Str("job_id", job.ID).Msg("error processing job")
			}
			return nil
		})
	}
	return g.Wait()
}

func (w *IngestionWorker) processJob(ctx context.Context, job *domain.IngestionJob) error {
	log.Info().Str("job_id", job.ID).Str("document_id", job.DocumentID).Msg("processing job")

	if _, err := w.processor.Process(ctx, job.DocumentID, job.Force); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}
	log.Info().Str("job_id", job.ID).Msg("job completed")
	return nil
}

func (w *IngestionWorker) handleJobFailure(ctx context.Context, job *domain.IngestionJob, jobErr error) error {
	log.Warn().Err(jobErr).Str("job_id", job.ID).Msg("job failed")

	// Coded failures that are not transient (unsupported format, bad
	// extraction output, auth) fail the same way on every attempt.
	if domain.CodeOf(jobErr) != "" && !domain.IsTransient(jobErr) {
		log.Error().Str("job_id", job.ID).Str("code", domain.CodeOf(jobErr)).Msg("permanent failure, marking job as failed")
		telemetry.CaptureError(ctx, fmt.Errorf("ingestion of %s: %w", job.DocumentID, jobErr))
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	attempt := int(job.Retries) + 1
	if attempt >= w.cfg.MaxRetries {
		log.Error().Str("job_id", job.ID).Int("max_retries", w.cfg.MaxRetries).Msg("job exceeded max retries, marking as failed")
		telemetry.CaptureError(ctx, fmt.Errorf("ingestion of %s: %w", job.DocumentID, jobErr))
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Info().Str("job_id", job.ID).Int("attempt", attempt).Int("max_retries", w.cfg.MaxRetries).Msg("job will be retried")
	errMsg := fmt.Sprintf("retry %d: %v", attempt, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.JobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}
	return nil
}
