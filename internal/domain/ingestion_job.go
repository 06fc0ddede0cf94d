package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the status of an ingestion job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IngestionJob is a queued request to run the pipeline for one document.
type IngestionJob struct {
	ID          string
	DocumentID  string
	Force       bool
	Status      JobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewIngestionJob creates a pending job for a document.
func NewIngestionJob(id, documentID string, force bool, createdAt time.Time) *IngestionJob {
	return &IngestionJob{
		ID:         id,
		DocumentID: documentID,
		Force:      force,
		Status:     JobStatusPending,
		CreatedAt:  createdAt,
	}
}

// ValidateIngestionJob validates an IngestionJob instance
func ValidateIngestionJob(j *IngestionJob) error {
	if j == nil {
		return fmt.Errorf("ingestion job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("ingestion job ID is required")
	}
	if j.DocumentID == "" {
		return fmt.Errorf("ingestion job DocumentID is required")
	}
	if !isValidJobStatus(j.Status) {
		return fmt.Errorf("ingestion job Status is invalid: %s", j.Status)
	}
	if j.Retries < 0 {
		return fmt.Errorf("ingestion job Retries cannot be negative")
	}
	return nil
}

func isValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
