package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockIngestionJobRepository struct {
	mock.Mock
}

func (m *MockIngestionJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestionJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestionJob), args.Error(1)
}

func (m *MockIngestionJobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockIngestionJobRepository) IncrementRetries(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIngestionJobRepository) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type MockDocumentProcessor struct {
	mock.Mock
}

func (m *MockDocumentProcessor) Process(ctx context.Context, documentID string, force bool) (*domain.Document, error) {
	args := m.Called(ctx, documentID, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func newRepo(jobs []*domain.IngestionJob) *MockIngestionJobRepository {
	repo := new(MockIngestionJobRepository)
	repo.On("ResetStale", mock.Anything, DefaultStaleAfter).Return(int64(0), nil)
	repo.On("ClaimPending", mock.Anything, DefaultBatchSize).Return(jobs, nil)
	return repo
}

func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("database unavailable"))

	worker := NewWorker(mockProcessor, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_RunsAtStartupAndOnWake(t *testing.T) {
	var rounds atomic.Int32
	processor := processorFunc(func(context.Context) error {
		rounds.Add(1)
		return nil
	})

	worker := NewWorker(processor, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	assert.Eventually(t, func() bool { return rounds.Load() == 1 }, time.Second, 5*time.Millisecond)

	worker.Wake()
	assert.Eventually(t, func() bool { return rounds.Load() == 2 }, time.Second, 5*time.Millisecond)

	worker.Stop()
}

func TestWorker_WakeDoesNotBlock(t *testing.T) {
	worker := NewWorker(processorFunc(func(context.Context) error { return nil }), time.Hour)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			worker.Wake()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wake blocked without a running worker")
	}
}

type processorFunc func(ctx context.Context) error

func (f processorFunc) ProcessJobs(ctx context.Context) error { return f(ctx) }

func TestIngestionWorker_NoPendingJobs(t *testing.T) {
	repo := newRepo([]*domain.IngestionJob{})
	processor := new(MockDocumentProcessor)

	worker := NewIngestionWorker(repo, processor, IngestionWorkerConfig{})
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	repo.AssertExpectations(t)
	processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestionWorker_Success(t *testing.T) {
	job := domain.NewIngestionJob("job-1", "doc-1", true, time.Now())
	repo := newRepo([]*domain.IngestionJob{job})
	repo.On("UpdateStatus", mock.Anything, "job-1", domain.JobStatusCompleted, "").Return(nil)

	processor := new(MockDocumentProcessor)
	processor.On("Process", mock.Anything, "doc-1", true).
		Return(&domain.Document{ID: "doc-1", Status: domain.DocumentStatusIndexed}, nil)

	worker := NewIngestionWorker(repo, processor, IngestionWorkerConfig{})
	assert.NoError(t, worker.ProcessJobs(context.Background()))

	repo.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestIngestionWorker_FailureIsRetried(t *testing.T) {
	job := domain.NewIngestionJob("job-1", "doc-1", false, time.Now())
	repo := newRepo([]*domain.IngestionJob{job})
	repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	repo.On("UpdateStatus", mock.Anything, "job-1", domain.JobStatusPending, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	processor := new(MockDocumentProcessor)
	processor.On("Process", mock.Anything, "doc-1", false).Return(nil, errors.New("ocr failed"))

	worker := NewIngestionWorker(repo, processor, IngestionWorkerConfig{})
	assert.NoError(t, worker.ProcessJobs(context.Background()))

	repo.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestIngestionWorker_TransientFailureIsRetried(t *testing.T) {
	job := domain.NewIngestionJob("job-1", "doc-1", false, time.Now())
	repo := newRepo([]*domain.IngestionJob{job})
	repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	repo.On("UpdateStatus", mock.Anything, "job-1", domain.JobStatusPending, mock.Anything).Return(nil)

	processor := new(MockDocumentProcessor)
	processor.On("Process", mock.Anything, "doc-1", false).
		Return(nil, domain.NewDomainError(domain.ErrCodeOCRUnavailable, "ocr engine down"))

	worker := NewIngestionWorker(repo, processor, IngestionWorkerConfig{})
	assert.NoError(t, worker.ProcessJobs(context.Background()))

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, "job-1", domain.JobStatusFailed, mock.Anything)
}

func TestIngestionWorker_PermanentFailureIsNotRetried(t *testing.T) {
	job := domain.NewIngestionJob("job-1", "doc-1", false, time.Now())
	repo := newRepo([]*domain.IngestionJob{job})
	repo.On("UpdateStatus", mock.Anything, "job-1", domain.JobStatusFailed, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "scan.tiff")
	})).Return(nil)

	processor := new(MockDocumentProcessor)
	processor.On("Process", mock.Anything, "doc-1", false).
		Return(nil, domain.NewDomainError(domain.ErrCodeUnsupportedFormat, "unsupported file type: scan.tiff"))

	worker := NewIngestionWorker(repo, processor, IngestionWorkerConfig{MaxRetries: 5})
	assert.NoError(t, worker.ProcessJobs(context.Background()))

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "IncrementRetries", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, "job-1", domain.JobStatusPending, mock.Anything)
}

func TestIngestionWorker_MaxRetriesExceeded(t *testing.T) {
	job := domain.NewIngestionJob("job-1", "doc-1", false, time.Now())
	job.Retries = 2
	repo := newRepo([]*domain.IngestionJob{job})
	repo.On("IncrementRetries", mock.Anything, "job-1").Return(nil)
	repo.On("UpdateStatus", mock.Anything, "job-1", domain.JobStatusFailed, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	processor := new(MockDocumentProcessor)
	processor.On("Process", mock.Anything, "doc-1", false).Return(nil, errors.New("ocr failed"))

	worker := NewIngestionWorker(repo, processor, IngestionWorkerConfig{})
	assert.NoError(t, worker.ProcessJobs(context.Background()))

	repo.AssertExpectations(t)
}

func TestIngestionWorker_BoundsConcurrency(t *testing.T) {
	jobs := make([]*domain.IngestionJob, 6)
	for i := range jobs {
		id := string(rune('a' + i))
		jobs[i] = domain.NewIngestionJob("job-"+id, "doc-"+id, false, time.Now())
	}
	repo := newRepo(jobs)
	repo.On("UpdateStatus", mock.Anything, mock.Anything, domain.JobStatusCompleted, "").Return(nil)

	var running, peak atomic.Int32
	processor := new(MockDocumentProcessor)
	processor.On("Process", mock.Anything, mock.Anything, false).
		Run(func(mock.Arguments) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		}).
		Return(&domain.Document{}, nil)

	worker := NewIngestionWorker(repo, processor, IngestionWorkerConfig{Concurrency: 2})
	assert.NoError(t, worker.ProcessJobs(context.Background()))

	processor.AssertNumberOfCalls(t, "Process", 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestIngestionWorker_ClaimError(t *testing.T) {
	repo := new(MockIngestionJobRepository)
	repo.On("ResetStale", mock.Anything, DefaultStaleAfter).Return(int64(0), nil)
	repo.On("ClaimPending", mock.Anything, DefaultBatchSize).Return(nil, errors.New("database error"))

	worker := NewIngestionWorker(repo, new(MockDocumentProcessor), IngestionWorkerConfig{})
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch pending jobs")
}
