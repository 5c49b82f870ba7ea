package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"publish-queue/internal/metrics"
	"publish-queue/internal/models"
	"publish-queue/internal/repository"
)

var (
	ErrValidation  = errors.New("invalid enqueue request")
	ErrJobNotFound = repository.ErrJobNotFound
)

// CancelledMessage is the sentinel error recorded on a cancelled job.
// Cancellation is modeled as a failure rather than a deletion so the
// audit trail survives.
const CancelledMessage = "cancelled by user"

// QueueService handles job queue business logic
type QueueService struct {
	repo       repository.JobRepository
	maxRetries int
	metrics    *metrics.Metrics
}

// NewQueueService creates a new queue service
func NewQueueService(repo repository.JobRepository, maxRetries int, metrics *metrics.Metrics) *QueueService {
	return &QueueService{
		repo:       repo,
		maxRetries: maxRetries,
		metrics:    metrics,
	}
}

// MaxRetries returns the retry ceiling the ready set is computed against
func (s *QueueService) MaxRetries() int {
	return s.maxRetries
}

// Enqueue validates the request and stores a new pending job. A missing
// or unknown platform/action is rejected before any row is written.
func (s *QueueService) Enqueue(ctx context.Context, req *models.EnqueueRequest) (*models.Job, error) {
	if req.Platform == "" {
		return nil, fmt.Errorf("%w: platform is required", ErrValidation)
	}
	if req.Action == "" {
		return nil, fmt.Errorf("%w: action is required", ErrValidation)
	}
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	action, err := models.ParseAction(req.Action)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var scheduledAt *time.Time
	if req.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid scheduled_at: %v", ErrValidation, err)
		}
		scheduledAt = &t
	}

	payload, err := json.Marshal(req.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid content: %v", ErrValidation, err)
	}

	job := &models.Job{
		Platform:    platform,
		Action:      action,
		Status:      models.StatusPending,
		ScheduledAt: scheduledAt,
		Payload:     string(payload),
		FilePath:    req.FilePath,
		RetryCount:  0,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.metrics.IncrementEnqueuedJobs()
	log.Printf("job_id=%d: job enqueued, platform=%s action=%s", job.ID, job.Platform, job.Action)

	return job, nil
}

// ReadySet returns the jobs eligible for dispatch right now, in dispatch order
func (s *QueueService) ReadySet(ctx context.Context) ([]*models.Job, error) {
	return s.repo.ReadyJobs(ctx, time.Now(), s.maxRetries)
}

// Complete transitions a job to completed and stores its result. Unknown
// job IDs are a no-op.
func (s *QueueService) Complete(ctx context.Context, id int64, result string) error {
	if err := s.repo.CompleteJob(ctx, id, result); err != nil {
		return err
	}
	s.metrics.IncrementCompletedJobs()
	log.Printf("job_id=%d: job completed", id)
	return nil
}

// Fail transitions a job to failed, recording the error and counting the attempt
func (s *QueueService) Fail(ctx context.Context, id int64, errorMessage string) error {
	if err := s.repo.FailJob(ctx, id, errorMessage); err != nil {
		return err
	}
	s.metrics.IncrementFailedJobs()
	log.Printf("job_id=%d: job failed, reason: %s", id, errorMessage)
	return nil
}

// Cancel marks a pending job as failed with the cancellation sentinel.
// Returns false without changing anything when the job is not pending.
func (s *QueueService) Cancel(ctx context.Context, id int64) (bool, error) {
	ok, err := s.repo.CancelJob(ctx, id, CancelledMessage)
	if err != nil {
		return false, err
	}
	if ok {
		log.Printf("job_id=%d: job cancelled", id)
	}
	return ok, nil
}

// Retry moves a failed job back to pending without resetting its retry
// count, so a job retried past the ceiling stays out of the ready set.
// Returns false without changing anything when the job is not failed.
func (s *QueueService) Retry(ctx context.Context, id int64) (bool, error) {
	ok, err := s.repo.RetryJob(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.metrics.IncrementRetriedJobs()
		log.Printf("job_id=%d: job queued for retry", id)
	}
	return ok, nil
}

// Get retrieves a single job
func (s *QueueService) Get(ctx context.Context, id int64) (*models.Job, error) {
	return s.repo.GetJobByID(ctx, id)
}

// List retrieves jobs matching the filter, newest created first
func (s *QueueService) List(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	return s.repo.ListJobs(ctx, filter)
}

// PurgeOlderThan deletes terminal jobs created more than the given number
// of days ago and returns how many were removed
func (s *QueueService) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	count, err := s.repo.PurgeTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.metrics.AddPurgedJobs(count)
		log.Printf("purged %d terminal jobs older than %d days", count, days)
	}
	return count, nil
}
