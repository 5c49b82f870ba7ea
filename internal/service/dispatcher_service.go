package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"publish-queue/internal/models"
)

const (
	// MaxRetriesMessage marks a job that exhausted its retry ceiling.
	MaxRetriesMessage = "max retries exceeded"
	// AuthRequiredMessage marks a failure that needs re-authentication
	// rather than a blind retry. It still counts as a failed attempt.
	AuthRequiredMessage = "authentication required, please reconnect the platform"

	retentionInterval = 24 * time.Hour
)

// Executor performs the platform-specific publish action for one job. The
// dispatcher treats this as the total interface to all platform APIs.
type Executor interface {
	Execute(ctx context.Context, platform models.Platform, action models.Action, payload map[string]interface{}, filePath string) (*models.ExecuteResult, error)
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, platform models.Platform, action models.Action, payload map[string]interface{}, filePath string) (*models.ExecuteResult, error)

// Execute calls f
func (f ExecutorFunc) Execute(ctx context.Context, platform models.Platform, action models.Action, payload map[string]interface{}, filePath string) (*models.ExecuteResult, error) {
	return f(ctx, platform, action, payload, filePath)
}

// DispatcherService drives the time-based dispatch loop: every poll
// interval it pulls the ready set and hands each job to the executor,
// one at a time, in ready-set order.
type DispatcherService struct {
	queue         *QueueService
	executor      Executor
	pollInterval  time.Duration
	retentionDays int
}

// NewDispatcherService creates a new dispatcher service
func NewDispatcherService(queue *QueueService, executor Executor, pollInterval time.Duration, retentionDays int) *DispatcherService {
	return &DispatcherService{
		queue:         queue,
		executor:      executor,
		pollInterval:  pollInterval,
		retentionDays: retentionDays,
	}
}

// Run polls for ready jobs until the context is cancelled. A second,
// independent daily timer runs the retention sweep.
func (s *DispatcherService) Run(ctx context.Context) error {
	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(retentionInterval)
	defer sweepTicker.Stop()

	log.Printf("dispatcher started, poll interval %s", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollTicker.C:
			s.ProcessTick(ctx)
		case <-sweepTicker.C:
			if _, err := s.queue.PurgeOlderThan(ctx, s.retentionDays); err != nil {
				log.Printf("error purging old jobs: %v", err)
			}
		}
	}
}

// ProcessTick dispatches every job in the current ready set sequentially.
// Failures are written into the job record; the tick itself never aborts
// because one job misbehaved.
func (s *DispatcherService) ProcessTick(ctx context.Context) {
	jobs, err := s.queue.ReadySet(ctx)
	if err != nil {
		log.Printf("error fetching ready jobs: %v", err)
		return
	}

	for _, job := range jobs {
		s.processJob(ctx, job)
	}
}

// processJob runs one job through the executor and records the outcome
func (s *DispatcherService) processJob(ctx context.Context, job *models.Job) {
	// Only reachable if the ceiling was lowered after enqueueing or the
	// ready set raced another process; fail without spending an attempt
	// on the executor.
	if job.RetryCount >= s.queue.MaxRetries() {
		if err := s.queue.Fail(ctx, job.ID, MaxRetriesMessage); err != nil {
			log.Printf("job_id=%d: error recording max-retries failure: %v", job.ID, err)
		}
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		if failErr := s.queue.Fail(ctx, job.ID, fmt.Sprintf("invalid payload: %v", err)); failErr != nil {
			log.Printf("job_id=%d: error recording payload failure: %v", job.ID, failErr)
		}
		return
	}

	result, err := s.execute(ctx, job, payload)

	switch {
	case err != nil:
		if failErr := s.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			log.Printf("job_id=%d: error recording failure: %v", job.ID, failErr)
		}
	case result.NeedsAuth:
		if failErr := s.queue.Fail(ctx, job.ID, AuthRequiredMessage); failErr != nil {
			log.Printf("job_id=%d: error recording auth failure: %v", job.ID, failErr)
		}
	case result.Success:
		encoded, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			encoded = []byte("{}")
		}
		if err := s.queue.Complete(ctx, job.ID, string(encoded)); err != nil {
			log.Printf("job_id=%d: error recording completion: %v", job.ID, err)
		}
	default:
		message := result.Error
		if message == "" {
			message = result.Message
		}
		if message == "" {
			message = "publish failed"
		}
		if err := s.queue.Fail(ctx, job.ID, message); err != nil {
			log.Printf("job_id=%d: error recording failure: %v", job.ID, err)
		}
	}
}

// execute invokes the executor, converting a panic into an error so one
// misbehaving publisher cannot halt the loop
func (s *DispatcherService) execute(ctx context.Context, job *models.Job, payload map[string]interface{}) (result *models.ExecuteResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("job_id=%d: executor panicked: %v", job.ID, r)
			result = nil
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()

	result, err = s.executor.Execute(ctx, job.Platform, job.Action, payload, job.FilePath)
	if err == nil && result == nil {
		err = fmt.Errorf("executor returned no result")
	}
	return result, err
}
