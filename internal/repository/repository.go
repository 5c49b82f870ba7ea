package repository

import (
	"context"
	"time"

	"publish-queue/internal/models"
)

// JobRepository defines the interface for job persistence
type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJobByID(ctx context.Context, id int64) (*models.Job, error)
	ReadyJobs(ctx context.Context, now time.Time, maxRetries int) ([]*models.Job, error)
	CompleteJob(ctx context.Context, id int64, result string) error
	FailJob(ctx context.Context, id int64, errorMessage string) error
	CancelJob(ctx context.Context, id int64, errorMessage string) (bool, error)
	RetryJob(ctx context.Context, id int64) (bool, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error)
	PurgeTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CredentialRepository defines the interface for credential persistence
type CredentialRepository interface {
	GetCredential(ctx context.Context, platform models.Platform) (*models.Credential, error)
	UpsertCredential(ctx context.Context, cred *models.Credential) error
	DeleteCredential(ctx context.Context, platform models.Platform) (bool, error)
}
