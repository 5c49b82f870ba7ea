package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"publish-queue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newPendingJob(platform models.Platform, scheduledAt *time.Time) *models.Job {
	return &models.Job{
		Platform:    platform,
		Action:      models.ActionUploadVideo,
		Status:      models.StatusPending,
		ScheduledAt: scheduledAt,
		Payload:     `{"title":"test"}`,
	}
}

func TestSQLiteRepository_CreateJob_AssignsMonotonicIDs(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := newPendingJob(models.PlatformYouTube, nil)
	second := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, first))
	require.NoError(t, repo.CreateJob(ctx, second))

	assert.Greater(t, first.ID, int64(0))
	assert.Greater(t, second.ID, first.ID)

	stored, err := repo.GetJobByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)
	assert.Nil(t, stored.ScheduledAt)
}

func TestSQLiteRepository_GetJobByID_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetJobByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSQLiteRepository_ReadyJobs_ExcludesFutureAndExhausted(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	immediate := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, immediate))

	future := now.Add(time.Hour)
	scheduled := newPendingJob(models.PlatformFacebook, &future)
	require.NoError(t, repo.CreateJob(ctx, scheduled))

	exhausted := newPendingJob(models.PlatformTikTok, nil)
	require.NoError(t, repo.CreateJob(ctx, exhausted))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.FailJob(ctx, exhausted.ID, "boom"))
	}
	ok, err := repo.RetryJob(ctx, exhausted.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ready, err := repo.ReadyJobs(ctx, now, 3)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, immediate.ID, ready[0].ID)

	// The scheduled job becomes ready once the clock passes its schedule time.
	ready, err = repo.ReadyJobs(ctx, now.Add(2*time.Hour), 3)
	require.NoError(t, err)
	require.Len(t, ready, 2)
	assert.Equal(t, immediate.ID, ready[0].ID)
	assert.Equal(t, scheduled.ID, ready[1].ID)
}

func TestSQLiteRepository_ReadyJobs_Ordering(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	late := now.Add(-time.Minute)
	early := now.Add(-time.Hour)

	lateJob := newPendingJob(models.PlatformYouTube, &late)
	require.NoError(t, repo.CreateJob(ctx, lateJob))
	earlyJob := newPendingJob(models.PlatformYouTube, &early)
	require.NoError(t, repo.CreateJob(ctx, earlyJob))
	unscheduled := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, unscheduled))
	tied := newPendingJob(models.PlatformYouTube, &early)
	require.NoError(t, repo.CreateJob(ctx, tied))

	ready, err := repo.ReadyJobs(ctx, now, 3)
	require.NoError(t, err)
	require.Len(t, ready, 4)

	// NULL schedule first, then ascending schedule time, ties by insertion order.
	assert.Equal(t, unscheduled.ID, ready[0].ID)
	assert.Equal(t, earlyJob.ID, ready[1].ID)
	assert.Equal(t, tied.ID, ready[2].ID)
	assert.Equal(t, lateJob.ID, ready[3].ID)
}

func TestSQLiteRepository_FailJob_IncrementsRetryCount(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	job := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, job))

	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.FailJob(ctx, job.ID, "network timeout"))
		stored, err := repo.GetJobByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, stored.Status)
		assert.Equal(t, i, stored.RetryCount)
		require.NotNil(t, stored.ErrorMessage)
		assert.Equal(t, "network timeout", *stored.ErrorMessage)
	}
}

func TestSQLiteRepository_CompleteJob(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	job := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, job))

	require.NoError(t, repo.CompleteJob(ctx, job.ID, `{"post_id":"abc"}`))

	stored, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, `{"post_id":"abc"}`, *stored.Result)

	// Completing an unknown job affects zero rows and does not error.
	assert.NoError(t, repo.CompleteJob(ctx, 999, "ignored"))
}

func TestSQLiteRepository_CancelJob_OnlyPending(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	job := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, job))

	ok, err := repo.CancelJob(ctx, job.ID, "cancelled by user")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "cancelled by user", *stored.ErrorMessage)

	// A second cancel finds no pending row.
	ok, err = repo.CancelJob(ctx, job.ID, "cancelled by user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteRepository_RetryJob_OnlyFailed(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	job := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, job))

	// Pending jobs cannot be retried.
	ok, err := repo.RetryJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.FailJob(ctx, job.ID, "boom"))

	ok, err = repo.RetryJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.ErrorMessage)
	assert.Equal(t, 1, stored.RetryCount)
}

func TestSQLiteRepository_ListJobs_FiltersAndOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	yt := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, yt))
	fb := newPendingJob(models.PlatformFacebook, nil)
	require.NoError(t, repo.CreateJob(ctx, fb))
	require.NoError(t, repo.CompleteJob(ctx, fb.ID, "{}"))

	all, err := repo.ListJobs(ctx, models.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, fb.ID, all[0].ID, "newest created first")

	pending, err := repo.ListJobs(ctx, models.JobFilter{Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, yt.ID, pending[0].ID)

	facebook, err := repo.ListJobs(ctx, models.JobFilter{Platform: models.PlatformFacebook})
	require.NoError(t, err)
	require.Len(t, facebook, 1)

	limited, err := repo.ListJobs(ctx, models.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteRepository_PurgeTerminalJobsBefore(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	oldPending := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, oldPending))
	oldDone := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, oldDone))
	require.NoError(t, repo.CompleteJob(ctx, oldDone.ID, "{}"))
	oldFailed := newPendingJob(models.PlatformYouTube, nil)
	require.NoError(t, repo.CreateJob(ctx, oldFailed))
	require.NoError(t, repo.FailJob(ctx, oldFailed.ID, "boom"))

	// Everything above was created "now"; a past cutoff removes nothing.
	count, err := repo.PurgeTerminalJobsBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// A future cutoff removes only terminal jobs, never pending ones.
	count, err = repo.PurgeTerminalJobsBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	remaining, err := repo.ListJobs(ctx, models.JobFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, oldPending.ID, remaining[0].ID)
}

func TestSQLiteRepository_CredentialRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	missing, err := repo.GetCredential(ctx, models.PlatformYouTube)
	require.NoError(t, err)
	assert.Nil(t, missing)

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	cred := &models.Credential{
		Platform:     models.PlatformYouTube,
		AccessToken:  "token-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    &expires,
	}
	require.NoError(t, repo.UpsertCredential(ctx, cred))

	stored, err := repo.GetCredential(ctx, models.PlatformYouTube)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "token-1", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, expires.Unix(), stored.ExpiresAt.Unix())

	// Upsert with the same platform key replaces the full record.
	require.NoError(t, repo.UpsertCredential(ctx, &models.Credential{
		Platform:    models.PlatformYouTube,
		AccessToken: "token-2",
	}))

	stored, err = repo.GetCredential(ctx, models.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, "token-2", stored.AccessToken)
	assert.Empty(t, stored.RefreshToken)
	assert.Nil(t, stored.ExpiresAt)

	removed, err := repo.DeleteCredential(ctx, models.PlatformYouTube)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.DeleteCredential(ctx, models.PlatformYouTube)
	require.NoError(t, err)
	assert.False(t, removed)
}
