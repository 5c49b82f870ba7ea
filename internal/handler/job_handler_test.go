package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"publish-queue/internal/metrics"
	"publish-queue/internal/models"
	"publish-queue/internal/repository"
	"publish-queue/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJobFixture(t *testing.T) (*JobHandler, *service.QueueService) {
	t.Helper()

	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	m := metrics.NewMetrics()
	queue := service.NewQueueService(repo, 3, m)
	return NewJobHandler(queue, m), queue
}

func TestJobHandler_CreateJob(t *testing.T) {
	h, _ := newJobFixture(t)

	body := `{"platform":"youtube","action":"upload_video","content":{"title":"clip"},"file_path":"/tmp/clip.mp4"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Jobs(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var job models.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
	assert.Equal(t, models.StatusPending, job.Status)
	assert.Equal(t, models.PlatformYouTube, job.Platform)
	assert.Greater(t, job.ID, int64(0))
}

func TestJobHandler_CreateJob_ValidationErrors(t *testing.T) {
	h, _ := newJobFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing platform", `{"action":"upload_video"}`},
		{"unknown platform", `{"platform":"myspace","action":"upload_video"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Jobs(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestJobHandler_ListJobs(t *testing.T) {
	h, queue := newJobFixture(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, &models.EnqueueRequest{Platform: "youtube", Action: "upload_video"})
	require.NoError(t, err)
	fb, err := queue.Enqueue(ctx, &models.EnqueueRequest{Platform: "facebook", Action: "create_post"})
	require.NoError(t, err)
	require.NoError(t, queue.Complete(ctx, fb.ID, "{}"))

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=pending", nil)
	rec := httptest.NewRecorder()
	h.Jobs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []*models.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, models.PlatformYouTube, jobs[0].Platform)

	// Invalid filter values are rejected.
	rec = httptest.NewRecorder()
	h.Jobs(rec, httptest.NewRequest(http.MethodGet, "/jobs?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobHandler_GetJob(t *testing.T) {
	h, queue := newJobFixture(t)

	job, err := queue.Enqueue(context.Background(), &models.EnqueueRequest{Platform: "youtube", Action: "upload_video"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+strconv.FormatInt(job.ID, 10), nil)
	rec := httptest.NewRecorder()
	h.JobByID(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, job.ID, got.ID)

	rec = httptest.NewRecorder()
	h.JobByID(rec, httptest.NewRequest(http.MethodGet, "/jobs/9999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.JobByID(rec, httptest.NewRequest(http.MethodGet, "/jobs/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobHandler_CancelJob(t *testing.T) {
	h, queue := newJobFixture(t)

	job, err := queue.Enqueue(context.Background(), &models.EnqueueRequest{Platform: "youtube", Action: "upload_video"})
	require.NoError(t, err)

	path := "/jobs/" + strconv.FormatInt(job.ID, 10) + "/cancel"
	rec := httptest.NewRecorder()
	h.JobByID(rec, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// A second cancel conflicts: the job is no longer pending.
	rec = httptest.NewRecorder()
	h.JobByID(rec, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestJobHandler_RetryJob(t *testing.T) {
	h, queue := newJobFixture(t)
	ctx := context.Background()

	job, err := queue.Enqueue(ctx, &models.EnqueueRequest{Platform: "youtube", Action: "upload_video"})
	require.NoError(t, err)

	path := "/jobs/" + strconv.FormatInt(job.ID, 10) + "/retry"

	// Retrying a pending job conflicts.
	rec := httptest.NewRecorder()
	h.JobByID(rec, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, queue.Fail(ctx, job.ID, "boom"))

	rec = httptest.NewRecorder()
	h.JobByID(rec, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestJobHandler_GetMetrics(t *testing.T) {
	h, queue := newJobFixture(t)

	_, err := queue.Enqueue(context.Background(), &models.EnqueueRequest{Platform: "youtube", Action: "upload_video"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.GetMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot map[string]int64
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))
	assert.Equal(t, int64(1), snapshot["enqueued_jobs"])
}
