package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"publish-queue/internal/metrics"
	"publish-queue/internal/models"
	"publish-queue/internal/service"
)

// JobHandler handles HTTP requests for jobs
type JobHandler struct {
	queue   *service.QueueService
	metrics *metrics.Metrics
}

// NewJobHandler creates a new job handler
func NewJobHandler(queue *service.QueueService, metrics *metrics.Metrics) *JobHandler {
	return &JobHandler{
		queue:   queue,
		metrics: metrics,
	}
}

// Jobs handles POST /jobs (enqueue) and GET /jobs (list)
func (h *JobHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.enqueue(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *JobHandler) enqueue(w http.ResponseWriter, r *http.Request) {
	var req models.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	job, err := h.queue.Enqueue(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("error enqueueing job: %v", err)
		http.Error(w, "failed to enqueue job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(job); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func (h *JobHandler) list(w http.ResponseWriter, r *http.Request) {
	filter := models.JobFilter{}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := models.JobStatus(statusStr)
		if !status.Valid() {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		filter.Status = status
	}

	if platformStr := r.URL.Query().Get("platform"); platformStr != "" {
		platform, err := models.ParsePlatform(platformStr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Platform = platform
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	jobs, err := h.queue.List(r.Context(), filter)
	if err != nil {
		log.Printf("error listing jobs: %v", err)
		http.Error(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(jobs); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// JobByID handles GET /jobs/{id}, POST /jobs/{id}/cancel and POST /jobs/{id}/retry
func (h *JobHandler) JobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if rest == "" || rest == r.URL.Path {
		http.Error(w, "job id is required", http.StatusBadRequest)
		return
	}

	parts := strings.Split(strings.Trim(rest, "/"), "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.get(w, r, id)
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		h.cancel(w, r, id)
	case len(parts) == 2 && parts[1] == "retry" && r.Method == http.MethodPost:
		h.retry(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *JobHandler) get(w http.ResponseWriter, r *http.Request, id int64) {
	job, err := h.queue.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		log.Printf("error getting job: %v", err)
		http.Error(w, "failed to retrieve job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(job); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func (h *JobHandler) cancel(w http.ResponseWriter, r *http.Request, id int64) {
	ok, err := h.queue.Cancel(r.Context(), id)
	if err != nil {
		log.Printf("error cancelling job: %v", err)
		http.Error(w, "failed to cancel job", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "job is not pending", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *JobHandler) retry(w http.ResponseWriter, r *http.Request, id int64) {
	ok, err := h.queue.Retry(r.Context(), id)
	if err != nil {
		log.Printf("error retrying job: %v", err)
		http.Error(w, "failed to retry job", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "job is not failed", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMetrics handles GET /metrics
func (h *JobHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.metrics.GetSnapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}
