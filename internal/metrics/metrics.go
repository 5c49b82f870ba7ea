package metrics

import (
	"sync"
)

// Metrics tracks publish queue counters
type Metrics struct {
	mu sync.RWMutex

	enqueuedJobs   int64
	completedJobs  int64
	failedJobs     int64
	retriedJobs    int64
	purgedJobs     int64
	tokenRefreshes int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncrementEnqueuedJobs increments the enqueued jobs counter
func (m *Metrics) IncrementEnqueuedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueuedJobs++
}

// IncrementCompletedJobs increments the completed jobs counter
func (m *Metrics) IncrementCompletedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedJobs++
}

// IncrementFailedJobs increments the failed jobs counter
func (m *Metrics) IncrementFailedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedJobs++
}

// IncrementRetriedJobs increments the manually retried jobs counter
func (m *Metrics) IncrementRetriedJobs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retriedJobs++
}

// AddPurgedJobs adds to the purged jobs counter
func (m *Metrics) AddPurgedJobs(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgedJobs += n
}

// IncrementTokenRefreshes increments the credential refresh counter
func (m *Metrics) IncrementTokenRefreshes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenRefreshes++
}

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"enqueued_jobs":   m.enqueuedJobs,
		"completed_jobs":  m.completedJobs,
		"failed_jobs":     m.failedJobs,
		"retried_jobs":    m.retriedJobs,
		"purged_jobs":     m.purgedJobs,
		"token_refreshes": m.tokenRefreshes,
	}
}
