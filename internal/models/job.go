package models

import "time"

// JobStatus represents the state of a publish job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Valid reports whether the status is one of the known states
func (s JobStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

// Terminal reports whether a job in this status will not be auto-dispatched again
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents one unit of publishing work
type Job struct {
	ID           int64      `json:"id"`
	Platform     Platform   `json:"platform"`
	Action       Action     `json:"action"`
	Status       JobStatus  `json:"status"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	Payload      string     `json:"payload"`
	FilePath     string     `json:"file_path,omitempty"`
	Result       *string    `json:"result,omitempty"`
	ErrorMessage *string    `json:"error,omitempty"`
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// EnqueueRequest represents a request to enqueue a publish job
type EnqueueRequest struct {
	Platform    string                 `json:"platform"`
	Action      string                 `json:"action"`
	Content     map[string]interface{} `json:"content"`
	ScheduledAt string                 `json:"scheduled_at,omitempty"`
	FilePath    string                 `json:"file_path,omitempty"`
}

// JobFilter narrows a job listing
type JobFilter struct {
	Status   JobStatus
	Platform Platform
	Limit    int
}

// ExecuteResult is the total interface the dispatch loop sees from a
// platform executor. Platform-specific detail stays inside PostID/URL/Message.
type ExecuteResult struct {
	Success   bool   `json:"success"`
	Platform  string `json:"platform"`
	Action    string `json:"action"`
	PostID    string `json:"post_id,omitempty"`
	URL       string `json:"url,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	NeedsAuth bool   `json:"needs_auth,omitempty"`
}
