// Package jobs defines the asynchronous indexing work the API hands
// off after a write, plus the queue abstractions that carry it.
package jobs

import (
	"context"
	"time"
)

// JobType identifies the kind of work a job carries.
type JobType string

const (
	// JobTypeReindex re-embeds a single movement or the whole table.
	JobTypeReindex JobType = "reindex"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ReindexJob asks the worker to refresh the embedding index. With a
// MovementID it upserts that movement's context; with Full it rebuilds
// the whole index.
type ReindexJob struct {
	JobID      string    `json:"job_id"`
	MovementID uint      `json:"movement_id,omitempty"`
	Full       bool      `json:"full"`
	Status     JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Indexed counts contexts written by a full rebuild.
	Indexed int    `json:"indexed,omitempty"`
	Error   string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

func (j *ReindexJob) GetID() string        { return j.JobID }
func (j *ReindexJob) GetType() JobType     { return JobTypeReindex }
func (j *ReindexJob) GetStatus() JobStatus { return j.Status }

// Job is the generic view the queue hands to handlers.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// Publisher enqueues reindex work. Kept as an interface so the
// in-memory queue can later be swapped for a broker without touching
// the API layer.
type Publisher interface {
	PublishReindex(ctx context.Context, job *ReindexJob) error
	Close() error
}

// Consumer pulls jobs and runs the handler for each.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A non-nil error requeues the job until
// its retries run out.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state for the status endpoint.
type JobStore interface {
	SaveJob(ctx context.Context, job *ReindexJob) error
	GetJob(ctx context.Context, jobID string) (*ReindexJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReindexJob, error)
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	MovementID uint
	Status     JobStatus
	Limit      int
	Offset     int
}
