package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/akuvvet/Automatisierung/internal/domain"
)

// ErrJobNotFound is returned by stores for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeReconcile represents a roster/statement reconciliation job.
	JobTypeReconcile JobType = "reconcile"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// ReconcileJob is an asynchronous reconciliation of uploaded files.
type ReconcileJob struct {
	JobID string `json:"job_id"`

	// RosterPath and StatementPath are the saved uploads.
	RosterPath    string `json:"-"`
	StatementPath string `json:"-"`

	// RosterName and StatementName are the original upload file names.
	RosterName    string `json:"roster_name"`
	StatementName string `json:"statement_name"`

	// OutputDir receives the result workbook of this job.
	OutputDir string `json:"-"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	Result *JobResult `json:"result,omitempty"`
}

// JobResult is what a completed job produced.
type JobResult struct {
	RunID      string          `json:"run_id"`
	OutputPath string          `json:"-"`
	Download   string          `json:"download"`
	ArchiveURI string          `json:"archive_uri,omitempty"`
	Stats      domain.RunStats `json:"stats"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ReconcileJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ReconcileJob) GetType() JobType {
	return JobTypeReconcile
}

// GetStatus implements the Job interface.
func (j *ReconcileJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishReconcile enqueues a reconciliation job.
	PublishReconcile(ctx context.Context, job *ReconcileJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer processes queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed; jobs
// are not retried.
type JobHandler func(ctx context.Context, job *ReconcileJob) error

// JobStore stores and retrieves job state.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ReconcileJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ReconcileJob, error)

	// ListJobs retrieves jobs, newest first, with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReconcileJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
