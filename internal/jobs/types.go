package jobs

import (
	"context"
	"time"
)

// RunMode selects which engine path a job executes.
type RunMode string

const (
	// RunModeGenerateInsights runs the four insight detectors.
	RunModeGenerateInsights RunMode = "generate_insights"
	// RunModeScanAnomalies runs the weekly drop/anomaly scanner.
	RunModeScanAnomalies RunMode = "scan_anomalies"
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
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// EngineRunJob represents one queued engine invocation for a user.
type EngineRunJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// UserID is the creator whose transactions the run analyzes.
	UserID string `json:"user_id"`

	// Mode selects the engine path.
	Mode RunMode `json:"mode"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// InsightsGenerated and EventsCreated carry the run summary once the
	// job completes.
	InsightsGenerated int `json:"insights_generated,omitempty"`
	EventsCreated     int `json:"events_created,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishEngineRun publishes an engine run job.
	PublishEngineRun(ctx context.Context, job *EngineRunJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job *EngineRunJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *EngineRunJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*EngineRunJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*EngineRunJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by user.
	UserID string

	// Mode filters jobs by run mode.
	Mode RunMode

	// Status filters jobs by status.
	Status JobStatus

	// Limit caps the number of results (0 = no limit).
	Limit int

	// Offset skips the first N results.
	Offset int
}
