package store

import (
	"context"
	"time"

	"nereus/pkg/api"
)

const (
	inputDirName  = "input"
	outputDirName = "output"
	recordFile    = "job.json"

	// MarkerStarted is the marker file written in the output directory when a job starts
	MarkerStarted = ".job_started"
	// MarkerCompleted is the marker file written in the output directory when a job completes
	MarkerCompleted = ".job_completed"
	// MarkerFailed is the marker file written in the output directory when a job fails
	MarkerFailed = ".job_failed"
)

var markers = map[api.Status]string{
	api.StatusStarted:   MarkerStarted,
	api.StatusCompleted: MarkerCompleted,
	api.StatusFailed:    MarkerFailed,
}

// allowedTransitions lists, for each status, the statuses a job can move to.
var allowedTransitions = map[api.Status][]api.Status{
	api.StatusUnknown: {api.StatusStarted},
	api.StatusStarted: {api.StatusCompleted, api.StatusFailed},
}

// CanTransition returns true if a job with status from can move to status to.
func CanTransition(from, to api.Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsMarker returns true if name is the file name of a job lifecycle marker.
func IsMarker(name string) bool {
	for _, m := range markers {
		if m == name {
			return true
		}
	}
	return false
}

// Job is a job directory layout.
type Job struct {
	ID        string    `json:"job_id"`
	RootDir   string    `json:"root_dir"`
	InputDir  string    `json:"input_dir"`
	OutputDir string    `json:"output_dir"`
	CreatedAt time.Time `json:"created_at"`
}

// Transition is a recorded status change.
type Transition struct {
	From api.Status `json:"from"`
	To   api.Status `json:"to"`
	At   time.Time  `json:"at"`
}

// Record is the persisted state of a job.
type Record struct {
	JobID       string       `json:"job_id"`
	Status      api.Status   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
	Message     string       `json:"message,omitempty"`
	Transitions []Transition `json:"transitions"`
}

// Store interface defines access to the job store backend
type Store interface {
	// WorkRoot returns the directory holding all jobs.
	WorkRoot() string

	// CreateJob creates a new job with its input and output directories.
	CreateJob(ctx context.Context) (Job, error)

	// GetJob returns the job with the given id.
	GetJob(ctx context.Context, jobID string) (Job, error)

	// Transition moves the job to the given status.
	// It returns ErrInvalidTransition if the move is not allowed. Moving to the current status does nothing.
	Transition(ctx context.Context, jobID string, to api.Status, message string) error

	// GetStatus returns the job status derived from its record and markers.
	GetStatus(ctx context.Context, jobID string) (api.Status, error)

	// GetRecord returns the job record with its derived status.
	GetRecord(ctx context.Context, jobID string) (Record, error)

	// ListJobIDs returns the ids of all jobs in the store.
	ListJobIDs(ctx context.Context) ([]string, error)

	// DeleteJob removes the job and all its files.
	DeleteJob(ctx context.Context, jobID string) error
}
