package jobs

// Store defines the persistence interface for job rows.
// This interface is implemented by internal/store.SQLiteStore.
// Implementations must be safe for concurrent use; rows for different jobs
// never interfere, and a stage update is a single atomic row write so a
// concurrent read observes either the pre- or post-transition state.
type Store interface {
	// CreateJob persists a new job row.
	CreateJob(job *Job) error

	// GetJob retrieves a job by ID. Returns nil if not found.
	GetJob(id string) (*Job, error)

	// UpdateStage atomically sets stage, progress and error for a job.
	UpdateStage(id string, stage Stage, progress int, errMsg string) error

	// DeleteJob removes a job row by ID. Returns nil if it doesn't exist.
	DeleteJob(id string) error

	// ListJobs returns all jobs ordered by creation time.
	ListJobs() ([]*Job, error)

	// ResetStuckJobs marks every non-terminal job as failed. Used on
	// startup: pipeline runs do not survive the process, so a job left
	// mid-pipeline by a crash can never complete.
	ResetStuckJobs() (int, error)

	// Close closes the store and releases resources.
	Close() error
}
