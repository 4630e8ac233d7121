package jobs

import (
	"errors"
)

// Sentinel errors for job operations.
// These can be checked with errors.Is().
var (
	// ErrAlreadySubmitted is returned when a pipeline run is requested for
	// a job id that was already submitted. Jobs are single-shot;
	// reprocessing requires a new upload.
	ErrAlreadySubmitted = errors.New("job already submitted")
)
