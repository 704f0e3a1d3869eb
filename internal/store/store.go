// Package store persists tuning-run archives: the run checkpoint (best
// configuration and score so far, plus enough metadata to resume) and the
// trial trace written by the optpath package.
package store

// Store defines checkpoint persistence for tuning runs. Implementations must
// be safe for concurrent use.
//
// Error conventions:
//   - nil on success
//   - ErrNotFound if the run doesn't exist (Load/Delete)
//   - wrapped errors with context for I/O and serialization failures
type Store interface {
	// SaveRun atomically saves the checkpoint for a run, overwriting any
	// previous checkpoint for the same run ID.
	SaveRun(runID string, cp *RunCheckpoint) error

	// LoadRun retrieves the checkpoint for a run. Returns ErrNotFound if no
	// checkpoint exists.
	LoadRun(runID string) (*RunCheckpoint, error)

	// ListRuns returns metadata for all archived runs; empty if none exist.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the checkpoint and all associated artifacts
	// (run.json, trace.jsonl) for a run. Returns ErrNotFound if the run
	// doesn't exist.
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run archive does not exist. Use
// errors.Is(err, ErrNotFound) to check for it.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run archive.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run archive not found: " + e.RunID
	}
	return "run archive not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
