package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/hypertune/internal/param"
)

// RunCheckpoint is the persisted state of a tuning run. It saves the best
// configuration found, not strategy-internal state (populations, racing
// statistics): a resumed run seeds a fresh search with the archived best
// rather than continuing the old one exactly. The best score never regresses
// under that scheme, which is the property the archive exists to protect.
type RunCheckpoint struct {
	// RunID is the unique identifier of the tuning run.
	RunID string `json:"runId"`

	// TaskName, LearnerName and ControlKind describe what was tuned and how.
	TaskName    string `json:"taskName"`
	LearnerName string `json:"learnerName"`
	ControlKind string `json:"controlKind"`

	// Seed is the random seed the run was started with.
	Seed int64 `json:"seed"`

	// Best is the winning raw configuration; BestY its scores, primary
	// measure first.
	Best  param.Config `json:"best"`
	BestY []float64    `json:"bestY"`

	// Measures names the score columns of BestY.
	Measures []string `json:"measures"`

	// Trials and FailedTrials summarize the optimization path.
	Trials       int `json:"trials"`
	FailedTrials int `json:"failedTrials"`

	// Spec optionally embeds the raw declarative run spec, so resume can
	// rebuild the search without the original file.
	Spec []byte `json:"spec,omitempty"`

	// Timestamp records when the checkpoint was written.
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the checkpoint for required fields.
func (c *RunCheckpoint) Validate() error {
	if c.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if len(c.Best) == 0 {
		return &ValidationError{Field: "Best", Reason: "cannot be empty"}
	}
	if len(c.BestY) == 0 {
		return &ValidationError{Field: "BestY", Reason: "cannot be empty"}
	}
	if len(c.Measures) != len(c.BestY) {
		return &ValidationError{Field: "Measures", Reason: fmt.Sprintf("%d names for %d scores", len(c.Measures), len(c.BestY))}
	}
	if c.Trials <= 0 {
		return &ValidationError{Field: "Trials", Reason: "must be positive"}
	}
	if c.FailedTrials < 0 || c.FailedTrials > c.Trials {
		return &ValidationError{Field: "FailedTrials", Reason: "outside [0, Trials]"}
	}
	if c.ControlKind == "" {
		return &ValidationError{Field: "ControlKind", Reason: "cannot be empty"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ToInfo reduces the checkpoint to listing metadata.
func (c *RunCheckpoint) ToInfo() RunInfo {
	return RunInfo{
		RunID:       c.RunID,
		TaskName:    c.TaskName,
		LearnerName: c.LearnerName,
		ControlKind: c.ControlKind,
		BestScore:   c.BestY[0],
		Trials:      c.Trials,
		Timestamp:   c.Timestamp,
	}
}

// RunInfo is checkpoint metadata without the configuration payload, for
// efficient listings.
type RunInfo struct {
	RunID       string    `json:"runId"`
	TaskName    string    `json:"taskName"`
	LearnerName string    `json:"learnerName"`
	ControlKind string    `json:"controlKind"`
	BestScore   float64   `json:"bestScore"`
	Trials      int       `json:"trials"`
	Timestamp   time.Time `json:"timestamp"`
}

// ValidationError represents a checkpoint validation failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
