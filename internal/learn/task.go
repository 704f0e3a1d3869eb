// Package learn defines the collaborator contracts the tuning core drives:
// tasks, learners, predictions and performance measures. Training and
// prediction semantics are opaque to the orchestrator; a small built-in
// learner set makes the CLI and tests runnable end to end.
package learn

import "fmt"

// TaskType distinguishes classification from regression tasks.
type TaskType string

const (
	TaskClassif TaskType = "classif"
	TaskRegr    TaskType = "regr"
)

// Task is a supervised dataset. Classification targets are class indices
// starting at 0; binary tasks use {0, 1} with 1 as the positive class.
type Task struct {
	Name     string
	Type     TaskType
	Features [][]float64
	Targets  []float64
	Classes  int // classification only
}

// Size returns the number of observations.
func (t *Task) Size() int { return len(t.Features) }

// Validate checks structural consistency.
func (t *Task) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("task has no name")
	}
	if t.Type != TaskClassif && t.Type != TaskRegr {
		return fmt.Errorf("unknown task type: %s", t.Type)
	}
	if len(t.Features) == 0 {
		return fmt.Errorf("task %s has no observations", t.Name)
	}
	if len(t.Targets) != len(t.Features) {
		return fmt.Errorf("task %s: %d feature rows but %d targets", t.Name, len(t.Features), len(t.Targets))
	}
	width := len(t.Features[0])
	for i, row := range t.Features {
		if len(row) != width {
			return fmt.Errorf("task %s: row %d has %d features, expected %d", t.Name, i, len(row), width)
		}
	}
	if t.Type == TaskClassif {
		if t.Classes < 2 {
			return fmt.Errorf("task %s: classification needs at least 2 classes", t.Name)
		}
		for i, y := range t.Targets {
			if y != float64(int(y)) || y < 0 || int(y) >= t.Classes {
				return fmt.Errorf("task %s: target %d is %g, expected class index in [0, %d)", t.Name, i, y, t.Classes)
			}
		}
	}
	return nil
}
