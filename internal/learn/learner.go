package learn

import (
	"github.com/cwbudde/hypertune/internal/param"
)

// Learner trains a model on a subset of a task under a concrete (already
// transformed) hyperparameter configuration.
type Learner interface {
	// Name returns a stable identity string for logging and run archives.
	Name() string

	// Fit trains on the rows of task selected by train.
	Fit(task *Task, train []int, params param.Config) (Model, error)
}

// Model predicts on a subset of a task.
type Model interface {
	Predict(task *Task, test []int) (*Prediction, error)
}

// FuncLearner adapts plain functions to the Learner interface. Tests and
// stub collaborators use it to fake training behavior.
type FuncLearner struct {
	ID    string
	FitFn func(task *Task, train []int, params param.Config) (Model, error)
}

func (f *FuncLearner) Name() string { return f.ID }

func (f *FuncLearner) Fit(task *Task, train []int, params param.Config) (Model, error) {
	return f.FitFn(task, train, params)
}

// FuncModel adapts a plain function to the Model interface.
type FuncModel func(task *Task, test []int) (*Prediction, error)

func (f FuncModel) Predict(task *Task, test []int) (*Prediction, error) {
	return f(task, test)
}
