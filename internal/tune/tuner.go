package tune

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/hypertune/internal/learn"
	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/resample"
)

// Tune orchestrates one hyperparameter search: it validates inputs,
// materializes the resampling plan, fixes the imputation policy, constructs
// the optimization path, dispatches to the strategy selected by the control's
// kind, and packages the winner together with the full path.
//
// fn may be nil, in which case the default resample collaborator is used.
// The orchestrator itself performs no learner calls; all evaluation happens
// through the evaluator inside the strategy.
func Tune(ctx context.Context, lrn learn.Learner, task *learn.Task, res resample.Resampling, measures []learn.Measure, space *param.Space, ctrl Control, fn resample.Fn) (*Result, error) {
	if lrn == nil {
		return nil, fmt.Errorf("learner cannot be nil")
	}
	if task == nil {
		return nil, fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}
	if len(measures) == 0 {
		return nil, fmt.Errorf("at least one measure required")
	}
	if space == nil || space.Len() == 0 {
		return nil, fmt.Errorf("parameter space cannot be empty")
	}
	if ctrl == nil || ctrl.Opts() == nil {
		return nil, fmt.Errorf("control cannot be nil")
	}
	if fn == nil {
		fn = resample.Run
	}

	opts := ctrl.Opts()
	strategy, err := strategyFor(ctrl)
	if err != nil {
		return nil, err
	}
	imputed, err := resolveImputed(measures, opts.ImputeVal)
	if err != nil {
		return nil, err
	}
	planFor, err := planProvider(res, task, opts)
	if err != nil {
		return nil, err
	}

	measureNames := make([]string, len(measures))
	for i, m := range measures {
		measureNames[i] = m.Name
	}
	withExtras := opts.TuneThreshold || opts.DumpErrors
	path, err := optpath.New(space, measureNames, withExtras)
	if err != nil {
		return nil, err
	}

	ev := &Evaluator{
		lrn:      lrn,
		task:     task,
		measures: measures,
		space:    space,
		fn:       fn,
		path:     path,
		plan:     planFor,
		imputed:  imputed,
		opts:     opts,
	}

	runID := uuid.New().String()
	slog.Info("starting tuning run",
		"run_id", runID,
		"learner", lrn.Name(),
		"task", task.Name,
		"strategy", ctrl.Kind(),
		"primary_measure", measures[0].Name,
		"seed", opts.Seed,
	)

	start := time.Now()
	outcome, err := strategy.Search(ctx, ev, space, ctrl, path)
	elapsed := time.Since(start)
	if err != nil {
		// A cancelled search still returns its accumulated path; partial
		// results are never discarded.
		if ctx.Err() != nil && path.Len() > 0 {
			return packageResult(runID, path, measures, space, ctrl, nil, elapsed)
		}
		return nil, fmt.Errorf("strategy %s failed: %w", ctrl.Kind(), err)
	}
	if outcome == nil {
		return nil, fmt.Errorf("strategy %s returned no outcome", ctrl.Kind())
	}
	if _, err := path.Record(outcome.BestIndex); err != nil {
		return nil, fmt.Errorf("strategy %s returned best index without a matching trial: %w", ctrl.Kind(), err)
	}

	result, err := assembleResult(runID, path, outcome.BestIndex, measures, space, ctrl, outcome.Diagnostics, elapsed)
	if err != nil {
		return nil, err
	}

	slog.Info("tuning run complete",
		"run_id", runID,
		"trials", path.Len(),
		"failed_trials", result.FailedTrials,
		"best", param.Key(result.Best),
		"best_score", result.BestY[0],
		"elapsed", elapsed,
	)
	return result, nil
}

// packageResult assembles a result for an aborted run by picking the best
// trial recorded so far on the primary measure.
func packageResult(runID string, path *optpath.Path, measures []learn.Measure, space *param.Space, ctrl Control, diag map[string]any, elapsed time.Duration) (*Result, error) {
	best, err := path.ArgBest(0, path.Len(), 0, measures[0].Minimize)
	if err != nil {
		return nil, err
	}
	return assembleResult(runID, path, best, measures, space, ctrl, diag, elapsed)
}

func assembleResult(runID string, path *optpath.Path, bestIndex int, measures []learn.Measure, space *param.Space, ctrl Control, diag map[string]any, elapsed time.Duration) (*Result, error) {
	rec, err := path.Record(bestIndex)
	if err != nil {
		return nil, err
	}
	result := &Result{
		RunID:        runID,
		Best:         rec.Config,
		BestTrafo:    space.Transformed(rec.Config),
		BestY:        rec.Y,
		BestIndex:    bestIndex,
		Path:         path,
		Control:      ctrl,
		Diagnostics:  diag,
		FailedTrials: len(path.Failures()),
		Elapsed:      elapsed,
	}
	if ctrl.Opts().TuneThreshold {
		th, y, err := tuneThreshold(rec, measures[0])
		if err != nil {
			return nil, err
		}
		result.Threshold = th
		result.ThresholdY = y
	}
	return result, nil
}

// planProvider resolves how each trial obtains its resampling plan. An
// already-instantiated plan, or a description under SameResamplingInstance,
// yields the identical plan for every trial; otherwise each trial gets an
// independently instantiated plan.
func planProvider(res resample.Resampling, task *learn.Task, opts *Opts) (func() (*resample.Plan, error), error) {
	rng := rand.New(rand.NewSource(opts.Seed))
	switch r := res.(type) {
	case *resample.Plan:
		if r == nil || r.Folds() == 0 {
			return nil, fmt.Errorf("resampling plan is empty")
		}
		return func() (*resample.Plan, error) { return r, nil }, nil
	case resample.Desc:
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid resampling description: %w", err)
		}
		if opts.SameResamplingInstance {
			plan, err := r.Instantiate(task, rng)
			if err != nil {
				return nil, err
			}
			return func() (*resample.Plan, error) { return plan, nil }, nil
		}
		var mu sync.Mutex
		return func() (*resample.Plan, error) {
			mu.Lock()
			defer mu.Unlock()
			return r.Instantiate(task, rng)
		}, nil
	case nil:
		return nil, fmt.Errorf("resampling cannot be nil")
	default:
		return nil, fmt.Errorf("unsupported resampling type %T", res)
	}
}
