package tune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/hypertune/internal/learn"
	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/resample"
)

// Evaluator turns one candidate configuration into recorded performance
// scores. It applies transforms, omits inactive dependent parameters,
// invokes the resample collaborator, absorbs evaluation failures through the
// imputation policy, and appends exactly one trial record per call.
type Evaluator struct {
	lrn      learn.Learner
	task     *learn.Task
	measures []learn.Measure
	space    *param.Space
	fn       resample.Fn
	path     *optpath.Path
	plan     func() (*resample.Plan, error)
	imputed  []float64
	opts     *Opts
}

// Measures returns the declared measures; the first is primary.
func (e *Evaluator) Measures() []learn.Measure { return e.measures }

// Primary returns the primary measure, the one that determines "best" for
// single-objective strategies. Secondary measures are reporting-only.
func (e *Evaluator) Primary() learn.Measure { return e.measures[0] }

// Evaluate measures one candidate configuration. A successful or failed
// evaluation both append a record and return its path index and scores; the
// returned error is non-nil only when the run is being cancelled, in which
// case nothing was appended for this candidate.
func (e *Evaluator) Evaluate(ctx context.Context, cfg param.Config) (int, []float64, error) {
	// Abort between trials, never mid-evaluation.
	if err := ctx.Err(); err != nil {
		return -1, nil, err
	}

	// Dependent parameters whose predicates do not hold are omitted
	// entirely, never passed with a placeholder.
	active := make(param.Config, len(cfg))
	for name, v := range cfg {
		active[name] = v
	}
	for _, p := range e.space.Params() {
		if !e.space.Active(p.Name, active) {
			delete(active, p.Name)
		}
	}

	start := time.Now()
	res, evalErr := e.runTrial(ctx, active)
	if errors.Is(evalErr, context.Canceled) || errors.Is(evalErr, context.DeadlineExceeded) {
		// Cancellation is not a trial failure; the path keeps only completed
		// trials.
		return -1, nil, evalErr
	}

	rec := optpath.Record{
		Config:   active,
		ExecTime: time.Since(start),
	}
	if evalErr != nil {
		rec.Y = append([]float64(nil), e.imputed...)
		rec.ErrMsg = evalErr.Error()
		if e.opts.DumpErrors {
			rec.ErrDump = fmt.Sprintf("config: %v\ntransformed: %v\nerror: %+v", active, e.space.Transformed(active), evalErr)
		}
		slog.Warn("trial failed, scores imputed", "config", param.Key(active), "error", evalErr)
	} else {
		rec.Y = res.Aggr
		if e.opts.TuneThreshold {
			rec.Pred = res.Pred
		}
	}

	idx, err := e.path.Append(rec)
	if err != nil {
		return -1, nil, fmt.Errorf("failed to record trial: %w", err)
	}
	if e.opts.OnTrial != nil {
		e.opts.OnTrial(rec)
	}
	return idx, rec.Y, nil
}

// runTrial performs the actual resampled evaluation and validates the
// collaborator's result shape at this one boundary.
func (e *Evaluator) runTrial(ctx context.Context, active param.Config) (*resample.Result, error) {
	if err := e.space.Check(active); err != nil {
		return nil, fmt.Errorf("infeasible configuration: %w", err)
	}

	plan, err := e.plan()
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate resampling plan: %w", err)
	}

	res, err := e.fn(ctx, e.lrn, e.task, plan, e.measures, e.space.Transformed(active))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("resample collaborator returned nil result")
	}
	if len(res.Aggr) != len(e.measures) {
		return nil, fmt.Errorf("resample collaborator returned %d scores, expected %d", len(res.Aggr), len(e.measures))
	}
	if e.opts.TuneThreshold && (res.Pred == nil || res.Pred.Prob == nil) {
		return nil, fmt.Errorf("threshold tuning requested but collaborator retained no probability predictions")
	}
	return res, nil
}

// EvaluateBatch measures a round's independent candidates, concurrently when
// the control allows more than one worker. Indices and scores come back in
// candidate order; under concurrency the append order may differ from the
// candidate order, so callers must map candidates to trials through the
// returned indices, never through the path's length before the batch.
func (e *Evaluator) EvaluateBatch(ctx context.Context, cfgs []param.Config) ([]int, [][]float64, error) {
	workers := e.opts.Workers
	if workers <= 1 || len(cfgs) < 2 {
		idxs := make([]int, len(cfgs))
		ys := make([][]float64, len(cfgs))
		for i, cfg := range cfgs {
			idx, y, err := e.Evaluate(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			idxs[i] = idx
			ys[i] = y
		}
		return idxs, ys, nil
	}

	idxs := make([]int, len(cfgs))
	ys := make([][]float64, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, cfg := range cfgs {
		g.Go(func() error {
			idx, y, err := e.Evaluate(gctx, cfg)
			if err != nil {
				return err
			}
			idxs[i] = idx
			ys[i] = y
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return idxs, ys, nil
}
