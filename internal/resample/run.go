package resample

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/hypertune/internal/learn"
	"github.com/cwbudde/hypertune/internal/param"
)

// Result is the contract a resample collaborator must return: aggregated
// scores are required, the remaining fields are optional but named. The
// evaluator validates this shape once at its boundary.
type Result struct {
	// Aggr holds one aggregated score per requested measure, in order.
	Aggr []float64

	// FoldScores holds the per-fold scores behind each aggregate, row per
	// measure. Optional; diagnostic only.
	FoldScores [][]float64

	// Pred pools the held-out predictions of all folds. Required only when
	// the caller requested threshold tuning.
	Pred *learn.Prediction
}

// Fn is the single required integration point between the tuning core and
// the evaluation machinery: fit the learner under the given (already
// transformed) hyperparameters on each split of the plan, score the held-out
// rows per measure, and aggregate. A non-nil error marks the whole trial as
// failed; the tuning core then imputes its scores.
type Fn func(ctx context.Context, lrn learn.Learner, task *learn.Task, plan *Plan, measures []learn.Measure, params param.Config) (*Result, error)

// Run is the default Fn implementation: sequential fold loop, mean
// aggregation across folds.
func Run(ctx context.Context, lrn learn.Learner, task *learn.Task, plan *Plan, measures []learn.Measure, params param.Config) (*Result, error) {
	if plan == nil || plan.Folds() == 0 {
		return nil, fmt.Errorf("resample: empty plan")
	}

	foldScores := make([][]float64, len(measures))
	for m := range foldScores {
		foldScores[m] = make([]float64, 0, plan.Folds())
	}
	pooled := &learn.Prediction{}

	for f := 0; f < plan.Folds(); f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		model, err := lrn.Fit(task, plan.Train[f], params)
		if err != nil {
			return nil, fmt.Errorf("fold %d: fit failed: %w", f, err)
		}
		pred, err := model.Predict(task, plan.Test[f])
		if err != nil {
			return nil, fmt.Errorf("fold %d: predict failed: %w", f, err)
		}
		for m, measure := range measures {
			foldScores[m] = append(foldScores[m], measure.Score(pred))
		}
		if err := pooled.Merge(pred); err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
	}

	aggr := make([]float64, len(measures))
	for m := range measures {
		aggr[m] = stat.Mean(foldScores[m], nil)
	}

	return &Result{Aggr: aggr, FoldScores: foldScores, Pred: pooled}, nil
}
