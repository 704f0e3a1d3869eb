// Package resample turns resampling descriptions ("5-fold CV") into concrete
// train/test splits and provides the default evaluation collaborator that
// runs a learner over a plan and aggregates measure scores.
package resample

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/cwbudde/hypertune/internal/learn"
)

// Method selects a resampling scheme.
type Method string

const (
	MethodCV        Method = "cv"
	MethodHoldout   Method = "holdout"
	MethodSubsample Method = "subsample"
	MethodBootstrap Method = "bootstrap"
)

// Resampling is either a Desc (still to be instantiated) or a *Plan (already
// materialized splits).
type Resampling interface {
	resampling()
}

// Desc describes a resampling scheme without reference to a concrete task.
type Desc struct {
	Method Method
	Folds  int     // cv
	Iters  int     // subsample, bootstrap
	Split  float64 // holdout/subsample train fraction, defaults to 2/3
}

func (Desc) resampling() {}

// CV describes k-fold cross-validation.
func CV(folds int) Desc { return Desc{Method: MethodCV, Folds: folds} }

// Holdout describes a single train/test split with the given train fraction.
func Holdout(split float64) Desc { return Desc{Method: MethodHoldout, Split: split} }

// Subsample describes repeated random train/test splits.
func Subsample(iters int, split float64) Desc {
	return Desc{Method: MethodSubsample, Iters: iters, Split: split}
}

// Bootstrap describes sampling the training set with replacement; out-of-bag
// rows form the test set.
func Bootstrap(iters int) Desc { return Desc{Method: MethodBootstrap, Iters: iters} }

// Validate checks the description for structural errors.
func (d Desc) Validate() error {
	switch d.Method {
	case MethodCV:
		if d.Folds < 2 {
			return fmt.Errorf("cv needs at least 2 folds, got %d", d.Folds)
		}
	case MethodHoldout:
		if d.Split < 0 || d.Split >= 1 {
			return fmt.Errorf("holdout split must be in [0, 1), got %g", d.Split)
		}
	case MethodSubsample:
		if d.Iters < 1 {
			return fmt.Errorf("subsample needs at least 1 iteration, got %d", d.Iters)
		}
		if d.Split < 0 || d.Split >= 1 {
			return fmt.Errorf("subsample split must be in [0, 1), got %g", d.Split)
		}
	case MethodBootstrap:
		if d.Iters < 1 {
			return fmt.Errorf("bootstrap needs at least 1 iteration, got %d", d.Iters)
		}
	default:
		return fmt.Errorf("unknown resampling method: %s", d.Method)
	}
	return nil
}

// Plan is a concrete, reusable set of train/test splits for one task.
type Plan struct {
	ID    string
	Desc  Desc
	Train [][]int
	Test  [][]int
}

func (*Plan) resampling() {}

// Folds returns the number of splits.
func (p *Plan) Folds() int { return len(p.Train) }

// Instantiate materializes the description into concrete splits for the
// task, drawing split assignments from rng.
func (d Desc) Instantiate(task *learn.Task, rng *rand.Rand) (*Plan, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	n := task.Size()
	if n < 2 {
		return nil, fmt.Errorf("task %s too small to resample (%d rows)", task.Name, n)
	}

	split := d.Split
	if split == 0 {
		split = 2.0 / 3.0
	}

	plan := &Plan{ID: uuid.New().String(), Desc: d}
	switch d.Method {
	case MethodCV:
		if d.Folds > n {
			return nil, fmt.Errorf("cannot split %d rows into %d folds", n, d.Folds)
		}
		perm := rng.Perm(n)
		for f := 0; f < d.Folds; f++ {
			var train, test []int
			for i, row := range perm {
				if i%d.Folds == f {
					test = append(test, row)
				} else {
					train = append(train, row)
				}
			}
			plan.Train = append(plan.Train, train)
			plan.Test = append(plan.Test, test)
		}
	case MethodHoldout:
		train, test := randomSplit(n, split, rng)
		plan.Train = append(plan.Train, train)
		plan.Test = append(plan.Test, test)
	case MethodSubsample:
		for i := 0; i < d.Iters; i++ {
			train, test := randomSplit(n, split, rng)
			plan.Train = append(plan.Train, train)
			plan.Test = append(plan.Test, test)
		}
	case MethodBootstrap:
		for i := 0; i < d.Iters; i++ {
			train := make([]int, n)
			inBag := make([]bool, n)
			for j := range train {
				row := rng.Intn(n)
				train[j] = row
				inBag[row] = true
			}
			var test []int
			for row := 0; row < n; row++ {
				if !inBag[row] {
					test = append(test, row)
				}
			}
			if len(test) == 0 {
				// Degenerate bag; hold one row out so the fold stays scorable.
				test = append(test, train[0])
				train = train[1:]
			}
			plan.Train = append(plan.Train, train)
			plan.Test = append(plan.Test, test)
		}
	}
	return plan, nil
}

func randomSplit(n int, split float64, rng *rand.Rand) (train, test []int) {
	perm := rng.Perm(n)
	cut := int(split * float64(n))
	if cut < 1 {
		cut = 1
	}
	if cut >= n {
		cut = n - 1
	}
	train = append(train, perm[:cut]...)
	test = append(test, perm[cut:]...)
	return train, test
}
