package strategy

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/tune"
)

// EvolveControl runs a population-based search backed by the external mayfly
// optimizer. The space is driven through its unit-cube encoding, so mixed
// numeric/discrete spaces work; dependent parameters deactivate during
// decoding.
type EvolveControl struct {
	Iters   int
	PopSize int
	Options tune.Opts
}

func (c *EvolveControl) Kind() string     { return "evolve" }
func (c *EvolveControl) Opts() *tune.Opts { return &c.Options }

type evolveSearch struct{}

func init() { tune.Register("evolve", evolveSearch{}) }

func (evolveSearch) Search(ctx context.Context, ev *tune.Evaluator, space *param.Space, ctrl tune.Control, path *optpath.Path) (*tune.SearchOutcome, error) {
	c, ok := ctrl.(*EvolveControl)
	if !ok {
		return nil, fmt.Errorf("evolve strategy requires *EvolveControl, got %T", ctrl)
	}
	if c.Iters < 1 || c.PopSize < 2 {
		return nil, fmt.Errorf("evolve needs iters >= 1 and pop size >= 2, got %d/%d", c.Iters, c.PopSize)
	}

	minimize := ev.Primary().Minimize
	from := path.Len()

	cfg := mayfly.NewDefaultConfig()
	cfg.ProblemSize = space.Dim()
	cfg.MaxIterations = c.Iters
	cfg.NPop = c.PopSize
	// The optimizer only supports scalar box bounds, so the search runs on
	// the unit cube and decoding rescales per dimension.
	cfg.LowerBound = 0
	cfg.UpperBound = 1
	cfg.Rand = rand.New(rand.NewSource(c.Options.Seed))
	cfg.ObjectiveFunc = func(x []float64) float64 {
		candidate := space.FromUnitVector(x)
		_, y, err := ev.Evaluate(ctx, candidate)
		if err != nil {
			// Run is being cancelled; poison the objective so the optimizer
			// winds down without further useful moves.
			return math.Inf(1)
		}
		if minimize {
			return y[0]
		}
		return -y[0]
	}

	_, optErr := mayfly.Optimize(cfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path.Len() == from {
		if optErr != nil {
			return nil, fmt.Errorf("optimizer failed before any evaluation: %w", optErr)
		}
		return nil, fmt.Errorf("optimizer completed without evaluating any candidate")
	}

	// The winner is read back from the path rather than from the optimizer's
	// reported best, which may refer to a poisoned (cancelled) evaluation.
	best, err := path.ArgBest(from, path.Len(), 0, minimize)
	if err != nil {
		return nil, err
	}
	diag := map[string]any{"evaluations": path.Len() - from}
	if optErr != nil {
		// Graceful degradation: convergence trouble is reported, not fatal.
		diag["optimizer_error"] = optErr.Error()
	}
	return &tune.SearchOutcome{BestIndex: best, Diagnostics: diag}, nil
}
