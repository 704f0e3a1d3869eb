package strategy

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/tune"
)

// RandomControl samples MaxEvals configurations uniformly from the space.
type RandomControl struct {
	MaxEvals int
	Options  tune.Opts
}

func (c *RandomControl) Kind() string     { return "random" }
func (c *RandomControl) Opts() *tune.Opts { return &c.Options }

type randomSearch struct{}

func init() { tune.Register("random", randomSearch{}) }

func (randomSearch) Search(ctx context.Context, ev *tune.Evaluator, space *param.Space, ctrl tune.Control, path *optpath.Path) (*tune.SearchOutcome, error) {
	c, ok := ctrl.(*RandomControl)
	if !ok {
		return nil, fmt.Errorf("random strategy requires *RandomControl, got %T", ctrl)
	}
	if c.MaxEvals < 1 {
		return nil, fmt.Errorf("random search budget must be at least 1, got %d", c.MaxEvals)
	}

	// Draw all candidates up front so the sequence depends only on the seed,
	// not on worker scheduling.
	rng := rand.New(rand.NewSource(c.Options.Seed))
	cfgs := make([]param.Config, c.MaxEvals)
	for i := range cfgs {
		cfgs[i] = space.Sample(rng)
	}

	from := path.Len()
	if _, _, err := ev.EvaluateBatch(ctx, cfgs); err != nil {
		return nil, err
	}
	best, err := path.ArgBest(from, path.Len(), 0, ev.Primary().Minimize)
	if err != nil {
		return nil, err
	}
	return &tune.SearchOutcome{BestIndex: best}, nil
}
