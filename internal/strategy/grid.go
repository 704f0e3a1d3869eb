// Package strategy ships the built-in search strategies and their control
// objects. Each strategy registers itself with the tuning core under its
// control kind; importing this package makes the registry complete.
package strategy

import (
	"context"
	"fmt"

	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/tune"
)

// GridControl runs an exhaustive search over a regular grid: Resolution
// values per numeric parameter, the full value set for discrete and logical
// ones.
type GridControl struct {
	Resolution int
	Options    tune.Opts
}

func (c *GridControl) Kind() string     { return "grid" }
func (c *GridControl) Opts() *tune.Opts { return &c.Options }

type gridSearch struct{}

func init() { tune.Register("grid", gridSearch{}) }

func (gridSearch) Search(ctx context.Context, ev *tune.Evaluator, space *param.Space, ctrl tune.Control, path *optpath.Path) (*tune.SearchOutcome, error) {
	c, ok := ctrl.(*GridControl)
	if !ok {
		return nil, fmt.Errorf("grid strategy requires *GridControl, got %T", ctrl)
	}
	if c.Resolution < 1 {
		return nil, fmt.Errorf("grid resolution must be at least 1, got %d", c.Resolution)
	}

	cfgs, err := space.Grid(c.Resolution)
	if err != nil {
		return nil, err
	}

	from := path.Len()
	if _, _, err := ev.EvaluateBatch(ctx, cfgs); err != nil {
		return nil, err
	}
	best, err := path.ArgBest(from, path.Len(), 0, ev.Primary().Minimize)
	if err != nil {
		return nil, err
	}
	return &tune.SearchOutcome{
		BestIndex:   best,
		Diagnostics: map[string]any{"grid_points": len(cfgs)},
	}, nil
}
