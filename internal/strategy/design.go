package strategy

import (
	"context"
	"fmt"

	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/tune"
)

// DesignControl evaluates a fixed, user-supplied set of configurations in
// order. Resuming an archived run uses this kind to seed a fresh search with
// the archived best.
type DesignControl struct {
	Design  []param.Config
	Options tune.Opts
}

func (c *DesignControl) Kind() string     { return "design" }
func (c *DesignControl) Opts() *tune.Opts { return &c.Options }

type designSearch struct{}

func init() { tune.Register("design", designSearch{}) }

func (designSearch) Search(ctx context.Context, ev *tune.Evaluator, space *param.Space, ctrl tune.Control, path *optpath.Path) (*tune.SearchOutcome, error) {
	c, ok := ctrl.(*DesignControl)
	if !ok {
		return nil, fmt.Errorf("design strategy requires *DesignControl, got %T", ctrl)
	}
	if len(c.Design) == 0 {
		return nil, fmt.Errorf("design cannot be empty")
	}

	from := path.Len()
	if _, _, err := ev.EvaluateBatch(ctx, c.Design); err != nil {
		return nil, err
	}
	best, err := path.ArgBest(from, path.Len(), 0, ev.Primary().Minimize)
	if err != nil {
		return nil, err
	}
	return &tune.SearchOutcome{BestIndex: best}, nil
}
