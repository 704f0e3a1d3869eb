package strategy

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/tune"
)

// RaceControl runs an elimination race: a sampled candidate set is evaluated
// round by round, and candidates whose accumulated scores are significantly
// worse than the incumbent (Welch's t-test at level Alpha) are dropped. The
// race ends when one candidate survives or MaxRounds is exhausted.
//
// Valid comparisons need the per-round scores of all candidates to share the
// resampling instance; set SameResamplingInstance unless the collaborator is
// itself deterministic.
type RaceControl struct {
	Candidates int
	MaxRounds  int
	// FirstTest is the number of rounds to complete before the first
	// elimination test. Defaults to 2.
	FirstTest int
	// Alpha is the significance level of the elimination test. Defaults to
	// 0.05.
	Alpha   float64
	Options tune.Opts
}

func (c *RaceControl) Kind() string     { return "race" }
func (c *RaceControl) Opts() *tune.Opts { return &c.Options }

type raceSearch struct{}

func init() { tune.Register("race", raceSearch{}) }

type raceCandidate struct {
	cfg    param.Config
	scores []float64 // primary-measure score per completed round
	trials []int     // path indices of this candidate's trials
	alive  bool
}

func (raceSearch) Search(ctx context.Context, ev *tune.Evaluator, space *param.Space, ctrl tune.Control, path *optpath.Path) (*tune.SearchOutcome, error) {
	c, ok := ctrl.(*RaceControl)
	if !ok {
		return nil, fmt.Errorf("race strategy requires *RaceControl, got %T", ctrl)
	}
	if c.Candidates < 2 {
		return nil, fmt.Errorf("race needs at least 2 candidates, got %d", c.Candidates)
	}
	if c.MaxRounds < 1 {
		return nil, fmt.Errorf("race needs at least 1 round, got %d", c.MaxRounds)
	}
	firstTest := c.FirstTest
	if firstTest <= 0 {
		firstTest = 2
	}
	alpha := c.Alpha
	if alpha <= 0 {
		alpha = 0.05
	}

	primary := ev.Primary()
	rng := rand.New(rand.NewSource(c.Options.Seed))
	candidates := make([]*raceCandidate, c.Candidates)
	for i := range candidates {
		candidates[i] = &raceCandidate{cfg: space.Sample(rng), alive: true}
	}

	rounds := 0
	for round := 1; round <= c.MaxRounds; round++ {
		var alive []*raceCandidate
		for _, cand := range candidates {
			if cand.alive {
				alive = append(alive, cand)
			}
		}
		if len(alive) == 1 {
			break
		}

		cfgs := make([]param.Config, len(alive))
		for i, cand := range alive {
			cfgs[i] = cand.cfg
		}
		idxs, ys, err := ev.EvaluateBatch(ctx, cfgs)
		if err != nil {
			return nil, err
		}
		// Parallel rounds append out of candidate order; only the returned
		// indices identify each candidate's own trial.
		for i, cand := range alive {
			cand.scores = append(cand.scores, ys[i][0])
			cand.trials = append(cand.trials, idxs[i])
		}
		rounds = round

		if round < firstTest {
			continue
		}

		incumbent := alive[0]
		for _, cand := range alive[1:] {
			if primary.Better(mean(cand.scores), mean(incumbent.scores)) {
				incumbent = cand
			}
		}
		for _, cand := range alive {
			if cand == incumbent {
				continue
			}
			if primary.Better(mean(cand.scores), mean(incumbent.scores)) {
				continue
			}
			if welchP(cand.scores, incumbent.scores) < alpha {
				cand.alive = false
			}
		}
	}

	// Winner: surviving candidate with the best mean; its reported trial is
	// its single best recorded one.
	var winner *raceCandidate
	survivors := 0
	for _, cand := range candidates {
		if !cand.alive || len(cand.scores) == 0 {
			continue
		}
		survivors++
		if winner == nil || primary.Better(mean(cand.scores), mean(winner.scores)) {
			winner = cand
		}
	}
	if winner == nil {
		return nil, fmt.Errorf("race ended with no evaluated survivor")
	}
	best := winner.trials[0]
	for _, t := range winner.trials[1:] {
		rec, err := path.Record(t)
		if err != nil {
			return nil, err
		}
		bestRec, err := path.Record(best)
		if err != nil {
			return nil, err
		}
		if primary.Better(rec.Y[0], bestRec.Y[0]) {
			best = t
		}
	}

	return &tune.SearchOutcome{
		BestIndex: best,
		Diagnostics: map[string]any{
			"rounds":    rounds,
			"survivors": survivors,
		},
	}, nil
}

func mean(xs []float64) float64 { return stat.Mean(xs, nil) }

// welchP returns the two-sided p-value of Welch's unequal-variance t-test.
// Samples too small or degenerate to test return 1 (no elimination).
func welchP(a, b []float64) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 1
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))
	se := va/na + vb/nb
	if se == 0 {
		if ma == mb {
			return 1
		}
		return 0
	}
	t := (ma - mb) / math.Sqrt(se)
	// Welch–Satterthwaite degrees of freedom.
	df := se * se / (va*va/(na*na*(na-1)) + vb*vb/(nb*nb*(nb-1)))
	if df <= 0 || math.IsNaN(df) {
		return 1
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - dist.CDF(math.Abs(t)))
}
