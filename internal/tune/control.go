// Package tune implements the hyperparameter-tuning orchestration core: the
// evaluation function with failure imputation, the strategy contract search
// algorithms plug into, and the orchestrator that wires learner, task,
// resampling, measures and parameter space into one run.
package tune

import (
	"fmt"
	"math"

	"github.com/cwbudde/hypertune/internal/learn"
	"github.com/cwbudde/hypertune/internal/optpath"
)

// Opts carries the orchestration-level options shared by every control kind.
// Ambient behavior (error dumps, seeds) is threaded through here explicitly,
// never read from global state.
type Opts struct {
	// SameResamplingInstance forces a single resampling plan shared by all
	// trials, removing resampling noise as a confound between trial scores.
	// Racing strategies need this for valid statistical comparisons.
	SameResamplingInstance bool

	// TuneThreshold retains prediction objects per trial so a post-hoc step
	// can recompute scores under alternative decision thresholds without
	// re-training.
	TuneThreshold bool

	// ImputeVal overrides the per-measure fallback score recorded for failed
	// trials. When nil, each measure's declared worst value is used.
	ImputeVal *float64

	// DumpErrors records a full diagnostic dump alongside the error message
	// of each failed trial.
	DumpErrors bool

	// Seed drives every random draw of the run: plan instantiation and the
	// strategy's own sampling.
	Seed int64

	// Workers bounds concurrent evaluation of independent candidates within
	// one strategy round. Zero or one means sequential.
	Workers int

	// OnTrial, when set, is invoked after each trial record is appended.
	// Used by the job server to stream progress; must not block.
	OnTrial func(rec optpath.Record)
}

// Control selects a search strategy by kind and carries its knobs. Concrete
// control types live with their strategy implementations; the orchestrator
// dispatches on Kind through the strategy registry.
type Control interface {
	Kind() string
	Opts() *Opts
}

// resolveImputed fixes the per-measure fallback scores once, before any
// strategy runs, so imputed scores are stable across all trials of the run.
func resolveImputed(measures []learn.Measure, override *float64) ([]float64, error) {
	imputed := make([]float64, len(measures))
	for i, m := range measures {
		v := m.Worst
		if override != nil {
			v = *override
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, fmt.Errorf("measure %s has no finite worst value; set an imputation override", m.Name)
		}
		imputed[i] = v
	}
	return imputed, nil
}
