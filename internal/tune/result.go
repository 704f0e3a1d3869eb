package tune

import (
	"time"

	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
)

// Result is the immutable output bundle of a tuning run. Created once at the
// end of orchestration; never mutated afterwards.
type Result struct {
	// RunID uniquely identifies the run, also used as the archive key.
	RunID string

	// Best is the winning configuration in raw search values; BestTrafo the
	// same configuration after transforms, as the learner saw it.
	Best      param.Config
	BestTrafo param.Config

	// BestY holds the winning trial's scores, one per measure.
	BestY []float64

	// BestIndex is the winning trial's index into Path.
	BestIndex int

	// Path is the completed optimization path.
	Path *optpath.Path

	// Control is the control object the run was driven by.
	Control Control

	// Diagnostics carries the strategy-specific payload, if any.
	Diagnostics map[string]any

	// FailedTrials counts the trials whose scores were imputed.
	FailedTrials int

	// Elapsed is the total wall-clock duration of the search.
	Elapsed time.Duration

	// Threshold and ThresholdY are set only when threshold tuning was
	// requested: the best decision threshold found on the winning trial's
	// retained predictions and the primary-measure score it achieves.
	Threshold  float64
	ThresholdY float64
}
