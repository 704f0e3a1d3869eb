package tune

import (
	"fmt"

	"github.com/cwbudde/hypertune/internal/learn"
	"github.com/cwbudde/hypertune/internal/optpath"
)

// thresholdGrid is the number of candidate decision thresholds scanned over
// [0, 1] during post-hoc threshold tuning.
const thresholdGrid = 101

// tuneThreshold searches decision thresholds over the winning trial's
// retained predictions, re-scoring the primary measure per threshold without
// re-training.
func tuneThreshold(rec optpath.Record, primary learn.Measure) (float64, float64, error) {
	pred, ok := rec.Pred.(*learn.Prediction)
	if !ok || pred == nil {
		return 0, 0, fmt.Errorf("winning trial retained no prediction object")
	}

	bestTh, bestY := 0.5, 0.0
	first := true
	for i := 0; i < thresholdGrid; i++ {
		th := float64(i) / float64(thresholdGrid-1)
		rescored, err := pred.WithThreshold(th)
		if err != nil {
			return 0, 0, err
		}
		y := primary.Score(rescored)
		if first || primary.Better(y, bestY) {
			bestTh, bestY = th, y
			first = false
		}
	}
	return bestTh, bestY, nil
}
