// Package optpath implements the optimization path: the append-only ledger of
// every configuration a tuning run evaluated, successful or not. The path is
// the sole owner of trial history; strategies and the evaluator hold a
// reference and may append but never rewrite.
package optpath

import (
	"fmt"
	"sync"
	"time"

	"github.com/cwbudde/hypertune/internal/param"
)

// Record is one trial: the raw configuration evaluated, its per-measure
// scores, and diagnostic metadata. Records are immutable once appended.
type Record struct {
	// Index is the monotonically increasing trial number, starting at 0.
	Index int `json:"index"`

	// Config holds the raw (untransformed) parameter values, with inactive
	// dependent parameters absent.
	Config param.Config `json:"config"`

	// Y holds one aggregated score per declared measure.
	Y []float64 `json:"y"`

	// ExecTime is the wall-clock duration of the evaluation.
	ExecTime time.Duration `json:"execTime"`

	// Timestamp records when the trial finished.
	Timestamp time.Time `json:"timestamp"`

	// ErrMsg is non-empty when the evaluation failed and its scores were
	// imputed.
	ErrMsg string `json:"errMsg,omitempty"`

	// ErrDump carries the full diagnostic dump when error dumps are enabled.
	ErrDump string `json:"errDump,omitempty"`

	// Pred references the retained prediction object when threshold tuning
	// is requested. Opaque to the path; never serialized.
	Pred any `json:"-"`
}

// Failed reports whether this trial's scores were imputed.
func (r *Record) Failed() bool { return r.ErrMsg != "" }

// Path is the append-only trial ledger. Its shape (parameter names, measure
// names, whether extra columns are carried) is fixed at construction; every
// appended record must conform. Appends are serialized by an internal mutex
// so independent trials may be evaluated concurrently.
type Path struct {
	mu         sync.Mutex
	space      *param.Space
	measures   []string
	withExtras bool
	recs       []Record
}

// New creates an empty path shaped by the parameter space and measure names.
// withExtras enables the prediction and error-dump columns.
func New(space *param.Space, measures []string, withExtras bool) (*Path, error) {
	if space == nil || space.Len() == 0 {
		return nil, fmt.Errorf("optpath: parameter space cannot be empty")
	}
	if len(measures) == 0 {
		return nil, fmt.Errorf("optpath: at least one measure required")
	}
	return &Path{
		space:      space,
		measures:   measures,
		withExtras: withExtras,
	}, nil
}

// Measures returns the measure names the path was shaped with.
func (p *Path) Measures() []string { return p.measures }

// WithExtras reports whether the prediction/error-dump columns are enabled.
func (p *Path) WithExtras() bool { return p.withExtras }

// Append adds one trial record and returns its index. The record must match
// the path's shape: one score per measure, only declared parameters, and no
// extra fields when the path was built without them.
func (p *Path) Append(rec Record) (int, error) {
	if len(rec.Y) != len(p.measures) {
		return 0, fmt.Errorf("optpath: got %d scores, path is shaped for %d measures", len(rec.Y), len(p.measures))
	}
	for name := range rec.Config {
		if _, ok := p.space.Get(name); !ok {
			return 0, fmt.Errorf("optpath: undeclared parameter in record: %s", name)
		}
	}
	if !p.withExtras && (rec.Pred != nil || rec.ErrDump != "") {
		return 0, fmt.Errorf("optpath: extra fields present but path was built without extras")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	rec.Index = len(p.recs)
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	p.recs = append(p.recs, rec)
	return rec.Index, nil
}

// Len returns the number of recorded trials.
func (p *Path) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}

// Record returns the trial at index i.
func (p *Path) Record(i int) (Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.recs) {
		return Record{}, fmt.Errorf("optpath: index %d out of range [0, %d)", i, len(p.recs))
	}
	return p.recs[i], nil
}

// Records returns a copy of the full trial sequence.
func (p *Path) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Record, len(p.recs))
	copy(out, p.recs)
	return out
}

// Failures returns the indices of all failed (imputed) trials.
func (p *Path) Failures() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var idx []int
	for i := range p.recs {
		if p.recs[i].Failed() {
			idx = append(idx, i)
		}
	}
	return idx
}

// ArgBest returns the index of the best trial in [from, to) on the given
// measure column. minimize selects the comparison direction. Ties resolve to
// the earliest trial.
func (p *Path) ArgBest(from, to, measure int, minimize bool) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if from < 0 || to > len(p.recs) || from >= to {
		return 0, fmt.Errorf("optpath: invalid range [%d, %d) over %d records", from, to, len(p.recs))
	}
	if measure < 0 || measure >= len(p.measures) {
		return 0, fmt.Errorf("optpath: measure column %d out of range", measure)
	}
	best := from
	for i := from + 1; i < to; i++ {
		a, b := p.recs[i].Y[measure], p.recs[best].Y[measure]
		if (minimize && a < b) || (!minimize && a > b) {
			best = i
		}
	}
	return best, nil
}
