// Package runspec declares the YAML/JSON run specification consumed by the
// CLI and the job server: which task to load, which learner and measures to
// use, the parameter space, the resampling scheme and the control object.
package runspec

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/hypertune/internal/learn"
	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/resample"
	"github.com/cwbudde/hypertune/internal/strategy"
	"github.com/cwbudde/hypertune/internal/tune"
)

// Spec is one declarative tuning run.
type Spec struct {
	Task       TaskSpec       `yaml:"task" json:"task"`
	Learner    string         `yaml:"learner" json:"learner"`
	Measures   []string       `yaml:"measures" json:"measures"`
	Resampling ResamplingSpec `yaml:"resampling" json:"resampling"`
	Space      []ParamSpec    `yaml:"space" json:"space"`
	Control    ControlSpec    `yaml:"control" json:"control"`
}

// TaskSpec locates the dataset. Data points at a CSV file whose last column
// is the target; classification targets must be integer class indices.
type TaskSpec struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"` // classif, regr
	Data string `yaml:"data" json:"data"`
}

// ResamplingSpec mirrors resample.Desc.
type ResamplingSpec struct {
	Method string  `yaml:"method" json:"method"`
	Folds  int     `yaml:"folds,omitempty" json:"folds,omitempty"`
	Iters  int     `yaml:"iters,omitempty" json:"iters,omitempty"`
	Split  float64 `yaml:"split,omitempty" json:"split,omitempty"`
}

// ParamSpec declares one parameter of the search space. Trafo names a
// built-in transform, since declarative specs cannot carry functions.
type ParamSpec struct {
	Name     string        `yaml:"name" json:"name"`
	Type     string        `yaml:"type" json:"type"`
	Lower    float64       `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper    float64       `yaml:"upper,omitempty" json:"upper,omitempty"`
	Values   []string      `yaml:"values,omitempty" json:"values,omitempty"`
	Trafo    string        `yaml:"trafo,omitempty" json:"trafo,omitempty"`
	Requires []RequireSpec `yaml:"requires,omitempty" json:"requires,omitempty"`
}

// RequireSpec declares one dependency clause.
type RequireSpec struct {
	Param  string `yaml:"param" json:"param"`
	Op     string `yaml:"op" json:"op"`
	Value  any    `yaml:"value,omitempty" json:"value,omitempty"`
	Values []any  `yaml:"values,omitempty" json:"values,omitempty"`
}

// ControlSpec selects the strategy kind and its knobs, plus the shared
// orchestration options.
type ControlSpec struct {
	Kind string `yaml:"kind" json:"kind"`

	// Strategy knobs; which ones apply depends on the kind.
	Resolution int     `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	MaxEvals   int     `yaml:"maxEvals,omitempty" json:"maxEvals,omitempty"`
	Iters      int     `yaml:"iters,omitempty" json:"iters,omitempty"`
	PopSize    int     `yaml:"popSize,omitempty" json:"popSize,omitempty"`
	Candidates int     `yaml:"candidates,omitempty" json:"candidates,omitempty"`
	MaxRounds  int     `yaml:"maxRounds,omitempty" json:"maxRounds,omitempty"`
	FirstTest  int     `yaml:"firstTest,omitempty" json:"firstTest,omitempty"`
	Alpha      float64 `yaml:"alpha,omitempty" json:"alpha,omitempty"`

	// Shared orchestration options.
	Seed                   int64    `yaml:"seed,omitempty" json:"seed,omitempty"`
	Workers                int      `yaml:"workers,omitempty" json:"workers,omitempty"`
	SameResamplingInstance bool     `yaml:"sameResamplingInstance,omitempty" json:"sameResamplingInstance,omitempty"`
	TuneThreshold          bool     `yaml:"tuneThreshold,omitempty" json:"tuneThreshold,omitempty"`
	DumpErrors             bool     `yaml:"dumpErrors,omitempty" json:"dumpErrors,omitempty"`
	ImputeVal              *float64 `yaml:"imputeVal,omitempty" json:"imputeVal,omitempty"`
}

// Parse decodes a YAML spec.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse run spec: %w", err)
	}
	return &spec, nil
}

// Inputs is everything the orchestrator needs, built from a spec.
type Inputs struct {
	Learner    learn.Learner
	Task       *learn.Task
	Resampling resample.Resampling
	Measures   []learn.Measure
	Space      *param.Space
	Control    tune.Control
}

// Build resolves the spec into orchestrator inputs, loading the dataset from
// disk. All resolution failures are configuration errors.
func (s *Spec) Build() (*Inputs, error) {
	lrn, err := learn.LearnerByName(s.Learner)
	if err != nil {
		return nil, err
	}
	task, err := LoadCSVTask(s.Task)
	if err != nil {
		return nil, err
	}
	if len(s.Measures) == 0 {
		return nil, fmt.Errorf("run spec declares no measures")
	}
	measures := make([]learn.Measure, len(s.Measures))
	for i, name := range s.Measures {
		if measures[i], err = learn.MeasureByName(name); err != nil {
			return nil, err
		}
	}
	space, err := s.BuildSpace()
	if err != nil {
		return nil, err
	}
	ctrl, err := s.Control.Build()
	if err != nil {
		return nil, err
	}
	res := resample.Desc{
		Method: resample.Method(s.Resampling.Method),
		Folds:  s.Resampling.Folds,
		Iters:  s.Resampling.Iters,
		Split:  s.Resampling.Split,
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return &Inputs{
		Learner:    lrn,
		Task:       task,
		Resampling: res,
		Measures:   measures,
		Space:      space,
		Control:    ctrl,
	}, nil
}

// BuildSpace resolves the declared parameter space.
func (s *Spec) BuildSpace() (*param.Space, error) {
	params := make([]param.Param, 0, len(s.Space))
	for _, ps := range s.Space {
		var opts []param.Option
		if ps.Trafo != "" {
			trafo, err := trafoByName(ps.Trafo)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", ps.Name, err)
			}
			opts = append(opts, param.WithTrafo(trafo))
		}
		for _, r := range ps.Requires {
			clause := param.Clause{
				Param:  r.Param,
				Op:     param.Op(r.Op),
				Value:  r.Value,
				Values: r.Values,
			}
			opts = append(opts, param.Requires(clause))
		}

		switch param.Type(ps.Type) {
		case param.TypeNumeric:
			params = append(params, param.Numeric(ps.Name, ps.Lower, ps.Upper, opts...))
		case param.TypeInteger:
			params = append(params, param.Integer(ps.Name, int(ps.Lower), int(ps.Upper), opts...))
		case param.TypeDiscrete:
			params = append(params, param.Discrete(ps.Name, ps.Values, opts...))
		case param.TypeLogical:
			params = append(params, param.Logical(ps.Name, opts...))
		default:
			return nil, fmt.Errorf("parameter %s: unknown type %q", ps.Name, ps.Type)
		}
	}
	return param.NewSpace(params...)
}

// Build resolves the control spec into a concrete control object.
func (c *ControlSpec) Build() (tune.Control, error) {
	opts := tune.Opts{
		Seed:                   c.Seed,
		Workers:                c.Workers,
		SameResamplingInstance: c.SameResamplingInstance,
		TuneThreshold:          c.TuneThreshold,
		DumpErrors:             c.DumpErrors,
		ImputeVal:              c.ImputeVal,
	}
	switch c.Kind {
	case "grid":
		return &strategy.GridControl{Resolution: c.Resolution, Options: opts}, nil
	case "random":
		return &strategy.RandomControl{MaxEvals: c.MaxEvals, Options: opts}, nil
	case "evolve":
		return &strategy.EvolveControl{Iters: c.Iters, PopSize: c.PopSize, Options: opts}, nil
	case "race":
		// Racing compares candidates across rounds; without a shared plan the
		// comparison confounds configuration and fold noise.
		opts.SameResamplingInstance = true
		return &strategy.RaceControl{
			Candidates: c.Candidates,
			MaxRounds:  c.MaxRounds,
			FirstTest:  c.FirstTest,
			Alpha:      c.Alpha,
			Options:    opts,
		}, nil
	}
	return nil, fmt.Errorf("unknown strategy kind: %q", c.Kind)
}

// trafoByName resolves the built-in named transforms.
func trafoByName(name string) (param.Transform, error) {
	switch name {
	case "pow2":
		return func(x float64) float64 { return math.Pow(2, x) }, nil
	case "pow10":
		return func(x float64) float64 { return math.Pow(10, x) }, nil
	case "exp":
		return math.Exp, nil
	case "sqrt":
		return math.Sqrt, nil
	case "identity":
		return func(x float64) float64 { return x }, nil
	}
	return nil, fmt.Errorf("unknown transform: %q", name)
}
