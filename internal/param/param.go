package param

import (
	"fmt"
	"math"
	"sort"
)

// Type identifies the kind of a parameter declaration.
type Type string

const (
	TypeNumeric  Type = "numeric"
	TypeInteger  Type = "integer"
	TypeDiscrete Type = "discrete"
	TypeLogical  Type = "logical"
)

// Transform is applied to a raw numeric search value before it reaches the
// learner. It must be pure.
type Transform func(float64) float64

// Param declares a single tunable parameter.
type Param struct {
	Name   string
	Type   Type
	Lower  float64  // numeric/integer
	Upper  float64  // numeric/integer
	Values []string // discrete
	Trafo  Transform
	// Requires makes the parameter conditional: it is only active (and only
	// passed to the learner) when all clauses hold on the raw values of
	// earlier-declared parameters.
	Requires []Clause
}

// Numeric declares a bounded float parameter.
func Numeric(name string, lower, upper float64, opts ...Option) Param {
	p := Param{Name: name, Type: TypeNumeric, Lower: lower, Upper: upper}
	return applyOpts(p, opts)
}

// Integer declares a bounded integer parameter.
func Integer(name string, lower, upper int, opts ...Option) Param {
	p := Param{Name: name, Type: TypeInteger, Lower: float64(lower), Upper: float64(upper)}
	return applyOpts(p, opts)
}

// Discrete declares a categorical parameter over a finite value set.
func Discrete(name string, values []string, opts ...Option) Param {
	p := Param{Name: name, Type: TypeDiscrete, Values: values}
	return applyOpts(p, opts)
}

// Logical declares a boolean parameter.
func Logical(name string, opts ...Option) Param {
	p := Param{Name: name, Type: TypeLogical}
	return applyOpts(p, opts)
}

// Option customizes a parameter declaration.
type Option func(*Param)

// WithTrafo attaches a transform applied before the value reaches the learner.
func WithTrafo(f Transform) Option {
	return func(p *Param) { p.Trafo = f }
}

// Requires attaches dependency clauses; all must hold for the parameter to be
// active.
func Requires(clauses ...Clause) Option {
	return func(p *Param) { p.Requires = append(p.Requires, clauses...) }
}

func applyOpts(p Param, opts []Option) Param {
	for _, o := range opts {
		o(&p)
	}
	return p
}

// Space is an ordered collection of parameter declarations.
type Space struct {
	params []Param
	index  map[string]int
}

// NewSpace validates the declarations and builds a space. Dependency clauses
// may only reference parameters declared earlier; forward or undeclared
// references (including self-references, which would be cyclic) are rejected.
func NewSpace(params ...Param) (*Space, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("parameter space cannot be empty")
	}

	index := make(map[string]int, len(params))
	for i, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter %d has no name", i)
		}
		if _, dup := index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		if err := validateParam(p); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		for _, c := range p.Requires {
			j, ok := index[c.Param]
			if !ok {
				return nil, fmt.Errorf("parameter %s: requires undeclared or later-declared parameter %s", p.Name, c.Param)
			}
			if j >= i {
				return nil, fmt.Errorf("parameter %s: requires later-declared parameter %s", p.Name, c.Param)
			}
		}
		index[p.Name] = i
	}

	return &Space{params: params, index: index}, nil
}

func validateParam(p Param) error {
	switch p.Type {
	case TypeNumeric, TypeInteger:
		if math.IsNaN(p.Lower) || math.IsNaN(p.Upper) {
			return fmt.Errorf("bounds cannot be NaN")
		}
		if p.Lower > p.Upper {
			return fmt.Errorf("lower bound %g above upper bound %g", p.Lower, p.Upper)
		}
	case TypeDiscrete:
		if len(p.Values) == 0 {
			return fmt.Errorf("discrete parameter needs at least one value")
		}
		seen := make(map[string]bool, len(p.Values))
		for _, v := range p.Values {
			if seen[v] {
				return fmt.Errorf("duplicate value: %s", v)
			}
			seen[v] = true
		}
	case TypeLogical:
		// Nothing to check.
	default:
		return fmt.Errorf("unknown parameter type: %s", p.Type)
	}
	return nil
}

// Params returns the declarations in declaration order.
func (s *Space) Params() []Param { return s.params }

// Len returns the number of declared parameters.
func (s *Space) Len() int { return len(s.params) }

// Names returns the parameter names in declaration order.
func (s *Space) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Get returns the declaration for name.
func (s *Space) Get(name string) (Param, bool) {
	i, ok := s.index[name]
	if !ok {
		return Param{}, false
	}
	return s.params[i], true
}

// Config maps parameter names to concrete raw values. Values are float64,
// int, string or bool depending on the parameter type; inactive dependent
// parameters are simply absent.
type Config map[string]any

// Active reports whether the named parameter's dependency clauses hold for
// cfg. Parameters without clauses are always active. A clause referencing a
// parameter absent from cfg does not hold.
func (s *Space) Active(name string, cfg Config) bool {
	p, ok := s.Get(name)
	if !ok {
		return false
	}
	for _, c := range p.Requires {
		if !c.Holds(cfg) {
			return false
		}
	}
	return true
}

// Check validates cfg against the space: every value must satisfy its
// declaration's bounds or value set, every active parameter must be present,
// and no inactive parameter may carry a value.
func (s *Space) Check(cfg Config) error {
	for name := range cfg {
		if _, ok := s.Get(name); !ok {
			return fmt.Errorf("undeclared parameter: %s", name)
		}
	}
	for _, p := range s.params {
		v, present := cfg[p.Name]
		if !s.Active(p.Name, cfg) {
			if present {
				return fmt.Errorf("parameter %s set but its requirements do not hold", p.Name)
			}
			continue
		}
		if !present {
			return fmt.Errorf("missing value for parameter %s", p.Name)
		}
		if err := checkValue(p, v); err != nil {
			return fmt.Errorf("parameter %s: %w", p.Name, err)
		}
	}
	return nil
}

func checkValue(p Param, v any) error {
	switch p.Type {
	case TypeNumeric:
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("expected numeric value, got %T", v)
		}
		if f < p.Lower || f > p.Upper {
			return fmt.Errorf("value %g outside [%g, %g]", f, p.Lower, p.Upper)
		}
	case TypeInteger:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("expected integer value, got %v", v)
		}
		if f < p.Lower || f > p.Upper {
			return fmt.Errorf("value %v outside [%d, %d]", v, int(p.Lower), int(p.Upper))
		}
	case TypeDiscrete:
		sv, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string value, got %T", v)
		}
		for _, allowed := range p.Values {
			if sv == allowed {
				return nil
			}
		}
		return fmt.Errorf("value %q not in value set", sv)
	case TypeLogical:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool value, got %T", v)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// Transformed returns a copy of cfg with each parameter's transform applied.
// Parameters without a transform pass through unchanged.
func (s *Space) Transformed(cfg Config) Config {
	out := make(Config, len(cfg))
	for name, v := range cfg {
		p, ok := s.Get(name)
		if ok && p.Trafo != nil {
			if f, isNum := toFloat(v); isNum {
				out[name] = p.Trafo(f)
				continue
			}
		}
		out[name] = v
	}
	return out
}

// Key returns a stable string encoding of cfg, used to deduplicate
// configurations that collapse onto each other once inactive parameters are
// dropped.
func Key(cfg Config) string {
	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)
	key := ""
	for _, name := range names {
		key += fmt.Sprintf("%s=%v;", name, cfg[name])
	}
	return key
}
