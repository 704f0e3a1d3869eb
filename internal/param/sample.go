package param

import (
	"fmt"
	"math"
	"math/rand"
)

// Sample draws one feasible configuration uniformly at random. Parameters are
// visited in declaration order, so a dependent parameter sees its
// prerequisites already drawn and is skipped when inactive.
func (s *Space) Sample(rng *rand.Rand) Config {
	cfg := make(Config, len(s.params))
	for _, p := range s.params {
		if !s.Active(p.Name, cfg) {
			continue
		}
		switch p.Type {
		case TypeNumeric:
			cfg[p.Name] = p.Lower + rng.Float64()*(p.Upper-p.Lower)
		case TypeInteger:
			lo, hi := int(p.Lower), int(p.Upper)
			cfg[p.Name] = lo + rng.Intn(hi-lo+1)
		case TypeDiscrete:
			cfg[p.Name] = p.Values[rng.Intn(len(p.Values))]
		case TypeLogical:
			cfg[p.Name] = rng.Intn(2) == 1
		}
	}
	return cfg
}

// gridValues returns the candidate raw values for one parameter at the given
// resolution. Discrete and logical parameters ignore the resolution and
// enumerate their full value set.
func gridValues(p Param, resolution int) []any {
	switch p.Type {
	case TypeNumeric:
		if resolution == 1 || p.Lower == p.Upper {
			return []any{(p.Lower + p.Upper) / 2}
		}
		vals := make([]any, resolution)
		step := (p.Upper - p.Lower) / float64(resolution-1)
		for i := 0; i < resolution; i++ {
			vals[i] = p.Lower + float64(i)*step
		}
		return vals
	case TypeInteger:
		lo, hi := int(p.Lower), int(p.Upper)
		span := hi - lo + 1
		if resolution >= span {
			vals := make([]any, 0, span)
			for v := lo; v <= hi; v++ {
				vals = append(vals, v)
			}
			return vals
		}
		vals := make([]any, 0, resolution)
		seen := make(map[int]bool, resolution)
		step := float64(hi-lo) / float64(resolution-1)
		for i := 0; i < resolution; i++ {
			v := lo + int(math.Round(float64(i)*step))
			if !seen[v] {
				seen[v] = true
				vals = append(vals, v)
			}
		}
		return vals
	case TypeDiscrete:
		vals := make([]any, len(p.Values))
		for i, v := range p.Values {
			vals[i] = v
		}
		return vals
	case TypeLogical:
		return []any{false, true}
	}
	return nil
}

// Grid enumerates the cartesian product of per-parameter grid values at the
// given resolution, drops inactive dependent parameters from each point, and
// deduplicates the points that collapse onto each other as a result.
func (s *Space) Grid(resolution int) ([]Config, error) {
	if resolution < 1 {
		return nil, fmt.Errorf("grid resolution must be at least 1, got %d", resolution)
	}

	perParam := make([][]any, len(s.params))
	for i, p := range s.params {
		perParam[i] = gridValues(p, resolution)
	}

	var configs []Config
	seen := make(map[string]bool)
	idx := make([]int, len(s.params))
	for {
		cfg := make(Config, len(s.params))
		for i, p := range s.params {
			cfg[p.Name] = perParam[i][idx[i]]
		}
		// Drop inactive parameters in declaration order so transitive
		// deactivation resolves the same way Sample does.
		for _, p := range s.params {
			if !s.Active(p.Name, cfg) {
				delete(cfg, p.Name)
			}
		}
		if key := Key(cfg); !seen[key] {
			seen[key] = true
			configs = append(configs, cfg)
		}

		// Advance the odometer.
		carry := len(s.params) - 1
		for carry >= 0 {
			idx[carry]++
			if idx[carry] < len(perParam[carry]) {
				break
			}
			idx[carry] = 0
			carry--
		}
		if carry < 0 {
			break
		}
	}
	return configs, nil
}

// Dim returns the dimensionality of the unit-cube encoding.
func (s *Space) Dim() int { return len(s.params) }

// UnitVector encodes cfg into [0,1]^Dim, one coordinate per declared
// parameter in declaration order. Inactive parameters encode as 0. Numeric
// optimizers that only support box constraints drive the search through this
// encoding.
func (s *Space) UnitVector(cfg Config) []float64 {
	x := make([]float64, len(s.params))
	for i, p := range s.params {
		v, ok := cfg[p.Name]
		if !ok {
			continue
		}
		switch p.Type {
		case TypeNumeric, TypeInteger:
			f, _ := toFloat(v)
			if p.Upper > p.Lower {
				x[i] = (f - p.Lower) / (p.Upper - p.Lower)
			}
		case TypeDiscrete:
			sv := v.(string)
			for j, allowed := range p.Values {
				if sv == allowed {
					x[i] = float64(j) / float64(len(p.Values))
					break
				}
			}
		case TypeLogical:
			if v.(bool) {
				x[i] = 1
			}
		}
	}
	return x
}

// FromUnitVector decodes a point of [0,1]^Dim into a feasible configuration,
// clamping out-of-box coordinates and dropping inactive dependent parameters.
func (s *Space) FromUnitVector(x []float64) Config {
	cfg := make(Config, len(s.params))
	for i, p := range s.params {
		u := clamp01(x[i])
		switch p.Type {
		case TypeNumeric:
			cfg[p.Name] = p.Lower + u*(p.Upper-p.Lower)
		case TypeInteger:
			cfg[p.Name] = int(math.Round(p.Lower + u*(p.Upper-p.Lower)))
		case TypeDiscrete:
			j := int(u * float64(len(p.Values)))
			if j >= len(p.Values) {
				j = len(p.Values) - 1
			}
			cfg[p.Name] = p.Values[j]
		case TypeLogical:
			cfg[p.Name] = u >= 0.5
		}
	}
	for _, p := range s.params {
		if !s.Active(p.Name, cfg) {
			delete(cfg, p.Name)
		}
	}
	return cfg
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
