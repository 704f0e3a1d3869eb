package param

// Op is a comparison operator usable in dependency clauses.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpIn Op = "in"
	OpGt Op = ">"
	OpGe Op = ">="
	OpLt Op = "<"
	OpLe Op = "<="
)

// Clause is one condition of a dependency predicate: a comparison between an
// earlier-declared parameter's raw value and a constant. Clauses form a small
// closed language on purpose; arbitrary callbacks would make validation of
// the reference graph impossible.
type Clause struct {
	Param  string
	Op     Op
	Value  any   // ==, !=, >, >=, <, <=
	Values []any // in
}

// Eq builds a clause requiring param == value.
func Eq(param string, value any) Clause {
	return Clause{Param: param, Op: OpEq, Value: value}
}

// Ne builds a clause requiring param != value.
func Ne(param string, value any) Clause {
	return Clause{Param: param, Op: OpNe, Value: value}
}

// In builds a clause requiring param to be one of values.
func In(param string, values ...any) Clause {
	return Clause{Param: param, Op: OpIn, Values: values}
}

// Gt builds a clause requiring param > value.
func Gt(param string, value float64) Clause {
	return Clause{Param: param, Op: OpGt, Value: value}
}

// Ge builds a clause requiring param >= value.
func Ge(param string, value float64) Clause {
	return Clause{Param: param, Op: OpGe, Value: value}
}

// Lt builds a clause requiring param < value.
func Lt(param string, value float64) Clause {
	return Clause{Param: param, Op: OpLt, Value: value}
}

// Le builds a clause requiring param <= value.
func Le(param string, value float64) Clause {
	return Clause{Param: param, Op: OpLe, Value: value}
}

// Holds evaluates the clause against a configuration snapshot. A clause on a
// parameter absent from cfg never holds, so dependency chains deactivate
// transitively.
func (c Clause) Holds(cfg Config) bool {
	v, ok := cfg[c.Param]
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq:
		return equalValues(v, c.Value)
	case OpNe:
		return !equalValues(v, c.Value)
	case OpIn:
		for _, candidate := range c.Values {
			if equalValues(v, candidate) {
				return true
			}
		}
		return false
	case OpGt, OpGe, OpLt, OpLe:
		a, aok := toFloat(v)
		b, bok := toFloat(c.Value)
		if !aok || !bok {
			return false
		}
		switch c.Op {
		case OpGt:
			return a > b
		case OpGe:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	}
	return false
}

// equalValues compares raw values, treating all numeric representations as
// float64 so that Integer parameters compare equal to literal ints.
func equalValues(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	return a == b
}
