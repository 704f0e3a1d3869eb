package learn

import (
	"fmt"
	"math"
)

// Measure turns a prediction into a scalar performance score. Each measure
// declares its own optimization direction and a worst plausible value, which
// doubles as the default imputation score for failed trials.
type Measure struct {
	Name     string
	Minimize bool
	// Worst is the worst plausible score. Unbounded measures set it to an
	// infinity; a tuning run then requires an explicit imputation override.
	Worst float64
	Fn    func(pred *Prediction) float64
}

// Better reports whether score a beats score b under this measure's
// direction.
func (m Measure) Better(a, b float64) bool {
	if m.Minimize {
		return a < b
	}
	return a > b
}

// Score applies the measure to a prediction.
func (m Measure) Score(pred *Prediction) float64 { return m.Fn(pred) }

// MMCE is the mean misclassification error (minimized, worst 1).
func MMCE() Measure {
	return Measure{
		Name:     "mmce",
		Minimize: true,
		Worst:    1,
		Fn: func(pred *Prediction) float64 {
			if pred.Len() == 0 {
				return math.NaN()
			}
			wrong := 0
			for i := range pred.Truth {
				if pred.Response[i] != pred.Truth[i] {
					wrong++
				}
			}
			return float64(wrong) / float64(pred.Len())
		},
	}
}

// Accuracy is the share of correct classifications (maximized, worst 0).
func Accuracy() Measure {
	mmce := MMCE()
	return Measure{
		Name:     "acc",
		Minimize: false,
		Worst:    0,
		Fn: func(pred *Prediction) float64 {
			return 1 - mmce.Fn(pred)
		},
	}
}

// MSE is the mean squared error (minimized, unbounded above).
func MSE() Measure {
	return Measure{
		Name:     "mse",
		Minimize: true,
		Worst:    math.Inf(1),
		Fn: func(pred *Prediction) float64 {
			if pred.Len() == 0 {
				return math.NaN()
			}
			sum := 0.0
			for i := range pred.Truth {
				d := pred.Response[i] - pred.Truth[i]
				sum += d * d
			}
			return sum / float64(pred.Len())
		},
	}
}

// RMSE is the root mean squared error (minimized, unbounded above).
func RMSE() Measure {
	mse := MSE()
	return Measure{
		Name:     "rmse",
		Minimize: true,
		Worst:    math.Inf(1),
		Fn: func(pred *Prediction) float64 {
			return math.Sqrt(mse.Fn(pred))
		},
	}
}

// MeasureByName resolves one of the built-in measures.
func MeasureByName(name string) (Measure, error) {
	switch name {
	case "mmce":
		return MMCE(), nil
	case "acc":
		return Accuracy(), nil
	case "mse":
		return MSE(), nil
	case "rmse":
		return RMSE(), nil
	}
	return Measure{}, fmt.Errorf("unknown measure: %s", name)
}
