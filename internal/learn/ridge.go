package learn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/hypertune/internal/param"
)

// Ridge is a built-in L2-regularized linear regression learner. Tunable
// hyperparameter: lambda (regularization strength, >= 0).
type Ridge struct{}

func (Ridge) Name() string { return "regr.ridge" }

// Fit solves the normal equations (X'X + lambda*I) w = X'y on the training
// rows, with an intercept column that is never penalized.
func (Ridge) Fit(task *Task, train []int, params param.Config) (Model, error) {
	if task.Type != TaskRegr {
		return nil, fmt.Errorf("ridge requires a regression task, got %s", task.Type)
	}
	lambda := 0.0
	if v, ok := params["lambda"]; ok {
		f, isNum := toFloat(v)
		if !isNum || f < 0 {
			return nil, fmt.Errorf("ridge: lambda must be a non-negative number, got %v", v)
		}
		lambda = f
	}

	n := len(train)
	if n == 0 {
		return nil, fmt.Errorf("ridge: empty training set")
	}
	d := len(task.Features[0]) + 1 // intercept first

	x := mat.NewDense(n, d, nil)
	y := mat.NewVecDense(n, nil)
	for i, row := range train {
		x.Set(i, 0, 1)
		for j, v := range task.Features[row] {
			x.Set(i, j+1, v)
		}
		y.SetVec(i, task.Targets[row])
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 1; j < d; j++ {
		xtx.Set(j, j, xtx.At(j, j)+lambda)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var w mat.VecDense
	if err := w.SolveVec(&xtx, &xty); err != nil {
		return nil, fmt.Errorf("ridge: singular system (lambda=%g): %w", lambda, err)
	}

	weights := make([]float64, d)
	for j := 0; j < d; j++ {
		weights[j] = w.AtVec(j)
	}
	return &ridgeModel{weights: weights}, nil
}

type ridgeModel struct {
	weights []float64
}

func (m *ridgeModel) Predict(task *Task, test []int) (*Prediction, error) {
	pred := &Prediction{
		Truth:    make([]float64, len(test)),
		Response: make([]float64, len(test)),
	}
	for i, row := range test {
		if len(task.Features[row])+1 != len(m.weights) {
			return nil, fmt.Errorf("ridge: feature width mismatch at row %d", row)
		}
		resp := m.weights[0]
		for j, v := range task.Features[row] {
			resp += m.weights[j+1] * v
		}
		pred.Truth[i] = task.Targets[row]
		pred.Response[i] = resp
	}
	return pred, nil
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
