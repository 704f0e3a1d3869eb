package learn

import (
	"fmt"
	"math"

	"github.com/cwbudde/hypertune/internal/param"
)

// NearestCentroid is a built-in classifier assigning each observation to the
// class with the closest (Minkowski distance) training centroid. Tunable
// hyperparameters: p (distance power, >= 1) and shrink (centroid shrinkage
// toward the global mean, in [0, 1]).
type NearestCentroid struct{}

func (NearestCentroid) Name() string { return "classif.centroid" }

func (NearestCentroid) Fit(task *Task, train []int, params param.Config) (Model, error) {
	if task.Type != TaskClassif {
		return nil, fmt.Errorf("nearest centroid requires a classification task, got %s", task.Type)
	}
	if len(train) == 0 {
		return nil, fmt.Errorf("nearest centroid: empty training set")
	}

	power := 2.0
	if v, ok := params["p"]; ok {
		f, isNum := toFloat(v)
		if !isNum || f < 1 {
			return nil, fmt.Errorf("nearest centroid: p must be a number >= 1, got %v", v)
		}
		power = f
	}
	shrink := 0.0
	if v, ok := params["shrink"]; ok {
		f, isNum := toFloat(v)
		if !isNum || f < 0 || f > 1 {
			return nil, fmt.Errorf("nearest centroid: shrink must be in [0, 1], got %v", v)
		}
		shrink = f
	}

	width := len(task.Features[0])
	centroids := make([][]float64, task.Classes)
	counts := make([]int, task.Classes)
	global := make([]float64, width)
	for c := range centroids {
		centroids[c] = make([]float64, width)
	}
	for _, row := range train {
		c := int(task.Targets[row])
		counts[c]++
		for j, v := range task.Features[row] {
			centroids[c][j] += v
			global[j] += v
		}
	}
	for j := range global {
		global[j] /= float64(len(train))
	}
	for c := range centroids {
		if counts[c] == 0 {
			copy(centroids[c], global)
			continue
		}
		for j := range centroids[c] {
			mean := centroids[c][j] / float64(counts[c])
			centroids[c][j] = (1-shrink)*mean + shrink*global[j]
		}
	}

	return &centroidModel{centroids: centroids, power: power, classes: task.Classes}, nil
}

type centroidModel struct {
	centroids [][]float64
	power     float64
	classes   int
}

func (m *centroidModel) Predict(task *Task, test []int) (*Prediction, error) {
	pred := &Prediction{
		Truth:    make([]float64, len(test)),
		Response: make([]float64, len(test)),
	}
	binary := m.classes == 2
	if binary {
		pred.Prob = make([]float64, len(test))
	}

	for i, row := range test {
		dists := make([]float64, m.classes)
		best := 0
		for c, centroid := range m.centroids {
			d := 0.0
			for j, v := range task.Features[row] {
				d += math.Pow(math.Abs(v-centroid[j]), m.power)
			}
			dists[c] = math.Pow(d, 1/m.power)
			if dists[c] < dists[best] {
				best = c
			}
		}
		pred.Truth[i] = task.Targets[row]
		pred.Response[i] = float64(best)
		if binary {
			// Soft score from relative distances, so threshold tuning has
			// something to work with.
			total := dists[0] + dists[1]
			if total == 0 {
				pred.Prob[i] = 0.5
			} else {
				pred.Prob[i] = dists[0] / total
			}
		}
	}
	return pred, nil
}

// LearnerByName resolves one of the built-in learners.
func LearnerByName(name string) (Learner, error) {
	switch name {
	case "classif.centroid":
		return NearestCentroid{}, nil
	case "regr.ridge":
		return Ridge{}, nil
	}
	return nil, fmt.Errorf("unknown learner: %s", name)
}
