package runspec

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/cwbudde/hypertune/internal/learn"
)

// LoadCSVTask reads a dataset from a headerless or headered CSV file. All
// columns but the last are features; the last column is the target. A first
// row that fails to parse as numbers is treated as a header and skipped.
func LoadCSVTask(spec TaskSpec) (*learn.Task, error) {
	if spec.Data == "" {
		return nil, fmt.Errorf("task %s: no data file given", spec.Name)
	}
	taskType := learn.TaskType(spec.Type)
	if taskType != learn.TaskClassif && taskType != learn.TaskRegr {
		return nil, fmt.Errorf("task %s: unknown type %q", spec.Name, spec.Type)
	}

	f, err := os.Open(spec.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("task %s: dataset is empty", spec.Name)
	}

	task := &learn.Task{Name: spec.Name, Type: taskType}
	maxClass := 0
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("task %s: row %d has %d columns, need at least 2", spec.Name, i, len(row))
		}
		features := make([]float64, len(row)-1)
		parsed := true
		for j := 0; j < len(row)-1; j++ {
			if features[j], err = strconv.ParseFloat(row[j], 64); err != nil {
				parsed = false
				break
			}
		}
		target := 0.0
		if parsed {
			if target, err = strconv.ParseFloat(row[len(row)-1], 64); err != nil {
				parsed = false
			}
		}
		if !parsed {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("task %s: row %d is not numeric", spec.Name, i)
		}
		task.Features = append(task.Features, features)
		task.Targets = append(task.Targets, target)
		if taskType == learn.TaskClassif && int(target) > maxClass {
			maxClass = int(target)
		}
	}
	if taskType == learn.TaskClassif {
		task.Classes = maxClass + 1
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}
