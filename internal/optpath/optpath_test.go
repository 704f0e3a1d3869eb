package optpath

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/hypertune/internal/param"
)

func testSpace(t *testing.T) *param.Space {
	t.Helper()
	space, err := param.NewSpace(
		param.Numeric("C", -12, 12),
		param.Discrete("kernel", []string{"rbf", "linear"}),
	)
	if err != nil {
		t.Fatalf("NewSpace() error: %v", err)
	}
	return space
}

func TestNewValidation(t *testing.T) {
	space := testSpace(t)

	if _, err := New(nil, []string{"mmce"}, false); err == nil {
		t.Error("New(nil space) expected error, got nil")
	}
	if _, err := New(space, nil, false); err == nil {
		t.Error("New(no measures) expected error, got nil")
	}
	if _, err := New(space, []string{"mmce", "acc"}, false); err != nil {
		t.Errorf("New() unexpected error: %v", err)
	}
}

func TestAppendShapeValidation(t *testing.T) {
	space := testSpace(t)
	path, err := New(space, []string{"mmce"}, false)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		name    string
		rec     Record
		wantErr string
	}{
		{
			name: "valid record",
			rec:  Record{Config: param.Config{"C": 1.0, "kernel": "rbf"}, Y: []float64{0.25}},
		},
		{
			name:    "wrong score count",
			rec:     Record{Config: param.Config{"C": 1.0, "kernel": "rbf"}, Y: []float64{0.25, 0.75}},
			wantErr: "shaped for 1 measures",
		},
		{
			name:    "undeclared parameter",
			rec:     Record{Config: param.Config{"gamma": 0.5}, Y: []float64{0.25}},
			wantErr: "undeclared parameter",
		},
		{
			name:    "error dump without extras",
			rec:     Record{Config: param.Config{"C": 1.0}, Y: []float64{0.25}, ErrDump: "dump"},
			wantErr: "without extras",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := path.Append(tt.rec)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Append() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Append() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Append() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestAppendAssignsSequentialIndices(t *testing.T) {
	path, err := New(testSpace(t), []string{"mmce"}, false)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	for i := 0; i < 5; i++ {
		idx, err := path.Append(Record{Config: param.Config{"C": float64(i)}, Y: []float64{float64(i)}})
		if err != nil {
			t.Fatalf("Append() error: %v", err)
		}
		if idx != i {
			t.Errorf("Append() index = %d, want %d", idx, i)
		}
	}
	if path.Len() != 5 {
		t.Errorf("Len() = %d, want 5", path.Len())
	}

	rec, err := path.Record(3)
	if err != nil {
		t.Fatalf("Record(3) error: %v", err)
	}
	if rec.Index != 3 || rec.Y[0] != 3 {
		t.Errorf("Record(3) = %+v", rec)
	}
	if rec.Timestamp.IsZero() {
		t.Error("Append() left timestamp zero")
	}
	if _, err := path.Record(5); err == nil {
		t.Error("Record(5) expected range error, got nil")
	}
}

func TestConcurrentAppends(t *testing.T) {
	path, err := New(testSpace(t), []string{"mmce"}, false)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	const n = 64
	var wg sync.WaitGroup
	seen := make([]bool, n)
	var mu sync.Mutex
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			idx, err := path.Append(Record{Config: param.Config{"C": v}, Y: []float64{v}})
			if err != nil {
				t.Errorf("Append() error: %v", err)
				return
			}
			mu.Lock()
			seen[idx] = true
			mu.Unlock()
		}(float64(i))
	}
	wg.Wait()

	if path.Len() != n {
		t.Fatalf("Len() = %d, want %d", path.Len(), n)
	}
	for i, ok := range seen {
		if !ok {
			t.Errorf("index %d never assigned", i)
		}
	}
}

func TestFailuresAndArgBest(t *testing.T) {
	path, err := New(testSpace(t), []string{"mmce", "acc"}, false)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	records := []Record{
		{Config: param.Config{"C": 0.0}, Y: []float64{0.5, 0.5}},
		{Config: param.Config{"C": 1.0}, Y: []float64{0.2, 0.8}},
		{Config: param.Config{"C": 2.0}, Y: []float64{1.0, 0.0}, ErrMsg: "boom"},
		{Config: param.Config{"C": 3.0}, Y: []float64{0.2, 0.8}},
	}
	for _, rec := range records {
		if _, err := path.Append(rec); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}

	if got := path.Failures(); len(got) != 1 || got[0] != 2 {
		t.Errorf("Failures() = %v, want [2]", got)
	}

	// Minimize mmce: ties between 1 and 3 resolve to the earliest.
	best, err := path.ArgBest(0, path.Len(), 0, true)
	if err != nil {
		t.Fatalf("ArgBest() error: %v", err)
	}
	if best != 1 {
		t.Errorf("ArgBest(minimize) = %d, want 1", best)
	}

	// Maximize acc over the tail only.
	best, err = path.ArgBest(2, path.Len(), 1, false)
	if err != nil {
		t.Fatalf("ArgBest() error: %v", err)
	}
	if best != 3 {
		t.Errorf("ArgBest(maximize, tail) = %d, want 3", best)
	}

	if _, err := path.ArgBest(2, 2, 0, true); err == nil {
		t.Error("ArgBest(empty range) expected error, got nil")
	}
	if _, err := path.ArgBest(0, path.Len(), 5, true); err == nil {
		t.Error("ArgBest(bad measure) expected error, got nil")
	}
}

func TestAsTable(t *testing.T) {
	space := testSpace(t)
	path, err := New(space, []string{"mmce"}, false)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := path.Append(Record{
		Config:   param.Config{"C": 2.0, "kernel": "rbf"},
		Y:        []float64{0.25},
		ExecTime: 1500 * time.Millisecond,
	}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if _, err := path.Append(Record{
		Config: param.Config{"kernel": "linear"},
		Y:      []float64{0.5},
		ErrMsg: "fit failed",
	}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	table := path.AsTable(false)
	wantCols := []string{"trial", "C", "kernel", "mmce", "exec_time", "error"}
	if len(table.Cols) != len(wantCols) {
		t.Fatalf("Cols = %v, want %v", table.Cols, wantCols)
	}
	for i, c := range wantCols {
		if table.Cols[i] != c {
			t.Errorf("Cols[%d] = %q, want %q", i, table.Cols[i], c)
		}
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(table.Rows))
	}
	if table.Rows[0][1] != 2.0 || table.Rows[0][4] != 1.5 {
		t.Errorf("row 0 = %v", table.Rows[0])
	}
	if table.Rows[1][1] != nil {
		t.Errorf("inactive parameter should render nil, got %v", table.Rows[1][1])
	}
	if table.Rows[1][5] != "fit failed" {
		t.Errorf("error column = %v", table.Rows[1][5])
	}
}

func TestAsTableTransformed(t *testing.T) {
	space, err := param.NewSpace(
		param.Numeric("C", -12, 12, param.WithTrafo(func(x float64) float64 { return x * 10 })),
	)
	if err != nil {
		t.Fatalf("NewSpace() error: %v", err)
	}
	path, err := New(space, []string{"mmce"}, false)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := path.Append(Record{Config: param.Config{"C": 2.0}, Y: []float64{0.1}}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	if got := path.AsTable(false).Rows[0][1]; got != 2.0 {
		t.Errorf("raw table C = %v, want 2", got)
	}
	if got := path.AsTable(true).Rows[0][1]; got != 20.0 {
		t.Errorf("transformed table C = %v, want 20", got)
	}
}
