package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/hypertune/internal/param"
)

func testCheckpoint(runID string) *RunCheckpoint {
	return &RunCheckpoint{
		RunID:        runID,
		TaskName:     "blobs",
		LearnerName:  "classif.centroid",
		ControlKind:  "grid",
		Seed:         42,
		Best:         param.Config{"p": 2.0, "shrink": 0.25},
		BestY:        []float64{0.1, 0.9},
		Measures:     []string{"mmce", "acc"},
		Trials:       9,
		FailedTrials: 1,
		Timestamp:    time.Now(),
	}
}

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() error: %v", err)
	}
	return fs
}

func TestSaveAndLoadRun(t *testing.T) {
	fs := newTestStore(t)
	cp := testCheckpoint("run-1")
	cp.Spec = []byte("learner: classif.centroid\n")

	if err := fs.SaveRun("run-1", cp); err != nil {
		t.Fatalf("SaveRun() error: %v", err)
	}

	got, err := fs.LoadRun("run-1")
	if err != nil {
		t.Fatalf("LoadRun() error: %v", err)
	}
	if got.RunID != "run-1" || got.LearnerName != "classif.centroid" || got.Trials != 9 {
		t.Errorf("loaded checkpoint = %+v", got)
	}
	if got.Best["p"] != 2.0 {
		t.Errorf("best config = %v", got.Best)
	}
	if string(got.Spec) != "learner: classif.centroid\n" {
		t.Errorf("embedded spec = %q", got.Spec)
	}
	if len(got.BestY) != 2 || got.BestY[1] != 0.9 {
		t.Errorf("best scores = %v", got.BestY)
	}
}

func TestSaveRunValidates(t *testing.T) {
	fs := newTestStore(t)

	if err := fs.SaveRun("", testCheckpoint("x")); err == nil {
		t.Error("SaveRun(empty id) expected error, got nil")
	}
	if err := fs.SaveRun("x", nil); err == nil {
		t.Error("SaveRun(nil checkpoint) expected error, got nil")
	}

	bad := testCheckpoint("x")
	bad.Best = nil
	if err := fs.SaveRun("x", bad); err == nil {
		t.Error("SaveRun(invalid checkpoint) expected error, got nil")
	}
	var verr *ValidationError
	if err := fs.SaveRun("x", bad); !errors.As(err, &verr) {
		t.Errorf("SaveRun() error = %v, want *ValidationError", err)
	}
}

func TestSaveRunOverwrites(t *testing.T) {
	fs := newTestStore(t)
	cp := testCheckpoint("run-1")
	if err := fs.SaveRun("run-1", cp); err != nil {
		t.Fatalf("SaveRun() error: %v", err)
	}

	cp.Trials = 20
	cp.BestY = []float64{0.05, 0.95}
	if err := fs.SaveRun("run-1", cp); err != nil {
		t.Fatalf("SaveRun() overwrite error: %v", err)
	}

	got, err := fs.LoadRun("run-1")
	if err != nil {
		t.Fatalf("LoadRun() error: %v", err)
	}
	if got.Trials != 20 || got.BestY[0] != 0.05 {
		t.Errorf("overwritten checkpoint = %+v", got)
	}
}

func TestLoadRunNotFound(t *testing.T) {
	fs := newTestStore(t)

	_, err := fs.LoadRun("missing")
	if err == nil {
		t.Fatal("LoadRun(missing) expected error, got nil")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadRun(missing) error = %v, want ErrNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.RunID != "missing" {
		t.Errorf("LoadRun(missing) error carries run id %q", nf.RunID)
	}
}

func TestListRuns(t *testing.T) {
	fs := newTestStore(t)

	infos, err := fs.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("ListRuns() on empty store = %v", infos)
	}

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if err := fs.SaveRun(id, testCheckpoint(id)); err != nil {
			t.Fatalf("SaveRun(%s) error: %v", id, err)
		}
	}
	infos, err = fs.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("ListRuns() = %d runs, want 3", len(infos))
	}
	for _, info := range infos {
		if info.BestScore != 0.1 || info.ControlKind != "grid" {
			t.Errorf("run info = %+v", info)
		}
	}
}

func TestListRunsSkipsCorrupt(t *testing.T) {
	fs := newTestStore(t)
	if err := fs.SaveRun("good", testCheckpoint("good")); err != nil {
		t.Fatalf("SaveRun() error: %v", err)
	}

	corruptDir := filepath.Join(fs.BaseDir(), "runs", "corrupt")
	if err := os.MkdirAll(corruptDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(corruptDir, "run.json"), []byte("not json"), 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	infos, err := fs.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(infos) != 1 || infos[0].RunID != "good" {
		t.Errorf("ListRuns() = %v, want only the good run", infos)
	}
}

func TestDeleteRun(t *testing.T) {
	fs := newTestStore(t)
	if err := fs.SaveRun("run-1", testCheckpoint("run-1")); err != nil {
		t.Fatalf("SaveRun() error: %v", err)
	}

	if err := fs.DeleteRun("run-1"); err != nil {
		t.Fatalf("DeleteRun() error: %v", err)
	}
	if _, err := fs.LoadRun("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadRun() after delete = %v, want ErrNotFound", err)
	}
	if err := fs.DeleteRun("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteRun() twice = %v, want ErrNotFound", err)
	}
}

func TestCheckpointValidate(t *testing.T) {
	mutate := func(f func(cp *RunCheckpoint)) *RunCheckpoint {
		cp := testCheckpoint("x")
		f(cp)
		return cp
	}

	tests := []struct {
		name    string
		cp      *RunCheckpoint
		wantErr bool
	}{
		{"valid", testCheckpoint("x"), false},
		{"no run id", mutate(func(cp *RunCheckpoint) { cp.RunID = "" }), true},
		{"no best", mutate(func(cp *RunCheckpoint) { cp.Best = nil }), true},
		{"no scores", mutate(func(cp *RunCheckpoint) { cp.BestY = nil }), true},
		{"measure mismatch", mutate(func(cp *RunCheckpoint) { cp.Measures = []string{"mmce"} }), true},
		{"zero trials", mutate(func(cp *RunCheckpoint) { cp.Trials = 0 }), true},
		{"failed above total", mutate(func(cp *RunCheckpoint) { cp.FailedTrials = 10 }), true},
		{"no control kind", mutate(func(cp *RunCheckpoint) { cp.ControlKind = "" }), true},
		{"zero timestamp", mutate(func(cp *RunCheckpoint) { cp.Timestamp = time.Time{} }), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cp.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	fs := newTestStore(t)
	if err := fs.SaveRun("run-1", testCheckpoint("run-1")); err != nil {
		t.Fatalf("SaveRun() error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(fs.BaseDir(), "runs", "run-1"))
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}
