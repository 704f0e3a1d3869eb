package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/store"
	"github.com/cwbudde/hypertune/internal/tune"
)

// runJob executes one tuning job in the background. If archive is not nil,
// the completed run is written to the run archive, including its trace.
func runJob(ctx context.Context, jm *JobManager, archive store.Store, traceDir string, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.cancel = cancel
	}); err != nil {
		return err
	}

	slog.Info("starting tuning job", "job_id", jobID, "learner", job.Spec.Learner, "strategy", job.Spec.Control.Kind)

	inputs, err := job.Spec.Build()
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("invalid run spec: %w", err))
		return err
	}

	primary := inputs.Measures[0]
	start := time.Now()

	// Stream progress off the trial hook; the broadcaster throttles nothing,
	// so keep the hook cheap.
	var progressMu sync.Mutex
	trials, failed := 0, 0
	best := 0.0
	opts := inputs.Control.Opts()
	opts.OnTrial = func(rec optpath.Record) {
		progressMu.Lock()
		trials++
		if rec.Failed() {
			failed++
		}
		if trials == 1 || primary.Better(rec.Y[0], best) {
			best = rec.Y[0]
		}
		trialsNow, failedNow, bestNow := trials, failed, best
		progressMu.Unlock()

		jm.UpdateJob(jobID, func(j *Job) {
			j.Trials = trialsNow
			j.FailedTrials = failedNow
			j.BestScore = bestNow
		})
		jm.broadcaster.Broadcast(TrialEvent{
			JobID:     jobID,
			State:     StateRunning,
			Trials:    trialsNow,
			Failed:    failedNow,
			BestScore: bestNow,
			Timestamp: time.Now(),
		})
	}

	result, err := tune.Tune(ctx, inputs.Learner, inputs.Task, inputs.Resampling, inputs.Measures, inputs.Space, inputs.Control, nil)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			markJobCancelled(jm, jobID)
			return ctx.Err()
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	endTime := time.Now()
	state := StateCompleted
	if ctx.Err() != nil {
		// Aborted run with a partial path; the result is still valid.
		state = StateCancelled
	}
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.result = result
		j.Best = result.Best
		j.BestScore = result.BestY[0]
		j.Measure = primary.Name
		j.Trials = result.Path.Len()
		j.FailedTrials = result.FailedTrials
		j.EndTime = &endTime
	})

	if archive != nil {
		if err := archiveRun(archive, traceDir, job, result, primary.Name); err != nil {
			slog.Error("failed to archive run", "job_id", jobID, "error", err)
		}
	}

	slog.Info("tuning job finished",
		"job_id", jobID,
		"state", state,
		"trials", result.Path.Len(),
		"failed_trials", result.FailedTrials,
		"best_score", result.BestY[0],
		"elapsed", elapsed,
	)

	jm.broadcaster.Broadcast(TrialEvent{
		JobID:     jobID,
		State:     state,
		Trials:    result.Path.Len(),
		Failed:    result.FailedTrials,
		BestScore: result.BestY[0],
		Timestamp: time.Now(),
	})
	return nil
}

// archiveRun persists the checkpoint and the full trial trace under the
// job's ID so the CLI can list, inspect and resume it.
func archiveRun(archive store.Store, traceDir string, job *Job, result *tune.Result, measure string) error {
	names := result.Path.Measures()
	cp := &store.RunCheckpoint{
		RunID:        job.ID,
		TaskName:     job.Spec.Task.Name,
		LearnerName:  job.Spec.Learner,
		ControlKind:  job.Spec.Control.Kind,
		Seed:         job.Spec.Control.Seed,
		Best:         result.Best,
		BestY:        result.BestY,
		Measures:     names,
		Trials:       result.Path.Len(),
		FailedTrials: result.FailedTrials,
		Timestamp:    time.Now(),
	}
	if err := archive.SaveRun(job.ID, cp); err != nil {
		return err
	}

	tw, err := optpath.NewTraceWriter(traceDir, job.ID, false)
	if err != nil {
		return err
	}
	defer tw.Close()
	for _, rec := range result.Path.Records() {
		if err := tw.Write(rec); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("tuning job failed", "job_id", jobID, "error", err)
}

func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("tuning job cancelled", "job_id", jobID)
}
