package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/hypertune/internal/param"
	"github.com/cwbudde/hypertune/internal/runspec"
	"github.com/cwbudde/hypertune/internal/tune"
)

// JobState represents the lifecycle state of a tuning job.
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Job represents one tuning run managed by the server.
type Job struct {
	ID           string        `json:"id"`
	State        JobState      `json:"state"`
	Spec         runspec.Spec  `json:"spec"`
	Trials       int           `json:"trials"`
	FailedTrials int           `json:"failedTrials"`
	Best         param.Config  `json:"best,omitempty"`
	BestScore    float64       `json:"bestScore"`
	Measure      string        `json:"measure,omitempty"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      *time.Time    `json:"endTime,omitempty"`
	Error        string        `json:"error,omitempty"`

	cancel func()       // set while running
	result *tune.Result // set on completion
}

// snapshot copies the job for use outside the manager's lock. The live job
// keeps being mutated by the worker, so readers and encoders only ever see
// copies; cancel and result stay behind the manager.
func (j *Job) snapshot() *Job {
	cp := *j
	cp.cancel = nil
	cp.result = nil
	return &cp
}

// Result returns the completed run's result, if any.
func (jm *JobManager) Result(id string) (*tune.Result, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, exists := jm.jobs[id]
	if !exists || job.result == nil {
		return nil, false
	}
	return job.result, true
}

// JobManager manages job lifecycles and owns the event broadcaster.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates an empty job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a new pending job for the given run spec and returns a
// snapshot of it.
func (jm *JobManager) CreateJob(spec runspec.Spec) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Spec:      spec,
		StartTime: time.Now(),
	}
	jm.jobs[job.ID] = job
	return job.snapshot()
}

// GetJob retrieves a snapshot of a job by ID.
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.snapshot(), true
}

// ListJobs returns snapshots of all known jobs.
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	return jobs
}

// UpdateJob atomically updates a job through the provided function.
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	updateFn(job)
	return nil
}

// CancelJob requests cancellation of a running job. The worker observes the
// cancellation between trials, never mid-evaluation.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.State != StateRunning && job.State != StatePending {
		return fmt.Errorf("job %s is %s, cannot cancel", id, job.State)
	}
	if job.cancel != nil {
		job.cancel()
	}
	return nil
}
