// Package jobregistry tracks visualization jobs in process memory.
//
// The registry is the single source of truth for job progress: the
// orchestrator writes transitions, status pollers read snapshots. All
// state fits in one mutex-guarded map; entries are small and every
// operation is O(1) map access, so a single lock is enough at current
// load. No operation here performs I/O, and the lock is never held
// across anything that blocks.
//
// Entries are retained for the life of the process. That is a noted
// resource-growth caveat, not a correctness bug: completed entries are
// what pollers read after the fact.
package jobregistry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/repomotion/repomotion/pkg/render"
)

// Registry is a concurrently-safe job-id to job mapping.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
	log  *zap.Logger
}

func New(log *zap.Logger) *Registry {
	return &Registry{jobs: make(map[string]*Job), log: log}
}

// Create inserts a fresh job in the Initializing step and returns a
// snapshot of it. The id is never reused.
func (r *Registry) Create(repoURL string, settings render.Resolved) Job {
	job := &Job{
		ID:        uuid.New().String(),
		RepoURL:   repoURL,
		Step:      StepInitializing,
		Settings:  settings,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.log.Info("job created", zap.String("job_id", job.ID), zap.String("repo_url", repoURL))
	return *job
}

// Get returns a snapshot of the job, if present.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Len reports the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Advance moves a non-terminal job to the given step. Steps are
// monotonic: regressions, terminal jobs, and unknown ids are no-ops.
func (r *Registry) Advance(id string, step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Terminal() || step < job.Step {
		return
	}
	job.Step = step
}

// Complete records the artifact URL, making the job terminal. A no-op
// if the job is already terminal, so a late pipeline success never
// overwrites a user stop.
func (r *Registry) Complete(id, videoURL string) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok || job.Terminal() {
		r.mu.Unlock()
		return
	}
	job.VideoURL = videoURL
	r.mu.Unlock()

	r.log.Info("job completed", zap.String("job_id", id), zap.String("video_url", videoURL))
}

// Fail records a terminal error message. First terminal write wins.
func (r *Registry) Fail(id, message string) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok || job.Terminal() {
		r.mu.Unlock()
		return
	}
	job.Error = message
	r.mu.Unlock()

	r.log.Warn("job failed", zap.String("job_id", id), zap.String("error", message))
}

// Stop records an external stop request against a non-terminal job.
// The in-flight pipeline is not interrupted; the terminal guard makes
// its eventual outcome invisible to callers.
func (r *Registry) Stop(id string) StopResult {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return StopNotFound
	}
	if job.Terminal() {
		r.mu.Unlock()
		return StopAlreadyTerminal
	}
	job.Error = StoppedByUserMessage
	r.mu.Unlock()

	r.log.Info("job stopped by user", zap.String("job_id", id))
	return Stopped
}
