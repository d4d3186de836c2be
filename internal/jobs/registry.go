// Package jobs tracks background job progress as explicit entities
// addressed by identifier, held in a concurrency-safe registry.
package jobs

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status of a background job. Jobs are cancelable only by restart;
// once running they proceed to done or error.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Snapshot is a point-in-time view of a job. Progress is monotonic:
// Current only ever grows while the job runs.
type Snapshot struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Status  Status `json:"status"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// Job is a handle for reporting progress from the worker goroutine.
type Job struct {
	id   string
	kind string
	seq  int

	mu       sync.Mutex
	snapshot Snapshot
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.id
}

// Progress updates the monotonically increasing progress counters.
func (j *Job) Progress(current, total int, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if current > j.snapshot.Current {
		j.snapshot.Current = current
	}
	j.snapshot.Total = total
	j.snapshot.Message = message
}

// Done marks the job complete and attaches its result.
func (j *Job) Done(message string, result any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.snapshot.Status = StatusDone
	j.snapshot.Current = j.snapshot.Total
	j.snapshot.Message = message
	j.snapshot.Result = result
}

// Fail marks the job failed.
func (j *Job) Fail(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.snapshot.Status = StatusError
	j.snapshot.Message = message
}

// Snapshot returns a copy of the current job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshot
}

func (j *Job) running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshot.Status == StatusRunning
}

// Registry holds jobs by identifier.
type Registry struct {
	mu   sync.RWMutex
	seq  int
	jobs map[string]*Job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Begin registers a new running job of the given kind. Only one job
// per kind may run at a time; a second Begin fails until the first
// finishes.
func (r *Registry) Begin(kind string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.kind == kind && job.running() {
			return nil, fmt.Errorf("a %s job is already in progress", kind)
		}
	}

	r.seq++
	job := &Job{
		id:   uuid.NewString(),
		kind: kind,
		seq:  r.seq,
	}
	job.snapshot = Snapshot{
		ID:     job.id,
		Kind:   kind,
		Status: StatusRunning,
	}

	r.jobs[job.id] = job
	return job, nil
}

// Get returns the job with the given identifier.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Latest returns the most recently started job of a kind, if any.
func (r *Registry) Latest(kind string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Job
	for _, job := range r.jobs {
		if job.kind != kind {
			continue
		}
		if latest == nil || job.seq > latest.seq {
			latest = job
		}
	}
	if latest == nil {
		return nil, false
	}
	return latest, true
}
