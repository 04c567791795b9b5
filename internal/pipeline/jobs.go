package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a persona analysis job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusRanking    JobStatus = "ranking"
	StatusRefining   JobStatus = "refining"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job tracks the state of a single asynchronous persona analysis.
type Job struct {
	mu sync.Mutex

	ID          string
	Persona     string
	JobToBeDone string
	Documents   []string

	Status    JobStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Internal: not serialized.
	inputs []Input
	result *PersonaResult
	cancel context.CancelFunc
}

// NewJob creates a queued job for the given request.
func NewJob(req PersonaRequest) *Job {
	now := time.Now()
	names := make([]string, len(req.Documents))
	for i, in := range req.Documents {
		names[i] = in.Name
	}
	return &Job{
		ID:          uuid.NewString(),
		Persona:     req.Persona,
		JobToBeDone: req.JobToBeDone,
		Documents:   names,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
		inputs:      req.Documents,
	}
}

// SetStatus updates job status unless the job already finished.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return
	}
	j.Status = status
	j.UpdatedAt = time.Now()
}

// Fail records err and marks the job failed.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return
	}
	j.Status = StatusFailed
	j.Error = err.Error()
	j.UpdatedAt = time.Now()
}

// Complete stores the result and releases the request documents.
func (j *Job) Complete(res *PersonaResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return
	}
	j.Status = StatusCompleted
	j.result = res
	j.inputs = nil
	j.UpdatedAt = time.Now()
}

// Cancel stops a running job and marks it cancelled. Finished jobs are left
// untouched.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		j.cancel()
	}
	if j.Status.Terminal() {
		return
	}
	j.Status = StatusCancelled
	j.inputs = nil
	j.UpdatedAt = time.Now()
}

// Result returns the persona result once the job completed.
func (j *Job) Result() (*PersonaResult, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.Status == StatusCompleted
}

// start binds a cancel func for the running analysis. It reports false when
// the job was cancelled while queued.
func (j *Job) start(cancel context.CancelFunc) ([]Input, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return nil, false
	}
	j.cancel = cancel
	return j.inputs, true
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Persona     string    `json:"persona"`
	JobToBeDone string    `json:"job_to_be_done"`
	Documents   []string  `json:"documents"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	docs := append([]string{}, j.Documents...)
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Persona:     j.Persona,
		JobToBeDone: j.JobToBeDone,
		Documents:   docs,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Delete removes a job and reports whether it existed.
func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	return ok
}

// List returns snapshots of all jobs, newest first.
func (s *JobStore) List() []JobSnapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// Counts returns the number of jobs in each status.
func (s *JobStore) Counts() map[JobStatus]int {
	counts := make(map[JobStatus]int)
	for _, snap := range s.List() {
		counts[snap.Status]++
	}
	return counts
}

// Cleanup removes finished jobs not updated within the TTL.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		snap := job.Snapshot()
		if snap.Status.Terminal() && now.Sub(snap.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
