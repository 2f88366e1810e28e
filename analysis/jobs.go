package analysis

import (
	"sync"
	"time"

	"clipsight/errors"
	"clipsight/models"

	"github.com/google/uuid"
)

// Registry keeps job records in memory only. Analysis results are not
// persisted; a finished job stays queryable for the configured TTL and is
// then swept.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	ttl  time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{
		jobs: make(map[string]*models.Job),
		ttl:  ttl,
	}
}

// Create registers a new job in the idle phase and sweeps stale records
// while it holds the lock.
func (r *Registry) Create(filename string) *models.Job {
	now := time.Now()
	job := &models.Job{
		ID:        uuid.New().String(),
		Filename:  filename,
		Phase:     models.PhaseIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, j := range r.jobs {
		if j.IsStale(r.ttl) {
			delete(r.jobs, id)
		}
	}

	r.jobs[job.ID] = job
	return job
}

// Get returns a copy of the job record so callers never observe a
// mid-update state.
func (r *Registry) Get(id string) (*models.Job, error) {
	const op = "Registry.Get"

	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.NotFound(op, nil, "Analysis job not found")
	}

	copied := *job
	return &copied, nil
}

// SetPhase records a phase transition.
func (r *Registry) SetPhase(id string, phase models.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		job.Phase = phase
		job.UpdatedAt = time.Now()
	}
}

// Complete stores the result and moves the job to the complete phase.
func (r *Registry) Complete(id string, result *models.AnalysisResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		job.Phase = models.PhaseComplete
		job.Result = result
		job.Error = ""
		job.ErrorKind = ""
		job.UpdatedAt = time.Now()
	}
}

// Fail moves the job to the error phase with the failure's kind and
// user-facing message.
func (r *Registry) Fail(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		job.Phase = models.PhaseError
		job.Error = err.Error()
		job.ErrorKind = string(errors.KindOf(err))
		job.UpdatedAt = time.Now()
	}
}
