package job

import (
	"sort"
	"sync"
	"time"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

// defaultRetention is how long finished jobs stay queryable in memory.
const defaultRetention = 24 * time.Hour

// Registry holds live and recently finished jobs, keyed by id. Old
// terminal jobs are evicted lazily on access.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	endedAt   map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewRegistry creates a Registry with the default retention window.
func NewRegistry() *Registry {
	return &Registry{
		jobs:      make(map[string]*Job),
		endedAt:   make(map[string]time.Time),
		retention: defaultRetention,
		now:       time.Now,
	}
}

func (r *Registry) add(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	r.jobs[j.id] = j
}

func (r *Registry) markEnded(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endedAt[id] = r.now()
}

// Get returns the job with the given id, or nil.
func (r *Registry) Get(id string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	return r.jobs[id]
}

// List returns snapshots of all retained jobs, newest first.
func (r *Registry) List() []model.JobSnapshot {
	r.mu.Lock()
	r.evictLocked()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()

	snaps := make([]model.JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		snaps = append(snaps, j.Snapshot())
	}
	sort.Slice(snaps, func(i, k int) bool {
		return snaps[i].StartedAt.After(snaps[k].StartedAt)
	})
	return snaps
}

func (r *Registry) evictLocked() {
	cutoff := r.now().Add(-r.retention)
	for id, ended := range r.endedAt {
		if ended.Before(cutoff) {
			delete(r.jobs, id)
			delete(r.endedAt, id)
		}
	}
}
