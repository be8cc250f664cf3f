// Package job runs and tracks batch enrichment jobs.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

// Job is the live, mutable state of one batch run. All mutation goes
// through methods holding the internal mutex; callers only ever see
// copies via Snapshot.
type Job struct {
	mu sync.Mutex

	id          string
	name        string
	requester   string
	targetIDs   []string
	concurrency int

	status    model.JobStatus
	processed int
	succeeded int
	failed    int
	outcomes  []model.Outcome

	startedAt time.Time
	endedAt   *time.Time

	stop chan struct{} // closed on Stop, at most once
	done chan struct{} // closed when the run loop exits
}

func newJob(name, requester string, targetIDs []string, concurrency int) *Job {
	return &Job{
		id:          uuid.NewString(),
		name:        name,
		requester:   requester,
		targetIDs:   targetIDs,
		concurrency: concurrency,
		status:      model.JobStatusPending,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// ID returns the job's identifier.
func (j *Job) ID() string { return j.id }

// Done is closed once the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} { return j.done }

// Stop requests a cooperative stop: items already dispatched finish,
// no new items start. Safe to call repeatedly and after completion.
func (j *Job) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	select {
	case <-j.stop:
	default:
		close(j.stop)
	}
}

// Stopping reports whether a stop has been requested.
func (j *Job) Stopping() bool {
	select {
	case <-j.stop:
		return true
	default:
		return false
	}
}

// Snapshot returns a consistent copy of the job state.
func (j *Job) Snapshot() model.JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := model.JobSnapshot{
		ID:          j.id,
		Name:        j.name,
		Requester:   j.requester,
		TargetIDs:   append([]string(nil), j.targetIDs...),
		Concurrency: j.concurrency,
		Status:      j.status,
		Processed:   j.processed,
		Succeeded:   j.succeeded,
		Failed:      j.failed,
		Outcomes:    append([]model.Outcome(nil), j.outcomes...),
		StartedAt:   j.startedAt,
	}
	if j.endedAt != nil {
		t := *j.endedAt
		snap.EndedAt = &t
	}
	return snap
}

func (j *Job) markRunning(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = model.JobStatusRunning
	j.startedAt = now
}

func (j *Job) record(outcome model.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.processed++
	if outcome.Status == model.OutcomeSuccess {
		j.succeeded++
	} else {
		j.failed++
	}
	j.outcomes = append(j.outcomes, outcome)
}

func (j *Job) finish(status model.JobStatus, now time.Time) {
	j.mu.Lock()
	if !j.status.Terminal() {
		j.status = status
		j.endedAt = &now
	}
	j.mu.Unlock()
	close(j.done)
}
