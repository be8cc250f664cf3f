package model

import "time"

// JobStatus represents the lifecycle state of a batch enrichment job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusStopped   JobStatus = "STOPPED"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusStopped:
		return true
	}
	return false
}

// OutcomeStatus is the per-organization result state within a job.
type OutcomeStatus string

const (
	OutcomeSuccess    OutcomeStatus = "success"
	OutcomeFailure    OutcomeStatus = "failure"
	OutcomeInProgress OutcomeStatus = "in_progress"
)

// Outcome records what one enrichment attempt did to one organization.
// Immutable once the item terminates.
type Outcome struct {
	OrgID    string                  `json:"org_id"`
	Status   OutcomeStatus           `json:"status"`
	Filled   []ContactField          `json:"filled,omitempty"`
	Found    map[ContactField]string `json:"found,omitempty"`
	Grade    string                  `json:"grade,omitempty"`
	Notes    []string                `json:"notes,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Duration int64                   `json:"duration_ms"`
}

// JobSnapshot is a consistent point-in-time view of a job, safe to
// serialize and hand to callers while workers are still running.
type JobSnapshot struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Requester   string     `json:"requester"`
	TargetIDs   []string   `json:"target_ids"`
	Concurrency int        `json:"concurrency"`
	Status      JobStatus  `json:"status"`
	Processed   int        `json:"processed"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Outcomes    []Outcome  `json:"outcomes,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}
