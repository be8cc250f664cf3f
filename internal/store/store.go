// Package store persists organizations and batch job summaries.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

// Sentinel errors shared by all backends. Wrapped errors keep these in
// their chain, so callers match with errors.Is.
var (
	ErrNotFound = eris.New("store: organization not found")
	ErrConflict = eris.New("store: concurrent update conflict")
)

// ContactUpdate is a partial write of enrichment results. Only the
// listed fields plus the grade, status and enrichment timestamp are
// touched; the rest of the row is left alone so concurrent manual
// edits from the web UI are not clobbered.
type ContactUpdate struct {
	Fields     map[model.ContactField]string
	Grade      string
	Status     *model.WorkflowStatus
	EnrichedAt time.Time

	// ExpectedUpdatedAt enables optimistic concurrency: when set, the
	// update applies only if the row's updated_at still matches, and
	// returns ErrConflict otherwise.
	ExpectedUpdatedAt *time.Time
}

// OrgFilter selects organizations for listing.
type OrgFilter struct {
	Status   model.WorkflowStatus
	Category string
	Limit    int
	Offset   int
}

// CandidateFilter selects organizations that still miss contact data.
type CandidateFilter struct {
	Category string
	Limit    int
	Offset   int
}

// Store is the persistence interface consumed by the enrichment core.
type Store interface {
	// Organizations
	CreateOrganization(ctx context.Context, org model.Organization) (*model.Organization, error)
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	UpdateOrganizationContact(ctx context.Context, id string, upd ContactUpdate) error
	ListOrganizations(ctx context.Context, f OrgFilter) ([]model.Organization, error)
	ListIncomplete(ctx context.Context, f CandidateFilter) ([]model.Organization, error)

	// Job summaries (run history for the dashboard; the in-memory
	// registry stays authoritative for live jobs)
	SaveJobSummary(ctx context.Context, snap model.JobSnapshot) error
	ListJobSummaries(ctx context.Context, limit int) ([]model.JobSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
