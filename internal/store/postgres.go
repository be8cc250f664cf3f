package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/EnzoMH/cradcrawl-enrich/internal/db"
	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	postal_code      TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	fax              TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	homepage         TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'NEW',
	priority_tag     TEXT NOT NULL DEFAULT '',
	grade            TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_enriched_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id         TEXT PRIMARY KEY,
	snapshot   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orgs_status ON organizations(status);
CREATE INDEX IF NOT EXISTS idx_orgs_category ON organizations(category);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON enrichment_jobs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgOrgColumns = `id, name, category, address, postal_code, phone, fax, email, homepage, status, priority_tag, created_at, updated_at, last_enriched_at`

func (s *PostgresStore) CreateOrganization(ctx context.Context, org model.Organization) (*model.Organization, error) {
	if strings.TrimSpace(org.Name) == "" {
		return nil, eris.New("postgres: organization name is required")
	}
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if org.Status == "" {
		org.Status = model.StatusNew
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO organizations (`+pgOrgColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		org.ID, org.Name, org.Category, org.Address, org.PostalCode,
		org.Phone, org.Fax, org.Email, org.Homepage,
		string(org.Status), org.PriorityTag, org.CreatedAt, org.UpdatedAt, org.LastEnrichedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert organization")
	}
	return &org, nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgOrgColumns+` FROM organizations WHERE id = $1`, id)
	org, err := scanPgOrg(row)
	if err == pgx.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get organization %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get organization %s", id)
	}
	return org, nil
}

func (s *PostgresStore) UpdateOrganizationContact(ctx context.Context, id string, upd ContactUpdate) error {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	for _, f := range model.TargetFields {
		if v, ok := upd.Fields[f]; ok {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", string(f), len(args)))
		}
	}
	if upd.Grade != "" {
		args = append(args, upd.Grade)
		sets = append(sets, fmt.Sprintf("grade = $%d", len(args)))
	}
	if upd.Status != nil {
		args = append(args, string(*upd.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if !upd.EnrichedAt.IsZero() {
		args = append(args, upd.EnrichedAt.UTC())
		sets = append(sets, fmt.Sprintf("last_enriched_at = $%d", len(args)))
	}

	args = append(args, id)
	query := `UPDATE organizations SET ` + strings.Join(sets, ", ") + fmt.Sprintf(` WHERE id = $%d`, len(args))
	if upd.ExpectedUpdatedAt != nil {
		args = append(args, upd.ExpectedUpdatedAt.UTC())
		query += fmt.Sprintf(` AND updated_at = $%d`, len(args))
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update organization %s", id)
	}
	if tag.RowsAffected() == 0 {
		var exists int
		if err := s.pool.QueryRow(ctx,
			`SELECT count(1) FROM organizations WHERE id = $1`, id).Scan(&exists); err != nil {
			return eris.Wrapf(err, "postgres: recheck organization %s", id)
		}
		if exists == 0 {
			return eris.Wrapf(ErrNotFound, "postgres: update organization %s", id)
		}
		return eris.Wrapf(ErrConflict, "postgres: update organization %s", id)
	}
	return nil
}

func (s *PostgresStore) ListOrganizations(ctx context.Context, f OrgFilter) ([]model.Organization, error) {
	query := `SELECT ` + pgOrgColumns + ` FROM organizations WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	query += ` ORDER BY name`
	query, args = pgApplyPage(query, args, f.Limit, f.Offset)

	return s.queryOrgs(ctx, query, args...)
}

const pgIncompleteCond = `(btrim(phone) = '' OR btrim(fax) = '' OR btrim(email) = '' OR btrim(homepage) = '' OR btrim(address) = '')`

const pgMissingCount = `((btrim(phone) = '')::int + (btrim(fax) = '')::int + (btrim(email) = '')::int + (btrim(homepage) = '')::int + (btrim(address) = '')::int)`

func (s *PostgresStore) ListIncomplete(ctx context.Context, f CandidateFilter) ([]model.Organization, error) {
	query := `SELECT ` + pgOrgColumns + ` FROM organizations WHERE ` + pgIncompleteCond
	var args []any
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	query += ` ORDER BY ` + pgMissingCount + ` DESC, name`
	query, args = pgApplyPage(query, args, f.Limit, f.Offset)

	return s.queryOrgs(ctx, query, args...)
}

func (s *PostgresStore) SaveJobSummary(ctx context.Context, snap model.JobSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job snapshot")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO enrichment_jobs (id, snapshot, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET snapshot = EXCLUDED.snapshot`,
		snap.ID, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save job %s", snap.ID)
}

func (s *PostgresStore) ListJobSummaries(ctx context.Context, limit int) ([]model.JobSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT snapshot FROM enrichment_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var snaps []model.JobSnapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		var snap model.JobSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal job")
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

// BulkImportOrganizations loads organizations via the COPY protocol.
// Used by the initial data load; rows must carry pre-assigned ids.
func (s *PostgresStore) BulkImportOrganizations(ctx context.Context, orgs []model.Organization) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(orgs))
	for _, org := range orgs {
		if org.ID == "" {
			org.ID = uuid.New().String()
		}
		if org.Status == "" {
			org.Status = model.StatusNew
		}
		rows = append(rows, []any{
			org.ID, org.Name, org.Category, org.Address, org.PostalCode,
			org.Phone, org.Fax, org.Email, org.Homepage,
			string(org.Status), org.PriorityTag, now, now,
		})
	}
	return db.CopyFrom(ctx, s.pool, "organizations", []string{
		"id", "name", "category", "address", "postal_code",
		"phone", "fax", "email", "homepage",
		"status", "priority_tag", "created_at", "updated_at",
	}, rows)
}

func (s *PostgresStore) queryOrgs(ctx context.Context, query string, args ...any) ([]model.Organization, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		org, err := scanPgOrg(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan organization")
		}
		orgs = append(orgs, *org)
	}
	return orgs, eris.Wrap(rows.Err(), "postgres: iterate organizations")
}

func pgApplyPage(query string, args []any, limit, offset int) (string, []any) {
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	return query, args
}

func scanPgOrg(row pgx.Row) (*model.Organization, error) {
	var org model.Organization
	var status string
	var lastEnriched *time.Time
	err := row.Scan(
		&org.ID, &org.Name, &org.Category, &org.Address, &org.PostalCode,
		&org.Phone, &org.Fax, &org.Email, &org.Homepage,
		&status, &org.PriorityTag, &org.CreatedAt, &org.UpdatedAt, &lastEnriched,
	)
	if err != nil {
		return nil, err
	}
	org.Status = model.WorkflowStatus(status)
	org.LastEnrichedAt = lastEnriched
	return &org, nil
}
