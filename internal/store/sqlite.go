package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	last_enriched_at DATETIME
);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id         TEXT PRIMARY KEY,
	snapshot   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_orgs_status ON organizations(status);
CREATE INDEX IF NOT EXISTS idx_orgs_category ON organizations(category);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON enrichment_jobs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteOrgColumns = `id, name, category, address, postal_code, phone, fax, email, homepage, status, priority_tag, created_at, updated_at, last_enriched_at`

func (s *SQLiteStore) CreateOrganization(ctx context.Context, org model.Organization) (*model.Organization, error) {
	if strings.TrimSpace(org.Name) == "" {
		return nil, eris.New("sqlite: organization name is required")
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (`+sqliteOrgColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Category, org.Address, org.PostalCode,
		org.Phone, org.Fax, org.Email, org.Homepage,
		string(org.Status), org.PriorityTag, org.CreatedAt, org.UpdatedAt, org.LastEnrichedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert organization")
	}
	return &org, nil
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteOrgColumns+` FROM organizations WHERE id = ?`, id)
	org, err := scanOrg(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get organization %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get organization %s", id)
	}
	return org, nil
}

func (s *SQLiteStore) UpdateOrganizationContact(ctx context.Context, id string, upd ContactUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	for _, f := range model.TargetFields {
		if v, ok := upd.Fields[f]; ok {
			sets = append(sets, fmt.Sprintf("%s = ?", sqliteColumnFor(f)))
			args = append(args, v)
		}
	}
	if upd.Grade != "" {
		sets = append(sets, "grade = ?")
		args = append(args, upd.Grade)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if !upd.EnrichedAt.IsZero() {
		sets = append(sets, "last_enriched_at = ?")
		args = append(args, upd.EnrichedAt.UTC())
	}

	query := `UPDATE organizations SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)
	if upd.ExpectedUpdatedAt != nil {
		query += ` AND updated_at = ?`
		args = append(args, upd.ExpectedUpdatedAt.UTC())
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update organization %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Distinguish a vanished row from a lost optimistic-lock race.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT count(1) FROM organizations WHERE id = ?`, id).Scan(&exists); err != nil {
			return eris.Wrapf(err, "sqlite: recheck organization %s", id)
		}
		if exists == 0 {
			return eris.Wrapf(ErrNotFound, "sqlite: update organization %s", id)
		}
		return eris.Wrapf(ErrConflict, "sqlite: update organization %s", id)
	}
	return nil
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context, f OrgFilter) ([]model.Organization, error) {
	query := `SELECT ` + sqliteOrgColumns + ` FROM organizations WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	query += ` ORDER BY name`
	query, args = sqliteApplyPage(query, args, f.Limit, f.Offset)

	return s.queryOrgs(ctx, query, args...)
}

// sqliteIncompleteCond matches rows with at least one missing contact field.
const sqliteIncompleteCond = `(trim(phone) = '' OR trim(fax) = '' OR trim(email) = '' OR trim(homepage) = '' OR trim(address) = '')`

func (s *SQLiteStore) ListIncomplete(ctx context.Context, f CandidateFilter) ([]model.Organization, error) {
	query := `SELECT ` + sqliteOrgColumns + ` FROM organizations WHERE ` + sqliteIncompleteCond
	var args []any
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	// Most incomplete first, so auto-enrichment naturally picks the
	// HIGH-priority candidates from the top of the page.
	query += ` ORDER BY ((trim(phone)='') + (trim(fax)='') + (trim(email)='') + (trim(homepage)='') + (trim(address)='')) DESC, name`
	query, args = sqliteApplyPage(query, args, f.Limit, f.Offset)

	return s.queryOrgs(ctx, query, args...)
}

func (s *SQLiteStore) SaveJobSummary(ctx context.Context, snap model.JobSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job snapshot")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichment_jobs (id, snapshot, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot`,
		snap.ID, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save job %s", snap.ID)
}

func (s *SQLiteStore) ListJobSummaries(ctx context.Context, limit int) ([]model.JobSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot FROM enrichment_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close() //nolint:errcheck

	var snaps []model.JobSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		var snap model.JobSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job")
		}
		snaps = append(snaps, snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

func (s *SQLiteStore) queryOrgs(ctx context.Context, query string, args ...any) ([]model.Organization, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query organizations")
	}
	defer rows.Close() //nolint:errcheck

	var orgs []model.Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organization")
		}
		orgs = append(orgs, *org)
	}
	return orgs, eris.Wrap(rows.Err(), "sqlite: iterate organizations")
}

func sqliteApplyPage(query string, args []any, limit, offset int) (string, []any) {
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if offset > 0 {
		query += ` OFFSET ?`
		args = append(args, offset)
	}
	return query, args
}

func sqliteColumnFor(f model.ContactField) string {
	// ContactField names match column names by construction.
	return string(f)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrg(row rowScanner) (*model.Organization, error) {
	var org model.Organization
	var status string
	var lastEnriched sql.NullTime
	err := row.Scan(
		&org.ID, &org.Name, &org.Category, &org.Address, &org.PostalCode,
		&org.Phone, &org.Fax, &org.Email, &org.Homepage,
		&status, &org.PriorityTag, &org.CreatedAt, &org.UpdatedAt, &lastEnriched,
	)
	if err != nil {
		return nil, err
	}
	org.Status = model.WorkflowStatus(status)
	if lastEnriched.Valid {
		t := lastEnriched.Time
		org.LastEnrichedAt = &t
	}
	return &org, nil
}
