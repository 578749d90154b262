package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/normalize"
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

// DB returns the underlying database handle for subsystems that need
// direct query access (engine state).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	company_name    TEXT NOT NULL,
	website         TEXT NOT NULL DEFAULT '',
	contact_email   TEXT NOT NULL DEFAULT '',
	contact_phone   TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	employee_count  INTEGER NOT NULL DEFAULT 0,
	pain_points     TEXT,
	tech_stack      TEXT,
	score           REAL NOT NULL DEFAULT 0,
	score_breakdown TEXT,
	status          TEXT NOT NULL DEFAULT 'new',
	source          TEXT NOT NULL DEFAULT '',
	name_key        TEXT NOT NULL,
	website_key     TEXT NOT NULL DEFAULT '',
	phone_key       TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_name_key ON leads(name_key);
CREATE INDEX IF NOT EXISTS idx_leads_website_key ON leads(website_key);
CREATE INDEX IF NOT EXISTS idx_leads_phone_key ON leads(phone_key);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC);

CREATE TABLE IF NOT EXISTS discovery_runs (
	id                 TEXT PRIMARY KEY,
	tenant             TEXT NOT NULL,
	phase              TEXT NOT NULL DEFAULT 'planning',
	total_discovered   INTEGER NOT NULL DEFAULT 0,
	new_leads_saved    INTEGER NOT NULL DEFAULT 0,
	duplicates_skipped INTEGER NOT NULL DEFAULT 0,
	icp_filtered       INTEGER NOT NULL DEFAULT 0,
	queries_used       INTEGER NOT NULL DEFAULT 0,
	error              TEXT NOT NULL DEFAULT '',
	started_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_discovery_runs_tenant ON discovery_runs(tenant, started_at DESC);

CREATE TABLE IF NOT EXISTS engine_state (
	tenant     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	doc        TEXT NOT NULL,
	version    INTEGER NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (tenant, kind)
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}

	painJSON, techJSON, breakdownJSON, err := marshalLeadJSON(lead)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, company_name, website, contact_email, contact_phone, industry, location, employee_count, pain_points, tech_stack, score, score_breakdown, status, source, name_key, website_key, phone_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.CompanyName, lead.Website, lead.ContactEmail, lead.ContactPhone,
		lead.Industry, lead.Location, lead.EmployeeCount, string(painJSON), string(techJSON),
		lead.Score, string(breakdownJSON), string(lead.Status), lead.Source,
		lead.NameKey, lead.WebsiteKey, lead.PhoneKey, lead.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert lead %s", lead.CompanyName)
}

// ImportLeads bulk-loads leads in a single transaction, refreshing company
// attributes on name-key conflicts while leaving engine judgments (score,
// status) alone. Rows without a name key are skipped.
func (s *SQLiteStore) ImportLeads(ctx context.Context, leads []model.Lead) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (id, company_name, website, contact_email, contact_phone, industry, location, employee_count, pain_points, tech_stack, score, score_breakdown, status, source, name_key, website_key, phone_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name_key) DO UPDATE SET
			website = excluded.website,
			contact_email = excluded.contact_email,
			contact_phone = excluded.contact_phone,
			industry = excluded.industry,
			location = excluded.location,
			employee_count = excluded.employee_count,
			pain_points = excluded.pain_points,
			tech_stack = excluded.tech_stack,
			source = excluded.source`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close() //nolint:errcheck

	count := 0
	now := time.Now().UTC()
	for i := range leads {
		lead := &leads[i]
		if lead.NameKey == "" {
			continue
		}
		if lead.ID == "" {
			lead.ID = uuid.New().String()
		}
		if lead.CreatedAt.IsZero() {
			lead.CreatedAt = now
		}
		if lead.Status == "" {
			lead.Status = model.LeadStatusNew
		}
		painJSON, techJSON, breakdownJSON, err := marshalLeadJSON(lead)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx,
			lead.ID, lead.CompanyName, lead.Website, lead.ContactEmail, lead.ContactPhone,
			lead.Industry, lead.Location, lead.EmployeeCount, string(painJSON), string(techJSON),
			lead.Score, string(breakdownJSON), string(lead.Status), lead.Source,
			lead.NameKey, lead.WebsiteKey, lead.PhoneKey, lead.CreatedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import lead %s", lead.CompanyName)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return count, nil
}

func (s *SQLiteStore) ExistsByKeys(ctx context.Context, keys normalize.Keys) (bool, error) {
	if keys.Name == "" && keys.Website == "" && keys.Phone == "" {
		return false, nil
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		SELECT 1 FROM leads
		WHERE (name_key = ? AND ? <> '')
		   OR (website_key = ? AND ? <> '')
		   OR (phone_key = ? AND ? <> ''))`,
		keys.Name, keys.Name, keys.Website, keys.Website, keys.Phone, keys.Phone,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: exists by keys")
	}
	return exists, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_name, website, contact_email, contact_phone, industry, location, employee_count, pain_points, tech_stack, score, score_breakdown, status, source, name_key, website_key, phone_key, created_at FROM leads WHERE id = ?`,
		id,
	)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, company_name, website, contact_email, contact_phone, industry, location, employee_count, pain_points, tech_stack, score, score_breakdown, status, source, name_key, website_key, phone_key, created_at FROM leads WHERE true`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Industry != "" {
		query += ` AND industry LIKE '%' || ? || '%'`
		args = append(args, filter.Industry)
	}
	if filter.Location != "" {
		query += ` AND location LIKE '%' || ? || '%'`
		args = append(args, filter.Location)
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.MinScore > 0 {
		query += ` AND score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY score DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return nil
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[model.LeadStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[model.LeadStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[model.LeadStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count by status iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, tenant string) (*model.DiscoveryRun, error) {
	run := &model.DiscoveryRun{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Phase:     model.PhasePlanning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO discovery_runs (id, tenant, phase, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Tenant, string(run.Phase), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.DiscoveryRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_runs SET phase = ?, total_discovered = ?, new_leads_saved = ?, duplicates_skipped = ?, icp_filtered = ?, queries_used = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(run.Phase), run.TotalDiscovered, run.NewLeadsSaved, run.DuplicatesSkipped,
		run.ICPFiltered, run.QueriesUsed, run.Error, now, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, tenant string, limit int) ([]model.DiscoveryRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant, phase, total_discovered, new_leads_saved, duplicates_skipped, icp_filtered, queries_used, error, started_at, finished_at FROM discovery_runs WHERE tenant = ? ORDER BY started_at DESC LIMIT ?`,
		tenant, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.DiscoveryRun
	for rows.Next() {
		var r model.DiscoveryRun
		var phase string
		if err := rows.Scan(&r.ID, &r.Tenant, &phase, &r.TotalDiscovered, &r.NewLeadsSaved,
			&r.DuplicatesSkipped, &r.ICPFiltered, &r.QueriesUsed, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Phase = model.Phase(phase)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
