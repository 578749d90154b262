package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/lenilani/leadscout/internal/db"
	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/normalize"
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

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot discovery-pass operations.
var preparedStatements = map[string]string{
	"insert_lead": `INSERT INTO leads (id, company_name, website, contact_email, contact_phone, industry, location, employee_count, pain_points, tech_stack, score, score_breakdown, status, source, name_key, website_key, phone_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
	"exists_by_keys": `SELECT EXISTS (
		SELECT 1 FROM leads
		WHERE (name_key = $1 AND $1 <> '')
		   OR (website_key = $2 AND $2 <> '')
		   OR (phone_key = $3 AND $3 <> ''))`,
	"get_lead":           `SELECT id, company_name, website, contact_email, contact_phone, industry, location, employee_count, pain_points, tech_stack, score, score_breakdown, status, source, name_key, website_key, phone_key, created_at FROM leads WHERE id = $1`,
	"update_lead_status": `UPDATE leads SET status = $1 WHERE id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

// Pool returns the underlying database pool for subsystems that need
// direct query access (engine state, bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_name    TEXT NOT NULL,
	website         TEXT NOT NULL DEFAULT '',
	contact_email   TEXT NOT NULL DEFAULT '',
	contact_phone   TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	employee_count  INTEGER NOT NULL DEFAULT 0,
	pain_points     JSONB,
	tech_stack      JSONB,
	score           DOUBLE PRECISION NOT NULL DEFAULT 0,
	score_breakdown JSONB,
	status          TEXT NOT NULL DEFAULT 'new',
	source          TEXT NOT NULL DEFAULT '',
	name_key        TEXT NOT NULL,
	website_key     TEXT NOT NULL DEFAULT '',
	phone_key       TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_name_key ON leads(name_key);
CREATE INDEX IF NOT EXISTS idx_leads_website_key ON leads(website_key);
CREATE INDEX IF NOT EXISTS idx_leads_phone_key ON leads(phone_key);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC);

CREATE TABLE IF NOT EXISTS discovery_runs (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant             TEXT NOT NULL,
	phase              TEXT NOT NULL DEFAULT 'planning',
	total_discovered   INTEGER NOT NULL DEFAULT 0,
	new_leads_saved    INTEGER NOT NULL DEFAULT 0,
	duplicates_skipped INTEGER NOT NULL DEFAULT 0,
	icp_filtered       INTEGER NOT NULL DEFAULT 0,
	queries_used       INTEGER NOT NULL DEFAULT 0,
	error              TEXT NOT NULL DEFAULT '',
	started_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at        TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_discovery_runs_tenant ON discovery_runs(tenant, started_at DESC);

CREATE TABLE IF NOT EXISTS engine_state (
	tenant     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	doc        JSONB NOT NULL,
	version    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant, kind)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) InsertLead(ctx context.Context, lead *model.Lead) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, company_name, website, contact_email, contact_phone, industry, location, employee_count, pain_points, tech_stack, score, score_breakdown, status, source, name_key, website_key, phone_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		lead.ID, lead.CompanyName, lead.Website, lead.ContactEmail, lead.ContactPhone,
		lead.Industry, lead.Location, lead.EmployeeCount, painJSON, techJSON,
		lead.Score, breakdownJSON, string(lead.Status), lead.Source,
		lead.NameKey, lead.WebsiteKey, lead.PhoneKey, lead.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert lead %s", lead.CompanyName)
}

// leadColumns is the COPY column order used by ImportLeads.
var leadColumns = []string{
	"id", "company_name", "website", "contact_email", "contact_phone",
	"industry", "location", "employee_count", "pain_points", "tech_stack",
	"score", "score_breakdown", "status", "source",
	"name_key", "website_key", "phone_key", "created_at",
}

// ImportLeads bulk-loads leads, refreshing company attributes on name-key
// conflicts while leaving engine judgments (score, status) alone. Rows
// without a name key are skipped.
func (s *PostgresStore) ImportLeads(ctx context.Context, leads []model.Lead) (int, error) {
	rows := make([][]any, 0, len(leads))
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
		rows = append(rows, []any{
			lead.ID, lead.CompanyName, lead.Website, lead.ContactEmail, lead.ContactPhone,
			lead.Industry, lead.Location, lead.EmployeeCount, painJSON, techJSON,
			lead.Score, breakdownJSON, string(lead.Status), lead.Source,
			lead.NameKey, lead.WebsiteKey, lead.PhoneKey, lead.CreatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      leadColumns,
		ConflictKeys: []string{"name_key"},
		UpdateCols: []string{
			"website", "contact_email", "contact_phone", "industry",
			"location", "employee_count", "pain_points", "tech_stack", "source",
		},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import leads")
	}
	return int(n), nil
}

func (s *PostgresStore) ExistsByKeys(ctx context.Context, keys normalize.Keys) (bool, error) {
	if keys.Name == "" && keys.Website == "" && keys.Phone == "" {
		return false, nil
	}

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		SELECT 1 FROM leads
		WHERE (name_key = $1 AND $1 <> '')
		   OR (website_key = $2 AND $2 <> '')
		   OR (phone_key = $3 AND $3 <> ''))`,
		keys.Name, keys.Website, keys.Phone,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: exists by keys")
	}
	return exists, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, company_name, website, contact_email, contact_phone, industry, location, employee_count, pain_points, tech_stack, score, score_breakdown, status, source, name_key, website_key, phone_key, created_at FROM leads WHERE id = $1`,
		id,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, company_name, website, contact_email, contact_phone, industry, location, employee_count, pain_points, tech_stack, score, score_breakdown, status, source, name_key, website_key, phone_key, created_at FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Industry != "" {
		query += fmt.Sprintf(` AND industry ILIKE '%%' || $%d || '%%'`, argIdx)
		args = append(args, filter.Industry)
		argIdx++
	}
	if filter.Location != "" {
		query += fmt.Sprintf(` AND location ILIKE '%%' || $%d || '%%'`, argIdx)
		args = append(args, filter.Location)
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND score >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY score DESC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[model.LeadStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := make(map[model.LeadStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.LeadStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count by status iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, tenant string) (*model.DiscoveryRun, error) {
	run := &model.DiscoveryRun{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Phase:     model.PhasePlanning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO discovery_runs (id, tenant, phase, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.Tenant, string(run.Phase), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.DiscoveryRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	tag, err := s.pool.Exec(ctx,
		`UPDATE discovery_runs SET phase = $1, total_discovered = $2, new_leads_saved = $3, duplicates_skipped = $4, icp_filtered = $5, queries_used = $6, error = $7, finished_at = $8 WHERE id = $9`,
		string(run.Phase), run.TotalDiscovered, run.NewLeadsSaved, run.DuplicatesSkipped,
		run.ICPFiltered, run.QueriesUsed, run.Error, now, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, tenant string, limit int) ([]model.DiscoveryRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant, phase, total_discovered, new_leads_saved, duplicates_skipped, icp_filtered, queries_used, error, started_at, finished_at FROM discovery_runs WHERE tenant = $1 ORDER BY started_at DESC LIMIT $2`,
		tenant, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.DiscoveryRun
	for rows.Next() {
		var r model.DiscoveryRun
		var phase string
		if err := rows.Scan(&r.ID, &r.Tenant, &phase, &r.TotalDiscovered, &r.NewLeadsSaved,
			&r.DuplicatesSkipped, &r.ICPFiltered, &r.QueriesUsed, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Phase = model.Phase(phase)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func marshalLeadJSON(lead *model.Lead) (pain, tech, breakdown []byte, err error) {
	if pain, err = json.Marshal(lead.PainPoints); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal pain points")
	}
	if tech, err = json.Marshal(lead.TechStack); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal tech stack")
	}
	if breakdown, err = json.Marshal(lead.ScoreBreakdown); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal score breakdown")
	}
	return pain, tech, breakdown, nil
}

// scannable covers pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var lead model.Lead
	var status string
	var painJSON, techJSON, breakdownJSON []byte

	err := row.Scan(&lead.ID, &lead.CompanyName, &lead.Website, &lead.ContactEmail,
		&lead.ContactPhone, &lead.Industry, &lead.Location, &lead.EmployeeCount,
		&painJSON, &techJSON, &lead.Score, &breakdownJSON, &status, &lead.Source,
		&lead.NameKey, &lead.WebsiteKey, &lead.PhoneKey, &lead.CreatedAt)
	if err != nil {
		return nil, err
	}
	lead.Status = model.LeadStatus(status)

	if len(painJSON) > 0 {
		if err := json.Unmarshal(painJSON, &lead.PainPoints); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal pain points")
		}
	}
	if len(techJSON) > 0 {
		if err := json.Unmarshal(techJSON, &lead.TechStack); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal tech stack")
		}
	}
	if len(breakdownJSON) > 0 {
		if err := json.Unmarshal(breakdownJSON, &lead.ScoreBreakdown); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal score breakdown")
		}
	}
	return &lead, nil
}
