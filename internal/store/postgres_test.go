package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/normalize"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_InsertLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), "Aloha Dive Shop", "https://alohadive.com", "info@alohadive.com", "(808) 555-0100",
			"retail", "Kailua, HI", 12, pgxmock.AnyArg(), pgxmock.AnyArg(),
			78.0, pgxmock.AnyArg(), "new", "google_maps",
			"aloha dive shop", "alohadive.com", "8085550100", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	lead := &model.Lead{
		CompanyName:   "Aloha Dive Shop",
		Website:       "https://alohadive.com",
		ContactEmail:  "info@alohadive.com",
		ContactPhone:  "(808) 555-0100",
		Industry:      "retail",
		Location:      "Kailua, HI",
		EmployeeCount: 12,
		Score:         78.0,
		Source:        "google_maps",
		NameKey:       "aloha dive shop",
		WebsiteKey:    "alohadive.com",
		PhoneKey:      "8085550100",
	}
	err := s.InsertLead(context.Background(), lead)
	require.NoError(t, err)
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.False(t, lead.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistsByKeys(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("aloha dive shop", "alohadive.com", "8085550100").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := s.ExistsByKeys(context.Background(), normalize.Keys{
		Name:    "aloha dive shop",
		Website: "alohadive.com",
		Phone:   "8085550100",
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistsByKeys_EmptyKeysSkipQuery(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// No expectations registered: an all-empty key set must never hit the database.
	found, err := s.ExistsByKeys(context.Background(), normalize.Keys{})
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2025, 7, 10, 18, 30, 0, 0, time.UTC)
	breakdown, err := json.Marshal([]model.ScoreFactor{{Factor: "base", Points: 50}})
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{
		"id", "company_name", "website", "contact_email", "contact_phone",
		"industry", "location", "employee_count", "pain_points", "tech_stack",
		"score", "score_breakdown", "status", "source",
		"name_key", "website_key", "phone_key", "created_at",
	}).AddRow(
		"lead-1", "Aloha Dive Shop", "https://alohadive.com", "", "",
		"retail", "Kailua, HI", 12, []byte(`["manual booking"]`), []byte(`["wordpress"]`),
		78.0, breakdown, "new", "google_maps",
		"aloha dive shop", "alohadive.com", "", created,
	)

	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnRows(rows)

	lead, err := s.GetLead(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Aloha Dive Shop", lead.CompanyName)
	assert.Equal(t, []string{"manual booking"}, lead.PainPoints)
	assert.Equal(t, []string{"wordpress"}, lead.TechStack)
	assert.Len(t, lead.ScoreBreakdown, 1)
	assert.Equal(t, created, lead.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "company_name", "website", "contact_email", "contact_phone",
			"industry", "location", "employee_count", "pain_points", "tech_stack",
			"score", "score_breakdown", "status", "source",
			"name_key", "website_key", "phone_key", "created_at",
		}))

	_, err := s.GetLead(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "company_name", "website", "contact_email", "contact_phone",
		"industry", "location", "employee_count", "pain_points", "tech_stack",
		"score", "score_breakdown", "status", "source",
		"name_key", "website_key", "phone_key", "created_at",
	}).AddRow(
		"lead-1", "Maui Beach Resort", "https://mauibeach.com", "", "",
		"hospitality", "Maui, HI", 150, nil, nil,
		100.0, nil, "new", "google_maps",
		"maui beach resort", "mauibeach.com", "", time.Now().UTC(),
	)

	mock.ExpectQuery(`SELECT .* FROM leads WHERE true AND status = \$1 AND industry ILIKE .* AND score >= \$3 ORDER BY score DESC`).
		WithArgs("new", "hospitality", 70.0, 25).
		WillReturnRows(rows)

	leads, err := s.ListLeads(context.Background(), LeadFilter{
		Status:   model.LeadStatusNew,
		Industry: "hospitality",
		MinScore: 70,
		Limit:    25,
	})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Maui Beach Resort", leads[0].CompanyName)
	assert.Nil(t, leads[0].PainPoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM leads WHERE true ORDER BY score DESC, created_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "company_name", "website", "contact_email", "contact_phone",
			"industry", "location", "employee_count", "pain_points", "tech_stack",
			"score", "score_breakdown", "status", "source",
			"name_key", "website_key", "phone_key", "created_at",
		}))

	leads, err := s.ListLeads(context.Background(), LeadFilter{})
	require.NoError(t, err)
	assert.Empty(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLeadStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET status = \$1 WHERE id = \$2`).
		WithArgs("contacted", "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateLeadStatus(context.Background(), "lead-1", model.LeadStatusContacted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLeadStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET status = \$1 WHERE id = \$2`).
		WithArgs("contacted", "nonexistent").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateLeadStatus(context.Background(), "nonexistent", model.LeadStatusContacted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM leads GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("new", 42).
			AddRow("contacted", 7))

	counts, err := s.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, counts[model.LeadStatusNew])
	assert.Equal(t, 7, counts[model.LeadStatusContacted])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO discovery_runs`).
		WithArgs(pgxmock.AnyArg(), "lenilani", "planning", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "lenilani")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.PhasePlanning, run.Phase)
	assert.False(t, run.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE discovery_runs SET phase = \$1`).
		WithArgs("done", 120, 35, 60, 25, 5, "", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	run := &model.DiscoveryRun{
		ID:                "run-1",
		Tenant:            "lenilani",
		Phase:             model.PhaseDone,
		TotalDiscovered:   120,
		NewLeadsSaved:     35,
		DuplicatesSkipped: 60,
		ICPFiltered:       25,
		QueriesUsed:       5,
	}
	err := s.FinishRun(context.Background(), run)
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Date(2025, 7, 10, 8, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Minute)
	rows := pgxmock.NewRows([]string{
		"id", "tenant", "phase", "total_discovered", "new_leads_saved",
		"duplicates_skipped", "icp_filtered", "queries_used", "error",
		"started_at", "finished_at",
	}).AddRow("run-2", "lenilani", "done", 80, 20, 40, 20, 5, "", started.Add(time.Hour), &finished).
		AddRow("run-1", "lenilani", "failed", 0, 0, 0, 0, 0, "all sources failed", started, &finished)

	mock.ExpectQuery(`SELECT .* FROM discovery_runs WHERE tenant = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("lenilani", 20).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), "lenilani", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.PhaseDone, runs[0].Phase)
	assert.Equal(t, model.PhaseFailed, runs[1].Phase)
	assert.Equal(t, "all sources failed", runs[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
