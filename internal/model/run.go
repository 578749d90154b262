package model

import "time"

// Phase represents the current state of a discovery pass.
type Phase string

const (
	PhasePlanning          Phase = "planning"
	PhaseFetching          Phase = "fetching"
	PhaseFiltering         Phase = "filtering"
	PhaseScoring           Phase = "scoring"
	PhaseAdmitting         Phase = "admitting"
	PhasePersisting        Phase = "persisting"
	PhaseDone              Phase = "done"
	PhaseCapacityExhausted Phase = "capacity_exhausted"
	PhaseFailed            Phase = "failed"
)

// DiscoveryRun records one discovery pass for operational history.
type DiscoveryRun struct {
	ID                string     `json:"id"`
	Tenant            string     `json:"tenant"`
	Phase             Phase      `json:"phase"`
	TotalDiscovered   int        `json:"total_discovered"`
	NewLeadsSaved     int        `json:"new_leads_saved"`
	DuplicatesSkipped int        `json:"duplicates_skipped"`
	ICPFiltered       int        `json:"icp_filtered"`
	QueriesUsed       int        `json:"queries_used"`
	Error             string     `json:"error,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}
