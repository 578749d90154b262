package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/state"
)

// collectRunLimit caps how many recent runs one collection examines.
const collectRunLimit = 1000

// MetricsSnapshot holds a point-in-time view of discovery health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal       int     `json:"runs_total"`
	RunsDone        int     `json:"runs_done"`
	RunsFailed      int     `json:"runs_failed"`
	RunsCapacityHit int     `json:"runs_capacity_exhausted"`
	RunFailRate     float64 `json:"run_fail_rate"`

	// Aggregated pass counters (within lookback window).
	LeadsSaved        int `json:"leads_saved"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	ICPFiltered       int `json:"icp_filtered"`
	APICalls          int `json:"api_calls"`

	// Source exhaustion.
	SourcesTotal     int `json:"sources_total"`
	SourcesExhausted int `json:"sources_exhausted"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunSource abstracts the lead-store method the collector reads runs from.
type RunSource interface {
	ListRuns(ctx context.Context, tenant string, limit int) ([]model.DiscoveryRun, error)
}

// StateSource abstracts the engine-state loads the collector needs.
type StateSource interface {
	LoadDiscovery(ctx context.Context, tenant string) (*state.DiscoveryState, error)
	LoadRotation(ctx context.Context, tenant string) (*state.RotationState, error)
}

// Collector gathers metrics from the run history and engine state.
type Collector struct {
	runs   RunSource
	states StateSource
	tenant string
}

// NewCollector creates a metrics collector for one tenant.
func NewCollector(runs RunSource, states StateSource, tenant string) *Collector {
	return &Collector{runs: runs, states: states, tenant: tenant}
}

// Collect gathers a snapshot of discovery metrics over the given lookback
// window. Read-only: nothing is saved back.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, c.tenant, collectRunLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Phase {
		case model.PhaseDone:
			snap.RunsDone++
		case model.PhaseFailed:
			snap.RunsFailed++
		case model.PhaseCapacityExhausted:
			snap.RunsCapacityHit++
		}
		snap.LeadsSaved += r.NewLeadsSaved
		snap.DuplicatesSkipped += r.DuplicatesSkipped
		snap.ICPFiltered += r.ICPFiltered
	}

	finished := snap.RunsDone + snap.RunsFailed + snap.RunsCapacityHit
	if finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}

	// API calls live in the daily buckets, not the run records.
	disc, err := c.states.LoadDiscovery(ctx, c.tenant)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: load discovery state")
	}
	cutoffDate := cutoff.Format(state.DateFormat)
	for date, day := range disc.Daily {
		if date >= cutoffDate {
			snap.APICalls += day.APICalls
		}
	}

	rot, err := c.states.LoadRotation(ctx, c.tenant)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: load rotation state")
	}
	snap.SourcesTotal = len(rot.Sources)
	for _, g := range rot.Sources {
		if !g.ExhaustedAt.IsZero() {
			snap.SourcesExhausted++
		}
	}

	return snap, nil
}
