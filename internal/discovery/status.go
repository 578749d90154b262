package discovery

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lenilani/leadscout/internal/capacity"
	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/resilience"
	"github.com/lenilani/leadscout/internal/rotation"
	"github.com/lenilani/leadscout/internal/state"
)

// recentQueryCount bounds the query log slice exposed in a snapshot.
const recentQueryCount = 20

// StatusSnapshot is the operator view of a tenant's discovery engine.
type StatusSnapshot struct {
	Tenant        string                       `json:"tenant"`
	Date          string                       `json:"date"`
	Today         state.DayStats               `json:"today"`
	Remaining     int                          `json:"remaining_capacity"`
	DailyLimit    int                          `json:"daily_limit"`
	SeenCount     int                          `json:"seen_count"`
	FilteredCount int                          `json:"filtered_count"`
	Sources       map[string]state.SourceGauge `json:"sources"`
	RecentQueries []state.QueryUse             `json:"recent_queries"`
	StatusCounts  map[model.LeadStatus]int     `json:"status_counts"`
	Breakers      map[string]string            `json:"breakers"`
}

// Status composes the operator snapshot from both state documents and the
// lead store. Read-only: nothing is saved back.
func (o *Orchestrator) Status(ctx context.Context) (*StatusSnapshot, error) {
	disc, err := o.deps.States.LoadDiscovery(ctx, o.cfg.Tenant)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: load discovery state")
	}
	rot, err := o.deps.States.LoadRotation(ctx, o.cfg.Tenant)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: load rotation state")
	}
	counts, err := o.deps.Leads.CountByStatus(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: count leads by status")
	}

	gov := capacity.NewGovernor(disc, o.cfg.DailyLimit, o.cfg.Timezone, capacity.WithNow(o.now))
	today := gov.Today()

	sources := make(map[string]state.SourceGauge, len(rot.Sources))
	for name, g := range rot.Sources {
		sources[name] = *g
	}
	recent := rot.Log
	if len(recent) > recentQueryCount {
		recent = recent[len(recent)-recentQueryCount:]
	}
	breakers := make(map[string]string)
	for name, st := range o.breakers.States() {
		breakers[name] = st.String()
	}

	return &StatusSnapshot{
		Tenant:        o.cfg.Tenant,
		Date:          today,
		Today:         *disc.Day(today),
		Remaining:     gov.Remaining(today),
		DailyLimit:    gov.Limit(),
		SeenCount:     len(disc.Seen),
		FilteredCount: len(disc.Filtered),
		Sources:       sources,
		RecentQueries: recent,
		StatusCounts:  counts,
		Breakers:      breakers,
	}, nil
}

// PreviewQueries plans the next batch without recording usage, for the
// dry-run CLI view. Cursor movement stays in memory and is discarded.
func (o *Orchestrator) PreviewQueries(ctx context.Context, industry, island string, count int) ([]string, error) {
	rot, err := o.deps.States.LoadRotation(ctx, o.cfg.Tenant)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: load rotation state")
	}
	if count <= 0 {
		count = o.cfg.QueryBatch
	}
	planner := rotation.NewPlanner(rot, o.cfg.Rotation, rotation.WithNow(o.now))
	return planner.NextQueries(industry, island, count), nil
}

// ResetDay zeroes one date's admission counter and saves the document.
// Dedup memory and other dates are untouched.
func (o *Orchestrator) ResetDay(ctx context.Context, date string) error {
	if _, err := time.Parse(state.DateFormat, date); err != nil {
		return eris.Errorf("discovery: invalid date %q, want YYYY-MM-DD", date)
	}
	disc, err := o.deps.States.LoadDiscovery(ctx, o.cfg.Tenant)
	if err != nil {
		return eris.Wrap(err, "discovery: load discovery state")
	}
	capacity.NewGovernor(disc, o.cfg.DailyLimit, o.cfg.Timezone, capacity.WithNow(o.now)).Reset(date)
	if err := o.deps.States.SaveDiscovery(ctx, o.cfg.Tenant, disc); err != nil {
		return eris.Wrap(err, "discovery: save discovery state")
	}
	zap.L().Info("daily counter reset",
		zap.String("tenant", o.cfg.Tenant),
		zap.String("date", date),
	)
	return nil
}

// ResetAll drops both state documents for the tenant. The dedup memory is
// gone afterwards; previously admitted companies will look new again.
func (o *Orchestrator) ResetAll(ctx context.Context) error {
	if err := o.deps.States.Reset(ctx, o.cfg.Tenant); err != nil {
		return eris.Wrap(err, "discovery: reset state")
	}
	zap.L().Warn("discovery state reset", zap.String("tenant", o.cfg.Tenant))
	return nil
}

// BreakerStates snapshots the per-source circuit breakers.
func (o *Orchestrator) BreakerStates() map[string]resilience.CircuitState {
	return o.breakers.States()
}
