// Package rotation plans search queries across the location and industry
// template space so successive discovery passes keep finding businesses
// the engine has not already paid to fetch. It never performs network
// calls itself; the orchestrator hands its plans to the source layer.
package rotation

import (
	"sort"
	"strings"
	"time"

	"github.com/lenilani/leadscout/internal/state"
)

// Exhaustion gauge blend weights, carried over per observation.
const (
	gaugeCarry   = 0.7
	gaugeObserve = 0.3
)

// Config controls the planner's memory and source suppression.
type Config struct {
	// Window is how long a query string may not be reissued. Default: 7 days.
	Window time.Duration

	// LogCap bounds the retained query log. Default: 100.
	LogCap int

	// Threshold is the duplicate gauge above which a source rests. Default: 0.8.
	Threshold float64

	// Rest is how long an exhausted source sits out before its gauge is
	// halved and it becomes eligible again. Default: 24h.
	Rest time.Duration
}

// DefaultConfig returns the planner configuration used in production.
func DefaultConfig() Config {
	return Config{
		Window:    7 * 24 * time.Hour,
		LogCap:    100,
		Threshold: 0.8,
		Rest:      24 * time.Hour,
	}
}

func applyDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = d.Window
	}
	if cfg.LogCap <= 0 {
		cfg.LogCap = d.LogCap
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = d.Threshold
	}
	if cfg.Rest <= 0 {
		cfg.Rest = d.Rest
	}
	return cfg
}

// Planner selects the next query strings for a tenant from its rotation
// state. Not safe for concurrent use; a discovery pass owns the state from
// load to save.
type Planner struct {
	st  *state.RotationState
	cfg Config
	now func() time.Time
}

type Option func(*Planner)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

func NewPlanner(st *state.RotationState, cfg Config, opts ...Option) *Planner {
	p := &Planner{st: st, cfg: applyDefaults(cfg), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NextQueries plans up to count query strings. Filters narrow the template
// space before cursor selection; they never widen it. Each restricted
// industry contributes its cursor keyword for the whole pass and the cursor
// advances so the next pass tries the following variation. Queries found in
// the rotation-window log are replaced by a modifier variant or skipped.
// When the entire restricted space is burned, the least recently used
// logged queries are reissued rather than returning nothing.
func (p *Planner) NextQueries(industryFilter, locationFilter string, count int) []string {
	if count <= 0 {
		return nil
	}
	groups := restrictIndustries(industryFilter)
	locs := restrictLocations(locationFilter)

	keyword := make(map[string]string, len(groups))
	for _, g := range groups {
		idx := p.st.IndustryCursors[g.name] % len(g.keywords)
		keyword[g.name] = g.keywords[idx]
		p.st.IndustryCursors[g.name] = (idx + 1) % len(g.keywords)
	}

	queries := make([]string, 0, count)
	batch := make(map[string]bool)
	add := func(q string) {
		queries = append(queries, q)
		batch[strings.ToLower(q)] = true
	}

	// Round-robin the industries, consuming one location per visit. The
	// bound walks each industry's pass keyword past every location once.
	for visit := 0; visit < len(groups)*len(locs) && len(queries) < count; visit++ {
		g := groups[visit%len(groups)]
		kw := keyword[g.name]
		loc := locs[p.st.LocationCursor%len(locs)]
		p.st.LocationCursor = (p.st.LocationCursor + 1) % len(locations)

		base := loc + " " + kw
		if p.usable(base, batch) {
			add(base)
			continue
		}
		for range modifiers {
			m := modifiers[p.st.ModifierCursor%len(modifiers)]
			p.st.ModifierCursor = (p.st.ModifierCursor + 1) % len(modifiers)
			q := m + " " + kw + " " + loc
			if p.usable(q, batch) {
				add(q)
				break
			}
		}
	}

	if len(queries) == 0 {
		queries = p.reissueOldest(count)
	}
	return queries
}

func (p *Planner) usable(q string, batch map[string]bool) bool {
	if batch[strings.ToLower(q)] {
		return false
	}
	cutoff := p.now().Add(-p.cfg.Window)
	for _, u := range p.st.Log {
		if u.UsedAt.After(cutoff) && strings.EqualFold(u.Query, q) {
			return false
		}
	}
	return true
}

// reissueOldest returns the least recently used distinct queries from the
// log, oldest first.
func (p *Planner) reissueOldest(count int) []string {
	type entry struct {
		query string
		last  time.Time
	}
	index := make(map[string]int)
	var entries []entry
	for _, u := range p.st.Log {
		k := strings.ToLower(u.Query)
		if i, ok := index[k]; ok {
			if u.UsedAt.After(entries[i].last) {
				entries[i].last = u.UsedAt
			}
			continue
		}
		index[k] = len(entries)
		entries = append(entries, entry{query: u.Query, last: u.UsedAt})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].last.Equal(entries[j].last) {
			return entries[i].query < entries[j].query
		}
		return entries[i].last.Before(entries[j].last)
	})

	if len(entries) > count {
		entries = entries[:count]
	}
	queries := make([]string, 0, len(entries))
	for _, e := range entries {
		queries = append(queries, e.query)
	}
	return queries
}

// RecordUsed logs dispatched queries and evicts entries that fell out of
// the rotation window, keeping at most LogCap of the newest.
func (p *Planner) RecordUsed(queries []string) {
	now := p.now()
	for _, q := range queries {
		p.st.Log = append(p.st.Log, state.QueryUse{Query: q, UsedAt: now})
	}

	cutoff := now.Add(-p.cfg.Window)
	kept := p.st.Log[:0]
	for _, u := range p.st.Log {
		if u.UsedAt.After(cutoff) {
			kept = append(kept, u)
		}
	}
	if len(kept) > p.cfg.LogCap {
		kept = kept[len(kept)-p.cfg.LogCap:]
	}
	p.st.Log = kept
}

// RecordSourceResult folds one pass's duplicate ratio for a source into
// its exhaustion gauge. Zero results count as fully duplicate: a source
// returning nothing has nothing new to give either.
func (p *Planner) RecordSourceResult(source string, totalResults, duplicates int) {
	rate := 1.0
	if totalResults > 0 {
		rate = float64(duplicates) / float64(totalResults)
		if rate > 1 {
			rate = 1
		}
	}

	// The first observation seeds the gauge directly so a brand-new
	// source that returns all duplicates rests right away.
	g := p.st.Source(source)
	if g.LastResultAt.IsZero() {
		g.Gauge = rate
	} else {
		g.Gauge = g.Gauge*gaugeCarry + rate*gaugeObserve
	}
	if g.Gauge > 1 {
		g.Gauge = 1
	}
	g.TotalResults += totalResults
	g.TotalDuplicates += duplicates

	now := p.now()
	g.LastResultAt = now
	if g.Gauge > p.cfg.Threshold {
		if g.ExhaustedAt.IsZero() {
			g.ExhaustedAt = now
		}
	} else {
		g.ExhaustedAt = time.Time{}
	}
}

// EligibleSources drops sources whose gauge sits above the threshold and
// orders the rest least exhausted first. A source that has rested a full
// Rest period since its last result has its gauge halved first, so
// suppression decays instead of resetting, and repeated exhaustion keeps
// the gauge elevated.
func (p *Planner) EligibleSources(names []string) []string {
	now := p.now()
	var eligible []string
	for _, name := range names {
		g := p.st.Source(name)
		if g.Gauge > p.cfg.Threshold && !g.LastResultAt.IsZero() && now.Sub(g.LastResultAt) >= p.cfg.Rest {
			g.Gauge /= 2
			g.ExhaustedAt = time.Time{}
		}
		if g.Gauge <= p.cfg.Threshold {
			eligible = append(eligible, name)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return p.st.Source(eligible[i]).Gauge < p.st.Source(eligible[j]).Gauge
	})
	return eligible
}
