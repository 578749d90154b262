// Package state holds the persisted discovery memory: which companies have
// been seen or rejected, how much of today's capacity is spent, and how the
// query rotation is positioned. One logical instance of each aggregate
// exists per tenant.
package state

import "time"

// DateFormat is the calendar-day key format for daily counters.
const DateFormat = "2006-01-02"

// DayStats counts admissions and source calls for one calendar day.
type DayStats struct {
	LeadsAdded int `json:"leads_added"`
	APICalls   int `json:"api_calls"`
}

// DiscoveryState is the per-tenant dedup memory. Seen and Filtered map
// namespaced identity-key values to the time they were last touched, which
// drives retention pruning. Daily is keyed by tenant-local calendar date.
type DiscoveryState struct {
	Seen     map[string]time.Time `json:"seen"`
	Filtered map[string]time.Time `json:"filtered"`
	Daily    map[string]*DayStats `json:"daily"`

	// Version is the optimistic-concurrency token from the backing row.
	// Zero means the aggregate has never been persisted.
	Version int64 `json:"-"`
}

// NewDiscoveryState returns an empty aggregate for a tenant's first run.
func NewDiscoveryState() *DiscoveryState {
	return &DiscoveryState{
		Seen:     make(map[string]time.Time),
		Filtered: make(map[string]time.Time),
		Daily:    make(map[string]*DayStats),
	}
}

// ensure replaces nil maps left behind by JSON decoding of sparse docs.
func (s *DiscoveryState) ensure() {
	if s.Seen == nil {
		s.Seen = make(map[string]time.Time)
	}
	if s.Filtered == nil {
		s.Filtered = make(map[string]time.Time)
	}
	if s.Daily == nil {
		s.Daily = make(map[string]*DayStats)
	}
}

// Day returns the stats bucket for a date, creating it if needed.
func (s *DiscoveryState) Day(date string) *DayStats {
	d, ok := s.Daily[date]
	if !ok {
		d = &DayStats{}
		s.Daily[date] = d
	}
	return d
}

// Prune drops seen/filtered entries untouched for longer than the retention
// window and daily buckets older than it. Returns the number of entries
// removed. Date keys sort lexically, so the cutoff is a string compare.
func (s *DiscoveryState) Prune(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	removed := 0
	for k, touched := range s.Seen {
		if touched.Before(cutoff) {
			delete(s.Seen, k)
			removed++
		}
	}
	for k, touched := range s.Filtered {
		if touched.Before(cutoff) {
			delete(s.Filtered, k)
			removed++
		}
	}
	cutoffDate := cutoff.Format(DateFormat)
	for date := range s.Daily {
		if date < cutoffDate {
			delete(s.Daily, date)
			removed++
		}
	}
	return removed
}

// QueryUse is one entry in the rotation's recent-query log.
type QueryUse struct {
	Query  string    `json:"query"`
	UsedAt time.Time `json:"used_at"`
}

// SourceGauge tracks how duplicate-heavy a discovery source has been.
// Gauge is a blended duplicate ratio in [0,1]; ExhaustedAt is set when the
// gauge crosses the exhaustion threshold and cleared once the source has
// rested and decayed back under it.
type SourceGauge struct {
	Gauge           float64   `json:"gauge"`
	TotalResults    int       `json:"total_results"`
	TotalDuplicates int       `json:"total_duplicates"`
	LastResultAt    time.Time `json:"last_result_at"`
	ExhaustedAt     time.Time `json:"exhausted_at"`
}

// RotationState is the per-tenant query-rotation memory.
type RotationState struct {
	Log             []QueryUse              `json:"log"`
	Sources         map[string]*SourceGauge `json:"sources"`
	IndustryCursors map[string]int          `json:"industry_cursors"`
	LocationCursor  int                     `json:"location_cursor"`
	ModifierCursor  int                     `json:"modifier_cursor"`

	Version int64 `json:"-"`
}

// NewRotationState returns an empty rotation aggregate.
func NewRotationState() *RotationState {
	return &RotationState{
		Sources:         make(map[string]*SourceGauge),
		IndustryCursors: make(map[string]int),
	}
}

func (s *RotationState) ensure() {
	if s.Sources == nil {
		s.Sources = make(map[string]*SourceGauge)
	}
	if s.IndustryCursors == nil {
		s.IndustryCursors = make(map[string]int)
	}
}

// Source returns the gauge for a source, creating it if needed.
func (s *RotationState) Source(name string) *SourceGauge {
	g, ok := s.Sources[name]
	if !ok {
		g = &SourceGauge{}
		s.Sources[name] = g
	}
	return g
}
