// Package capacity enforces the daily lead admission limit. Days are
// tenant-local calendar days, so a pass running just after midnight UTC
// still counts against the previous Hawaii business day.
package capacity

import (
	"sync"
	"time"

	"github.com/lenilani/leadscout/internal/state"
)

// Governor meters admissions against the configured daily limit. All
// methods are safe for concurrent use within a process; cross-process
// overlap is handled by the state store's version check.
type Governor struct {
	mu    sync.Mutex
	st    *state.DiscoveryState
	limit int
	loc   *time.Location
	now   func() time.Time
}

type Option func(*Governor)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

func NewGovernor(st *state.DiscoveryState, limit int, loc *time.Location, opts ...Option) *Governor {
	if loc == nil {
		loc = time.UTC
	}
	g := &Governor{st: st, limit: limit, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Today returns the current date key in the tenant's calendar.
func (g *Governor) Today() string {
	return g.now().In(g.loc).Format(state.DateFormat)
}

// Limit returns the configured daily limit.
func (g *Governor) Limit() int {
	return g.limit
}

// Remaining reports how many more leads may be admitted on the given date.
func (g *Governor) Remaining(date string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remainingLocked(date)
}

func (g *Governor) remainingLocked(date string) int {
	rem := g.limit - g.st.Day(date).LeadsAdded
	if rem < 0 {
		return 0
	}
	return rem
}

// TryAdmit admits min(count, remaining) leads for the date and advances
// the counter in the same step, so the day's total can never pass the
// limit no matter how many callers race.
func (g *Governor) TryAdmit(date string, count int) int {
	if count <= 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	admit := g.remainingLocked(date)
	if count < admit {
		admit = count
	}
	g.st.Day(date).LeadsAdded += admit
	return admit
}

// RecordAPICalls tallies source calls made on behalf of the date.
func (g *Governor) RecordAPICalls(date string, n int) {
	if n <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.st.Day(date).APICalls += n
}

// Reset zeroes the admission counter for one date. Other dates and the
// API call tally are untouched.
func (g *Governor) Reset(date string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.st.Day(date).LeadsAdded = 0
}
