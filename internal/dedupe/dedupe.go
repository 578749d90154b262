// Package dedupe classifies discovered candidates against the engine's
// duplicate memory: the in-memory seen and filtered sets plus the lead
// database. A candidate matches as soon as any one identity key matches.
package dedupe

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lenilani/leadscout/internal/normalize"
	"github.com/lenilani/leadscout/internal/state"
)

// Verdict classifies where a candidate's identity keys were found.
type Verdict string

const (
	// VerdictNew means no key matched anywhere.
	VerdictNew Verdict = "new"
	// VerdictSeen means a key is in the seen set.
	VerdictSeen Verdict = "seen"
	// VerdictFiltered means a key is in the filtered set: the candidate
	// was scored below threshold on an earlier pass.
	VerdictFiltered Verdict = "filtered"
	// VerdictInDatabase means a stored lead already carries a key.
	VerdictInDatabase Verdict = "in_database"
)

// Store is the slice of the lead store the checker needs.
type Store interface {
	ExistsByKeys(ctx context.Context, keys normalize.Keys) (bool, error)
}

// Checker resolves candidates against a tenant's discovery state and the
// lead database. It is not safe for concurrent use; the orchestrator
// classifies candidates from a single goroutine.
type Checker struct {
	st    *state.DiscoveryState
	store Store
}

func NewChecker(st *state.DiscoveryState, store Store) *Checker {
	return &Checker{st: st, store: store}
}

// Check classifies keys in a fixed order. The in-memory sets are consulted
// before the database so repeats never pay a query, and the seen set wins
// over the filtered set when a key somehow appears in both. Keys with no
// non-empty variant never match anything.
func (c *Checker) Check(ctx context.Context, keys normalize.Keys) (Verdict, error) {
	variants := keys.Values()
	if len(variants) == 0 {
		return VerdictNew, nil
	}

	// 1. Seen on this pass or a previous one.
	for _, v := range variants {
		if _, ok := c.st.Seen[v]; ok {
			return VerdictSeen, nil
		}
	}

	// 2. Rejected by an earlier scoring pass.
	for _, v := range variants {
		if _, ok := c.st.Filtered[v]; ok {
			return VerdictFiltered, nil
		}
	}

	// 3. Already stored as a lead.
	exists, err := c.store.ExistsByKeys(ctx, keys)
	if err != nil {
		return "", eris.Wrap(err, "dedupe: lead lookup")
	}
	if exists {
		return VerdictInDatabase, nil
	}
	return VerdictNew, nil
}

// MarkSeen records every key variant in the seen set.
func (c *Checker) MarkSeen(keys normalize.Keys, now time.Time) {
	for _, v := range keys.Values() {
		c.st.Seen[v] = now
	}
}

// MarkFiltered moves every key variant into the filtered set. A key lives
// in exactly one set, so any seen entries for the same variants are
// dropped.
func (c *Checker) MarkFiltered(keys normalize.Keys, now time.Time) {
	for _, v := range keys.Values() {
		delete(c.st.Seen, v)
		c.st.Filtered[v] = now
	}
}

// Unmark removes every key variant from the seen set. Candidates deferred
// by the daily cap are released this way so they stay eligible for the
// next pass.
func (c *Checker) Unmark(keys normalize.Keys) {
	for _, v := range keys.Values() {
		delete(c.st.Seen, v)
	}
}
