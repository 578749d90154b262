// Package source defines the discovery sources that turn a search query
// into raw business candidates. Sources do no dedup or scoring; they map
// provider records into model.Candidate and leave judgment to the engine.
package source

import (
	"context"

	"github.com/lenilani/leadscout/internal/model"
)

// Source is a single lead provider (google_maps, yelp, directory).
type Source interface {
	// Name returns the unique source identifier used in config, state
	// gauges, and result counts.
	Name() string

	// Search runs one query against the provider and returns raw
	// candidates. Implementations rate-limit and classify their own
	// transport failures; callers decide whether to retry.
	Search(ctx context.Context, query string) ([]model.Candidate, error)
}
