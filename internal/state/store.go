package state

import (
	"context"

	"github.com/rotisserie/eris"
)

// Document kinds stored in engine_state.
const (
	kindDiscovery = "discovery"
	kindRotation  = "rotation"
)

// ErrVersionConflict means another writer saved the document since it was
// loaded. The caller must abandon the pass rather than overwrite.
var ErrVersionConflict = eris.New("state: version conflict")

// Store persists the discovery and rotation aggregates per tenant as
// versioned JSON documents. Load on a missing row returns an empty aggregate
// with Version 0; an unreadable document is an error, never silently empty.
// Save performs a compare-and-swap on the loaded version.
type Store interface {
	LoadDiscovery(ctx context.Context, tenant string) (*DiscoveryState, error)
	SaveDiscovery(ctx context.Context, tenant string, st *DiscoveryState) error
	LoadRotation(ctx context.Context, tenant string) (*RotationState, error)
	SaveRotation(ctx context.Context, tenant string, st *RotationState) error

	// Reset deletes both documents for a tenant. Operator use only: it
	// erases dedup memory.
	Reset(ctx context.Context, tenant string) error
}
