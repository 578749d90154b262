package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/normalize"
)

// ErrNotFound is returned when a lead or run id does not exist.
var ErrNotFound = eris.New("store: not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status   model.LeadStatus `json:"status,omitempty"`
	Industry string           `json:"industry,omitempty"`
	Location string           `json:"location,omitempty"`
	Source   string           `json:"source,omitempty"`
	MinScore float64          `json:"min_score,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// Store defines persistence for leads and discovery runs. Identity-key
// lookups treat empty key variants as never matching.
type Store interface {
	// Leads
	InsertLead(ctx context.Context, lead *model.Lead) error
	ImportLeads(ctx context.Context, leads []model.Lead) (int, error)
	ExistsByKeys(ctx context.Context, keys normalize.Keys) (bool, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error
	CountByStatus(ctx context.Context) (map[model.LeadStatus]int, error)

	// Discovery runs
	CreateRun(ctx context.Context, tenant string) (*model.DiscoveryRun, error)
	FinishRun(ctx context.Context, run *model.DiscoveryRun) error
	ListRuns(ctx context.Context, tenant string, limit int) ([]model.DiscoveryRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
