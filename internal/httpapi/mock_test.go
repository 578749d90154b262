package httpapi

import (
	"context"
	"sync"

	"github.com/lenilani/leadscout/internal/discovery"
	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/normalize"
	"github.com/lenilani/leadscout/internal/store"
)

// stubEngine records calls and returns canned answers. entered/release let
// a test hold a Discover call open to exercise the in-process slot.
type stubEngine struct {
	mu          sync.Mutex
	result      *discovery.Result
	discoverErr error
	snapshot    *discovery.StatusSnapshot
	statusErr   error
	resetErr    error

	filters   []discovery.Filters
	resetDays []string
	resetAlls int

	entered   chan struct{}
	release   chan struct{}
	enterOnce sync.Once
}

func (s *stubEngine) Discover(_ context.Context, f discovery.Filters) (*discovery.Result, error) {
	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.mu.Unlock()
	if s.entered != nil {
		s.enterOnce.Do(func() { close(s.entered) })
	}
	if s.release != nil {
		<-s.release
	}
	return s.result, s.discoverErr
}

func (s *stubEngine) Status(context.Context) (*discovery.StatusSnapshot, error) {
	return s.snapshot, s.statusErr
}

func (s *stubEngine) ResetDay(_ context.Context, date string) error {
	s.mu.Lock()
	s.resetDays = append(s.resetDays, date)
	s.mu.Unlock()
	return s.resetErr
}

func (s *stubEngine) ResetAll(context.Context) error {
	s.mu.Lock()
	s.resetAlls++
	s.mu.Unlock()
	return s.resetErr
}

func (s *stubEngine) discoverCalls() []discovery.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]discovery.Filters(nil), s.filters...)
}

// stubLeadStore is a minimal in-memory store.Store for handler tests.
type stubLeadStore struct {
	leads      map[string]*model.Lead
	list       []model.Lead
	listErr    error
	lastFilter store.LeadFilter
	updated    map[string]model.LeadStatus
	updateErr  error
	pingErr    error
}

func (s *stubLeadStore) InsertLead(context.Context, *model.Lead) error { return nil }

func (s *stubLeadStore) ImportLeads(context.Context, []model.Lead) (int, error) { return 0, nil }

func (s *stubLeadStore) ExistsByKeys(context.Context, normalize.Keys) (bool, error) {
	return false, nil
}

func (s *stubLeadStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	if lead, ok := s.leads[id]; ok {
		return lead, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubLeadStore) ListLeads(_ context.Context, filter store.LeadFilter) ([]model.Lead, error) {
	s.lastFilter = filter
	return s.list, s.listErr
}

func (s *stubLeadStore) UpdateLeadStatus(_ context.Context, id string, status model.LeadStatus) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.leads[id]; !ok {
		return store.ErrNotFound
	}
	if s.updated == nil {
		s.updated = make(map[string]model.LeadStatus)
	}
	s.updated[id] = status
	return nil
}

func (s *stubLeadStore) CountByStatus(context.Context) (map[model.LeadStatus]int, error) {
	return nil, nil
}

func (s *stubLeadStore) CreateRun(_ context.Context, tenant string) (*model.DiscoveryRun, error) {
	return &model.DiscoveryRun{ID: "run-1", Tenant: tenant}, nil
}

func (s *stubLeadStore) FinishRun(context.Context, *model.DiscoveryRun) error { return nil }

func (s *stubLeadStore) ListRuns(context.Context, string, int) ([]model.DiscoveryRun, error) {
	return nil, nil
}

func (s *stubLeadStore) Migrate(context.Context) error { return nil }

func (s *stubLeadStore) Ping(context.Context) error { return s.pingErr }

func (s *stubLeadStore) Close() error { return nil }
