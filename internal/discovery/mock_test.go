package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/normalize"
	"github.com/lenilani/leadscout/internal/state"
	"github.com/lenilani/leadscout/internal/store"
)

// stubSource implements source.Source with canned results. Search may be
// called from several fetch workers, so the call log is locked.
type stubSource struct {
	name     string
	results  map[string][]model.Candidate // per-query override
	fallback []model.Candidate
	err      error

	mu    sync.Mutex
	calls []string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(_ context.Context, query string) ([]model.Candidate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if cands, ok := s.results[query]; ok {
		return cands, nil
	}
	return s.fallback, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// mockLeadStore implements store.Store for testing.
type mockLeadStore struct {
	inserted     []model.Lead
	insertErr    error
	existing     map[string]bool // namespaced key values already in the db
	existsErr    error
	createRunErr error
	runs         []*model.DiscoveryRun
	finished     []model.DiscoveryRun
	statusCounts map[model.LeadStatus]int
}

func (m *mockLeadStore) InsertLead(_ context.Context, lead *model.Lead) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if lead.ID == "" {
		lead.ID = fmt.Sprintf("lead-%d", len(m.inserted)+1)
	}
	m.inserted = append(m.inserted, *lead)
	return nil
}

func (m *mockLeadStore) ImportLeads(_ context.Context, leads []model.Lead) (int, error) {
	m.inserted = append(m.inserted, leads...)
	return len(leads), nil
}

func (m *mockLeadStore) ExistsByKeys(_ context.Context, keys normalize.Keys) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, v := range keys.Values() {
		if m.existing[v] {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLeadStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	for i := range m.inserted {
		if m.inserted[i].ID == id {
			return &m.inserted[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockLeadStore) ListLeads(_ context.Context, _ store.LeadFilter) ([]model.Lead, error) {
	return m.inserted, nil
}

func (m *mockLeadStore) UpdateLeadStatus(_ context.Context, _ string, _ model.LeadStatus) error {
	return nil
}

func (m *mockLeadStore) CountByStatus(_ context.Context) (map[model.LeadStatus]int, error) {
	if m.statusCounts != nil {
		return m.statusCounts, nil
	}
	counts := make(map[model.LeadStatus]int)
	for _, l := range m.inserted {
		counts[l.Status]++
	}
	return counts, nil
}

func (m *mockLeadStore) CreateRun(_ context.Context, tenant string) (*model.DiscoveryRun, error) {
	if m.createRunErr != nil {
		return nil, m.createRunErr
	}
	run := &model.DiscoveryRun{
		ID:        fmt.Sprintf("run-%d", len(m.runs)+1),
		Tenant:    tenant,
		Phase:     model.PhasePlanning,
		StartedAt: time.Now().UTC(),
	}
	m.runs = append(m.runs, run)
	return run, nil
}

func (m *mockLeadStore) FinishRun(_ context.Context, run *model.DiscoveryRun) error {
	m.finished = append(m.finished, *run)
	return nil
}

func (m *mockLeadStore) ListRuns(_ context.Context, _ string, _ int) ([]model.DiscoveryRun, error) {
	return m.finished, nil
}

func (m *mockLeadStore) Migrate(_ context.Context) error { return nil }
func (m *mockLeadStore) Ping(_ context.Context) error    { return nil }
func (m *mockLeadStore) Close() error                    { return nil }

// mockStateStore implements state.Store with the same version semantics as
// the real stores: loads hand out a fresh copy, saves compare-and-swap on
// the loaded version. afterLoadDisc lets a test interleave a concurrent
// writer between load and save.
type mockStateStore struct {
	disc        *state.DiscoveryState
	rot         *state.RotationState
	discVersion int64
	rotVersion  int64

	loadDiscErr   error
	loadRotErr    error
	saveDiscErr   error
	saveRotErr    error
	afterLoadDisc func()

	discSaves int
	rotSaves  int
	resets    int
}

func (m *mockStateStore) LoadDiscovery(_ context.Context, _ string) (*state.DiscoveryState, error) {
	if m.loadDiscErr != nil {
		return nil, m.loadDiscErr
	}
	var st *state.DiscoveryState
	if m.disc == nil {
		st = state.NewDiscoveryState()
	} else {
		st = cloneDiscovery(m.disc)
	}
	if m.afterLoadDisc != nil {
		m.afterLoadDisc()
	}
	return st, nil
}

func (m *mockStateStore) SaveDiscovery(_ context.Context, _ string, st *state.DiscoveryState) error {
	if m.saveDiscErr != nil {
		return m.saveDiscErr
	}
	if st.Version != m.discVersion {
		return state.ErrVersionConflict
	}
	m.discVersion++
	st.Version = m.discVersion
	m.disc = cloneDiscovery(st)
	m.discSaves++
	return nil
}

func (m *mockStateStore) LoadRotation(_ context.Context, _ string) (*state.RotationState, error) {
	if m.loadRotErr != nil {
		return nil, m.loadRotErr
	}
	if m.rot == nil {
		return state.NewRotationState(), nil
	}
	return cloneRotation(m.rot), nil
}

func (m *mockStateStore) SaveRotation(_ context.Context, _ string, st *state.RotationState) error {
	if m.saveRotErr != nil {
		return m.saveRotErr
	}
	if st.Version != m.rotVersion {
		return state.ErrVersionConflict
	}
	m.rotVersion++
	st.Version = m.rotVersion
	m.rot = cloneRotation(st)
	m.rotSaves++
	return nil
}

func (m *mockStateStore) Reset(_ context.Context, _ string) error {
	m.disc = nil
	m.rot = nil
	m.discVersion = 0
	m.rotVersion = 0
	m.resets++
	return nil
}

func cloneDiscovery(st *state.DiscoveryState) *state.DiscoveryState {
	c := state.NewDiscoveryState()
	for k, v := range st.Seen {
		c.Seen[k] = v
	}
	for k, v := range st.Filtered {
		c.Filtered[k] = v
	}
	for k, v := range st.Daily {
		d := *v
		c.Daily[k] = &d
	}
	c.Version = st.Version
	return c
}

func cloneRotation(st *state.RotationState) *state.RotationState {
	c := state.NewRotationState()
	c.Log = append(c.Log, st.Log...)
	for name, g := range st.Sources {
		gc := *g
		c.Sources[name] = &gc
	}
	for k, v := range st.IndustryCursors {
		c.IndustryCursors[k] = v
	}
	c.LocationCursor = st.LocationCursor
	c.ModifierCursor = st.ModifierCursor
	c.Version = st.Version
	return c
}
