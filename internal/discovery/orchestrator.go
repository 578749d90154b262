// Package discovery runs a lead discovery pass end to end: plan queries
// from the rotation state, fan out to the enabled sources, weed out
// duplicates, score the survivors, and admit the best under the daily cap.
// One pass owns the persisted state from load to save; overlapping passes
// are resolved by the state store's version check, so the second writer
// loses cleanly instead of double-admitting.
package discovery

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lenilani/leadscout/internal/capacity"
	"github.com/lenilani/leadscout/internal/dedupe"
	"github.com/lenilani/leadscout/internal/icp"
	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/normalize"
	"github.com/lenilani/leadscout/internal/resilience"
	"github.com/lenilani/leadscout/internal/rotation"
	"github.com/lenilani/leadscout/internal/source"
	"github.com/lenilani/leadscout/internal/state"
	"github.com/lenilani/leadscout/internal/store"
)

// Config carries the per-tenant discovery tunables.
type Config struct {
	// Tenant scopes all persisted state. Default: "default".
	Tenant string

	// DailyLimit caps leads admitted per tenant-local calendar day.
	// Default: 50.
	DailyLimit int

	// Timezone fixes the tenant's calendar day. Nil means UTC.
	Timezone *time.Location

	// FetchConcurrency bounds parallel source calls. Default: 4.
	FetchConcurrency int

	// SourceTimeout bounds one source call including retries. Default: 30s.
	SourceTimeout time.Duration

	// QueryBatch is how many queries a pass dispatches. Default: 5.
	QueryBatch int

	// Retention is how long dedup memory is kept. Default: 30 days.
	Retention time.Duration

	Rotation rotation.Config
	Retry    resilience.RetryConfig
	Breaker  resilience.CircuitBreakerConfig
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Tenant == "" {
		cfg.Tenant = "default"
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 50
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 30 * time.Second
	}
	if cfg.QueryBatch <= 0 {
		cfg.QueryBatch = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return cfg
}

// Deps are the collaborators one orchestrator instance works with.
type Deps struct {
	Profile *icp.Profile
	Sources []source.Source
	Leads   store.Store
	States  state.Store
	Config  Config
}

// Filters narrow one pass. Zero values leave the rotation space whole;
// filters only ever restrict it.
type Filters struct {
	Industry string `json:"industry,omitempty"`
	Island   string `json:"island,omitempty"`
	MaxLeads int    `json:"max_leads,omitempty"`
}

// Result summarizes one discovery pass.
type Result struct {
	Phase             model.Phase       `json:"phase"`
	TotalDiscovered   int               `json:"total_discovered"`
	NewLeadsSaved     int               `json:"new_leads_saved"`
	DuplicatesSkipped int               `json:"duplicates_skipped"`
	ICPFiltered       int               `json:"icp_filtered"`
	QueriesUsed       []string          `json:"queries_used"`
	Date              string            `json:"date"`
	DailyStats        state.DayStats    `json:"daily_stats"`
	Remaining         int               `json:"remaining_capacity"`
	SourceErrors      map[string]string `json:"source_errors,omitempty"`
}

// Orchestrator coordinates discovery passes for one tenant.
type Orchestrator struct {
	deps     Deps
	cfg      Config
	breakers *resilience.SourceBreakers
	now      func() time.Time
}

type Option func(*Orchestrator)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(deps Deps, opts ...Option) *Orchestrator {
	cfg := applyConfigDefaults(deps.Config)
	o := &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		breakers: resilience.NewSourceBreakers(cfg.Breaker),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Discover runs one pass. Structural failures come back as errors:
// unreadable state, a missing profile, lead-store errors during dedup, or
// losing the version check on save. Source failures and empty results do
// not; they are folded into a normal Result.
func (o *Orchestrator) Discover(ctx context.Context, f Filters) (*Result, error) {
	log := zap.L().With(
		zap.String("component", "discovery"),
		zap.String("tenant", o.cfg.Tenant),
	)

	if o.deps.Profile == nil {
		return nil, eris.New("discovery: icp profile not configured")
	}

	// A corrupt state document is fatal. Proceeding with an assumed-empty
	// state would erase the dedup memory and re-admit every known lead.
	disc, err := o.deps.States.LoadDiscovery(ctx, o.cfg.Tenant)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: load discovery state")
	}
	rot, err := o.deps.States.LoadRotation(ctx, o.cfg.Tenant)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: load rotation state")
	}

	run, err := o.deps.Leads.CreateRun(ctx, o.cfg.Tenant)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: create run")
	}

	res, passErr := o.pass(ctx, log, f, disc, rot, run)
	if passErr != nil {
		run.Phase = model.PhaseFailed
		run.Error = passErr.Error()
	}
	if err := o.deps.Leads.FinishRun(ctx, run); err != nil {
		log.Error("finish run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	return res, passErr
}

func (o *Orchestrator) pass(ctx context.Context, log *zap.Logger, f Filters, disc *state.DiscoveryState, rot *state.RotationState, run *model.DiscoveryRun) (*Result, error) {
	gov := capacity.NewGovernor(disc, o.cfg.DailyLimit, o.cfg.Timezone, capacity.WithNow(o.now))
	checker := dedupe.NewChecker(disc, o.deps.Leads)
	planner := rotation.NewPlanner(rot, o.cfg.Rotation, rotation.WithNow(o.now))
	today := gov.Today()

	// PLANNING. Zero remaining capacity ends the pass before any source
	// call is paid for.
	run.Phase = model.PhasePlanning
	budget := gov.Remaining(today)
	if f.MaxLeads > 0 && f.MaxLeads < budget {
		budget = f.MaxLeads
	}
	if budget == 0 {
		run.Phase = model.PhaseCapacityExhausted
		log.Info("daily capacity exhausted",
			zap.String("date", today),
			zap.Int("limit", gov.Limit()),
		)
		return o.result(model.PhaseCapacityExhausted, run, disc, gov, today, nil, nil), nil
	}

	// FETCHING.
	run.Phase = model.PhaseFetching
	names := make([]string, 0, len(o.deps.Sources))
	byName := make(map[string]source.Source, len(o.deps.Sources))
	for _, s := range o.deps.Sources {
		names = append(names, s.Name())
		byName[s.Name()] = s
	}
	eligible := planner.EligibleSources(names)
	if len(eligible) < len(names) {
		log.Info("sources resting",
			zap.Strings("eligible", eligible),
			zap.Int("configured", len(names)),
		)
	}

	var queries []string
	if len(eligible) > 0 {
		queries = planner.NextQueries(f.Industry, f.Island, o.cfg.QueryBatch)
	}

	outcomes, apiCalls, err := o.fetch(ctx, log, byName, eligible, queries)
	if err != nil {
		return nil, err
	}

	srcErrs := make(map[string]string)
	okCalls := make(map[string]int)
	fetchedBySource := make(map[string]int)
	var discovered []model.Candidate
	for _, out := range outcomes {
		if out.err != nil {
			srcErrs[out.source] = out.err.Error()
			continue
		}
		okCalls[out.source]++
		fetchedBySource[out.source] += len(out.candidates)
		discovered = append(discovered, out.candidates...)
	}
	run.TotalDiscovered = len(discovered)

	// FILTERING. From here on the coordinator goroutine owns every state
	// mutation; the fetch workers are done.
	run.Phase = model.PhaseFiltering
	now := o.now()
	type ranked struct {
		cand      model.Candidate
		keys      normalize.Keys
		score     float64
		breakdown []model.ScoreFactor
	}
	var (
		fresh       []ranked
		duplicates  int
		icpFiltered int
	)
	dupBySource := make(map[string]int)
	for _, c := range discovered {
		keys := normalize.ForCandidate(c)
		verdict, err := checker.Check(ctx, keys)
		if err != nil {
			return nil, eris.Wrap(err, "discovery: dedup check")
		}
		switch verdict {
		case dedupe.VerdictNew:
			checker.MarkSeen(keys, now)
			fresh = append(fresh, ranked{cand: c, keys: keys})
		case dedupe.VerdictFiltered:
			// Rejected on merit in an earlier pass; still a duplicate as
			// far as source exhaustion is concerned.
			icpFiltered++
			dupBySource[c.Source]++
		default:
			duplicates++
			dupBySource[c.Source]++
		}
	}

	// SCORING.
	run.Phase = model.PhaseScoring
	var qualified []ranked
	for i := range fresh {
		score, breakdown := o.deps.Profile.Score(&fresh[i].cand)
		if !o.deps.Profile.Admits(score) {
			checker.MarkFiltered(fresh[i].keys, now)
			icpFiltered++
			continue
		}
		fresh[i].score = score
		fresh[i].breakdown = breakdown
		qualified = append(qualified, fresh[i])
	}

	// ADMITTING. The stable sort keeps discovery order between equal
	// scores, so identical inputs admit identically.
	run.Phase = model.PhaseAdmitting
	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].score > qualified[j].score
	})
	want := len(qualified)
	if f.MaxLeads > 0 && want > f.MaxLeads {
		want = f.MaxLeads
	}
	granted := gov.TryAdmit(today, want)
	// Candidates deferred by the cap were never rejected on merit. They
	// leave the seen set so the next pass can admit them.
	for _, d := range qualified[granted:] {
		checker.Unmark(d.keys)
	}
	admitted := qualified[:granted]

	// PERSISTING. The state documents go first: winning the version check
	// is what authorizes the inserts, so two overlapping passes can never
	// jointly admit past the daily limit.
	run.Phase = model.PhasePersisting
	planner.RecordUsed(queries)
	for _, name := range names {
		if okCalls[name] == 0 {
			continue
		}
		planner.RecordSourceResult(name, fetchedBySource[name], dupBySource[name])
	}
	gov.RecordAPICalls(today, apiCalls)
	if pruned := disc.Prune(now, o.cfg.Retention); pruned > 0 {
		log.Debug("pruned state entries", zap.Int("count", pruned))
	}

	if err := o.deps.States.SaveDiscovery(ctx, o.cfg.Tenant, disc); err != nil {
		return nil, eris.Wrap(err, "discovery: save discovery state")
	}
	if err := o.deps.States.SaveRotation(ctx, o.cfg.Tenant, rot); err != nil {
		return nil, eris.Wrap(err, "discovery: save rotation state")
	}

	saved := 0
	for _, a := range admitted {
		lead := leadFrom(a.cand, a.keys, a.score, a.breakdown, now)
		if err := o.deps.Leads.InsertLead(ctx, lead); err != nil {
			log.Error("insert lead failed",
				zap.String("company", a.cand.Name),
				zap.Error(err),
			)
			continue
		}
		saved++
	}

	run.Phase = model.PhaseDone
	run.NewLeadsSaved = saved
	run.DuplicatesSkipped = duplicates
	run.ICPFiltered = icpFiltered
	run.QueriesUsed = len(queries)

	log.Info("discovery pass complete",
		zap.Int("discovered", len(discovered)),
		zap.Int("saved", saved),
		zap.Int("duplicates", duplicates),
		zap.Int("icp_filtered", icpFiltered),
		zap.Int("queries", len(queries)),
		zap.Int("api_calls", apiCalls),
	)

	return o.result(model.PhaseDone, run, disc, gov, today, queries, srcErrs), nil
}

func (o *Orchestrator) result(phase model.Phase, run *model.DiscoveryRun, disc *state.DiscoveryState, gov *capacity.Governor, date string, queries []string, srcErrs map[string]string) *Result {
	return &Result{
		Phase:             phase,
		TotalDiscovered:   run.TotalDiscovered,
		NewLeadsSaved:     run.NewLeadsSaved,
		DuplicatesSkipped: run.DuplicatesSkipped,
		ICPFiltered:       run.ICPFiltered,
		QueriesUsed:       queries,
		Date:              date,
		DailyStats:        *disc.Day(date),
		Remaining:         gov.Remaining(date),
		SourceErrors:      srcErrs,
	}
}

type fetchOutcome struct {
	source     string
	query      string
	candidates []model.Candidate
	err        error
}

// fetch runs every eligible source against every planned query, bounded
// by FetchConcurrency, each call through that source's circuit breaker
// with retry inside. Individual failures land in the outcome slice; only
// caller cancellation aborts the batch. Outcomes keep a fixed order so
// reruns see candidates in the same sequence no matter how the workers
// interleave.
func (o *Orchestrator) fetch(ctx context.Context, log *zap.Logger, byName map[string]source.Source, eligible, queries []string) ([]fetchOutcome, int, error) {
	outcomes := make([]fetchOutcome, 0, len(eligible)*len(queries))
	for _, name := range eligible {
		for _, q := range queries {
			outcomes = append(outcomes, fetchOutcome{source: name, query: q})
		}
	}
	if len(outcomes) == 0 {
		return nil, 0, nil
	}

	var apiCalls atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.FetchConcurrency)

	for i := range outcomes {
		out := &outcomes[i]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			src := byName[out.source]
			sLog := log.With(
				zap.String("source", out.source),
				zap.String("query", out.query),
			)

			callCtx, cancel := context.WithTimeout(gctx, o.cfg.SourceTimeout)
			defer cancel()

			retryCfg := o.cfg.Retry
			retryCfg.OnRetry = resilience.RetryLogger(out.source, "search")

			cands, err := resilience.ExecuteVal(callCtx, o.breakers.Get(out.source), func(ctx context.Context) ([]model.Candidate, error) {
				return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]model.Candidate, error) {
					apiCalls.Add(1)
					return src.Search(ctx, out.query)
				})
			})
			if err != nil {
				if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
					sLog.Warn("source timed out", zap.Duration("timeout", o.cfg.SourceTimeout))
				} else {
					sLog.Warn("source search failed", zap.Error(err))
				}
				out.err = err
				return nil // don't abort other fetches on individual failure
			}
			out.candidates = cands
			sLog.Debug("source search complete", zap.Int("results", len(cands)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, eris.Wrap(err, "discovery: fetch aborted")
	}
	return outcomes, int(apiCalls.Load()), nil
}

// leadFrom builds the persisted record for an admitted candidate.
func leadFrom(c model.Candidate, keys normalize.Keys, score float64, breakdown []model.ScoreFactor, now time.Time) *model.Lead {
	return &model.Lead{
		CompanyName:    c.Name,
		Website:        c.Website,
		ContactEmail:   c.Email,
		ContactPhone:   c.Phone,
		Industry:       c.Industry,
		Location:       c.Location,
		EmployeeCount:  c.EmployeeCount,
		PainPoints:     c.PainPoints,
		TechStack:      c.TechStack,
		Score:          score,
		ScoreBreakdown: breakdown,
		Status:         model.LeadStatusNew,
		Source:         c.Source,
		NameKey:        keys.Name,
		WebsiteKey:     keys.Website,
		PhoneKey:       keys.Phone,
		CreatedAt:      now.UTC(),
	}
}
