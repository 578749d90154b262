package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lenilani/leadscout/internal/discovery"
	"github.com/lenilani/leadscout/internal/fetcher"
	"github.com/lenilani/leadscout/internal/icp"
	"github.com/lenilani/leadscout/internal/resilience"
	"github.com/lenilani/leadscout/internal/rotation"
	"github.com/lenilani/leadscout/internal/source"
	"github.com/lenilani/leadscout/internal/state"
	"github.com/lenilani/leadscout/internal/store"
	"github.com/lenilani/leadscout/pkg/serpapi"
)

// discoveryEnv holds the wired store, state store, and orchestrator used by
// the discover and serve commands.
type discoveryEnv struct {
	Store  store.Store
	States state.Store
	Engine *discovery.Orchestrator
}

// Close releases resources held by the environment.
func (e *discoveryEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DSN, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initStates builds the engine-state store over the lead store's own
// database handle, so both live in one schema and one transaction domain.
func initStates(st store.Store) (state.Store, error) {
	switch s := st.(type) {
	case *store.PostgresStore:
		return state.NewPostgres(s.Pool()), nil
	case *store.SQLiteStore:
		return state.NewSQLite(s.DB()), nil
	default:
		return nil, eris.Errorf("no engine-state backend for store %T", st)
	}
}

func initSources() ([]source.Source, error) {
	reg := source.NewRegistry()

	needsSerpAPI, needsDirectory := false, false
	for _, name := range cfg.Discovery.Sources {
		switch name {
		case "google_maps", "yelp":
			needsSerpAPI = true
		case "directory":
			needsDirectory = true
		}
	}
	if needsSerpAPI {
		client := serpapi.NewClient(cfg.SerpAPI.APIKey,
			serpapi.WithBaseURL(cfg.SerpAPI.BaseURL),
			serpapi.WithRateLimit(cfg.SerpAPI.RateLimit),
			serpapi.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.SerpAPI.TimeoutSecs) * time.Second,
			}),
		)
		reg.Register(source.NewGoogleMaps(client, ""))
		reg.Register(source.NewYelp(client, ""))
	}
	if needsDirectory {
		// Registered even when the URL is unset so read-only commands can
		// still select the name; run modes validate the URL up front.
		httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
		ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			User:     cfg.Directory.FTPUser,
			Password: cfg.Directory.FTPPassword,
		})
		reg.Register(source.NewDirectory(cfg.Directory.URL, httpFetcher, ftpFetcher))
	}

	return reg.Select(cfg.Discovery.Sources)
}

// initEngine validates config for the given mode and wires the full
// discovery environment. Callers should defer env.Close().
func initEngine(ctx context.Context, mode string) (*discoveryEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	states, err := initStates(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	profile, err := icp.Load(cfg.ICP.Profile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	sources, err := initSources()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engine := discovery.New(discovery.Deps{
		Profile: profile,
		Sources: sources,
		Leads:   st,
		States:  states,
		Config: discovery.Config{
			Tenant:           cfg.Discovery.Tenant,
			DailyLimit:       cfg.Discovery.DailyLimit,
			Timezone:         loc,
			FetchConcurrency: cfg.Discovery.FetchConcurrency,
			SourceTimeout:    time.Duration(cfg.Discovery.SourceTimeoutSecs) * time.Second,
			QueryBatch:       cfg.Discovery.QueryBatch,
			Retention:        time.Duration(cfg.Discovery.RetentionDays) * 24 * time.Hour,
			Rotation: rotation.Config{
				Window:    time.Duration(cfg.Discovery.RotationWindowDays) * 24 * time.Hour,
				Threshold: cfg.Discovery.ExhaustionThreshold,
				Rest:      time.Duration(cfg.Discovery.SourceRestHours) * time.Hour,
			},
			Retry:   resilience.FromRetryConfig(cfg.Discovery.RetryAttempts, cfg.Discovery.RetryBackoffMs, cfg.Discovery.RetryMaxBackoffMs),
			Breaker: resilience.FromCircuitConfig(cfg.Discovery.BreakerThreshold, cfg.Discovery.BreakerResetSecs),
		},
	})

	return &discoveryEnv{Store: st, States: states, Engine: engine}, nil
}
