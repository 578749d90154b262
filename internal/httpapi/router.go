// Package httpapi serves the discovery engine and the lead book over HTTP.
// Routes mirror the CLI surface: one pass at a time through the in-process
// slot, reads straight off the store and state documents.
package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/lenilani/leadscout/internal/discovery"
	"github.com/lenilani/leadscout/internal/store"
)

// Engine is the slice of the orchestrator the API consumes.
type Engine interface {
	Discover(ctx context.Context, f discovery.Filters) (*discovery.Result, error)
	Status(ctx context.Context) (*discovery.StatusSnapshot, error)
	ResetDay(ctx context.Context, date string) error
	ResetAll(ctx context.Context) error
}

// Deps carries everything the router needs. Origins feeds the CORS
// middleware; leave it empty to serve same-origin only.
type Deps struct {
	Engine  Engine
	Leads   store.Store
	Origins []string
}

// NewRouter assembles the chi router with logging, panic recovery, and CORS.
func NewRouter(deps Deps) http.Handler {
	log := zap.L().With(zap.String("component", "httpapi"))

	r := chi.NewRouter()
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	if len(deps.Origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.Origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", handleHealth(deps))

	// One discovery pass per process at a time. Overlap across processes is
	// the state store's version check; overlap within this one stops here.
	var discovering atomic.Bool

	r.Route("/api", func(r chi.Router) {
		r.Post("/leads/discover", handleDiscover(deps, &discovering))
		r.Get("/leads", handleListLeads(deps))
		r.Get("/leads/{id}", handleGetLead(deps))
		r.Put("/leads/{id}/status", handleUpdateLeadStatus(deps))
		r.Get("/discovery/stats", handleStats(deps))
		r.Post("/discovery/reset", handleReset(deps))
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
