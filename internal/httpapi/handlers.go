package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lenilani/leadscout/internal/discovery"
	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/state"
	"github.com/lenilani/leadscout/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1MB

type discoverResponse struct {
	Message string `json:"message"`
	*discovery.Result
}

func handleDiscover(deps Deps, busy *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !busy.CompareAndSwap(false, true) {
			writeError(w, http.StatusConflict, "a discovery pass is already running")
			return
		}
		defer busy.Store(false)

		f := discovery.Filters{
			Industry: r.URL.Query().Get("industry"),
			Island:   r.URL.Query().Get("island"),
		}
		if s := r.URL.Query().Get("max_leads"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "max_leads must be a non-negative integer")
				return
			}
			f.MaxLeads = n
		}

		res, err := deps.Engine.Discover(r.Context(), f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "discovery failed: %v", err)
			return
		}

		msg := "Lead discovery completed"
		if res.Phase == model.PhaseCapacityExhausted {
			msg = "Daily capacity exhausted"
		}
		writeJSON(w, http.StatusOK, discoverResponse{Message: msg, Result: res})
	}
}

func handleListLeads(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.LeadFilter{
			Industry: r.URL.Query().Get("industry"),
			Location: r.URL.Query().Get("island"),
			Source:   r.URL.Query().Get("source"),
			Limit:    parseIntParam(r, "limit", 50, 500),
			Offset:   parseIntParam(r, "offset", 0, 0),
		}
		if s := r.URL.Query().Get("status"); s != "" {
			status, err := model.ParseLeadStatus(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "unknown status %q", s)
				return
			}
			filter.Status = status
		}
		if s := r.URL.Query().Get("min_score"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "min_score must be a number")
				return
			}
			filter.MinScore = v
		}

		leads, err := deps.Leads.ListLeads(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list leads: %v", err)
			return
		}
		if leads == nil {
			leads = []model.Lead{}
		}
		writeJSON(w, http.StatusOK, leads)
	}
}

func handleGetLead(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		lead, err := deps.Leads.GetLead(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "get lead: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

func handleUpdateLeadStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		status, err := model.ParseLeadStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown status %q", req.Status)
			return
		}

		err = deps.Leads.UpdateLeadStatus(r.Context(), id, status)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "update status: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id":     id,
			"status": string(status),
		})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := deps.Engine.Status(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "discovery stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Date string `json:"date"`
			All  bool   `json:"all"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		switch {
		case req.All:
			if err := deps.Engine.ResetAll(r.Context()); err != nil {
				writeError(w, http.StatusInternalServerError, "reset all: %v", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "scope": "all"})

		case req.Date != "":
			if _, err := time.Parse(state.DateFormat, req.Date); err != nil {
				writeError(w, http.StatusBadRequest, "invalid date %q, want YYYY-MM-DD", req.Date)
				return
			}
			if err := deps.Engine.ResetDay(r.Context(), req.Date); err != nil {
				writeError(w, http.StatusInternalServerError, "reset day: %v", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "date": req.Date})

		default:
			writeError(w, http.StatusBadRequest, "either date or all is required")
		}
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Leads.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unreachable: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("httpapi: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
