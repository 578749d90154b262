//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenilani/leadscout/internal/discovery"
	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/state"
)

func TestFormatResult(t *testing.T) {
	res := &discovery.Result{
		Phase:             model.PhaseDone,
		TotalDiscovered:   42,
		NewLeadsSaved:     18,
		DuplicatesSkipped: 15,
		ICPFiltered:       9,
		QueriesUsed:       []string{"hotels in Maui HI", "restaurants in Oahu HI"},
		Date:              "2026-02-10",
		DailyStats:        state.DayStats{LeadsAdded: 18, APICalls: 6},
		Remaining:         32,
		SourceErrors:      map[string]string{"yelp": "status 500"},
	}

	var buf bytes.Buffer
	formatResult(&buf, res)

	output := buf.String()
	assert.Contains(t, output, "Phase:")
	assert.Contains(t, output, "done")
	assert.Contains(t, output, "2026-02-10")
	assert.Contains(t, output, "Total discovered:")
	assert.Contains(t, output, "42")
	assert.Contains(t, output, "New leads saved:")
	assert.Contains(t, output, "18")
	assert.Contains(t, output, "Duplicates skipped:")
	assert.Contains(t, output, "ICP filtered:")
	assert.Contains(t, output, "Remaining today:")
	assert.Contains(t, output, "hotels in Maui HI")
	assert.Contains(t, output, "Source errors:")
	assert.Contains(t, output, "yelp: status 500")
}

func TestFormatResult_QuietPass(t *testing.T) {
	res := &discovery.Result{
		Phase: model.PhaseCapacityExhausted,
		Date:  "2026-02-10",
	}

	var buf bytes.Buffer
	formatResult(&buf, res)

	output := buf.String()
	assert.Contains(t, output, "capacity_exhausted")
	assert.NotContains(t, output, "Queries used:")
	assert.NotContains(t, output, "Source errors:")
}

func TestFormatStatus(t *testing.T) {
	exhausted := time.Date(2026, 2, 9, 16, 45, 0, 0, time.UTC)
	snap := &discovery.StatusSnapshot{
		Tenant:        "lenilani",
		Date:          "2026-02-10",
		Today:         state.DayStats{LeadsAdded: 12, APICalls: 5},
		Remaining:     38,
		DailyLimit:    50,
		SeenCount:     240,
		FilteredCount: 61,
		Sources: map[string]state.SourceGauge{
			"google_maps": {Gauge: 0.25, TotalResults: 120, TotalDuplicates: 30, LastResultAt: exhausted.Add(time.Hour)},
			"yelp":        {Gauge: 0.91, TotalResults: 80, TotalDuplicates: 73, ExhaustedAt: exhausted},
		},
		RecentQueries: []state.QueryUse{
			{Query: "hotels in Maui HI", UsedAt: exhausted},
		},
		StatusCounts: map[model.LeadStatus]int{
			model.LeadStatusNew:       30,
			model.LeadStatusContacted: 4,
		},
		Breakers: map[string]string{
			"google_maps": "closed",
			"yelp":        "open",
		},
	}

	var buf bytes.Buffer
	formatStatus(&buf, snap)

	output := buf.String()
	assert.Contains(t, output, "lenilani")
	assert.Contains(t, output, "12 / 50 (38 remaining)")
	assert.Contains(t, output, "Seen keys:")
	assert.Contains(t, output, "240")
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "BREAKER")
	assert.Contains(t, output, "google_maps")
	assert.Contains(t, output, "0.91")
	assert.Contains(t, output, "open")
	assert.Contains(t, output, "2026-02-09 16:45")
	assert.Contains(t, output, "hotels in Maui HI")
	assert.Contains(t, output, "new")
	assert.Contains(t, output, "30")
}

func TestFormatWhen(t *testing.T) {
	assert.Equal(t, "-", formatWhen(time.Time{}))
	assert.Equal(t, "2026-02-10 08:30", formatWhen(time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)))
}

func TestDiscoverResetCmd_RequiresExactlyOneFlag(t *testing.T) {
	oldDate, oldAll := resetDate, resetAll
	defer func() { resetDate, resetAll = oldDate, oldAll }()

	resetDate, resetAll = "", false
	err := discoverResetCmd.RunE(discoverResetCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --date or --all")

	resetDate, resetAll = "2026-02-10", true
	err = discoverResetCmd.RunE(discoverResetCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --date or --all")
}
