package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lenilani/leadscout/internal/discovery"
	"github.com/lenilani/leadscout/internal/model"
)

var discoverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show discovery engine state",
	Long:  "Display today's counters, dedup memory size, per-source exhaustion gauges, recent queries, and lead status counts.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Engine.Status(ctx)
		if err != nil {
			return eris.Wrap(err, "discover status")
		}

		formatStatus(os.Stdout, snap)
		return nil
	},
}

func init() {
	discoverCmd.AddCommand(discoverStatusCmd)
}

func formatStatus(out io.Writer, snap *discovery.StatusSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Tenant:\t%s\n", snap.Tenant)
	_, _ = fmt.Fprintf(w, "Date:\t%s\n", snap.Date)
	_, _ = fmt.Fprintf(w, "Leads today:\t%d / %d (%d remaining)\n", snap.Today.LeadsAdded, snap.DailyLimit, snap.Remaining)
	_, _ = fmt.Fprintf(w, "API calls today:\t%d\n", snap.Today.APICalls)
	_, _ = fmt.Fprintf(w, "Seen keys:\t%d\n", snap.SeenCount)
	_, _ = fmt.Fprintf(w, "Filtered keys:\t%d\n", snap.FilteredCount)
	_ = w.Flush()

	if len(snap.Sources) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SOURCE\tGAUGE\tRESULTS\tDUPLICATES\tLAST RESULT\tEXHAUSTED\tBREAKER")
		_, _ = fmt.Fprintln(w, "------\t-----\t-------\t----------\t-----------\t---------\t-------")

		names := make([]string, 0, len(snap.Sources))
		for name := range snap.Sources {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			g := snap.Sources[name]
			_, _ = fmt.Fprintf(w, "%s\t%.2f\t%d\t%d\t%s\t%s\t%s\n",
				name,
				g.Gauge,
				g.TotalResults,
				g.TotalDuplicates,
				formatWhen(g.LastResultAt),
				formatWhen(g.ExhaustedAt),
				snap.Breakers[name],
			)
		}
		_ = w.Flush()
	}

	if len(snap.RecentQueries) > 0 {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, "Recent queries:")
		for _, q := range snap.RecentQueries {
			_, _ = fmt.Fprintf(out, "  %s  %s\n", q.UsedAt.Format("2006-01-02 15:04"), q.Query)
		}
	}

	if len(snap.StatusCounts) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "LEAD STATUS\tCOUNT")

		statuses := make([]string, 0, len(snap.StatusCounts))
		for status := range snap.StatusCounts {
			statuses = append(statuses, string(status))
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", status, snap.StatusCounts[model.LeadStatus(status)])
		}
		_ = w.Flush()
	}
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
