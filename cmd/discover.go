package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lenilani/leadscout/internal/discovery"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run and inspect lead discovery passes",
	Long:  "Run a discovery pass against the configured sources, inspect engine state, preview upcoming queries, and reset daily counters.",
}

var (
	discoverIndustry string
	discoverIsland   string
	discoverMaxLeads int
)

var discoverRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one discovery pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.Discover(ctx, discovery.Filters{
			Industry: discoverIndustry,
			Island:   discoverIsland,
			MaxLeads: discoverMaxLeads,
		})
		if err != nil {
			return eris.Wrap(err, "discover run")
		}

		formatResult(os.Stdout, res)
		return nil
	},
}

func init() {
	discoverRunCmd.Flags().StringVar(&discoverIndustry, "industry", "", "narrow queries to one industry (e.g. hospitality, healthcare)")
	discoverRunCmd.Flags().StringVar(&discoverIsland, "island", "", "narrow queries to one island (e.g. Oahu, Maui)")
	discoverRunCmd.Flags().IntVar(&discoverMaxLeads, "max-leads", 0, "cap admissions for this pass (0 = daily remainder)")

	discoverCmd.AddCommand(discoverRunCmd)
	rootCmd.AddCommand(discoverCmd)
}

// formatResult writes a pass summary to w.
func formatResult(out io.Writer, res *discovery.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Phase:\t%s\n", res.Phase)
	_, _ = fmt.Fprintf(w, "Date:\t%s\n", res.Date)
	_, _ = fmt.Fprintf(w, "Total discovered:\t%d\n", res.TotalDiscovered)
	_, _ = fmt.Fprintf(w, "New leads saved:\t%d\n", res.NewLeadsSaved)
	_, _ = fmt.Fprintf(w, "Duplicates skipped:\t%d\n", res.DuplicatesSkipped)
	_, _ = fmt.Fprintf(w, "ICP filtered:\t%d\n", res.ICPFiltered)
	_, _ = fmt.Fprintf(w, "Remaining today:\t%d\n", res.Remaining)
	_ = w.Flush()

	if len(res.QueriesUsed) > 0 {
		_, _ = fmt.Fprintln(out, "Queries used:")
		for _, q := range res.QueriesUsed {
			_, _ = fmt.Fprintf(out, "  %s\n", q)
		}
	}
	if len(res.SourceErrors) > 0 {
		_, _ = fmt.Fprintln(out, "Source errors:")
		names := make([]string, 0, len(res.SourceErrors))
		for name := range res.SourceErrors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", name, res.SourceErrors[name])
		}
	}
}
