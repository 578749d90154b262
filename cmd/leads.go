package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lenilani/leadscout/internal/model"
	"github.com/lenilani/leadscout/internal/store"
)

var (
	leadsStatus   string
	leadsIndustry string
	leadsIsland   string
	leadsSource   string
	leadsMinScore float64
	leadsLimit    int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads in the lead book",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		filter := store.LeadFilter{
			Industry: leadsIndustry,
			Location: leadsIsland,
			Source:   leadsSource,
			MinScore: leadsMinScore,
			Limit:    leadsLimit,
		}
		if leadsStatus != "" {
			status, err := model.ParseLeadStatus(leadsStatus)
			if err != nil {
				return err
			}
			filter.Status = status
		}

		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeads(os.Stdout, leads)
		return nil
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by status (new, researched, contacted, qualified, converted)")
	leadsCmd.Flags().StringVar(&leadsIndustry, "industry", "", "filter by industry")
	leadsCmd.Flags().StringVar(&leadsIsland, "island", "", "filter by location")
	leadsCmd.Flags().StringVar(&leadsSource, "source", "", "filter by discovery source (google_maps, yelp, directory, import)")
	leadsCmd.Flags().Float64Var(&leadsMinScore, "min-score", 0, "minimum ICP score")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "max number of leads to display")
	rootCmd.AddCommand(leadsCmd)
}

// formatLeads writes a tabular list of leads to w.
func formatLeads(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSCORE\tCOMPANY\tINDUSTRY\tLOCATION\tSTATUS\tSOURCE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t-------\t--------\t--------\t------\t------\t-------")

	for _, l := range leads {
		company := l.CompanyName
		if len(company) > 30 {
			company = company[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%.0f\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(l.ID),
			l.Score,
			company,
			l.Industry,
			l.Location,
			l.Status,
			l.Source,
			l.CreatedAt.Format("2006-01-02"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
