package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	queriesCount    int
	queriesIndustry string
	queriesIsland   string
)

var discoverQueriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Preview the next discovery queries",
	Long:  "Show the queries the next pass would dispatch without recording them or moving the rotation cursors.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		queries, err := env.Engine.PreviewQueries(ctx, queriesIndustry, queriesIsland, queriesCount)
		if err != nil {
			return eris.Wrap(err, "discover queries")
		}

		if len(queries) == 0 {
			fmt.Fprintln(os.Stderr, "No queries available.")
			return nil
		}
		for _, q := range queries {
			fmt.Fprintln(os.Stdout, q)
		}
		return nil
	},
}

func init() {
	discoverQueriesCmd.Flags().IntVar(&queriesCount, "count", 0, "number of queries to preview (default: configured batch size)")
	discoverQueriesCmd.Flags().StringVar(&queriesIndustry, "industry", "", "narrow to one industry")
	discoverQueriesCmd.Flags().StringVar(&queriesIsland, "island", "", "narrow to one island")
	discoverCmd.AddCommand(discoverQueriesCmd)
}
