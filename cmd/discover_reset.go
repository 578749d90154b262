package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	resetDate string
	resetAll  bool
)

var discoverResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset discovery state",
	Long:  "Zero one day's admission counter (--date) or wipe all engine state for the tenant (--all). The lead book itself is never touched.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if resetAll == (resetDate != "") {
			return eris.New("exactly one of --date or --all is required")
		}

		env, err := initEngine(ctx, "store")
		if err != nil {
			return err
		}
		defer env.Close()

		if resetAll {
			if err := env.Engine.ResetAll(ctx); err != nil {
				return eris.Wrap(err, "discover reset")
			}
			zap.L().Info("discovery state cleared", zap.String("tenant", cfg.Discovery.Tenant))
			return nil
		}

		if err := env.Engine.ResetDay(ctx, resetDate); err != nil {
			return eris.Wrap(err, "discover reset")
		}
		zap.L().Info("daily counter reset", zap.String("date", resetDate))
		return nil
	},
}

func init() {
	discoverResetCmd.Flags().StringVar(&resetDate, "date", "", "day to reset (YYYY-MM-DD)")
	discoverResetCmd.Flags().BoolVar(&resetAll, "all", false, "wipe seen/filtered sets, rotation log, and daily counters")
	discoverCmd.AddCommand(discoverResetCmd)
}
