package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/storewatch/internal/alerting"
)

var monitorOnce bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the alert checker",
	Long:  "Aggregates recent telemetry on an interval, evaluates alert rules, persists triggered alerts and posts them to the configured webhook.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		checker := alerting.NewChecker(st, cfg.Monitoring)
		if monitorOnce {
			checker.Check(ctx)
			return nil
		}

		checker.Run(ctx)
		return nil
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "run a single check and exit")
	rootCmd.AddCommand(monitorCmd)
}
