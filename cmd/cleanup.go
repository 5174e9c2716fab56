package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge samples and observations past the retention window",
	Long:  "Deletes metric samples and observations older than the retention cutoff. Feedback and alert history are kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		days := cleanupDays
		if days == 0 {
			days = cfg.Retention.Days
		}
		if days <= 0 {
			return eris.Errorf("retention days must be positive, got %d", days)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		result, err := st.PurgeBefore(ctx, cutoff)
		if err != nil {
			return err
		}

		zap.L().Info("retention cleanup complete",
			zap.Time("cutoff", cutoff),
			zap.Int("samples_purged", result.Samples),
			zap.Int("observations_purged", result.Observations),
		)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "retention window in days (default from config)")
	rootCmd.AddCommand(cleanupCmd)
}
