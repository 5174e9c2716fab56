package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/storewatch/internal/feedback"
	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
	"github.com/sells-group/storewatch/internal/telemetry"
)

var statusHours int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show telemetry, accuracy and open alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		window := model.LastWindow(time.Now().UTC(), time.Duration(statusHours)*time.Hour)

		stats, err := telemetry.NewAggregator(st).Aggregate(ctx, window, "")
		if err != nil {
			return err
		}
		report, err := feedback.NewService(st).Accuracy(ctx, window)
		if err != nil {
			return err
		}
		openAlerts, err := st.CountOpenAlerts(ctx)
		if err != nil {
			return err
		}
		recentAlerts, err := st.ListAlerts(ctx, store.AlertFilter{Limit: 10})
		if err != nil {
			return err
		}

		fmt.Printf("Last %dh\n", statusHours)
		formatStatus(os.Stdout, stats, report, openAlerts)
		if len(recentAlerts) > 0 {
			fmt.Println()
			formatAlerts(os.Stdout, recentAlerts)
		}
		return nil
	},
}

func formatStatus(out io.Writer, stats telemetry.Stats, report feedback.AccuracyReport, openAlerts int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Samples\t%d\n", stats.Count)
	_, _ = fmt.Fprintf(w, "Mean latency\t%.0f ms\n", stats.MeanLatencyMS)
	_, _ = fmt.Fprintf(w, "P95 latency\t%.0f ms\n", stats.P95LatencyMS)
	_, _ = fmt.Fprintf(w, "Total cost\t$%.4f\n", stats.TotalCostUSD)
	_, _ = fmt.Fprintf(w, "Error rate\t%.1f%%\n", stats.ErrorRate*100)
	_, _ = fmt.Fprintf(w, "Observations\t%d\n", report.Observations)
	_, _ = fmt.Fprintf(w, "Accuracy\t%.1f%% (%d labeled, %d unlabeled)\n",
		report.AccuracyRate()*100,
		report.Correct+report.FalsePositive+report.Insufficient,
		report.Unlabeled)
	_, _ = fmt.Fprintf(w, "Open alerts\t%d\n", openAlerts)
	_ = w.Flush()
}

func formatAlerts(out io.Writer, alerts []model.AlertEvent) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TRIGGERED\tRULE\tSEVERITY\tOBSERVED\tTHRESHOLD\tACK")
	for _, a := range alerts {
		ack := ""
		if a.Acknowledged {
			ack = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\t%.3f\t%s\n",
			a.TriggeredAt.Local().Format("2006-01-02 15:04:05"),
			a.RuleName, a.Severity, a.ObservedValue, a.ThresholdValue, ack)
	}
	_ = w.Flush()
}

func init() {
	statusCmd.Flags().IntVar(&statusHours, "hours", 24, "lookback window in hours")
	rootCmd.AddCommand(statusCmd)
}
