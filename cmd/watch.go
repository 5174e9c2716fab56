package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/vision"
	"github.com/sells-group/storewatch/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <frames-dir>",
	Short: "Analyze extracted camera frames under a directory",
	Long:  "Each subdirectory is treated as one video's frames and processed in order. Verdicts and per-call telemetry are written to the store.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic API key is required (STOREWATCH_ANTHROPIC_KEY)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client := vision.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerSec)
		analyzer := vision.NewAnalyzer(client, st, cfg.Anthropic, cfg.Watch.Prompt)
		runner := watch.NewRunner(analyzer, st, *cfg)

		summary, err := runner.Run(ctx, args[0])
		if err != nil {
			return err
		}

		zap.L().Info("watch finished",
			zap.Int("frames", summary.Frames),
			zap.Int("analyzed", summary.Analyzed),
			zap.Int("failed", summary.Failed),
			zap.Any("by_verdict", summary.ByVerdict),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
