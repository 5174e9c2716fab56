package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/storewatch/internal/export"
	"github.com/sells-group/storewatch/internal/model"
)

var exportHours int

var exportCmd = &cobra.Command{
	Use:   "export <output.xlsx>",
	Short: "Export observations and accuracy to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		window := model.LastWindow(time.Now().UTC(), time.Duration(exportHours)*time.Hour)
		return export.NewExporter(st).WriteWorkbook(ctx, window, args[0])
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportHours, "hours", 24, "lookback window in hours")
	rootCmd.AddCommand(exportCmd)
}
