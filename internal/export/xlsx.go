// Package export writes review workbooks for offline analysis.
package export

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/feedback"
	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
)

// Exporter writes observations and the accuracy summary for a window to an
// XLSX workbook.
type Exporter struct {
	store    store.Store
	feedback *feedback.Service
}

// NewExporter wires an exporter.
func NewExporter(st store.Store) *Exporter {
	return &Exporter{store: st, feedback: feedback.NewService(st)}
}

// WriteWorkbook writes an Observations sheet and an Accuracy sheet covering
// the window to path.
func (e *Exporter) WriteWorkbook(ctx context.Context, window model.TimeRange, path string) error {
	observations, err := e.store.ListObservations(ctx, store.ObservationFilter{Window: window})
	if err != nil {
		return eris.Wrap(err, "export: list observations")
	}
	report, err := e.feedback.Accuracy(ctx, window)
	if err != nil {
		return eris.Wrap(err, "export: accuracy")
	}

	f := xlsx.NewFile()
	if err := e.addObservationsSheet(f, observations); err != nil {
		return err
	}
	if err := addAccuracySheet(f, report); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}

	zap.L().Info("workbook exported",
		zap.String("path", path),
		zap.Int("observations", len(observations)),
	)
	return nil
}

func (e *Exporter) addObservationsSheet(f *xlsx.File, observations []model.Observation) error {
	sheet, err := f.AddSheet("Observations")
	if err != nil {
		return eris.Wrap(err, "export: add observations sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Event ID", "Timestamp", "Frame", "Category", "Confidence", "Verdict"} {
		header.AddCell().Value = h
	}

	for _, o := range observations {
		row := sheet.AddRow()
		row.AddCell().Value = o.EventID
		row.AddCell().Value = o.Timestamp.UTC().Format(time.RFC3339)
		row.AddCell().Value = o.FrameReference
		row.AddCell().Value = string(o.VerdictCategory)
		row.AddCell().SetFloat(o.Confidence)
		row.AddCell().Value = o.VerdictText
	}
	return nil
}

func addAccuracySheet(f *xlsx.File, report feedback.AccuracyReport) error {
	sheet, err := f.AddSheet("Accuracy")
	if err != nil {
		return eris.Wrap(err, "export: add accuracy sheet")
	}

	rows := []struct {
		label string
		value int
	}{
		{"Observations", report.Observations},
		{"Correct", report.Correct},
		{"False positive", report.FalsePositive},
		{"Insufficient", report.Insufficient},
		{"Unlabeled", report.Unlabeled},
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().Value = r.label
		row.AddCell().SetInt(r.value)
	}

	rateRow := sheet.AddRow()
	rateRow.AddCell().Value = "Accuracy rate"
	rateRow.AddCell().SetFloat(report.AccuracyRate())
	return nil
}
