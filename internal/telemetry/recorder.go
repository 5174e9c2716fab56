// Package telemetry implements the per-frame metrics pipeline: validated
// sample recording and rolling-window aggregation.
package telemetry

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
)

// Recorder validates and appends metric samples to durable storage.
type Recorder struct {
	store store.Store
}

// NewRecorder creates a recorder backed by the given store.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st}
}

// Record validates the sample and appends it. Validation failures unwrap to
// model.ErrValidation and nothing is written; storage failures satisfy
// store.IsStorage.
func (r *Recorder) Record(ctx context.Context, s model.MetricSample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return r.store.InsertSample(ctx, s)
}

// RecordBestEffort is the frame-path variant of Record: storage failures are
// logged and swallowed so telemetry can never abort a video run. Validation
// failures are still returned: malformed samples indicate a caller bug, not
// a storage outage.
func (r *Recorder) RecordBestEffort(ctx context.Context, s model.MetricSample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := r.store.InsertSample(ctx, s); err != nil {
		zap.L().Warn("telemetry: dropping sample after storage failure",
			zap.String("event_id", s.EventID),
			zap.String("operation_kind", s.OperationKind),
			zap.Error(err),
		)
	}
	return nil
}
