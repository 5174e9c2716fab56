package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sells-group/storewatch/internal/model"
)

// SampleFilter specifies criteria for listing metric samples. The window is
// half-open: Start inclusive, End exclusive. Zero window bounds are ignored.
type SampleFilter struct {
	Window        model.TimeRange `json:"window,omitempty"`
	OperationKind string          `json:"operation_kind,omitempty"`
	Limit         int             `json:"limit,omitempty"`
}

// ObservationFilter specifies criteria for listing observations.
type ObservationFilter struct {
	Window   model.TimeRange       `json:"window,omitempty"`
	Category model.VerdictCategory `json:"category,omitempty"`
	Limit    int                   `json:"limit,omitempty"`
}

// AlertFilter specifies criteria for listing alert events.
type AlertFilter struct {
	Acknowledged *bool `json:"acknowledged,omitempty"`
	Limit        int   `json:"limit,omitempty"`
}

// PurgeResult counts rows removed by a retention cleanup.
type PurgeResult struct {
	Samples      int `json:"samples"`
	Observations int `json:"observations"`
}

// Store defines the persistence interface for telemetry, observations,
// feedback and alert history. All writes are single-row appends; the only
// mutations are alert acknowledgement and retention cleanup.
type Store interface {
	// Metric samples
	InsertSample(ctx context.Context, s model.MetricSample) error
	ListSamples(ctx context.Context, filter SampleFilter) ([]model.MetricSample, error)

	// Observations
	InsertObservation(ctx context.Context, o model.Observation) error
	GetObservation(ctx context.Context, eventID string) (*model.Observation, error)
	ListObservations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error)

	// Feedback
	InsertFeedback(ctx context.Context, f model.FeedbackEntry) error
	ListFeedback(ctx context.Context, eventIDs []string) ([]model.FeedbackEntry, error)

	// Alerts
	InsertAlert(ctx context.Context, a model.AlertEvent) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]model.AlertEvent, error)
	AcknowledgeAlert(ctx context.Context, alertID string) error
	CountOpenAlerts(ctx context.Context) (int, error)

	// Model registry
	RegisterModel(ctx context.Context, name, version string, metadata map[string]any) error

	// Retention: removes samples and observations older than cutoff.
	// Feedback and alert history are retained for audit.
	PurgeBefore(ctx context.Context, cutoff time.Time) (PurgeResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// StorageError wraps a persistence-layer failure so callers can tell it
// apart from validation failures.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorage reports whether any error in the chain is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
