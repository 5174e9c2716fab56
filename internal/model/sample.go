package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// OperationKind identifies the unit of work a MetricSample describes.
const (
	OpFrameAnalysis = "frame_analysis"
	OpVideoDecode   = "video_decode"
)

// MetricSample is one performance/cost/error record for one processed unit
// of work. Samples are immutable once written.
type MetricSample struct {
	EventID       string    `json:"event_id"`
	Timestamp     time.Time `json:"timestamp"`
	OperationKind string    `json:"operation_kind"`
	LatencyMS     float64   `json:"latency_ms"`
	CostUSD       float64   `json:"cost_usd"`
	Success       bool      `json:"success"`
	ErrorKind     string    `json:"error_kind,omitempty"`
}

// Validate checks the sample invariants. The returned error unwraps to
// ErrValidation.
func (s MetricSample) Validate() error {
	if s.EventID == "" {
		return validationErr("sample: empty event_id")
	}
	if s.OperationKind == "" {
		return validationErr("sample: empty operation_kind")
	}
	if s.LatencyMS < 0 {
		return validationErrf("sample %s: negative latency_ms %.2f", s.EventID, s.LatencyMS)
	}
	if s.CostUSD < 0 {
		return validationErrf("sample %s: negative cost_usd %.6f", s.EventID, s.CostUSD)
	}
	if !s.Success && s.ErrorKind == "" {
		return validationErrf("sample %s: failed sample without error_kind", s.EventID)
	}
	return nil
}

// TimeRange is a half-open time window: Start inclusive, End exclusive.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// LastWindow returns the window covering the d duration ending at now.
func LastWindow(now time.Time, d time.Duration) TimeRange {
	return TimeRange{Start: now.Add(-d), End: now}
}

// ErrValidation is the sentinel for malformed input. Callers use
// errors.Is(err, model.ErrValidation) to distinguish validation failures
// from storage failures.
var ErrValidation = eris.New("validation error")

func validationErr(msg string) error {
	return eris.Wrap(ErrValidation, msg)
}

func validationErrf(format string, args ...any) error {
	return eris.Wrapf(ErrValidation, format, args...)
}

// ValidationErrf builds an error that unwraps to ErrValidation, for callers
// outside this package that reject input on referential or semantic grounds.
func ValidationErrf(format string, args ...any) error {
	return eris.Wrapf(ErrValidation, format, args...)
}
