package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSample() MetricSample {
	return MetricSample{
		EventID:       "ev-1",
		Timestamp:     time.Now().UTC(),
		OperationKind: OpFrameAnalysis,
		LatencyMS:     120,
		CostUSD:       0.0012,
		Success:       true,
	}
}

func TestMetricSample_Validate_OK(t *testing.T) {
	require.NoError(t, validSample().Validate())
}

func TestMetricSample_Validate_NegativeLatency(t *testing.T) {
	s := validSample()
	s.LatencyMS = -5
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestMetricSample_Validate_NegativeCost(t *testing.T) {
	s := validSample()
	s.CostUSD = -0.01
	assert.True(t, errors.Is(s.Validate(), ErrValidation))
}

func TestMetricSample_Validate_EmptyEventID(t *testing.T) {
	s := validSample()
	s.EventID = ""
	assert.True(t, errors.Is(s.Validate(), ErrValidation))
}

func TestMetricSample_Validate_FailureNeedsErrorKind(t *testing.T) {
	s := validSample()
	s.Success = false
	assert.True(t, errors.Is(s.Validate(), ErrValidation))

	s.ErrorKind = "timeout"
	assert.NoError(t, s.Validate())
}

func TestTimeRange_Contains_HalfOpen(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := TimeRange{Start: start, End: start.Add(5 * time.Minute)}

	assert.True(t, w.Contains(start), "start is inclusive")
	assert.True(t, w.Contains(start.Add(4*time.Minute+59*time.Second)))
	assert.False(t, w.Contains(w.End), "end is exclusive")
	assert.False(t, w.Contains(start.Add(-time.Second)))
}

func TestObservation_Validate(t *testing.T) {
	o := Observation{
		EventID:         "ev-1",
		Timestamp:       time.Now().UTC(),
		FrameReference:  "frames/run1/000042.jpg",
		VerdictText:     "Person concealing merchandise near aisle 4.",
		VerdictCategory: VerdictSuspicious,
		Confidence:      0.82,
	}
	require.NoError(t, o.Validate())

	bad := o
	bad.VerdictCategory = "shoplifting"
	assert.True(t, errors.Is(bad.Validate(), ErrValidation))

	bad = o
	bad.Confidence = 1.2
	assert.True(t, errors.Is(bad.Validate(), ErrValidation))
}

func TestFeedbackEntry_Validate(t *testing.T) {
	fb := FeedbackEntry{
		EventID:    "ev-1",
		ReviewerID: "reviewer-7",
		Label:      LabelFalsePositive,
		Timestamp:  time.Now().UTC(),
	}
	require.NoError(t, fb.Validate())

	bad := fb
	bad.Label = "wrong"
	assert.True(t, errors.Is(bad.Validate(), ErrValidation))
}
