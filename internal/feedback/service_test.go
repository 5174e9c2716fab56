package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func insertObservation(t *testing.T, s store.Store, eventID string, ts time.Time) {
	t.Helper()
	require.NoError(t, s.InsertObservation(context.Background(), model.Observation{
		EventID:         eventID,
		Timestamp:       ts,
		FrameReference:  "frames/" + eventID + ".jpg",
		VerdictText:     "Category: normal\nConfidence: 0.9\nReason: routine shelf activity",
		VerdictCategory: model.VerdictNormal,
		Confidence:      0.9,
	}))
}

func TestService_Submit_RecordsFeedback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewService(s)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insertObservation(t, s, "evt-1", ts)

	err := svc.Submit(ctx, model.FeedbackEntry{
		EventID:    "evt-1",
		ReviewerID: "reviewer-7",
		Label:      model.LabelCorrect,
		Timestamp:  ts.Add(time.Hour),
		Comment:    "clear footage",
	})
	require.NoError(t, err)

	entries, err := s.ListFeedback(ctx, []string{"evt-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.LabelCorrect, entries[0].Label)
	assert.Equal(t, "clear footage", entries[0].Comment)
}

func TestService_Submit_UnknownObservationRejected(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestStore(t))

	err := svc.Submit(ctx, model.FeedbackEntry{
		EventID:    "no-such-event",
		ReviewerID: "reviewer-7",
		Label:      model.LabelCorrect,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestService_Submit_InvalidLabelRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewService(s)
	insertObservation(t, s, "evt-1", time.Now().UTC())

	err := svc.Submit(ctx, model.FeedbackEntry{
		EventID:    "evt-1",
		ReviewerID: "reviewer-7",
		Label:      "maybe",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))

	entries, err := s.ListFeedback(ctx, []string{"evt-1"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_Submit_StampsMissingTimestamp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewService(s)
	insertObservation(t, s, "evt-1", time.Now().UTC())

	require.NoError(t, svc.Submit(ctx, model.FeedbackEntry{
		EventID:    "evt-1",
		ReviewerID: "reviewer-7",
		Label:      model.LabelInsufficient,
	}))

	entries, err := s.ListFeedback(ctx, []string{"evt-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestService_Accuracy_LatestLabelWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewService(s)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insertObservation(t, s, "evt-1", base)

	require.NoError(t, svc.Submit(ctx, model.FeedbackEntry{
		EventID: "evt-1", ReviewerID: "r1", Label: model.LabelFalsePositive, Timestamp: base.Add(time.Hour),
	}))
	require.NoError(t, svc.Submit(ctx, model.FeedbackEntry{
		EventID: "evt-1", ReviewerID: "r2", Label: model.LabelCorrect, Timestamp: base.Add(2 * time.Hour),
	}))

	report, err := svc.Accuracy(ctx, model.TimeRange{Start: base.Add(-time.Minute), End: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Observations)
	assert.Equal(t, 1, report.Correct)
	assert.Equal(t, 0, report.FalsePositive)
	assert.Equal(t, 0, report.Unlabeled)

	// Both entries remain on record.
	entries, err := s.ListFeedback(ctx, []string{"evt-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestService_Accuracy_CountsUnlabeled(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewService(s)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insertObservation(t, s, "evt-1", base)
	insertObservation(t, s, "evt-2", base.Add(time.Minute))
	insertObservation(t, s, "evt-3", base.Add(2*time.Minute))

	require.NoError(t, svc.Submit(ctx, model.FeedbackEntry{
		EventID: "evt-1", ReviewerID: "r1", Label: model.LabelCorrect, Timestamp: base.Add(time.Hour),
	}))
	require.NoError(t, svc.Submit(ctx, model.FeedbackEntry{
		EventID: "evt-2", ReviewerID: "r1", Label: model.LabelFalsePositive, Timestamp: base.Add(time.Hour),
	}))

	report, err := svc.Accuracy(ctx, model.TimeRange{Start: base, End: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Observations)
	assert.Equal(t, 1, report.Correct)
	assert.Equal(t, 1, report.FalsePositive)
	assert.Equal(t, 0, report.Insufficient)
	assert.Equal(t, 1, report.Unlabeled)
	assert.InDelta(t, 0.5, report.AccuracyRate(), 1e-9)
}

func TestService_Accuracy_EmptyWindow(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestStore(t))

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	report, err := svc.Accuracy(ctx, model.TimeRange{Start: base, End: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Zero(t, report.Observations)
	assert.Zero(t, report.Unlabeled)
	assert.Zero(t, report.AccuracyRate())
}

func TestService_Accuracy_WindowSelectsObservationsNotFeedback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := NewService(s)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	insertObservation(t, s, "evt-1", base)

	// Feedback lands well after the window closes.
	require.NoError(t, svc.Submit(ctx, model.FeedbackEntry{
		EventID: "evt-1", ReviewerID: "r1", Label: model.LabelCorrect, Timestamp: base.Add(48 * time.Hour),
	}))

	report, err := svc.Accuracy(ctx, model.TimeRange{Start: base, End: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Correct)
	assert.Zero(t, report.Unlabeled)
}
