// Package feedback accepts reviewer judgments on stored observations and
// computes accuracy summaries from them.
package feedback

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
)

// AccuracyReport summarizes reviewer feedback for observations in a window.
// Counts bucket each observation by its latest feedback label; observations
// with no feedback at all land in Unlabeled.
type AccuracyReport struct {
	Window        model.TimeRange `json:"window"`
	Observations  int             `json:"observations"`
	Correct       int             `json:"correct"`
	FalsePositive int             `json:"false_positive"`
	Insufficient  int             `json:"insufficient"`
	Unlabeled     int             `json:"unlabeled"`
}

// AccuracyRate is the share of labeled observations judged correct. Zero
// labeled observations yields zero, not NaN.
func (r AccuracyReport) AccuracyRate() float64 {
	labeled := r.Correct + r.FalsePositive + r.Insufficient
	if labeled == 0 {
		return 0
	}
	return float64(r.Correct) / float64(labeled)
}

// Service validates and records feedback and reports accuracy.
type Service struct {
	store store.Store
}

// NewService creates a feedback service backed by st.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Submit validates the entry, checks it references a stored observation,
// stamps a missing timestamp, and appends it. Re-labeling an observation is
// an ordinary append; the latest entry wins in accuracy reports.
func (s *Service) Submit(ctx context.Context, entry model.FeedbackEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	obs, err := s.store.GetObservation(ctx, entry.EventID)
	if err != nil {
		return eris.Wrap(err, "feedback: look up observation")
	}
	if obs == nil {
		return model.ValidationErrf("feedback %s: no such observation", entry.EventID)
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := s.store.InsertFeedback(ctx, entry); err != nil {
		return eris.Wrap(err, "feedback: insert")
	}

	zap.L().Info("feedback recorded",
		zap.String("event_id", entry.EventID),
		zap.String("reviewer_id", entry.ReviewerID),
		zap.String("label", string(entry.Label)),
	)
	return nil
}

// Accuracy buckets every observation in the window by its latest feedback
// label. Feedback submitted after the window closes still counts: the window
// selects observations, not feedback.
func (s *Service) Accuracy(ctx context.Context, window model.TimeRange) (AccuracyReport, error) {
	report := AccuracyReport{Window: window}

	observations, err := s.store.ListObservations(ctx, store.ObservationFilter{Window: window})
	if err != nil {
		return report, eris.Wrap(err, "feedback: list observations")
	}
	report.Observations = len(observations)
	if len(observations) == 0 {
		return report, nil
	}

	eventIDs := make([]string, 0, len(observations))
	for _, o := range observations {
		eventIDs = append(eventIDs, o.EventID)
	}

	entries, err := s.store.ListFeedback(ctx, eventIDs)
	if err != nil {
		return report, eris.Wrap(err, "feedback: list feedback")
	}

	latest := make(map[string]model.FeedbackEntry, len(entries))
	for _, e := range entries {
		if prev, ok := latest[e.EventID]; !ok || e.Timestamp.After(prev.Timestamp) {
			latest[e.EventID] = e
		}
	}

	for _, o := range observations {
		e, ok := latest[o.EventID]
		if !ok {
			report.Unlabeled++
			continue
		}
		switch e.Label {
		case model.LabelCorrect:
			report.Correct++
		case model.LabelFalsePositive:
			report.FalsePositive++
		case model.LabelInsufficient:
			report.Insufficient++
		}
	}

	return report, nil
}
