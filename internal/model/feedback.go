package model

import "time"

// FeedbackLabel is a reviewer's judgment of an observation.
type FeedbackLabel string

const (
	LabelCorrect       FeedbackLabel = "correct"
	LabelFalsePositive FeedbackLabel = "false_positive"
	LabelInsufficient  FeedbackLabel = "insufficient"
)

// Valid reports whether the label is one of the enumerated values.
func (l FeedbackLabel) Valid() bool {
	switch l {
	case LabelCorrect, LabelFalsePositive, LabelInsufficient:
		return true
	}
	return false
}

// FeedbackEntry is one human judgment keyed to an observation. Entries are
// append-only: multiple entries per observation are allowed, the latest by
// Timestamp wins for current accuracy, all are retained for audit.
type FeedbackEntry struct {
	EventID    string        `json:"event_id"`
	ReviewerID string        `json:"reviewer_id"`
	Label      FeedbackLabel `json:"label"`
	Timestamp  time.Time     `json:"timestamp"`
	Comment    string        `json:"comment,omitempty"`
}

// Validate checks the entry invariants. Referential integrity against the
// observation store is checked at submission, not here. The returned error
// unwraps to ErrValidation.
func (f FeedbackEntry) Validate() error {
	if f.EventID == "" {
		return validationErr("feedback: empty event_id")
	}
	if f.ReviewerID == "" {
		return validationErrf("feedback %s: empty reviewer_id", f.EventID)
	}
	if !f.Label.Valid() {
		return validationErrf("feedback %s: unknown label %q", f.EventID, f.Label)
	}
	return nil
}
