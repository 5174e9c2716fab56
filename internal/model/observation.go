package model

import "time"

// VerdictCategory is the fixed classification of a frame verdict.
type VerdictCategory string

const (
	VerdictNormal     VerdictCategory = "normal"
	VerdictSuspicious VerdictCategory = "suspicious"
	VerdictTheft      VerdictCategory = "theft"
	VerdictUnclear    VerdictCategory = "unclear"
)

// Valid reports whether the category is one of the enumerated values.
func (c VerdictCategory) Valid() bool {
	switch c {
	case VerdictNormal, VerdictSuspicious, VerdictTheft, VerdictUnclear:
		return true
	}
	return false
}

// Observation is the stored AI verdict for one analyzed frame. It shares its
// EventID one-to-one with a MetricSample.
type Observation struct {
	EventID         string          `json:"event_id"`
	Timestamp       time.Time       `json:"timestamp"`
	FrameReference  string          `json:"frame_reference"`
	VerdictText     string          `json:"verdict_text"`
	VerdictCategory VerdictCategory `json:"verdict_category"`
	Confidence      float64         `json:"confidence"`
}

// Validate checks the observation invariants. The returned error unwraps to
// ErrValidation.
func (o Observation) Validate() error {
	if o.EventID == "" {
		return validationErr("observation: empty event_id")
	}
	if o.FrameReference == "" {
		return validationErrf("observation %s: empty frame_reference", o.EventID)
	}
	if !o.VerdictCategory.Valid() {
		return validationErrf("observation %s: unknown verdict_category %q", o.EventID, o.VerdictCategory)
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return validationErrf("observation %s: confidence %.3f outside [0,1]", o.EventID, o.Confidence)
	}
	return nil
}
