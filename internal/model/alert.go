package model

import "time"

// AlertSeverity ranks how urgent an alert is.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertEvent records one threshold breach. Created by the alert evaluator,
// never mutated after creation except marking acknowledged.
type AlertEvent struct {
	AlertID        string        `json:"alert_id"`
	TriggeredAt    time.Time     `json:"triggered_at"`
	RuleName       string        `json:"rule_name"`
	Severity       AlertSeverity `json:"severity"`
	ObservedValue  float64       `json:"observed_value"`
	ThresholdValue float64       `json:"threshold_value"`
	CooldownUntil  time.Time     `json:"cool_down_until"`
	Acknowledged   bool          `json:"acknowledged"`
}
