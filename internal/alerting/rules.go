// Package alerting evaluates telemetry against threshold rules, with a
// per-rule cool-down to suppress repeats, and dispatches alert events to a
// webhook.
package alerting

import (
	"time"

	"github.com/sells-group/storewatch/internal/config"
	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/telemetry"
)

// RuleKind distinguishes how a rule is evaluated.
type RuleKind string

const (
	// KindPerSample rules fire on a single metric sample.
	KindPerSample RuleKind = "per_sample"
	// KindWindowed rules fire on aggregated stats over a window.
	KindWindowed RuleKind = "windowed"
)

// Rule is one alert condition. Exactly one of SampleValue or StatsValue is
// set, matching Kind. A rule fires when the extracted value exceeds
// Threshold.
type Rule struct {
	Name      string
	Kind      RuleKind
	Threshold float64
	Cooldown  time.Duration
	Severity  model.AlertSeverity

	SampleValue func(model.MetricSample) float64
	StatsValue  func(telemetry.Stats) float64
}

// Default rule names.
const (
	RuleHighLatency   = "high_latency"
	RuleHighCost      = "high_cost"
	RuleHighErrorRate = "high_error_rate"
)

// DefaultRules builds the standard rule set from monitoring config:
// per-sample latency and cost thresholds, windowed error rate.
func DefaultRules(cfg config.MonitoringConfig) []Rule {
	return []Rule{
		{
			Name:        RuleHighLatency,
			Kind:        KindPerSample,
			Threshold:   cfg.LatencyThresholdMS,
			Cooldown:    cfg.CooldownFor(RuleHighLatency),
			Severity:    model.SeverityWarning,
			SampleValue: func(s model.MetricSample) float64 { return s.LatencyMS },
		},
		{
			Name:        RuleHighCost,
			Kind:        KindPerSample,
			Threshold:   cfg.CostThresholdUSD,
			Cooldown:    cfg.CooldownFor(RuleHighCost),
			Severity:    model.SeverityWarning,
			SampleValue: func(s model.MetricSample) float64 { return s.CostUSD },
		},
		{
			Name:       RuleHighErrorRate,
			Kind:       KindWindowed,
			Threshold:  cfg.ErrorRateThreshold,
			Cooldown:   cfg.CooldownFor(RuleHighErrorRate),
			Severity:   model.SeverityCritical,
			StatsValue: func(st telemetry.Stats) float64 { return st.ErrorRate },
		},
	}
}
