package alerting

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/telemetry"
)

// Evaluator checks rules against aggregated stats and recent samples,
// producing AlertEvents for breaches not suppressed by a cool-down. It does
// not persist or dispatch events; the checker owns those side effects.
type Evaluator struct {
	rules     []Rule
	cooldowns *cooldownCache
	now       func() time.Time
}

// NewEvaluator creates an evaluator with fresh cool-down state.
func NewEvaluator(rules []Rule) *Evaluator {
	return &Evaluator{
		rules:     rules,
		cooldowns: newCooldownCache(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate applies windowed rules to stats and per-sample rules to each
// recent sample. A rule in cool-down is suppressed silently: no event, no
// error.
func (e *Evaluator) Evaluate(stats telemetry.Stats, recentSamples []model.MetricSample) []model.AlertEvent {
	var events []model.AlertEvent

	for _, rule := range e.rules {
		switch rule.Kind {
		case KindWindowed:
			if rule.StatsValue == nil || stats.Count == 0 {
				// An empty window carries no alert-worthy data.
				continue
			}
			if value := rule.StatsValue(stats); value > rule.Threshold {
				if ev, ok := e.fire(rule, value); ok {
					events = append(events, ev)
				}
			}
		case KindPerSample:
			if rule.SampleValue == nil {
				continue
			}
			// One event per batch, recording the worst breach.
			worst, breached := 0.0, false
			for _, s := range recentSamples {
				if value := rule.SampleValue(s); value > rule.Threshold && (!breached || value > worst) {
					worst, breached = value, true
				}
			}
			if breached {
				if ev, ok := e.fire(rule, worst); ok {
					events = append(events, ev)
				}
			}
		}
	}

	return events
}

func (e *Evaluator) fire(rule Rule, observed float64) (model.AlertEvent, bool) {
	now := e.now()
	expiry, ok := e.cooldowns.allow(rule.Name, now, rule.Cooldown)
	if !ok {
		zap.L().Debug("alerting: suppressed by cool-down",
			zap.String("rule", rule.Name),
			zap.Time("cool_down_until", expiry),
		)
		return model.AlertEvent{}, false
	}
	return model.AlertEvent{
		AlertID:        uuid.New().String(),
		TriggeredAt:    now,
		RuleName:       rule.Name,
		Severity:       rule.Severity,
		ObservedValue:  observed,
		ThresholdValue: rule.Threshold,
		CooldownUntil:  expiry,
	}, true
}
