package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/model"
)

// webhookPayload is the JSON body posted for each alert.
type webhookPayload struct {
	AlertID        string  `json:"alert_id"`
	RuleName       string  `json:"rule_name"`
	Severity       string  `json:"severity"`
	ObservedValue  float64 `json:"observed_value"`
	ThresholdValue float64 `json:"threshold_value"`
	TriggeredAt    string  `json:"triggered_at"`
}

// DispatchError records a failed webhook delivery. It is only ever logged:
// delivery failures are dropped, never surfaced or retried, so a webhook
// outage cannot back up the check loop.
type DispatchError struct {
	RuleName string
	Err      error
}

func (e *DispatchError) Error() string {
	return "dispatch " + e.RuleName + ": " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Dispatcher delivers alert events to a webhook URL. Delivery is
// fire-and-forget: a failed POST is logged and dropped, never retried, and
// never blocks the check loop.
type Dispatcher struct {
	webhookURL string
	client     *http.Client
}

// NewDispatcher creates a dispatcher for the given webhook URL. An empty URL
// disables dispatch entirely.
func NewDispatcher(webhookURL string) *Dispatcher {
	return &Dispatcher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Dispatch posts each event to the webhook URL. Returns the number of events
// successfully delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, events []model.AlertEvent) int {
	if d.webhookURL == "" || len(events) == 0 {
		return 0
	}

	sent := 0
	for _, ev := range events {
		if err := d.sendWebhook(ctx, ev); err != nil {
			zap.L().Error("alerting: failed to deliver alert",
				zap.String("rule", ev.RuleName),
				zap.String("alert_id", ev.AlertID),
				zap.Error(&DispatchError{RuleName: ev.RuleName, Err: err}),
			)
			continue
		}
		zap.L().Info("alerting: alert delivered",
			zap.String("rule", ev.RuleName),
			zap.String("severity", string(ev.Severity)),
			zap.Float64("observed", ev.ObservedValue),
		)
		sent++
	}
	return sent
}

func (d *Dispatcher) sendWebhook(ctx context.Context, ev model.AlertEvent) error {
	payload, err := json.Marshal(webhookPayload{
		AlertID:        ev.AlertID,
		RuleName:       ev.RuleName,
		Severity:       string(ev.Severity),
		ObservedValue:  ev.ObservedValue,
		ThresholdValue: ev.ThresholdValue,
		TriggeredAt:    ev.TriggeredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return eris.Wrap(err, "alerting: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "alerting: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "alerting: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("alerting: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
