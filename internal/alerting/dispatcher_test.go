package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storewatch/internal/model"
)

func testAlertEvent() model.AlertEvent {
	return model.AlertEvent{
		AlertID:        "a1b2c3",
		TriggeredAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		RuleName:       RuleHighLatency,
		Severity:       model.SeverityWarning,
		ObservedValue:  4200,
		ThresholdValue: 3000,
	}
}

func TestDispatcher_Dispatch_PostsPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL)
	sent := d.Dispatch(context.Background(), []model.AlertEvent{testAlertEvent()})

	assert.Equal(t, 1, sent)
	assert.Equal(t, RuleHighLatency, got.RuleName)
	assert.Equal(t, "warning", got.Severity)
	assert.Equal(t, 4200.0, got.ObservedValue)
	assert.Equal(t, 3000.0, got.ThresholdValue)
	assert.Equal(t, "2026-08-01T12:00:00Z", got.TriggeredAt)
}

func TestDispatcher_Dispatch_DropsOnServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL)
	sent := d.Dispatch(context.Background(), []model.AlertEvent{testAlertEvent()})

	assert.Equal(t, 0, sent)
	// Failed delivery is dropped, never retried.
	assert.Equal(t, 1, calls)
}

func TestDispatcher_Dispatch_ContinuesAfterFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL)
	events := []model.AlertEvent{testAlertEvent(), testAlertEvent()}
	sent := d.Dispatch(context.Background(), events)

	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, calls)
}

func TestDispatcher_Dispatch_EmptyURLDisabled(t *testing.T) {
	d := NewDispatcher("")
	sent := d.Dispatch(context.Background(), []model.AlertEvent{testAlertEvent()})
	assert.Equal(t, 0, sent)
}

func TestDispatcher_Dispatch_UnreachableHost(t *testing.T) {
	d := NewDispatcher("http://127.0.0.1:1/webhook")
	sent := d.Dispatch(context.Background(), []model.AlertEvent{testAlertEvent()})
	assert.Equal(t, 0, sent)
}
