package alerting

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/config"
	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
	"github.com/sells-group/storewatch/internal/telemetry"
)

// Checker runs periodic alert checks in the background: aggregate the last
// window, evaluate rules, persist triggered events, and dispatch them to the
// webhook.
type Checker struct {
	aggregator *telemetry.Aggregator
	evaluator  *Evaluator
	dispatcher *Dispatcher
	store      store.Store
	cfg        config.MonitoringConfig
}

// NewChecker creates a background alert checker.
func NewChecker(st store.Store, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		aggregator: telemetry.NewAggregator(st),
		evaluator:  NewEvaluator(DefaultRules(cfg)),
		dispatcher: NewDispatcher(cfg.WebhookURL),
		store:      st,
		cfg:        cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	log := zap.L().With(zap.String("component", "alerting.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Duration("window", c.cfg.AggregationWindow()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check performs a single evaluation pass. It is exported so the CLI can run
// a one-shot check outside the background loop.
func (c *Checker) Check(ctx context.Context) {
	log := zap.L().With(zap.String("component", "alerting.checker"))

	window := model.LastWindow(time.Now().UTC(), c.cfg.AggregationWindow())
	stats, err := c.aggregator.Aggregate(ctx, window, "")
	if err != nil {
		log.Error("alerting: failed to aggregate window", zap.Error(err))
		return
	}

	samples, err := c.store.ListSamples(ctx, store.SampleFilter{Window: window})
	if err != nil {
		log.Error("alerting: failed to list samples", zap.Error(err))
		return
	}

	events := c.evaluator.Evaluate(stats, samples)
	if len(events) == 0 {
		log.Debug("alerting: no alerts triggered")
		return
	}

	for _, ev := range events {
		if err := c.store.InsertAlert(ctx, ev); err != nil {
			log.Error("alerting: failed to persist alert",
				zap.String("rule", ev.RuleName),
				zap.Error(err),
			)
		}
	}

	sent := c.dispatcher.Dispatch(ctx, events)
	log.Info("alerting: check complete",
		zap.Int("alerts_triggered", len(events)),
		zap.Int("alerts_sent", sent),
	)
}
