package vision

import (
	"context"
	"errors"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/config"
	"github.com/sells-group/storewatch/internal/cost"
	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
	"github.com/sells-group/storewatch/internal/telemetry"
)

// Analyzer runs one frame through the vision model and stores the verdict
// and its telemetry. Every call produces a metric sample, success or not;
// only successful calls produce an observation.
type Analyzer struct {
	client   Client
	recorder *telemetry.Recorder
	store    store.Store
	calc     *cost.Calculator
	cfg      config.AnthropicConfig
	prompt   string
	now      func() time.Time
}

// NewAnalyzer wires a frame analyzer.
func NewAnalyzer(client Client, st store.Store, cfg config.AnthropicConfig, prompt string) *Analyzer {
	return &Analyzer{
		client:   client,
		recorder: telemetry.NewRecorder(st),
		store:    st,
		calc:     cost.NewCalculator(cost.DefaultRates()),
		cfg:      cfg,
		prompt:   prompt,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Frame is one image to analyze.
type Frame struct {
	Reference string // path or camera frame identifier
	Data      []byte
	MediaType string
}

// Analyze classifies one frame. The metric sample is recorded best-effort:
// telemetry must never block the analysis path. The observation insert is
// the primary write and its error is returned.
func (a *Analyzer) Analyze(ctx context.Context, frame Frame) (*model.Observation, error) {
	eventID := uuid.New().String()
	started := a.now()

	callCtx := ctx
	if a.cfg.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.TimeoutSecs)*time.Second)
		defer cancel()
	}

	resp, err := a.client.AnalyzeFrame(callCtx, FrameRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		Prompt:    a.prompt,
		ImageData: frame.Data,
		MediaType: frame.MediaType,
	})
	latencyMS := float64(a.now().Sub(started)) / float64(time.Millisecond)

	sample := model.MetricSample{
		EventID:       eventID,
		Timestamp:     started,
		OperationKind: model.OpFrameAnalysis,
		LatencyMS:     latencyMS,
		Success:       err == nil,
	}

	if err != nil {
		sample.ErrorKind = classifyErrorKind(err)
		a.recordSample(ctx, sample)
		return nil, eris.Wrap(err, "vision: analyze frame")
	}

	sample.CostUSD = a.calc.Claude(a.cfg.Model, false,
		int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))
	a.recordSample(ctx, sample)

	verdict := ParseVerdict(resp.Text)
	obs := &model.Observation{
		EventID:         eventID,
		Timestamp:       started,
		FrameReference:  frame.Reference,
		VerdictText:     resp.Text,
		VerdictCategory: verdict.Category,
		Confidence:      verdict.Confidence,
	}
	if err := a.store.InsertObservation(ctx, *obs); err != nil {
		return nil, eris.Wrap(err, "vision: insert observation")
	}

	zap.L().Info("frame analyzed",
		zap.String("event_id", eventID),
		zap.String("frame", frame.Reference),
		zap.String("category", string(verdict.Category)),
		zap.Float64("confidence", verdict.Confidence),
		zap.Float64("latency_ms", latencyMS),
		zap.Float64("cost_usd", sample.CostUSD),
	)
	return obs, nil
}

func (a *Analyzer) recordSample(ctx context.Context, sample model.MetricSample) {
	if err := a.recorder.RecordBestEffort(ctx, sample); err != nil {
		zap.L().Warn("vision: sample rejected",
			zap.String("event_id", sample.EventID),
			zap.Error(err),
		)
	}
}

func classifyErrorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 {
			return "rate_limited"
		}
		return "api_error"
	}
	return "network_error"
}
