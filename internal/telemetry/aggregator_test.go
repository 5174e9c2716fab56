package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
)

func newAggregatorStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAggregator_EmptyWindow(t *testing.T) {
	s := newAggregatorStore(t)
	agg := NewAggregator(s)

	now := time.Now().UTC()
	stats, err := agg.Aggregate(context.Background(), model.LastWindow(now, 5*time.Minute), "")
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Count)
	assert.Zero(t, stats.MeanLatencyMS)
	assert.Zero(t, stats.P95LatencyMS)
	assert.Zero(t, stats.TotalCostUSD)
	assert.Zero(t, stats.ErrorRate, "empty window must yield 0, not NaN")
}

func TestAggregator_SingleSampleCountedOnce(t *testing.T) {
	s := newAggregatorStore(t)
	agg := NewAggregator(s)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.InsertSample(ctx, model.MetricSample{
		EventID: "ev-1", Timestamp: base.Add(time.Minute), OperationKind: model.OpFrameAnalysis,
		LatencyMS: 250, CostUSD: 0.002, Success: true,
	}))

	stats, err := agg.Aggregate(ctx, model.TimeRange{Start: base, End: base.Add(5 * time.Minute)}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.InDelta(t, 250, stats.MeanLatencyMS, 0.001)
	assert.InDelta(t, 250, stats.P95LatencyMS, 0.001)
	assert.InDelta(t, 0.002, stats.TotalCostUSD, 1e-9)
}

func TestAggregator_Trends_HourlyBuckets(t *testing.T) {
	s := newAggregatorStore(t)
	agg := NewAggregator(s)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Two samples in the 10:00 bucket, one in 12:00; 11:00 stays empty.
	for i, spec := range []struct {
		offset  time.Duration
		latency float64
		success bool
	}{
		{10 * time.Minute, 100, true},
		{40 * time.Minute, 300, false},
		{2*time.Hour + 5*time.Minute, 500, true},
	} {
		require.NoError(t, s.InsertSample(ctx, model.MetricSample{
			EventID:       string(rune('a' + i)),
			Timestamp:     base.Add(spec.offset),
			OperationKind: model.OpFrameAnalysis,
			LatencyMS:     spec.latency,
			CostUSD:       0.001,
			Success:       spec.success,
		}))
	}

	points, err := agg.Trends(ctx, model.TimeRange{Start: base, End: base.Add(3 * time.Hour)}, "")
	require.NoError(t, err)

	require.Len(t, points, 2, "empty buckets are omitted")
	assert.Equal(t, base, points[0].BucketStart)
	assert.Equal(t, 2, points[0].Count)
	assert.InDelta(t, 200, points[0].MeanLatencyMS, 0.001)
	assert.InDelta(t, 0.5, points[0].ErrorRate, 0.001)
	assert.Equal(t, base.Add(2*time.Hour), points[1].BucketStart)
	assert.Equal(t, 1, points[1].Count)
	assert.InDelta(t, 500, points[1].MeanLatencyMS, 0.001)
}

func TestAggregator_Idempotent(t *testing.T) {
	s := newAggregatorStore(t)
	agg := NewAggregator(s)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := model.TimeRange{Start: base, End: base.Add(time.Hour)}

	for i, latency := range []float64{10, 20, 30, 40} {
		require.NoError(t, s.InsertSample(ctx, model.MetricSample{
			EventID:       string(rune('a' + i)),
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			OperationKind: model.OpFrameAnalysis,
			LatencyMS:     latency,
			CostUSD:       0.001,
			Success:       i != 3,
			ErrorKind:     map[bool]string{true: "", false: "api_error"}[i != 3],
		}))
	}

	first, err := agg.Aggregate(ctx, window, "")
	require.NoError(t, err)
	second, err := agg.Aggregate(ctx, window, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.InDelta(t, 0.25, first.ErrorRate, 0.0001)
}

func TestAggregator_OperationKindFilter(t *testing.T) {
	s := newAggregatorStore(t)
	agg := NewAggregator(s)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := model.TimeRange{Start: base, End: base.Add(time.Hour)}

	require.NoError(t, s.InsertSample(ctx, model.MetricSample{
		EventID: "frame", Timestamp: base, OperationKind: model.OpFrameAnalysis,
		LatencyMS: 100, Success: true,
	}))
	require.NoError(t, s.InsertSample(ctx, model.MetricSample{
		EventID: "decode", Timestamp: base, OperationKind: model.OpVideoDecode,
		LatencyMS: 900, Success: true,
	}))

	stats, err := agg.Aggregate(ctx, window, model.OpFrameAnalysis)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.InDelta(t, 100, stats.MeanLatencyMS, 0.001)
}

func TestCompute_P95NearestRank(t *testing.T) {
	// 100 samples with latencies 1..99 plus one 5000ms outlier:
	// the 95th smallest value is 95ms.
	samples := make([]model.MetricSample, 0, 100)
	for i := 1; i <= 99; i++ {
		samples = append(samples, model.MetricSample{LatencyMS: float64(i), Success: true})
	}
	samples = append(samples, model.MetricSample{LatencyMS: 5000, Success: true})

	stats := Compute(samples)
	assert.Equal(t, 100, stats.Count)
	assert.InDelta(t, 95, stats.P95LatencyMS, 0.001)
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, percentile(nil, 0.95))
	assert.InDelta(t, 7, percentile([]float64{7}, 0.95), 0.001)
	assert.InDelta(t, 2, percentile([]float64{3, 1, 2}, 0.5), 0.001)
	assert.InDelta(t, 3, percentile([]float64{3, 1, 2}, 0.95), 0.001)
}
