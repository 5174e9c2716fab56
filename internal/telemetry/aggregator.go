package telemetry

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
)

// Stats holds rolling statistics over a time window. An empty window yields
// the zero value: every field 0, never NaN.
type Stats struct {
	Count         int     `json:"count"`
	MeanLatencyMS float64 `json:"mean_latency_ms"`
	P95LatencyMS  float64 `json:"p95_latency_ms"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
	ErrorRate     float64 `json:"error_rate"`
}

// Aggregator computes rolling statistics from stored metric samples. It is a
// pure reader: aggregating twice over an unchanged sample set yields
// identical Stats.
type Aggregator struct {
	store store.Store
}

// NewAggregator creates an aggregator backed by the given store.
func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// Aggregate computes Stats over samples whose timestamp falls in the
// half-open window, optionally filtered by operation kind (empty = all).
// Read failures are surfaced: callers decide alerting from these numbers.
func (a *Aggregator) Aggregate(ctx context.Context, window model.TimeRange, operationKind string) (Stats, error) {
	samples, err := a.store.ListSamples(ctx, store.SampleFilter{
		Window:        window,
		OperationKind: operationKind,
	})
	if err != nil {
		return Stats{}, eris.Wrap(err, "telemetry: aggregate")
	}
	return Compute(samples), nil
}

// TrendPoint is the aggregate for one hour-aligned bucket.
type TrendPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Stats
}

// Trends buckets samples in the window into hour-aligned slots and computes
// Stats per slot. Slots with no samples are omitted; points come back in
// chronological order.
func (a *Aggregator) Trends(ctx context.Context, window model.TimeRange, operationKind string) ([]TrendPoint, error) {
	samples, err := a.store.ListSamples(ctx, store.SampleFilter{
		Window:        window,
		OperationKind: operationKind,
	})
	if err != nil {
		return nil, eris.Wrap(err, "telemetry: trends")
	}

	buckets := make(map[time.Time][]model.MetricSample)
	for _, s := range samples {
		start := s.Timestamp.UTC().Truncate(time.Hour)
		buckets[start] = append(buckets[start], s)
	}

	starts := make([]time.Time, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	points := make([]TrendPoint, 0, len(starts))
	for _, start := range starts {
		points = append(points, TrendPoint{BucketStart: start, Stats: Compute(buckets[start])})
	}
	return points, nil
}

// Compute derives Stats from an in-memory sample set.
func Compute(samples []model.MetricSample) Stats {
	var stats Stats
	stats.Count = len(samples)
	if stats.Count == 0 {
		return stats
	}

	latencies := make([]float64, 0, len(samples))
	var totalLatency float64
	var failures int
	for _, s := range samples {
		latencies = append(latencies, s.LatencyMS)
		totalLatency += s.LatencyMS
		stats.TotalCostUSD += s.CostUSD
		if !s.Success {
			failures++
		}
	}

	stats.MeanLatencyMS = totalLatency / float64(stats.Count)
	stats.P95LatencyMS = percentile(latencies, 0.95)
	stats.ErrorRate = float64(failures) / float64(stats.Count)
	return stats
}

// percentile returns the nearest-rank percentile: the ceil(p·n)-th smallest
// value of the sorted set. The input slice is sorted in place.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	rank := int(math.Ceil(p * float64(len(values))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(values) {
		rank = len(values)
	}
	return values[rank-1]
}
