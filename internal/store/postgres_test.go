package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/storewatch/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_InsertSample(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO metric_samples").
		WithArgs("ev-1", now, model.OpFrameAnalysis, 120.0, 0.001, true, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertSample(context.Background(), model.MetricSample{
		EventID:       "ev-1",
		Timestamp:     now,
		OperationKind: model.OpFrameAnalysis,
		LatencyMS:     120,
		CostUSD:       0.001,
		Success:       true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertSample_StorageError(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO metric_samples").
		WithArgs("ev-1", now, model.OpFrameAnalysis, 120.0, 0.001, false, "api_error").
		WillReturnError(assert.AnError)

	err := s.InsertSample(context.Background(), model.MetricSample{
		EventID:       "ev-1",
		Timestamp:     now,
		OperationKind: model.OpFrameAnalysis,
		LatencyMS:     120,
		CostUSD:       0.001,
		Success:       false,
		ErrorKind:     "api_error",
	})
	require.Error(t, err)
	assert.True(t, IsStorage(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSamples(t *testing.T) {
	s, mock := newMockStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := model.TimeRange{Start: base, End: base.Add(5 * time.Minute)}

	rows := pgxmock.NewRows([]string{"event_id", "ts", "operation_kind", "latency_ms", "cost_usd", "success", "error_kind"}).
		AddRow("ev-1", base, model.OpFrameAnalysis, 100.0, 0.001, true, "").
		AddRow("ev-2", base.Add(time.Minute), model.OpFrameAnalysis, 5000.0, 0.002, false, "timeout")

	mock.ExpectQuery("SELECT (.+) FROM metric_samples").
		WithArgs(window.Start, window.End, 10).
		WillReturnRows(rows)

	got, err := s.ListSamples(context.Background(), SampleFilter{Window: window, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "timeout", got[1].ErrorKind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetObservation_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM observations").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"event_id", "ts", "frame_reference", "verdict_text", "verdict_category", "confidence"}))

	got, err := s.GetObservation(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AcknowledgeAlert_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE alerts SET acknowledged").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.AcknowledgeAlert(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alert not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PurgeBefore(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM metric_samples").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 42))
	mock.ExpectExec("DELETE FROM observations").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 40))

	result, err := s.PurgeBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 42, result.Samples)
	assert.Equal(t, 40, result.Observations)
	require.NoError(t, mock.ExpectationsWereMet())
}
