package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/storewatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS metric_samples (
	event_id       TEXT PRIMARY KEY,
	ts             DATETIME NOT NULL,
	operation_kind TEXT NOT NULL,
	latency_ms     REAL NOT NULL,
	cost_usd       REAL NOT NULL,
	success        INTEGER NOT NULL,
	error_kind     TEXT
);

CREATE TABLE IF NOT EXISTS observations (
	event_id         TEXT PRIMARY KEY,
	ts               DATETIME NOT NULL,
	frame_reference  TEXT NOT NULL,
	verdict_text     TEXT NOT NULL,
	verdict_category TEXT NOT NULL,
	confidence       REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	id          TEXT PRIMARY KEY,
	event_id    TEXT NOT NULL,
	reviewer_id TEXT NOT NULL,
	label       TEXT NOT NULL,
	ts          DATETIME NOT NULL,
	comment     TEXT
);

CREATE TABLE IF NOT EXISTS alerts (
	alert_id        TEXT PRIMARY KEY,
	triggered_at    DATETIME NOT NULL,
	rule_name       TEXT NOT NULL,
	severity        TEXT NOT NULL,
	observed_value  REAL NOT NULL,
	threshold_value REAL NOT NULL,
	cooldown_until  DATETIME NOT NULL,
	acknowledged    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS models (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	version       TEXT NOT NULL,
	metadata      TEXT,
	registered_at DATETIME NOT NULL,
	UNIQUE(name, version)
);

CREATE INDEX IF NOT EXISTS idx_metric_samples_ts ON metric_samples(ts);
CREATE INDEX IF NOT EXISTS idx_metric_samples_op ON metric_samples(operation_kind, ts);
CREATE INDEX IF NOT EXISTS idx_observations_ts ON observations(ts);
CREATE INDEX IF NOT EXISTS idx_observations_category ON observations(verdict_category);
CREATE INDEX IF NOT EXISTS idx_feedback_event_id ON feedback(event_id, ts);
CREATE INDEX IF NOT EXISTS idx_alerts_triggered_at ON alerts(triggered_at);
CREATE INDEX IF NOT EXISTS idx_alerts_acknowledged ON alerts(acknowledged);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return storageErr("sqlite: migrate", err)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertSample(ctx context.Context, sample model.MetricSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metric_samples (event_id, ts, operation_kind, latency_ms, cost_usd, success, error_kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sample.EventID, sample.Timestamp.UTC(), sample.OperationKind,
		sample.LatencyMS, sample.CostUSD, boolToInt(sample.Success), nullString(sample.ErrorKind),
	)
	return storageErr("sqlite: insert sample", err)
}

func (s *SQLiteStore) ListSamples(ctx context.Context, filter SampleFilter) ([]model.MetricSample, error) {
	query := `SELECT event_id, ts, operation_kind, latency_ms, cost_usd, success, error_kind
	          FROM metric_samples WHERE 1=1`
	var args []any

	if !filter.Window.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, filter.Window.Start.UTC())
	}
	if !filter.Window.End.IsZero() {
		query += ` AND ts < ?`
		args = append(args, filter.Window.End.UTC())
	}
	if filter.OperationKind != "" {
		query += ` AND operation_kind = ?`
		args = append(args, filter.OperationKind)
	}
	query += ` ORDER BY ts ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("sqlite: list samples", err)
	}
	defer rows.Close()

	var samples []model.MetricSample
	for rows.Next() {
		var m model.MetricSample
		var success int
		var errorKind sql.NullString
		if err := rows.Scan(&m.EventID, &m.Timestamp, &m.OperationKind, &m.LatencyMS, &m.CostUSD, &success, &errorKind); err != nil {
			return nil, storageErr("sqlite: scan sample", err)
		}
		m.Success = success != 0
		m.ErrorKind = errorKind.String
		samples = append(samples, m)
	}
	return samples, storageErr("sqlite: list samples iterate", rows.Err())
}

func (s *SQLiteStore) InsertObservation(ctx context.Context, o model.Observation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (event_id, ts, frame_reference, verdict_text, verdict_category, confidence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.EventID, o.Timestamp.UTC(), o.FrameReference, o.VerdictText, string(o.VerdictCategory), o.Confidence,
	)
	return storageErr("sqlite: insert observation", err)
}

func (s *SQLiteStore) GetObservation(ctx context.Context, eventID string) (*model.Observation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT event_id, ts, frame_reference, verdict_text, verdict_category, confidence
		 FROM observations WHERE event_id = ?`,
		eventID,
	)
	var o model.Observation
	err := row.Scan(&o.EventID, &o.Timestamp, &o.FrameReference, &o.VerdictText, &o.VerdictCategory, &o.Confidence)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("sqlite: get observation", err)
	}
	return &o, nil
}

func (s *SQLiteStore) ListObservations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error) {
	query := `SELECT event_id, ts, frame_reference, verdict_text, verdict_category, confidence
	          FROM observations WHERE 1=1`
	var args []any

	if !filter.Window.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, filter.Window.Start.UTC())
	}
	if !filter.Window.End.IsZero() {
		query += ` AND ts < ?`
		args = append(args, filter.Window.End.UTC())
	}
	if filter.Category != "" {
		query += ` AND verdict_category = ?`
		args = append(args, string(filter.Category))
	}
	query += ` ORDER BY ts DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("sqlite: list observations", err)
	}
	defer rows.Close()

	var obs []model.Observation
	for rows.Next() {
		var o model.Observation
		if err := rows.Scan(&o.EventID, &o.Timestamp, &o.FrameReference, &o.VerdictText, &o.VerdictCategory, &o.Confidence); err != nil {
			return nil, storageErr("sqlite: scan observation", err)
		}
		obs = append(obs, o)
	}
	return obs, storageErr("sqlite: list observations iterate", rows.Err())
}

func (s *SQLiteStore) InsertFeedback(ctx context.Context, f model.FeedbackEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, event_id, reviewer_id, label, ts, comment) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), f.EventID, f.ReviewerID, string(f.Label), f.Timestamp.UTC(), nullString(f.Comment),
	)
	return storageErr("sqlite: insert feedback", err)
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, eventIDs []string) ([]model.FeedbackEntry, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(eventIDs)), ",")
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT event_id, reviewer_id, label, ts, comment FROM feedback
		             WHERE event_id IN (%s) ORDER BY ts ASC`, placeholders),
		args...,
	)
	if err != nil {
		return nil, storageErr("sqlite: list feedback", err)
	}
	defer rows.Close()

	var entries []model.FeedbackEntry
	for rows.Next() {
		var f model.FeedbackEntry
		var comment sql.NullString
		if err := rows.Scan(&f.EventID, &f.ReviewerID, &f.Label, &f.Timestamp, &comment); err != nil {
			return nil, storageErr("sqlite: scan feedback", err)
		}
		f.Comment = comment.String
		entries = append(entries, f)
	}
	return entries, storageErr("sqlite: list feedback iterate", rows.Err())
}

func (s *SQLiteStore) InsertAlert(ctx context.Context, a model.AlertEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (alert_id, triggered_at, rule_name, severity, observed_value, threshold_value, cooldown_until, acknowledged)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AlertID, a.TriggeredAt.UTC(), a.RuleName, string(a.Severity),
		a.ObservedValue, a.ThresholdValue, a.CooldownUntil.UTC(), boolToInt(a.Acknowledged),
	)
	return storageErr("sqlite: insert alert", err)
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.AlertEvent, error) {
	query := `SELECT alert_id, triggered_at, rule_name, severity, observed_value, threshold_value, cooldown_until, acknowledged
	          FROM alerts WHERE 1=1`
	var args []any

	if filter.Acknowledged != nil {
		query += ` AND acknowledged = ?`
		args = append(args, boolToInt(*filter.Acknowledged))
	}
	query += ` ORDER BY triggered_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("sqlite: list alerts", err)
	}
	defer rows.Close()

	var alerts []model.AlertEvent
	for rows.Next() {
		var a model.AlertEvent
		var acked int
		if err := rows.Scan(&a.AlertID, &a.TriggeredAt, &a.RuleName, &a.Severity, &a.ObservedValue, &a.ThresholdValue, &a.CooldownUntil, &acked); err != nil {
			return nil, storageErr("sqlite: scan alert", err)
		}
		a.Acknowledged = acked != 0
		alerts = append(alerts, a)
	}
	return alerts, storageErr("sqlite: list alerts iterate", rows.Err())
}

func (s *SQLiteStore) AcknowledgeAlert(ctx context.Context, alertID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged = 1 WHERE alert_id = ?`,
		alertID,
	)
	if err != nil {
		return storageErr("sqlite: acknowledge alert", err)
	}
	return checkRowsAffected(res, "alert", alertID)
}

func (s *SQLiteStore) CountOpenAlerts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE acknowledged = 0`,
	).Scan(&n)
	return n, storageErr("sqlite: count open alerts", err)
}

func (s *SQLiteStore) RegisterModel(ctx context.Context, name, version string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal model metadata")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO models (id, name, version, metadata, registered_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name, version) DO UPDATE SET metadata = excluded.metadata`,
		uuid.New().String(), name, version, string(metaJSON), time.Now().UTC(),
	)
	return storageErr("sqlite: register model", err)
}

func (s *SQLiteStore) PurgeBefore(ctx context.Context, cutoff time.Time) (PurgeResult, error) {
	var result PurgeResult

	res, err := s.db.ExecContext(ctx, `DELETE FROM metric_samples WHERE ts < ?`, cutoff.UTC())
	if err != nil {
		return result, storageErr("sqlite: purge samples", err)
	}
	n, _ := res.RowsAffected()
	result.Samples = int(n)

	res, err = s.db.ExecContext(ctx, `DELETE FROM observations WHERE ts < ?`, cutoff.UTC())
	if err != nil {
		return result, storageErr("sqlite: purge observations", err)
	}
	n, _ = res.RowsAffected()
	result.Observations = int(n)

	return result, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
