package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/storewatch/internal/db"
	"github.com/sells-group/storewatch/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path writes.
var preparedStatements = map[string]string{
	"insert_sample":      `INSERT INTO metric_samples (event_id, ts, operation_kind, latency_ms, cost_usd, success, error_kind) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"insert_observation": `INSERT INTO observations (event_id, ts, frame_reference, verdict_text, verdict_category, confidence) VALUES ($1, $2, $3, $4, $5, $6)`,
	"insert_feedback":    `INSERT INTO feedback (id, event_id, reviewer_id, label, ts, comment) VALUES ($1, $2, $3, $4, $5, $6)`,
	"insert_alert":       `INSERT INTO alerts (alert_id, triggered_at, rule_name, severity, observed_value, threshold_value, cooldown_until, acknowledged) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_observation":    `SELECT event_id, ts, frame_reference, verdict_text, verdict_category, confidence FROM observations WHERE event_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS metric_samples (
	event_id       TEXT PRIMARY KEY,
	ts             TIMESTAMPTZ NOT NULL,
	operation_kind TEXT NOT NULL,
	latency_ms     DOUBLE PRECISION NOT NULL,
	cost_usd       DOUBLE PRECISION NOT NULL,
	success        BOOLEAN NOT NULL,
	error_kind     TEXT
);

CREATE TABLE IF NOT EXISTS observations (
	event_id         TEXT PRIMARY KEY,
	ts               TIMESTAMPTZ NOT NULL,
	frame_reference  TEXT NOT NULL,
	verdict_text     TEXT NOT NULL,
	verdict_category TEXT NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	id          TEXT PRIMARY KEY,
	event_id    TEXT NOT NULL,
	reviewer_id TEXT NOT NULL,
	label       TEXT NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	comment     TEXT
);

CREATE TABLE IF NOT EXISTS alerts (
	alert_id        TEXT PRIMARY KEY,
	triggered_at    TIMESTAMPTZ NOT NULL,
	rule_name       TEXT NOT NULL,
	severity        TEXT NOT NULL,
	observed_value  DOUBLE PRECISION NOT NULL,
	threshold_value DOUBLE PRECISION NOT NULL,
	cooldown_until  TIMESTAMPTZ NOT NULL,
	acknowledged    BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS models (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	version       TEXT NOT NULL,
	metadata      JSONB,
	registered_at TIMESTAMPTZ NOT NULL,
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return storageErr("postgres: migrate", err)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertSample(ctx context.Context, sample model.MetricSample) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO metric_samples (event_id, ts, operation_kind, latency_ms, cost_usd, success, error_kind)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sample.EventID, sample.Timestamp.UTC(), sample.OperationKind,
		sample.LatencyMS, sample.CostUSD, sample.Success, textOrNil(sample.ErrorKind),
	)
	return storageErr("postgres: insert sample", err)
}

func (s *PostgresStore) ListSamples(ctx context.Context, filter SampleFilter) ([]model.MetricSample, error) {
	query := `SELECT event_id, ts, operation_kind, latency_ms, cost_usd, success, COALESCE(error_kind, '')
	          FROM metric_samples WHERE 1=1`
	var args []any

	if !filter.Window.Start.IsZero() {
		args = append(args, filter.Window.Start.UTC())
		query += placeholder(` AND ts >= $%d`, len(args))
	}
	if !filter.Window.End.IsZero() {
		args = append(args, filter.Window.End.UTC())
		query += placeholder(` AND ts < $%d`, len(args))
	}
	if filter.OperationKind != "" {
		args = append(args, filter.OperationKind)
		query += placeholder(` AND operation_kind = $%d`, len(args))
	}
	query += ` ORDER BY ts ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += placeholder(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("postgres: list samples", err)
	}
	defer rows.Close()

	var samples []model.MetricSample
	for rows.Next() {
		var m model.MetricSample
		if err := rows.Scan(&m.EventID, &m.Timestamp, &m.OperationKind, &m.LatencyMS, &m.CostUSD, &m.Success, &m.ErrorKind); err != nil {
			return nil, storageErr("postgres: scan sample", err)
		}
		samples = append(samples, m)
	}
	return samples, storageErr("postgres: list samples iterate", rows.Err())
}

func (s *PostgresStore) InsertObservation(ctx context.Context, o model.Observation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO observations (event_id, ts, frame_reference, verdict_text, verdict_category, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		o.EventID, o.Timestamp.UTC(), o.FrameReference, o.VerdictText, string(o.VerdictCategory), o.Confidence,
	)
	return storageErr("postgres: insert observation", err)
}

func (s *PostgresStore) GetObservation(ctx context.Context, eventID string) (*model.Observation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT event_id, ts, frame_reference, verdict_text, verdict_category, confidence
		 FROM observations WHERE event_id = $1`,
		eventID,
	)
	var o model.Observation
	err := row.Scan(&o.EventID, &o.Timestamp, &o.FrameReference, &o.VerdictText, &o.VerdictCategory, &o.Confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("postgres: get observation", err)
	}
	return &o, nil
}

func (s *PostgresStore) ListObservations(ctx context.Context, filter ObservationFilter) ([]model.Observation, error) {
	query := `SELECT event_id, ts, frame_reference, verdict_text, verdict_category, confidence
	          FROM observations WHERE 1=1`
	var args []any

	if !filter.Window.Start.IsZero() {
		args = append(args, filter.Window.Start.UTC())
		query += placeholder(` AND ts >= $%d`, len(args))
	}
	if !filter.Window.End.IsZero() {
		args = append(args, filter.Window.End.UTC())
		query += placeholder(` AND ts < $%d`, len(args))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		query += placeholder(` AND verdict_category = $%d`, len(args))
	}
	query += ` ORDER BY ts DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += placeholder(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("postgres: list observations", err)
	}
	defer rows.Close()

	var obs []model.Observation
	for rows.Next() {
		var o model.Observation
		if err := rows.Scan(&o.EventID, &o.Timestamp, &o.FrameReference, &o.VerdictText, &o.VerdictCategory, &o.Confidence); err != nil {
			return nil, storageErr("postgres: scan observation", err)
		}
		obs = append(obs, o)
	}
	return obs, storageErr("postgres: list observations iterate", rows.Err())
}

func (s *PostgresStore) InsertFeedback(ctx context.Context, f model.FeedbackEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO feedback (id, event_id, reviewer_id, label, ts, comment) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), f.EventID, f.ReviewerID, string(f.Label), f.Timestamp.UTC(), textOrNil(f.Comment),
	)
	return storageErr("postgres: insert feedback", err)
}

func (s *PostgresStore) ListFeedback(ctx context.Context, eventIDs []string) ([]model.FeedbackEntry, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT event_id, reviewer_id, label, ts, COALESCE(comment, '') FROM feedback
		 WHERE event_id = ANY($1) ORDER BY ts ASC`,
		eventIDs,
	)
	if err != nil {
		return nil, storageErr("postgres: list feedback", err)
	}
	defer rows.Close()

	var entries []model.FeedbackEntry
	for rows.Next() {
		var f model.FeedbackEntry
		if err := rows.Scan(&f.EventID, &f.ReviewerID, &f.Label, &f.Timestamp, &f.Comment); err != nil {
			return nil, storageErr("postgres: scan feedback", err)
		}
		entries = append(entries, f)
	}
	return entries, storageErr("postgres: list feedback iterate", rows.Err())
}

func (s *PostgresStore) InsertAlert(ctx context.Context, a model.AlertEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (alert_id, triggered_at, rule_name, severity, observed_value, threshold_value, cooldown_until, acknowledged)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.AlertID, a.TriggeredAt.UTC(), a.RuleName, string(a.Severity),
		a.ObservedValue, a.ThresholdValue, a.CooldownUntil.UTC(), a.Acknowledged,
	)
	return storageErr("postgres: insert alert", err)
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.AlertEvent, error) {
	query := `SELECT alert_id, triggered_at, rule_name, severity, observed_value, threshold_value, cooldown_until, acknowledged
	          FROM alerts WHERE 1=1`
	var args []any

	if filter.Acknowledged != nil {
		args = append(args, *filter.Acknowledged)
		query += placeholder(` AND acknowledged = $%d`, len(args))
	}
	query += ` ORDER BY triggered_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += placeholder(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("postgres: list alerts", err)
	}
	defer rows.Close()

	var alerts []model.AlertEvent
	for rows.Next() {
		var a model.AlertEvent
		if err := rows.Scan(&a.AlertID, &a.TriggeredAt, &a.RuleName, &a.Severity, &a.ObservedValue, &a.ThresholdValue, &a.CooldownUntil, &a.Acknowledged); err != nil {
			return nil, storageErr("postgres: scan alert", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, storageErr("postgres: list alerts iterate", rows.Err())
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, alertID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET acknowledged = true WHERE alert_id = $1`,
		alertID,
	)
	if err != nil {
		return storageErr("postgres: acknowledge alert", err)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("alert not found: %s", alertID)
	}
	return nil
}

func (s *PostgresStore) CountOpenAlerts(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM alerts WHERE acknowledged = false`,
	).Scan(&n)
	return n, storageErr("postgres: count open alerts", err)
}

func (s *PostgresStore) RegisterModel(ctx context.Context, name, version string, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal model metadata")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO models (id, name, version, metadata, registered_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name, version) DO UPDATE SET metadata = EXCLUDED.metadata`,
		uuid.New().String(), name, version, metaJSON, time.Now().UTC(),
	)
	return storageErr("postgres: register model", err)
}

func (s *PostgresStore) PurgeBefore(ctx context.Context, cutoff time.Time) (PurgeResult, error) {
	var result PurgeResult

	tag, err := s.pool.Exec(ctx, `DELETE FROM metric_samples WHERE ts < $1`, cutoff.UTC())
	if err != nil {
		return result, storageErr("postgres: purge samples", err)
	}
	result.Samples = int(tag.RowsAffected())

	tag, err = s.pool.Exec(ctx, `DELETE FROM observations WHERE ts < $1`, cutoff.UTC())
	if err != nil {
		return result, storageErr("postgres: purge observations", err)
	}
	result.Observations = int(tag.RowsAffected())

	return result, nil
}

// helpers

func placeholder(format string, n int) string {
	return fmt.Sprintf(format, n)
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
