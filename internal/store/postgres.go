package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rigsight/wellscan-cli/internal/db"
	"github.com/rigsight/wellscan-cli/internal/model"
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
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":   `INSERT INTO runs (id, listing, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_run": `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"fail_run":     `UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":      `SELECT id, listing, status, error, result, created_at, updated_at FROM runs WHERE id = $1`,
	"load_rules":   `SELECT source, pattern, support, confidence FROM rules ORDER BY source, rank`,
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

	// Prepare frequently-used statements on each new connection.
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

// NewPostgresWithPool wraps an existing pool, used by tests to inject a
// mock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	listing    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	error      TEXT,
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rules (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	rank       INTEGER NOT NULL,
	pattern    JSONB NOT NULL,
	support    INTEGER NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS anomalies (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	record     JSONB NOT NULL,
	reason     TEXT NOT NULL,
	rule       JSONB,
	confidence DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_listing ON runs(listing);
CREATE INDEX IF NOT EXISTS idx_rules_source ON rules(source, rank);
CREATE INDEX IF NOT EXISTS idx_anomalies_run_id ON anomalies(run_id, seq);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, listing string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, listing, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, listing, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Listing:   listing,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		runErr.Error(), string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var errMsg *string
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, listing, status, error, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Listing, &r.Status, &errMsg, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if errMsg != nil {
		r.Error = *errMsg
	}
	if resultJSON != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, listing, status, error, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Listing != "" {
		query += fmt.Sprintf(` AND listing = $%d`, argIdx)
		args = append(args, filter.Listing)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var errMsg *string
		var resultJSON []byte

		if err := rows.Scan(&r.ID, &r.Listing, &r.Status, &errMsg, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		if resultJSON != nil {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ReplaceRules(ctx context.Context, source model.Source, rules []model.Rule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace rules")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM rules WHERE source = $1`, string(source)); err != nil {
		return eris.Wrapf(err, "postgres: clear rules for %s", source)
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(rules))
	for rank, rule := range rules {
		patternJSON, err := json.Marshal(rule.Pattern)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal pattern")
		}
		rows = append(rows, []any{
			uuid.New().String(), string(source), rank, patternJSON, rule.Support, rule.Confidence, now,
		})
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"rules"},
			[]string{"id", "source", "rank", "pattern", "support", "confidence", "created_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: copy rules for %s", source)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace rules")
}

func (s *PostgresStore) LoadRules(ctx context.Context) (map[model.Source][]model.Rule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, pattern, support, confidence FROM rules ORDER BY source, rank`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load rules")
	}
	defer rows.Close()

	out := make(map[model.Source][]model.Rule)
	for rows.Next() {
		var source string
		var patternJSON []byte
		var rule model.Rule
		if err := rows.Scan(&source, &patternJSON, &rule.Support, &rule.Confidence); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rule")
		}
		if err := json.Unmarshal(patternJSON, &rule.Pattern); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal pattern")
		}
		rule.Source = model.Source(source)
		out[rule.Source] = append(out[rule.Source], rule)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load rules iterate")
}

func (s *PostgresStore) SaveAnomalies(ctx context.Context, runID string, anomalies []model.AnomalyRecord) error {
	if len(anomalies) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(anomalies))
	for seq, a := range anomalies {
		recordJSON, err := json.Marshal(a.Record)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal anomaly record")
		}
		var ruleJSON []byte
		if a.Rule != nil {
			ruleJSON, err = json.Marshal(a.Rule)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal anomaly rule")
			}
		}
		rows = append(rows, []any{
			uuid.New().String(), runID, seq, recordJSON, string(a.Reason), ruleJSON, a.Confidence, now,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "anomalies",
		[]string{"id", "run_id", "seq", "record", "reason", "rule", "confidence", "created_at"},
		rows,
	)
	return eris.Wrapf(err, "postgres: save anomalies for run %s", runID)
}

func (s *PostgresStore) ListAnomalies(ctx context.Context, runID string) ([]model.AnomalyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record, reason, rule, confidence FROM anomalies WHERE run_id = $1 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list anomalies for run %s", runID)
	}
	defer rows.Close()

	var out []model.AnomalyRecord
	for rows.Next() {
		var a model.AnomalyRecord
		var recordJSON, ruleJSON []byte
		var reason string
		if err := rows.Scan(&recordJSON, &reason, &ruleJSON, &a.Confidence); err != nil {
			return nil, eris.Wrap(err, "postgres: scan anomaly")
		}
		if err := json.Unmarshal(recordJSON, &a.Record); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal anomaly record")
		}
		if ruleJSON != nil {
			a.Rule = &model.Rule{}
			if err := json.Unmarshal(ruleJSON, a.Rule); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal anomaly rule")
			}
		}
		a.Reason = model.AnomalyReason(reason)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list anomalies iterate")
}
