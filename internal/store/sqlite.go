package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Parent directories are created as needed.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create directory %s", dir)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	listing    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	error      TEXT,
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rules (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	rank       INTEGER NOT NULL,
	pattern    TEXT NOT NULL,
	support    INTEGER NOT NULL,
	confidence REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS anomalies (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	record     TEXT NOT NULL,
	reason     TEXT NOT NULL,
	rule       TEXT,
	confidence REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_listing ON runs(listing);
CREATE INDEX IF NOT EXISTS idx_rules_source ON rules(source, rank);
CREATE INDEX IF NOT EXISTS idx_anomalies_run_id ON anomalies(run_id, seq);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, listing string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, listing, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, listing, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Listing:   listing,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		runErr.Error(), string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, listing, status, error, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, listing, status, error, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Listing != "" {
		query += ` AND listing = ?`
		args = append(args, filter.Listing)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ReplaceRules(ctx context.Context, source model.Source, rules []model.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace rules")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE source = ?`, string(source)); err != nil {
		return eris.Wrapf(err, "sqlite: clear rules for %s", source)
	}

	now := time.Now().UTC()
	for rank, rule := range rules {
		patternJSON, err := json.Marshal(rule.Pattern)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal pattern")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rules (id, source, rank, pattern, support, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), string(source), rank, string(patternJSON), rule.Support, rule.Confidence, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert rule for %s", source)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace rules")
}

func (s *SQLiteStore) LoadRules(ctx context.Context) (map[model.Source][]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, pattern, support, confidence FROM rules ORDER BY source, rank`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load rules")
	}
	defer rows.Close()

	out := make(map[model.Source][]model.Rule)
	for rows.Next() {
		var source string
		var patternJSON string
		var rule model.Rule
		if err := rows.Scan(&source, &patternJSON, &rule.Support, &rule.Confidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rule")
		}
		if err := json.Unmarshal([]byte(patternJSON), &rule.Pattern); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal pattern")
		}
		rule.Source = model.Source(source)
		out[rule.Source] = append(out[rule.Source], rule)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load rules iterate")
}

func (s *SQLiteStore) SaveAnomalies(ctx context.Context, runID string, anomalies []model.AnomalyRecord) error {
	if len(anomalies) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save anomalies")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for seq, a := range anomalies {
		recordJSON, err := json.Marshal(a.Record)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal anomaly record")
		}
		var ruleJSON any
		if a.Rule != nil {
			b, err := json.Marshal(a.Rule)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal anomaly rule")
			}
			ruleJSON = string(b)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO anomalies (id, run_id, seq, record, reason, rule, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, seq, string(recordJSON), string(a.Reason), ruleJSON, a.Confidence, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert anomaly for run %s", runID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save anomalies")
}

func (s *SQLiteStore) ListAnomalies(ctx context.Context, runID string) ([]model.AnomalyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record, reason, rule, confidence FROM anomalies WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list anomalies for run %s", runID)
	}
	defer rows.Close()

	var out []model.AnomalyRecord
	for rows.Next() {
		var a model.AnomalyRecord
		var recordJSON string
		var ruleJSON sql.NullString
		var reason string
		if err := rows.Scan(&recordJSON, &reason, &ruleJSON, &a.Confidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan anomaly")
		}
		if err := json.Unmarshal([]byte(recordJSON), &a.Record); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal anomaly record")
		}
		if ruleJSON.Valid {
			a.Rule = &model.Rule{}
			if err := json.Unmarshal([]byte(ruleJSON.String), a.Rule); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal anomaly rule")
			}
		}
		a.Reason = model.AnomalyReason(reason)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list anomalies iterate")
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanRun.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var r model.Run
	var errMsg, resultJSON sql.NullString

	if err := row.Scan(&r.ID, &r.Listing, &r.Status, &errMsg, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run result")
		}
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.New(fmt.Sprintf("%s not found: %s", kind, id))
	}
	return nil
}
