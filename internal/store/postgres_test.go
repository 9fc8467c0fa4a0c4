package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "listing.csv", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "listing.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", &model.RunResult{Total: 5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", &model.RunResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET error`).
		WithArgs("listing unreadable", "failed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailRun(context.Background(), "run-1", errors.New("listing unreadable"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, listing, status, error, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "listing", "status", "error", "result", "created_at", "updated_at"}).
			AddRow("run-1", "listing.csv", string(model.RunStatusComplete), nil, []byte(`{"total":7,"image_count":5}`), now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 7, run.Result.Total)
	assert.Equal(t, 5, run.Result.ImageCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, listing, status, error, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, listing, status, error, result, created_at, updated_at FROM runs WHERE true AND status = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("running", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "listing", "status", "error", "result", "created_at", "updated_at"}).
			AddRow("run-1", "a.csv", string(model.RunStatusRunning), nil, nil, now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a.csv", runs[0].Listing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceRules(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rules := sampleRules("s1")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM rules WHERE source = \$1`).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"rules"},
		[]string{"id", "source", "rank", "pattern", "support", "confidence", "created_at"}).
		WillReturnResult(int64(len(rules)))
	mock.ExpectCommit()

	err := s.ReplaceRules(context.Background(), "s1", rules)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadRules(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT source, pattern, support, confidence FROM rules ORDER BY source, rank`).
		WillReturnRows(pgxmock.NewRows([]string{"source", "pattern", "support", "confidence"}).
			AddRow("s1", []byte(`[{"kind":"well_name"},{"kind":"any"}]`), 4, 0.9).
			AddRow("s2", []byte(`[{"kind":"literal","literal":"well"},{"kind":"depth"}]`), 2, 0.7))

	loaded, err := s.LoadRules(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "<well_name>/<any>", loaded["s1"][0].Pattern.Key())
	assert.Equal(t, "well/<depth>", loaded["s2"][0].Pattern.Key())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAnomalies(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"anomalies"},
		[]string{"id", "run_id", "seq", "record", "reason", "rule", "confidence", "created_at"}).
		WillReturnResult(1)

	anomalies := []model.AnomalyRecord{
		{
			Record: model.NewFileRecord("odd/path.jpg", "s1", model.Labels{}),
			Reason: model.ReasonNoRule,
		},
	}
	err := s.SaveAnomalies(context.Background(), "run-1", anomalies)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Empty saves never touch the pool.
	require.NoError(t, s.SaveAnomalies(context.Background(), "run-1", nil))
}
