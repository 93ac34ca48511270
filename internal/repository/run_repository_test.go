package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestRunRepositoryClaim(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(runClaimLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM dispatch_runs WHERE status = $1)`)).
		WithArgs(models.RunStatusRunning).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO dispatch_runs`)).
		WithArgs(sqlmock.AnyArg(), models.TriggerManual, models.RunStatusRunning, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	run, err := repo.Claim(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Equal(t, models.TriggerManual, run.Trigger)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryClaimBusy(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)

	// Another RUNNING row is visible once the lock is held; no insert happens.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(runClaimLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM dispatch_runs WHERE status = $1)`)).
		WithArgs(models.RunStatusRunning).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.Claim(context.Background(), models.TriggerScheduled)
	assert.ErrorIs(t, err, ErrRunActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryClaimHoldsLockBeforeChecking(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)

	// A claimant that cannot take the advisory lock never reads the table,
	// so a racing claim cannot slip past the active-run check.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
		WithArgs(runClaimLockKey).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := repo.Claim(context.Background(), models.TriggerManual)
	require.Error(t, err)
	assert.ErrorContains(t, err, "acquire run claim lock")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryComplete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE dispatch_runs`)).
		WithArgs("run-1", models.RunStatusCompleted, sqlmock.AnyArg(), 10, 7, 3, models.RunStatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Complete(context.Background(), "run-1", 10, 7, 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryCompleteRequiresRunningStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE dispatch_runs`)).
		WithArgs("run-1", models.RunStatusCompleted, sqlmock.AnyArg(), 1, 1, 0, models.RunStatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(context.Background(), "run-1", 1, 1, 0)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryFailStoresCause(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE dispatch_runs`)).
		WithArgs("run-1", models.RunStatusFailed, sqlmock.AnyArg(), 4, 2, 1, models.RunStatusRunning, "database gone").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Fail(context.Background(), "run-1", 4, 2, 1, "database gone"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunRepository(db)

	started := time.Date(2025, 6, 10, 5, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "trigger_kind", "status", "started_at", "finished_at", "processed", "assigned", "failed", "error"}).
		AddRow("run-2", "MANUAL", "RUNNING", started.Add(time.Hour), nil, 0, 0, 0, nil).
		AddRow("run-1", "SCHEDULED", "COMPLETED", started, started.Add(time.Minute), 10, 7, 3, nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, trigger_kind, status, started_at, finished_at, processed, assigned, failed, error`)).
		WithArgs(50).
		WillReturnRows(rows)

	runs, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, models.RunStatusCompleted, runs[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
