package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/comixlabs/catalog-etl/internal/store"
)

func TestBeginInsertsRunningRow(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	startedAt := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("INSERT INTO etl_run").
		WithArgs("marvel", startedAt, store.RunRunning).
		WillReturnRows(pgxmock.NewRows([]string{"run_id"}).AddRow(int64(11)))

	id, err := s.Begin(context.Background(), "marvel", startedAt)
	require.NoError(t, err)
	require.Equal(t, int64(11), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishUpdatesRunningRowOnce(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	finishedAt := time.Unix(1700003600, 0).UTC()
	notes := "skipped=2"

	mock.ExpectExec("UPDATE etl_run").
		WithArgs(int64(11), finishedAt, 130, 128, store.RunSuccess, &notes, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.Finish(context.Background(), 11, finishedAt, 130, 128, store.RunSuccess, notes)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRefusesSecondFinalization(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	finishedAt := time.Unix(1700003600, 0).UTC()

	mock.ExpectExec("UPDATE etl_run").
		WithArgs(int64(11), finishedAt, 0, 0, store.RunFailed, (*string)(nil), store.RunRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.Finish(context.Background(), 11, finishedAt, 0, 0, store.RunFailed, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not running")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	mock.ExpectQuery("SELECT run_id, source_system").
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "source_system", "started_at", "finished_at",
			"records_read", "records_loaded", "status", "notes",
		}))

	_, err := s.GetRun(context.Background(), 404)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRunsFiltersByStatus(t *testing.T) {
	t.Parallel()

	mock, s := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()
	status := store.RunPartial

	mock.ExpectQuery("SELECT run_id, source_system").
		WithArgs(&status, 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "source_system", "started_at", "finished_at",
			"records_read", "records_loaded", "status", "notes",
		}).AddRow(int64(5), "marvel", started, (*time.Time)(nil), 70, 0, store.RunPartial, (*string)(nil)))

	runs, err := s.ListRuns(context.Background(), &status, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, int64(5), runs[0].ID)
	require.Equal(t, store.RunPartial, runs[0].Status)
	require.Nil(t, runs[0].FinishedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
