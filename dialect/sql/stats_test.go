package sql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/datagraph/dialect"
)

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(time.Hour),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	assert.Equal(t, time.Hour, drv.SlowThreshold())

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT 1", []any{}, rows))
	require.NoError(t, rows.Close())
	mock.ExpectExec("DELETE FROM jobs").WillReturnError(errors.New("locked"))
	require.Error(t, drv.Exec(context.Background(), "DELETE FROM jobs", []any{}, nil))
	assert.Empty(t, slow)

	drv.SetSlowThreshold(-1)
	mock.ExpectQuery("SELECT 2").WillReturnRows(sqlmock.NewRows([]string{"2"}).AddRow(2))
	require.NoError(t, drv.Query(context.Background(), "SELECT 2", []any{}, rows))
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"SELECT 2"}, slow)

	s := drv.QueryStats().Stats()
	assert.Equal(t, int64(2), s.TotalQueries)
	assert.Equal(t, int64(1), s.TotalExecs)
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, int64(1), s.SlowQueries)
	assert.True(t, strings.HasPrefix(s.String(), "queries=2 execs=1 "))

	drv.QueryStats().Reset()
	assert.Zero(t, drv.QueryStats().Stats().TotalQueries)
	assert.Zero(t, drv.QueryStats().Stats().AvgQueryDuration())
	require.NoError(t, mock.ExpectationsWereMet())
}
