package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records executed statements and fails the first busyFor calls to
// each statement with a busy error.
type fakeConn struct {
	executed []string
	busyFor  int
	failOn   string
	closed   bool
	attempts map[string]int
}

func (c *fakeConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.attempts[query]++
	if query == c.failOn {
		return nil, errors.New("near \"PRAGMA\": syntax error")
	}
	if c.attempts[query] <= c.busyFor {
		return nil, errors.New("database is locked")
	}
	c.executed = append(c.executed, query)
	return driver.RowsAffected(0), nil
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *fakeConn) Close() error                        { c.closed = true; return nil }
func (c *fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

type fakeConnector struct {
	conn *fakeConn
}

func (fc *fakeConnector) Connect(context.Context) (driver.Conn, error) { return fc.conn, nil }
func (fc *fakeConnector) Driver() driver.Driver                        { return nil }

func newFakeConn() *fakeConn {
	return &fakeConn{attempts: map[string]int{}}
}

func TestRetryConnector_RunsInitStatements(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	rc := newRetryConnector(&fakeConnector{conn}, 3, "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000")

	got, err := rc.Connect(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &retryConn{}, got)
	assert.Equal(t, []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"}, conn.executed)
}

func TestRetryConnector_RetriesBusyInitStatements(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	conn.busyFor = 2
	rc := newRetryConnector(&fakeConnector{conn}, 3, "PRAGMA journal_mode=WAL")

	_, err := rc.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, conn.attempts["PRAGMA journal_mode=WAL"])
}

func TestRetryConnector_ClosesConnOnInitFailure(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	conn.failOn = "PRAGMA journal_mode=WAL"
	rc := newRetryConnector(&fakeConnector{conn}, 3, "PRAGMA foreign_keys=ON", "PRAGMA journal_mode=WAL")

	_, err := rc.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRAGMA journal_mode=WAL")
	assert.True(t, conn.closed)
	// Not a busy error, so no retries.
	assert.Equal(t, 1, conn.attempts["PRAGMA journal_mode=WAL"])
}

func TestIsBusyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{errors.New("database table is locked"), true},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("SQLITE_LOCKED"), true},
		{errors.New("error (5): database busy"), true},
		{errors.New("error (6): database locked"), true},
		{errors.New("FOREIGN KEY constraint failed"), false},
		{errors.New("UNIQUE constraint failed: loans.book_id"), false},
	}

	for _, tt := range tests {
		tt := tt
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isBusyError(tt.err))
		})
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	t.Run("retries busy errors until success", func(t *testing.T) {
		attempts := 0
		err := retryWithBackoff(context.Background(), 5, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("returns other errors without retrying", func(t *testing.T) {
		attempts := 0
		err := retryWithBackoff(context.Background(), 5, func() error {
			attempts++
			return errors.New("UNIQUE constraint failed: borrowers.email")
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		err := retryWithBackoff(context.Background(), 2, func() error {
			attempts++
			return errors.New("SQLITE_BUSY")
		})
		require.Error(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops when the context is canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := retryWithBackoff(ctx, 10, func() error {
			attempts++
			return errors.New("database is locked")
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, attempts, 11)
	})
}
