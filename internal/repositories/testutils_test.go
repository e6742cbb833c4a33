package repositories_test

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/internal/sqlite"
	"github.com/yusco/siteaudit/internal/testhelpers"
)

// newTestDB creates a new in-memory database seeded with the demo form for testing purposes.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()
	db, err := sqlite.NewDatabase(context.Background(), ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

// newMockDB wires both connection pools to the same sqlmock connection for failure path tests.
func newMockDB(t *testing.T) (*sqlite.Database, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mockDB.Close()
	})
	db := sqlx.NewDb(mockDB, "sqlite3")
	return &sqlite.Database{ReadWrite: db, ReadOnly: db}, mock
}

func sqlmockResult() driver.Result {
	return sqlmock.NewResult(0, 1)
}
