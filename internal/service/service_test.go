package service

import (
	"path/filepath"
	"testing"

	"github.com/flipwise/flipwise/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := db.Init(db.DriverSQLite, dsn)
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.RunMigrations(conn.DB, db.DriverSQLite))
	return conn
}

func newTestEmailService() *EmailService {
	return NewEmailService("", "noreply@example.com", "http://localhost:5000", "Flipwise", true)
}
