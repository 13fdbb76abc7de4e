// Package sqlitetest opens migrated sqlite databases for tests.
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/image-annotation/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/image-annotation/migrations"
	"github.com/garyjia/image-annotation/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Open creates a database file under t.TempDir with every migration applied.
// The connection pool allows concurrent callers so races between transactions are real.
func Open(t testing.TB) *sqlite.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "annotate.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
		BusyTimeout:  10 * time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))

	return sqlite.NewDB(db.DB, logger)
}

// InsertUser adds a user row directly and returns its ID
func InsertUser(t testing.TB, db *sqlite.DB, username, role string) int64 {
	t.Helper()
	res, err := db.ExecContext(context.Background(),
		"INSERT INTO users (username, role) VALUES (?, ?)", username, role)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// InsertTask adds a pending task row directly and returns its ID
func InsertTask(t testing.TB, db *sqlite.DB, createdBy int64, imagePath string) int64 {
	t.Helper()
	res, err := db.ExecContext(context.Background(),
		"INSERT INTO tasks (image_path, original_filename, created_by) VALUES (?, ?, ?)",
		imagePath, filepath.Base(imagePath), createdBy)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// Count returns SELECT COUNT(*) for a query
func Count(t testing.TB, db *sqlite.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}
