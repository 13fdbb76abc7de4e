package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/image-annotation/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/image-annotation/internal/infrastructure/persistence/sqlitetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTransaction_CommitAndRollback(t *testing.T) {
	db := sqlitetest.Open(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		assert.True(t, sqlite.InTransaction(txCtx))
		_, err := sqlite.ExecutorFrom(txCtx, db.DB).ExecContext(txCtx,
			"INSERT INTO users (username, role) VALUES ('kept', 'admin')")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := sqlite.ExecutorFrom(txCtx, db.DB).ExecContext(txCtx,
			"INSERT INTO users (username, role) VALUES ('dropped', 'admin')"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1, sqlitetest.Count(t, db, "SELECT COUNT(*) FROM users"))
	assert.Equal(t, 0, sqlitetest.Count(t, db, "SELECT COUNT(*) FROM users WHERE username = 'dropped'"))
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := sqlitetest.Open(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(outer context.Context) error {
		return db.WithTransaction(outer, func(inner context.Context) error {
			_, err := sqlite.ExecutorFrom(inner, db.DB).ExecContext(inner,
				"INSERT INTO users (username, role) VALUES ('nested', 'admin')")
			if err != nil {
				return err
			}
			return errors.New("inner failure")
		})
	})
	require.Error(t, err)
	assert.Zero(t, sqlitetest.Count(t, db, "SELECT COUNT(*) FROM users"))
}

func TestWithTransaction_PanicRollsBack(t *testing.T) {
	db := sqlitetest.Open(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = db.WithTransaction(ctx, func(txCtx context.Context) error {
			_, _ = sqlite.ExecutorFrom(txCtx, db.DB).ExecContext(txCtx,
				"INSERT INTO users (username, role) VALUES ('panic', 'admin')")
			panic("unexpected")
		})
	})
	assert.Zero(t, sqlitetest.Count(t, db, "SELECT COUNT(*) FROM users"))
}

func TestExecutorFrom_NoTransaction(t *testing.T) {
	db := sqlitetest.Open(t)
	assert.False(t, sqlite.InTransaction(context.Background()))
	assert.Equal(t, sqlite.Executor(db.DB), sqlite.ExecutorFrom(context.Background(), db.DB))
}

func TestIsUniqueViolation(t *testing.T) {
	db := sqlitetest.Open(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "INSERT INTO users (username, role) VALUES ('u', 'admin')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO users (username, role) VALUES ('u', 'admin')")
	require.Error(t, err)

	assert.True(t, sqlite.IsUniqueViolation(err))
	assert.False(t, sqlite.IsForeignKeyViolation(err))
	assert.False(t, sqlite.IsBusy(err))
	assert.False(t, sqlite.IsUniqueViolation(errors.New("plain")))

	_, err = db.ExecContext(ctx, "INSERT INTO tasks (image_path, created_by) VALUES ('x', 999)")
	require.Error(t, err)
	assert.True(t, sqlite.IsForeignKeyViolation(err))
}
