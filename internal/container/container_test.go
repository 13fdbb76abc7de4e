package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/image-annotation/internal/application/workflow"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	domainwf "github.com/garyjia/image-annotation/internal/domain/workflow"
)

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "annotation.db")
	cfg.Engine.OperationTimeout = 10 * time.Second
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Engine.Labels = []string{"cat"}
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_StartAndClose(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	c, err := NewContainer(testConfig(t), zap.New(core))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start is refused")

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	_, hasSink := health.Components["event_sink"]
	assert.False(t, hasSink)

	admin, err := c.Repositories().Users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, entity.RoleAdmin, admin.Role)

	// The wired engine runs a create and claim round trip against the real store
	tasks, err := c.Engine().CreateTasks(ctx, workflow.ActorOf(admin), []entity.ImageRef{{Path: "img/1.png"}})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domainwf.StatePending, tasks[0].Status)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close is refused")
	assert.Error(t, c.Start(ctx), "closed container cannot restart")

	assert.NotZero(t, logs.FilterMessage("Container started successfully").Len())
	assert.NotZero(t, logs.FilterMessage("Database closed").Len())
}

func TestContainer_RestartKeepsBootstrapAdmin(t *testing.T) {
	cfg := testConfig(t)
	for i := 0; i < 2; i++ {
		c, err := NewContainer(cfg, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, c.Start(context.Background()))

		users, err := c.Services().Users.ListUsers(context.Background(),
			workflow.Actor{UserID: 1, Role: entity.RoleAdmin}, entity.Page{})
		require.NoError(t, err)
		assert.Len(t, users, 1)
		require.NoError(t, c.Close())
	}
}

func TestContainer_StartFailsOnBadMigrationsDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.MigrationsDir = filepath.Join(t.TempDir(), "missing")

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background()))
	assert.False(t, c.Ready())
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("task_id", int64(3), 42, "skipped", "dangling")
	require.Len(t, fields, 1)
	assert.Equal(t, "task_id", fields[0].Key)
}
