package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/nora-local/internal/infrastructure/database"
	_ "github.com/nerrad567/nora-local/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, db.Migrate(ctx))
	return NewSQLiteRepository(db.DB)
}

func TestCreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"lock-1", "scene-1", "lock-1"} {
		require.NoError(t, repo.Create(ctx, &AuditLog{
			Action:     "command",
			EntityType: "device",
			EntityID:   id,
			Source:     SourceLocalExecution,
			Details:    map[string]any{"n": i},
			CreatedAt:  base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, defaultLimit, res.Limit)
	require.Len(t, res.Logs, 3)

	// Most recent first, with millisecond ordering preserved.
	assert.Equal(t, float64(2), res.Logs[0].Details["n"])
	assert.Equal(t, float64(0), res.Logs[2].Details["n"])
	assert.True(t, res.Logs[0].CreatedAt.Equal(base.Add(2*time.Millisecond)))
	assert.Regexp(t, `^aud-[0-9a-f]{8}$`, res.Logs[0].ID)

	res, err = repo.List(ctx, Filter{EntityID: "lock-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	for _, l := range res.Logs {
		assert.Equal(t, "lock-1", l.EntityID)
	}
}

func TestListPagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, repo.Create(ctx, &AuditLog{
			Action:     "command",
			EntityType: "device",
			Source:     SourceLocalExecution,
		}))
	}

	res, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Len(t, res.Logs, 1)
	assert.Empty(t, res.Logs[0].EntityID)
	assert.Nil(t, res.Logs[0].Details)

	res, err = repo.List(ctx, Filter{Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, res.Limit)
	assert.Equal(t, 0, res.Offset)
	assert.Len(t, res.Logs, 5)
}

func TestListEmpty(t *testing.T) {
	repo := newTestRepo(t)

	res, err := repo.List(context.Background(), Filter{Action: "command", EntityType: "device"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Logs)
	assert.Empty(t, res.Logs)
}
