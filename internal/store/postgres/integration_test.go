package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set NUTRILOAD_TEST_POSTGRES_URL to run against a real database. The tests
// truncate foods and ingest_runs.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("NUTRILOAD_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("NUTRILOAD_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, NewFoodStore(pool).Truncate(ctx))
	require.NoError(t, NewRunRepository(pool).Truncate(ctx))
	return pool
}

func TestIntegration_UpsertIsIdempotent(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	store := NewFoodStore(pool)

	chunk := []core.Food{
		{FoodCode: "F1", FoodName: "Chicken Breast", Category: "Meat", ServingSize: 200, Unit: "ml", Calories: 165},
		{FoodCode: "F2", FoodName: "Rice", Category: "Grain", ServingSize: 210, Unit: "g", Calories: 130},
	}
	require.NoError(t, store.UpsertBatch(ctx, chunk))

	first, err := store.FindByCode(ctx, "F1")
	require.NoError(t, err)

	chunk[0].Calories = 170
	require.NoError(t, store.UpsertBatch(ctx, chunk))

	n, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, 170.0, all[0].Calories)
	assert.Equal(t, first.CreatedAt, all[0].CreatedAt)
}

func TestIntegration_RunRepository(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	runs := NewRunRepository(pool)
	id := uuid.NewString()

	started := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, runs.Begin(ctx, id, started))
	assert.ErrorIs(t, runs.Begin(ctx, id, started), core.ErrDuplicateRun)

	res := core.RunResult{
		RunID: id, Status: core.StatusFailed, ChunksCommitted: 2, RecordsCommitted: 2000,
		RecordsRead: 2500, Error: "chunk write failed", StartedAt: started, FinishedAt: started.Add(time.Second),
	}
	require.NoError(t, runs.Finish(ctx, res))

	got, err := runs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, 2000, got.RecordsCommitted)
	assert.Equal(t, "chunk write failed", got.Error)
	assert.True(t, got.FinishedAt.Equal(res.FinishedAt))

	recent, err := runs.List(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, id, recent[0].RunID)
}
