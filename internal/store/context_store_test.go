package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/convoflow/pkg/models"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestContextStoreRoundTrip(t *testing.T) {
	store := NewContextStore(testRedis(t), time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cctx := models.NewContext("conv-1", "lead-1", "tenant-1", "graph-1", "start", now)
	cctx.SetStatus(models.StatusWaitingInput)
	cctx.SetField("nome", "Joao Silva")
	cctx.AppendVisit(models.NodeVisit{NodeID: "start", Kind: models.KindGreeting, EnteredAt: now})

	require.NoError(t, store.Save(ctx, cctx))

	loaded, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", loaded.ConversationID)
	assert.Equal(t, models.StatusWaitingInput, loaded.Status())
	assert.Equal(t, []string{"start"}, loaded.VisitedNodeIDs())

	v, ok := loaded.GetField("nome")
	require.True(t, ok)
	assert.Equal(t, "Joao Silva", v)
}

func TestContextStoreMissing(t *testing.T) {
	store := NewContextStore(testRedis(t), time.Hour)

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrContextNotFound)
}

func TestContextStoreDelete(t *testing.T) {
	store := NewContextStore(testRedis(t), time.Hour)
	ctx := context.Background()

	cctx := models.NewContext("conv-2", "l", "t", "g", "n", time.Now())
	require.NoError(t, store.Save(ctx, cctx))
	require.NoError(t, store.Delete(ctx, "conv-2"))

	_, err := store.Load(ctx, "conv-2")
	assert.ErrorIs(t, err, models.ErrContextNotFound)
}

func TestContextStoreActiveConversationIDs(t *testing.T) {
	store := NewContextStore(testRedis(t), time.Hour)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, models.NewContext(id, "l", "t", "g", "n", time.Now())))
	}

	ids, err := store.ActiveConversationIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestRedisLockSingleFlight(t *testing.T) {
	client := testRedis(t)
	lock := NewRedisLock(client, time.Minute, nil)

	require.True(t, lock.TryAcquire("conv-1"))
	assert.False(t, lock.TryAcquire("conv-1"))
	assert.True(t, lock.TryAcquire("conv-2"))

	lock.Release("conv-1")
	assert.True(t, lock.TryAcquire("conv-1"))
}

func TestSweeperMarksIdleConversations(t *testing.T) {
	client := testRedis(t)
	store := NewContextStore(client, time.Hour)
	ctx := context.Background()

	stale := models.NewContext("stale", "l", "t", "g", "n", time.Now().Add(-2*time.Hour))
	stale.SetStatus(models.StatusWaitingInput)
	require.NoError(t, store.Save(ctx, stale))

	fresh := models.NewContext("fresh", "l", "t", "g", "n", time.Now())
	fresh.SetStatus(models.StatusWaitingInput)
	require.NoError(t, store.Save(ctx, fresh))

	done := models.NewContext("done", "l", "t", "g", "n", time.Now().Add(-2*time.Hour))
	done.SetStatus(models.StatusCompleted)
	require.NoError(t, store.Save(ctx, done))

	sweeper := NewTimeoutSweeper(store, nil, 30*time.Minute, nil)
	assert.Equal(t, 1, sweeper.Sweep(ctx))

	swept, err := store.Load(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTimeout, swept.Status())

	untouched, err := store.Load(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingInput, untouched.Status())

	terminal, err := store.Load(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, terminal.Status())
}
