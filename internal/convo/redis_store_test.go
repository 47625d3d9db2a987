package convo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, maxTurns int, ttl time.Duration) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, maxTurns, ttl, nil)
	return mr, store
}

func TestRedisStore_CreateAndGetThread(t *testing.T) {
	mr, store := setupTestStore(t, 20, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	id, err := store.CreateThread(ctx, "chat", map[string]string{"user": "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	thread, err := store.GetThread(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.Equal(t, "chat", thread.ToolName)
	assert.Equal(t, "alice", thread.Metadata["user"])
	assert.Empty(t, thread.Turns)
	assert.Equal(t, 0, thread.Stats.TotalTurns)
}

func TestRedisStore_GetThread_Miss(t *testing.T) {
	mr, store := setupTestStore(t, 20, time.Hour)
	defer mr.Close()

	thread, err := store.GetThread(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, thread)
}

func TestRedisStore_AppendTurn_AccumulatesStats(t *testing.T) {
	mr, store := setupTestStore(t, 20, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	id, err := store.CreateThread(ctx, "chat", nil)
	require.NoError(t, err)

	thread, err := store.AppendTurn(ctx, id, Turn{Role: "user", Content: "hi", InputTokens: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, thread.Stats.TotalTurns)
	assert.Equal(t, 3, thread.Stats.TotalInputTokens)

	thread, err = store.AppendTurn(ctx, id, Turn{Role: "assistant", Content: "hello", OutputTokens: 5, Model: "gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, 2, thread.Stats.TotalTurns)
	assert.Equal(t, 3, thread.Stats.TotalInputTokens)
	assert.Equal(t, 5, thread.Stats.TotalOutputTokens)

	reloaded, err := store.GetThread(ctx, id)
	require.NoError(t, err)
	require.Len(t, reloaded.Turns, 2)
	assert.Equal(t, "hi", reloaded.Turns[0].Content)
	assert.Equal(t, "hello", reloaded.Turns[1].Content)
}

func TestRedisStore_AppendTurn_ThreadFull(t *testing.T) {
	mr, store := setupTestStore(t, 2, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	id, err := store.CreateThread(ctx, "chat", nil)
	require.NoError(t, err)

	_, err = store.AppendTurn(ctx, id, Turn{Role: "user", Content: "one"})
	require.NoError(t, err)
	_, err = store.AppendTurn(ctx, id, Turn{Role: "assistant", Content: "two"})
	require.NoError(t, err)

	_, err = store.AppendTurn(ctx, id, Turn{Role: "user", Content: "three"})
	require.Error(t, err)
}

func TestRedisStore_AppendTurn_NotFound(t *testing.T) {
	mr, store := setupTestStore(t, 20, time.Hour)
	defer mr.Close()

	_, err := store.AppendTurn(context.Background(), "ghost", Turn{Role: "user", Content: "hi"})
	require.Error(t, err)
}

func TestRedisStore_AppendTurn_ExpiredThread(t *testing.T) {
	mr, store := setupTestStore(t, 20, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	id, err := store.CreateThread(ctx, "chat", nil)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.AppendTurn(ctx, id, Turn{Role: "user", Content: "too late"})
	require.Error(t, err)
}

func TestRedisStore_ConcurrentAppends_Serialized(t *testing.T) {
	mr, store := setupTestStore(t, 100, time.Hour)
	defer mr.Close()
	ctx := context.Background()

	id, err := store.CreateThread(ctx, "chat", nil)
	require.NoError(t, err)

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := store.AppendTurn(ctx, id, Turn{Role: "user", Content: "msg"})
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	thread, err := store.GetThread(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, n, thread.Stats.TotalTurns)
	assert.Len(t, thread.Turns, n)
}
