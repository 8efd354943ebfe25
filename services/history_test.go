package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-router/models"
)

func TestMemoryHistoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryHistoryStore(time.Hour)
	store.now = func() time.Time { return now }

	turns, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, turns)

	require.NoError(t, store.Append(ctx, "p1", models.CustomerTurn("hi", now)))
	require.NoError(t, store.Append(ctx, "p1", models.AssistantTurn("hello", now)))

	turns, err = store.Load(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.RoleCustomer, turns[0].Role)
	assert.Equal(t, "hello", turns[1].Text)

	// returned slice is a copy
	turns[0].Text = "changed"
	again, _ := store.Load(ctx, "p1")
	assert.Equal(t, "hi", again[0].Text)

	require.NoError(t, store.Clear(ctx, "p1"))
	turns, _ = store.Load(ctx, "p1")
	assert.Nil(t, turns)
}

func TestMemoryHistoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryHistoryStore(time.Hour)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Append(ctx, "old", models.CustomerTurn("a", now)))
	now = now.Add(30 * time.Minute)
	require.NoError(t, store.Append(ctx, "fresh", models.CustomerTurn("b", now)))

	now = now.Add(30 * time.Minute)
	turns, _ := store.Load(ctx, "old")
	assert.Nil(t, turns, "entry expires exactly ttl after its last append")

	require.NoError(t, store.Append(ctx, "stale", models.CustomerTurn("c", now)))
	now = now.Add(2 * time.Hour)

	count, err := store.EvictExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryHistoryStoreCapsTurns(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(time.Hour)
	for i := 0; i < MaxHistoryTurns+5; i++ {
		require.NoError(t, store.Append(ctx, "p1", models.CustomerTurn("x", time.Now())))
	}
	turns, _ := store.Load(ctx, "p1")
	assert.Len(t, turns, MaxHistoryTurns)
}

func TestRedisHistoryStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store := NewRedisHistoryStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.Load(ctx, "p1")
	assert.Error(t, err)
	assert.Error(t, store.Append(ctx, "p1", models.CustomerTurn("hi", time.Now())))
	assert.Error(t, store.Clear(ctx, "p1"))
	assert.NoError(t, store.Append(ctx, "p1"))

	assert.Equal(t, "history:p1", historyKey("p1"))
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url", time.Second)
	assert.Error(t, err)
}

func newMiniredisStore(t *testing.T, ttl time.Duration) (*RedisHistoryStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisHistoryStore(client, ttl), server
}

func TestRedisHistoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store, server := newMiniredisStore(t, time.Hour)

	turns, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, turns)

	require.NoError(t, store.Append(ctx, "p1",
		models.CustomerTurn("hi", now),
		models.AssistantTurn("hello", now.Add(time.Second))))
	require.NoError(t, store.Append(ctx, "p1", models.CustomerTurn("I need a TV", now.Add(2*time.Second))))

	turns, err = store.Load(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, models.RoleCustomer, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Text)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
	assert.Equal(t, "hello", turns[1].Text)
	assert.Equal(t, "I need a TV", turns[2].Text)
	assert.True(t, turns[2].At.Equal(now.Add(2*time.Second)))

	// stored as one JSON document per turn
	raw, err := server.List(historyKey("p1"))
	require.NoError(t, err)
	assert.Len(t, raw, 3)
	assert.Contains(t, raw[0], `"hi"`)

	assert.Equal(t, time.Hour, server.TTL(historyKey("p1")))

	require.NoError(t, store.Clear(ctx, "p1"))
	assert.False(t, server.Exists(historyKey("p1")))
	turns, err = store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, turns)
}

func TestRedisHistoryStoreCapsTurns(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniredisStore(t, time.Hour)

	for i := 0; i < MaxHistoryTurns+5; i++ {
		require.NoError(t, store.Append(ctx, "p1", models.CustomerTurn(fmt.Sprintf("msg %d", i), time.Now())))
	}

	turns, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, turns, MaxHistoryTurns)
	assert.Equal(t, "msg 5", turns[0].Text, "oldest turns are trimmed first")
	assert.Equal(t, fmt.Sprintf("msg %d", MaxHistoryTurns+4), turns[len(turns)-1].Text)
}

func TestRedisHistoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, server := newMiniredisStore(t, time.Hour)

	require.NoError(t, store.Append(ctx, "p1", models.CustomerTurn("a", time.Now())))
	server.FastForward(45 * time.Minute)
	require.NoError(t, store.Append(ctx, "p1", models.CustomerTurn("b", time.Now())))
	assert.Equal(t, time.Hour, server.TTL(historyKey("p1")), "append refreshes the ttl")

	server.FastForward(30 * time.Minute)
	turns, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	server.FastForward(31 * time.Minute)
	turns, err = store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, turns)
}

func TestRedisHistoryStoreCorruptEntry(t *testing.T) {
	store, server := newMiniredisStore(t, time.Hour)
	_, err := server.Push(historyKey("p1"), "not json")
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "p1")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+server.Addr()+"/0", time.Second)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}
