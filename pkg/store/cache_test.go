package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/trustoracle/oracle/pkg/store"
)

func newTestCache(t *testing.T) *store.Cache {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(redisContainer) })

	connStr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(connStr)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	return store.NewCache(rdb)
}

func TestCacheGetMissingReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	_, ok, err := c.GetCached(t.Context(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheSetThenGetRoundTrips(t *testing.T) {
	c := newTestCache(t)
	ctx := t.Context()

	require.NoError(t, c.SetCached(ctx, "health:1:true:120", []byte(`{"decision":"healthy"}`), time.Minute))

	val, ok, err := c.GetCached(ctx, "health:1:true:120")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"decision":"healthy"}`, string(val))
}

func TestCacheEntryExpiresAfterTTL(t *testing.T) {
	c := newTestCache(t)
	ctx := t.Context()

	require.NoError(t, c.SetCached(ctx, "narrative:1", []byte("x"), 50*time.Millisecond))
	time.Sleep(200 * time.Millisecond)

	_, ok, err := c.GetCached(ctx, "narrative:1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteMatchingOnlyRemovesMatchedKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := t.Context()

	require.NoError(t, c.SetCached(ctx, "health:1:true:120", []byte("a"), time.Minute))
	require.NoError(t, c.SetCached(ctx, "narrative:1", []byte("b"), time.Minute))
	require.NoError(t, c.SetCached(ctx, "health:2:true:90", []byte("c"), time.Minute))

	n, err := c.DeleteMatching(ctx, func(key string) bool {
		return key == "health:1:true:120" || key == "narrative:1"
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, ok, err := c.GetCached(ctx, "health:1:true:120")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = c.GetCached(ctx, "narrative:1")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = c.GetCached(ctx, "health:2:true:90")
	require.NoError(t, err)
	require.True(t, ok)
}
