package ratelimitcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/ratelimitcache"
)

func newTestCache(t *testing.T) *ratelimitcache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return ratelimitcache.New(rdb, 3600*time.Second)
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Credits int `json:"credits"`
	}
	require.NoError(t, c.Set(ctx, "credit-balance:user-1", payload{Credits: 42}))

	var got payload
	ok, err := c.Get(ctx, "credit-balance:user-1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, got.Credits)
}

func TestCache_GetMiss(t *testing.T) {
	c := newTestCache(t)
	var dest map[string]any
	ok, err := c.Get(context.Background(), "missing-key", &dest)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCache_TryLockFill(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	state, err := c.TryLockFill(ctx, "avatars")
	require.NoError(t, err)
	require.Equal(t, ratelimitcache.FillAcquired, state)

	state2, err := c.TryLockFill(ctx, "avatars")
	require.NoError(t, err)
	require.Equal(t, ratelimitcache.FillWait, state2)

	c.ReleaseFill(ctx, "avatars")
	require.NoError(t, c.Set(ctx, "avatars", []string{"a1"}))

	state3, err := c.TryLockFill(ctx, "avatars")
	require.NoError(t, err)
	require.Equal(t, ratelimitcache.FillHit, state3)
}
