package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenCache(t *testing.T) (*TokenCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewTokenCache(rdb), mr
}

func TestTokenCacheMiss(t *testing.T) {
	tc, _ := newTestTokenCache(t)

	_, ok, err := tc.Get(context.Background(), "U1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenCacheSetGet(t *testing.T) {
	tc, _ := newTestTokenCache(t)
	ctx := context.Background()

	require.NoError(t, tc.Set(ctx, "U1", "tok-abc", 10*time.Minute))

	token, ok, err := tc.Get(ctx, "U1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-abc", token)
}

func TestTokenCacheExpiry(t *testing.T) {
	tc, mr := newTestTokenCache(t)
	ctx := context.Background()

	require.NoError(t, tc.Set(ctx, "U1", "tok-abc", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := tc.Get(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenCacheInvalidate(t *testing.T) {
	tc, _ := newTestTokenCache(t)
	ctx := context.Background()

	require.NoError(t, tc.Set(ctx, "U1", "tok-abc", time.Minute))
	tc.Invalidate(ctx, "U1")

	_, ok, err := tc.Get(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, ok)
}
