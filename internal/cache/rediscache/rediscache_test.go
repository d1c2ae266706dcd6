package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "prediction:k", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "prediction:k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "prediction:k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_GetError(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	mr.SetError("boom")

	_, ok, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	require.False(t, ok)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	t.Cleanup(func() { _ = rl.Close() })

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	mr.FastForward(time.Minute + time.Second)
	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestMinuteKey(t *testing.T) {
	ts := time.Date(2026, 10, 19, 14, 5, 59, 0, time.UTC)
	require.Equal(t, "rl:directions:202610191405", MinuteKey("directions", ts))
	require.Equal(t, MinuteKey("directions", ts), MinuteKey("directions", ts.Add(-30*time.Second)))
}

func TestRateLimiter_Reserve(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	t.Cleanup(func() { _ = rl.Close() })

	ctx := context.Background()
	now := time.Date(2026, 10, 19, 14, 5, 45, 0, time.UTC)

	q, err := rl.Reserve(ctx, "directions", 1, now)
	require.NoError(t, err)
	require.True(t, q.Allowed)
	require.Equal(t, int64(1), q.Used)
	require.Equal(t, 15*time.Second, q.ResetIn)

	q, err = rl.Reserve(ctx, "directions", 1, now.Add(10*time.Second))
	require.NoError(t, err)
	require.False(t, q.Allowed)
	require.Equal(t, 5*time.Second, q.ResetIn)

	// next minute is a fresh bucket
	q, err = rl.Reserve(ctx, "directions", 1, now.Add(20*time.Second))
	require.NoError(t, err)
	require.True(t, q.Allowed)

	mr.SetError("LOADING")
	_, err = rl.Reserve(ctx, "directions", 1, now)
	require.Error(t, err)
}
