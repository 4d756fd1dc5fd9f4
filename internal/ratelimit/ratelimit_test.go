package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck
	return client
}

func TestTokenBucket(t *testing.T) {
	ctx := context.Background()
	bucket := NewTokenBucket(newTestRedis(t), 2, 0.001, time.Minute)

	allowed, err := bucket.Allow(ctx, "stage")
	require.NoError(t, err)
	assert.True(t, allowed, "first token")

	allowed, err = bucket.Allow(ctx, "stage")
	require.NoError(t, err)
	assert.True(t, allowed, "second token")

	allowed, err = bucket.Allow(ctx, "stage")
	require.NoError(t, err)
	assert.False(t, allowed, "bucket drained")

	// Keys are independent.
	allowed, err = bucket.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSharedPacer_SpacesCalls(t *testing.T) {
	ctx := context.Background()
	interval := 60 * time.Millisecond
	pacer := NewSharedPacer(newTestRedis(t), "ads", interval)
	assert.Equal(t, "prospect:pace:ads", pacer.Key())

	start := time.Now()
	require.NoError(t, pacer.Wait(ctx))
	require.NoError(t, pacer.Wait(ctx))
	require.NoError(t, pacer.Wait(ctx))

	// The first token is free; the next two each wait for a refill.
	assert.GreaterOrEqual(t, time.Since(start), 2*interval-5*time.Millisecond)
}

func TestSharedPacer_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	a := NewSharedPacer(client, "diagnostic", time.Hour)
	b := NewSharedPacer(client, "diagnostic", time.Hour)

	require.NoError(t, a.Wait(ctx))

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := b.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
