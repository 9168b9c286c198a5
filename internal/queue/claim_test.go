package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClaims(t *testing.T) (*ClaimStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewClaimStore(client, "trades", time.Minute, time.Hour), mr
}

func TestClaimStore(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestClaims(t)

	state, err := store.Claim(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, state)
	assert.True(t, mr.Exists("trades:claim:42"))

	state, err = store.Claim(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, ClaimPending, state, "an unfinished claim is not a duplicate")

	require.NoError(t, store.Complete(ctx, "42"))
	state, err = store.Claim(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, ClaimDone, state)

	mr.FastForward(2 * time.Hour)
	state, err = store.Claim(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, state, "completed claims expire after the ttl")
}

func TestClaimStoreRelease(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestClaims(t)

	_, err := store.Claim(ctx, "42")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "42"))

	state, err := store.Claim(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, state)
}

func TestClaimStorePendingLeaseExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestClaims(t)

	// holder claimed and never completed, as after a crash
	_, err := store.Claim(ctx, "42")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	state, err := store.Claim(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, state)
}

func TestClaimStoreDefaults(t *testing.T) {
	store := NewClaimStore(nil, "trades", 0, 0)
	assert.Equal(t, DefaultClaimLease, store.lease)
	assert.Equal(t, DefaultClaimTTL, store.ttl)
}
