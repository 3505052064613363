package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	client, _, cleanup := setupMiniredis(t)
	return client, cleanup
}

// setupMiniredis starts an in-process server; miniredis.RunT stops it when
// the test ends, so cleanup only closes the client.
func setupMiniredis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	return client, mr, func() { _ = client.Close() }
}

const docLock = "ingest:document:doc-1"

// Two replicas ingesting the same document
func twoReplicas(t *testing.T) (*Lock, *Lock, *miniredis.Miniredis) {
	client, mr, cleanup := setupMiniredis(t)
	t.Cleanup(cleanup)
	return NewLock(client), NewLock(client), mr
}

func TestLock_OwnerIDs(t *testing.T) {
	a, b, _ := twoReplicas(t)

	assert.NotEmpty(t, a.OwnerID())
	assert.NotEqual(t, a.OwnerID(), b.OwnerID())
}

func TestLock_SingleHolder(t *testing.T) {
	a, b, mr := twoReplicas(t)
	ctx := context.Background()

	ok, err := a.Acquire(ctx, docLock, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.OwnerID(), mustGet(t, mr, lockPrefix+docLock))

	ok, err = b.Acquire(ctx, docLock, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second replica must not get a held lock")

	ok, err = a.Acquire(ctx, docLock, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock is not reentrant")

	ok, err = b.Acquire(ctx, "ingest:document:doc-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other documents are independent")
}

func TestLock_ReleaseOnlyByHolder(t *testing.T) {
	a, b, mr := twoReplicas(t)
	ctx := context.Background()

	require.NoError(t, b.Release(ctx, docLock), "releasing an unheld lock is a no-op")

	ok, err := a.Acquire(ctx, docLock, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Release(ctx, docLock))
	assert.True(t, mr.Exists(lockPrefix+docLock), "non-holder release must leave the lock")

	require.NoError(t, a.Release(ctx, docLock))
	assert.False(t, mr.Exists(lockPrefix+docLock))

	ok, err = b.Acquire(ctx, docLock, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Extend(t *testing.T) {
	a, b, mr := twoReplicas(t)
	ctx := context.Background()

	assert.Error(t, a.Extend(ctx, docLock, time.Minute), "cannot extend an unheld lock")

	ok, err := a.Acquire(ctx, docLock, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Extend(ctx, docLock, time.Hour))
	assert.Greater(t, mr.TTL(lockPrefix+docLock), time.Minute)

	assert.Error(t, b.Extend(ctx, docLock, time.Hour))
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	a, b, mr := twoReplicas(t)
	ctx := context.Background()

	ok, err := a.Acquire(ctx, docLock, 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(3 * time.Second)

	ok, err = b.Acquire(ctx, docLock, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "an abandoned lock frees itself")
}

func TestLock_Unavailable(t *testing.T) {
	a, _, mr := twoReplicas(t)
	ctx := context.Background()
	require.NoError(t, a.Ping(ctx))

	mr.Close()

	_, err := a.Acquire(ctx, docLock, time.Minute)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.ErrorIs(t, a.Release(ctx, docLock), domain.ErrServiceUnavailable)
	assert.Error(t, a.Ping(ctx))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
