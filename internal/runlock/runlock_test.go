package runlock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestAcquireRelease(t *testing.T) {
	_, client := testClient(t)
	ctx := context.Background()

	l := New(client, "coach@example.com", "run-1", time.Minute, nil)
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Release(ctx))

	// Free again after release.
	require.NoError(t, New(client, "coach@example.com", "run-2", time.Minute, nil).Acquire(ctx))
}

func TestAcquireHeld(t *testing.T) {
	_, client := testClient(t)
	ctx := context.Background()

	first := New(client, "coach@example.com", "run-1", time.Minute, nil)
	require.NoError(t, first.Acquire(ctx))

	second := New(client, "coach@example.com", "run-2", time.Minute, nil)
	assert.ErrorIs(t, second.Acquire(ctx), ErrHeld)
}

func TestAcquireDifferentAccounts(t *testing.T) {
	_, client := testClient(t)
	ctx := context.Background()

	require.NoError(t, New(client, "a@example.com", "run-1", time.Minute, nil).Acquire(ctx))
	require.NoError(t, New(client, "b@example.com", "run-1", time.Minute, nil).Acquire(ctx))
}

func TestReleaseOnlyOwn(t *testing.T) {
	mr, client := testClient(t)
	ctx := context.Background()

	first := New(client, "coach@example.com", "run-1", time.Minute, nil)
	require.NoError(t, first.Acquire(ctx))

	// Simulate expiry and takeover by another instance.
	mr.FastForward(2 * time.Minute)
	second := New(client, "coach@example.com", "run-2", time.Minute, nil)
	require.NoError(t, second.Acquire(ctx))

	// The stale holder must not free the new holder's lock.
	require.NoError(t, first.Release(ctx))
	third := New(client, "coach@example.com", "run-3", time.Minute, nil)
	assert.ErrorIs(t, third.Acquire(ctx), ErrHeld)
}

func TestAcquireExpires(t *testing.T) {
	mr, client := testClient(t)
	ctx := context.Background()

	require.NoError(t, New(client, "coach@example.com", "run-1", time.Minute, nil).Acquire(ctx))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, New(client, "coach@example.com", "run-2", time.Minute, nil).Acquire(ctx))
}
