package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.RunLock = (*RedisLock)(nil)

func redisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("NUTRILOAD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NUTRILOAD_TEST_REDIS_ADDR not set")
	}
	return addr
}

func TestRedisLock_Exclusive(t *testing.T) {
	addr := redisAddr(t)
	ctx := context.Background()
	key := "nutriload:test:" + uuid.NewString()

	a, rdb, err := NewRedisLock(ctx, Options{Addr: addr, Key: key, TTL: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	b := New(rdb, key, time.Second)

	release, err := a.Obtain(ctx)
	require.NoError(t, err)

	_, err = b.Obtain(ctx)
	assert.ErrorIs(t, err, core.ErrRunInProgress)

	// The refresher keeps the lock past its TTL.
	time.Sleep(1500 * time.Millisecond)
	_, err = b.Obtain(ctx)
	assert.ErrorIs(t, err, core.ErrRunInProgress)

	release()
	releaseB, err := b.Obtain(ctx)
	require.NoError(t, err)
	releaseB()
}

func TestNewRedisLock_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, err := NewRedisLock(ctx, Options{Addr: "127.0.0.1:1", Key: "k", TTL: time.Second})
	assert.Error(t, err)
}
