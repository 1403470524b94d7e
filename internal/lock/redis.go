// Package lock provides a Redis-backed run lock so that only one replica
// ingests at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisLock implements core.RunLock with bsm/redislock. The lock is held with
// a short TTL and refreshed in the background until released, so a crashed
// holder frees it within one TTL.
type RedisLock struct {
	client *redislock.Client
	key    string
	ttl    time.Duration
}

// Options configures NewRedisLock.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// NewRedisLock connects to Redis and verifies the connection.
func NewRedisLock(ctx context.Context, opts Options) (*RedisLock, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return New(rdb, opts.Key, opts.TTL), rdb, nil
}

// New wraps an existing client.
func New(rdb redislock.RedisClient, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: redislock.New(rdb), key: key, ttl: ttl}
}

// Obtain takes the lock or returns core.ErrRunInProgress when another
// process holds it.
func (l *RedisLock) Obtain(ctx context.Context) (func(), error) {
	lk, err := l.client.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: lock %s held by another process", core.ErrRunInProgress, l.key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", l.key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.refresh(lk, stop, done)

	return func() {
		close(stop)
		<-done
		if err := lk.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			slog.Warn("release run lock", "key", l.key, "error", err)
		}
	}, nil
}

func (l *RedisLock) refresh(lk *redislock.Lock, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := lk.Refresh(context.Background(), l.ttl, nil); err != nil {
				slog.Error("run lock lost", "key", l.key, "error", err)
				return
			}
		}
	}
}
