package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned by release when the lock expired or was taken over.
var ErrLockNotHeld = errors.New("lock: not held")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// WriterLock is a SET NX based lock guarding leaderboard saves across processes.
type WriterLock struct {
	cache        *Cache
	key          string
	ttl          time.Duration
	renewEvery   time.Duration
	pollInterval time.Duration
}

// NewWriterLock creates a lock on the "<namespace>:lock:<resource>" key.
// ttl bounds how long a crashed holder can block others. A live holder
// extends it every ttl/3 until release.
func NewWriterLock(cache *Cache, resource string, ttl time.Duration) *WriterLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &WriterLock{
		cache:        cache,
		key:          cache.Key("lock", resource),
		ttl:          ttl,
		renewEvery:   ttl / 3,
		pollInterval: 100 * time.Millisecond,
	}
}

// Acquire blocks until the lock is held or ctx is done.
func (l *WriterLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.cache.SetNX(ctx, l.key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", l.key, err)
		}
		if ok {
			renewCtx, stop := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				keepAlive(renewCtx, l.renewEvery, func(ctx context.Context) (bool, error) {
					return l.extend(ctx, token)
				})
			}()
			return l.releaser(token, func() { stop(); <-done }), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", l.key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *WriterLock) extend(ctx context.Context, token string) (bool, error) {
	n, err := extendScript.Run(ctx, l.cache.Client(), []string{l.key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("extend %s: %w", l.key, err)
	}
	return n == 1, nil
}

// keepAlive calls extend every interval until ctx is done or extend reports
// the lock is no longer ours. Errors are retried on the next tick while the
// remaining TTL still covers the holder.
func keepAlive(ctx context.Context, interval time.Duration, extend func(context.Context) (bool, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		held, err := extend(ctx)
		if err == nil && !held {
			return
		}
	}
}

func (l *WriterLock) releaser(token string, stopRenewal func()) func(context.Context) error {
	return func(ctx context.Context) error {
		stopRenewal()
		n, err := releaseScript.Run(ctx, l.cache.Client(), []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", l.key, err)
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}
}
