package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableCache points at a closed port so every round trip fails fast.
func unreachableCache(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client, "")
}

func TestConfig_Addr(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())
}

func TestConfig_AddrIPv6(t *testing.T) {
	cfg := Config{Host: "::1", Port: 6380}
	assert.Equal(t, "[::1]:6380", cfg.Addr())
}

func TestCache_Key(t *testing.T) {
	assert.Equal(t, "wordle:name:42", NewCacheFromClient(nil, "").Key("name", "42"))
	assert.Equal(t, "guild7:lock:leaderboard", NewCacheFromClient(nil, "guild7:").Key("lock", "leaderboard"))

	l := NewWriterLock(NewCacheFromClient(nil, "staging"), "leaderboard", time.Minute)
	assert.Equal(t, "staging:lock:leaderboard", l.key)
	assert.Equal(t, "staging:ingested", NewMessageLedger(NewCacheFromClient(nil, "staging")).key)
}

func TestCache_Validation(t *testing.T) {
	c := unreachableCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.SetString(ctx, "", "v", time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.SetString(ctx, "k", "v", -time.Second), ErrCacheInvalidTTL)

	_, err := c.GetString(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)

	_, err = c.SetNX(ctx, "", "v", time.Minute)
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)

	assert.NoError(t, c.Delete(ctx))
	assert.NoError(t, c.SAdd(ctx, "k"))
}

func TestNameCache(t *testing.T) {
	n := NewNameCache(unreachableCache(t), 0)
	assert.Equal(t, 24*time.Hour, n.ttl)

	assert.Error(t, n.Put(context.Background(), "1", ""))

	_, err := n.Get(context.Background(), "1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestWriterLock_Unreachable(t *testing.T) {
	l := NewWriterLock(unreachableCache(t), "leaderboard", 0)
	assert.Equal(t, 2*time.Minute, l.ttl)
	assert.Equal(t, 40*time.Second, l.renewEvery)

	release, err := l.Acquire(context.Background())
	assert.Error(t, err)
	assert.Nil(t, release)
}

func TestKeepAlive(t *testing.T) {
	t.Run("stops once the lock is lost", func(t *testing.T) {
		var calls atomic.Int32
		done := make(chan struct{})
		go func() {
			defer close(done)
			keepAlive(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
				return calls.Add(1) < 3, nil
			})
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("keepAlive kept running after the lock was lost")
		}
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("retries errors until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		done := make(chan struct{})
		go func() {
			defer close(done)
			keepAlive(ctx, time.Millisecond, func(context.Context) (bool, error) {
				if calls.Add(1) == 3 {
					cancel()
				}
				return false, errors.New("i/o timeout")
			})
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("keepAlive ignored cancellation")
		}
		assert.GreaterOrEqual(t, calls.Load(), int32(3))
	})
}

func TestMessageLedger_Unreachable(t *testing.T) {
	l := NewMessageLedger(unreachableCache(t))
	ctx := context.Background()

	assert.NoError(t, l.MarkProcessed(ctx))
	assert.Error(t, l.MarkProcessed(ctx, "1"))

	_, err := l.IsProcessed(ctx, "1")
	assert.Error(t, err)
}
