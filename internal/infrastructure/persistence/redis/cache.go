// Package redis implements the optional Redis-backed helpers of the Wordle hub.
//
// Key components:
//   - Cache: namespaced wrapper over the client with key validation
//   - NameCache: display names resolved from Discord, with TTL
//   - WriterLock: cross-process lock around leaderboard saves
//   - MessageLedger: set of message IDs already ingested
//
// Every key lives under Config.Namespace, so several bots (one per guild or
// environment) can share one Redis database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultNamespace prefixes keys when Config.Namespace is empty.
const DefaultNamespace = "wordle"

// Config holds Redis connection configuration.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	// Namespace is the first segment of every key.
	Namespace string

	// Pool settings
	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	// Timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a local, unauthenticated configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		Namespace:    DefaultNamespace,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns "host:port", bracketing IPv6 hosts.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when a key does not exist.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when the startup ping fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheInvalidTTL is returned for negative TTLs.
	ErrCacheInvalidTTL = errors.New("cache: invalid TTL")

	// ErrCacheKeyEmpty is returned for empty keys.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache wraps a Redis client and owns the key namespace.
type Cache struct {
	client    *redis.Client
	namespace string
}

// NewCache connects and pings Redis. The ping is bounded by DialTimeout.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheConnection, cfg.Addr(), err)
	}

	return newCache(client, cfg.Namespace), nil
}

// NewCacheFromClient wraps an existing client without pinging it.
func NewCacheFromClient(client *redis.Client, namespace string) *Cache {
	return newCache(client, namespace)
}

func newCache(client *redis.Client, namespace string) *Cache {
	namespace = strings.Trim(namespace, ":")
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Cache{client: client, namespace: namespace}
}

// Key joins parts under the cache namespace: Key("name", "42") is "wordle:name:42".
func (c *Cache) Key(parts ...string) string {
	return c.namespace + ":" + strings.Join(parts, ":")
}

// Client exposes the raw client for scripts.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func checkKey(key string, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	if ttl < 0 {
		return ErrCacheInvalidTTL
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STRINGS
// ══════════════════════════════════════════════════════════════════════════════

// SetString stores value under key. A zero ttl keeps the key forever.
func (c *Cache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := checkKey(key, ttl); err != nil {
		return err
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// GetString reads key, returning ErrCacheMiss when it is absent.
func (c *Cache) GetString(ctx context.Context, key string) (string, error) {
	if err := checkKey(key, 0); err != nil {
		return "", err
	}
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

// SetNX stores value only when key is absent and reports whether it did.
func (c *Cache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := checkKey(key, ttl); err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

// Delete removes keys. No keys is a no-op.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// SETS
// ══════════════════════════════════════════════════════════════════════════════

// SAdd adds members to the set at key. No members is a no-op.
func (c *Cache) SAdd(ctx context.Context, key string, members ...string) error {
	if err := checkKey(key, 0); err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return c.client.SAdd(ctx, key, args...).Err()
}

// SIsMember reports whether member is in the set at key.
func (c *Cache) SIsMember(ctx context.Context, key, member string) (bool, error) {
	if err := checkKey(key, 0); err != nil {
		return false, err
	}
	return c.client.SIsMember(ctx, key, member).Result()
}
