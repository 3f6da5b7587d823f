package redis

import (
	"context"
	"errors"
	"time"
)

// NameCache stores resolved display names for a limited time.
// Failed lookups are never cached so placeholder names do not stick.
type NameCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewNameCache creates a NameCache. A non-positive ttl defaults to 24 hours.
func NewNameCache(cache *Cache, ttl time.Duration) *NameCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &NameCache{cache: cache, ttl: ttl}
}

// Get returns the cached name for playerID.
// A miss returns ErrCacheMiss.
func (n *NameCache) Get(ctx context.Context, playerID string) (string, error) {
	name, err := n.cache.GetString(ctx, n.cache.Key("name", playerID))
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrCacheMiss
	}
	return name, nil
}

// Put stores the name for playerID.
func (n *NameCache) Put(ctx context.Context, playerID, name string) error {
	if name == "" {
		return errors.New("name cache: empty name")
	}
	return n.cache.SetString(ctx, n.cache.Key("name", playerID), name, n.ttl)
}
