package redis

import (
	"context"
	"fmt"
)

// MessageLedger implements leaderboard.MessageLedger on a Redis set.
type MessageLedger struct {
	cache *Cache
	key   string
}

// NewMessageLedger creates a ledger on the "<namespace>:ingested" set.
func NewMessageLedger(cache *Cache) *MessageLedger {
	return &MessageLedger{cache: cache, key: cache.Key("ingested")}
}

// IsProcessed reports whether messageID was already ingested.
func (l *MessageLedger) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	ok, err := l.cache.SIsMember(ctx, l.key, messageID)
	if err != nil {
		return false, fmt.Errorf("redis: check ingested message: %w", err)
	}
	return ok, nil
}

// MarkProcessed records message IDs as ingested.
func (l *MessageLedger) MarkProcessed(ctx context.Context, messageIDs ...string) error {
	if err := l.cache.SAdd(ctx, l.key, messageIDs...); err != nil {
		return fmt.Errorf("redis: mark ingested messages: %w", err)
	}
	return nil
}
