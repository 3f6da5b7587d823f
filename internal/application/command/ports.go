// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Capabilities the ingestion commands depend on. Implementations live in the
// infrastructure layer (Discord adapter, Redis, Prometheus).
// ══════════════════════════════════════════════════════════════════════════════

// Message is an inbound chat message as seen by the ingestion layer.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	AuthorID  string
	Content   string
}

// MessageSource fetches messages from the chat transport.
type MessageSource interface {
	// FetchMessage returns a single message.
	// Returns an error matching shared.ErrNotFound if it does not exist.
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)

	// ScanHistory walks channel history from newest to oldest, calling fn for
	// each message, until limit messages were visited or history ends.
	// Returns the number of messages visited.
	ScanHistory(ctx context.Context, channelID string, limit int, fn func(Message) error) (int, error)
}

// IdentityResolver turns a player reference into a display name.
// Resolve never fails: lookup errors become placeholder names.
type IdentityResolver interface {
	Resolve(ctx context.Context, playerID string) string
}

// Locker provides cross-process mutual exclusion for snapshot writes.
type Locker interface {
	// Acquire blocks until the lock is held or ctx is done.
	// The returned release function must be called exactly once.
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Metrics records ingestion counters.
type Metrics interface {
	MessageIngested(mode string)
	ResultsLogged(mode string, n int)
	ParseMiss(mode string)
	SnapshotSaved(ok bool)
	BackfillFinished(d time.Duration, scanned int)
}

// Ingestion modes used as metric and log labels.
const (
	ModeLive     = "live"
	ModeBackfill = "backfill"
	ModeReplay   = "replay"
)

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) MessageIngested(string)              {}
func (NopMetrics) ResultsLogged(string, int)           {}
func (NopMetrics) ParseMiss(string)                    {}
func (NopMetrics) SnapshotSaved(bool)                  {}
func (NopMetrics) BackfillFinished(time.Duration, int) {}
