package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/etchobot/wordle-hub/internal/domain/shared"
)

// UserLookup fetches a username from the chat platform.
type UserLookup interface {
	LookupUser(ctx context.Context, userID string) (string, error)
}

// NameCache stores resolved usernames. Misses and errors are treated alike.
type NameCache interface {
	Get(ctx context.Context, playerID string) (string, error)
	Put(ctx context.Context, playerID, name string) error
}

// LookupFailureRecorder counts failed lookups by error class.
type LookupFailureRecorder interface {
	IdentityLookupFailed(class string)
}

// IdentityResolver adapts a UserLookup to command.IdentityResolver.
// It never fails: lookup errors become placeholder names and are logged.
type IdentityResolver struct {
	lookup   UserLookup
	cache    NameCache
	failures LookupFailureRecorder
	logger   *slog.Logger

	warnings atomic.Int64
}

// NewIdentityResolver creates a resolver. cache and failures may be nil.
func NewIdentityResolver(lookup UserLookup, cache NameCache, failures LookupFailureRecorder, logger *slog.Logger) *IdentityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityResolver{
		lookup:   lookup,
		cache:    cache,
		failures: failures,
		logger:   logger.With("component", "identity_resolver"),
	}
}

// Resolve returns the display name for playerID.
func (r *IdentityResolver) Resolve(ctx context.Context, playerID string) string {
	if r.cache != nil {
		if name, err := r.cache.Get(ctx, playerID); err == nil && name != "" {
			return name
		}
	}

	name, err := r.lookup.LookupUser(ctx, playerID)
	if err != nil {
		return r.placeholder(playerID, err)
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, playerID, name); err != nil {
			r.logger.Debug("failed to cache username", "player_id", playerID, "error", err)
		}
	}
	return name
}

// Warnings returns the number of lookups that fell back to a placeholder.
func (r *IdentityResolver) Warnings() int64 {
	return r.warnings.Load()
}

func (r *IdentityResolver) placeholder(playerID string, err error) string {
	r.warnings.Add(1)

	class := shared.ErrorClass(err)
	if r.failures != nil {
		r.failures.IdentityLookupFailed(class)
	}

	if shared.IsNotFound(err) {
		r.logger.Warn("could not fetch user", "player_id", playerID)
		return fmt.Sprintf("User %s (Not Found)", playerID)
	}

	r.logger.Error("error fetching user", "player_id", playerID, "error", err)
	return fmt.Sprintf("User %s (Error: %s)", playerID, class)
}
