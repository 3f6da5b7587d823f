package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/shared"
	"github.com/etchobot/wordle-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT WRITER
// Serializes every load -> mutate -> save cycle. Inside one process a mutex
// orders the cycles; across processes an optional Locker does. Stores with
// versioning reject stale saves, and the cycle is replayed on a fresh snapshot.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateFunc mutates a freshly loaded snapshot.
// It reports whether anything changed; unchanged snapshots are not saved.
// It may run more than once per Update when a save conflicts.
type UpdateFunc func(ctx context.Context, snap *leaderboard.Snapshot) (changed bool, err error)

// SnapshotWriterConfig contains configuration for the SnapshotWriter.
type SnapshotWriterConfig struct {
	// MaxAttempts bounds load/save cycles when saves conflict.
	MaxAttempts int

	// ConflictBackoff is the initial delay before replaying a conflicting cycle.
	ConflictBackoff time.Duration

	// Locker is optional cross-process exclusion.
	Locker Locker

	Metrics Metrics
	Logger  *slog.Logger
}

// DefaultSnapshotWriterConfig returns default configuration.
func DefaultSnapshotWriterConfig() SnapshotWriterConfig {
	return SnapshotWriterConfig{
		MaxAttempts:     5,
		ConflictBackoff: 50 * time.Millisecond,
	}
}

// SnapshotWriter is the single writer of the leaderboard store.
type SnapshotWriter struct {
	repo    leaderboard.Repository
	locker  Locker
	retrier *retry.Retrier
	metrics Metrics
	logger  *slog.Logger

	mu sync.Mutex
}

// NewSnapshotWriter creates a new SnapshotWriter.
func NewSnapshotWriter(repo leaderboard.Repository, config SnapshotWriterConfig) *SnapshotWriter {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultSnapshotWriterConfig().MaxAttempts
	}
	if config.ConflictBackoff <= 0 {
		config.ConflictBackoff = DefaultSnapshotWriterConfig().ConflictBackoff
	}
	if config.Metrics == nil {
		config.Metrics = NopMetrics{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	logger := config.Logger.With("component", "snapshot_writer")

	return &SnapshotWriter{
		repo:   repo,
		locker: config.Locker,
		retrier: retry.New(
			retry.WithMaxAttempts(config.MaxAttempts),
			retry.WithInitialDelay(config.ConflictBackoff),
			retry.WithMaxDelay(2*time.Second),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				logger.Warn("snapshot save conflicted, retrying",
					"attempt", attempt,
					"delay", delay,
					"error", err,
				)
			}),
		),
		metrics: config.Metrics,
		logger:  logger,
	}
}

// Load returns the current snapshot without taking the writer lock.
func (w *SnapshotWriter) Load(ctx context.Context) (*leaderboard.Snapshot, error) {
	return w.repo.Load(ctx)
}

// Update runs fn against a freshly loaded snapshot and saves it if fn changed it.
// Returns whether a save happened.
func (w *SnapshotWriter) Update(ctx context.Context, fn UpdateFunc) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.locker != nil {
		release, err := w.locker.Acquire(ctx)
		if err != nil {
			return false, fmt.Errorf("snapshot writer: acquire lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("failed to release writer lock", "error", err)
			}
		}()
	}

	saved := false
	err := w.retrier.Do(ctx, func(ctx context.Context) error {
		snap, err := w.repo.Load(ctx)
		if err != nil {
			return retry.Permanent(fmt.Errorf("load snapshot: %w", err))
		}

		changed, err := fn(ctx, snap)
		if err != nil {
			return retry.Permanent(err)
		}
		if !changed {
			return nil
		}

		if err := w.repo.Save(ctx, snap); err != nil {
			if errors.Is(err, shared.ErrConcurrentModification) {
				return retry.Retryable(err)
			}
			return retry.Permanent(shared.ErrSnapshotWrite.Wrap(err))
		}

		saved = true
		return nil
	})

	switch {
	case saved:
		w.metrics.SnapshotSaved(true)
	case errors.Is(err, shared.ErrPersistence), errors.Is(err, shared.ErrConcurrentModification):
		w.metrics.SnapshotSaved(false)
	}

	if err != nil {
		return false, err
	}
	return saved, nil
}
