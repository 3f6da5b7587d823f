package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKFILL CHANNEL COMMAND
// Rescans channel history for daily result posts and scores them all against
// one snapshot, saved once at the end. A run either persists everything it
// logged or nothing.
// ══════════════════════════════════════════════════════════════════════════════

// BackfillChannelCommand contains the backfill parameters.
type BackfillChannelCommand struct {
	ChannelID string

	// Limit is the number of history messages to scan.
	Limit int

	// Keyword must appear in the lower-cased message text (defaults to the handler's).
	Keyword string

	// SkipMessageID is excluded from the scan (the command invocation itself).
	SkipMessageID string
}

// Validate validates the command.
func (c BackfillChannelCommand) Validate() error {
	if c.ChannelID == "" {
		return errors.New("backfill_channel: channel id is required")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("backfill_channel: limit must be positive, got %d", c.Limit)
	}
	return nil
}

// BackfillChannelResult contains the run summary.
type BackfillChannelResult struct {
	// OperationID correlates the run's log lines.
	OperationID string

	// Scanned is the number of history messages visited.
	Scanned int

	// Eligible is the number of source posts containing the keyword.
	Eligible int

	// Duplicates were eligible but already in the processed ledger.
	Duplicates int

	// MessagesLogged is the number of posts that contributed at least one result.
	MessagesLogged int

	// ResultsLogged is the number of (player, result) pairs applied.
	ResultsLogged int

	// ParseMisses is the number of eligible posts with no results.
	ParseMisses int

	// Partial is set when the run stopped early; nothing was saved.
	Partial bool

	// Saved reports whether the snapshot was persisted.
	Saved bool

	Duration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// BackfillChannelHandlerConfig contains configuration for the handler.
type BackfillChannelHandlerConfig struct {
	// Keyword is the default required substring (matched case-insensitively).
	Keyword string
}

// DefaultBackfillChannelHandlerConfig returns default configuration.
func DefaultBackfillChannelHandlerConfig() BackfillChannelHandlerConfig {
	return BackfillChannelHandlerConfig{
		Keyword: "yesterday's results",
	}
}

// BackfillChannelHandler handles the BackfillChannelCommand.
type BackfillChannelHandler struct {
	source  MessageSource
	engine  *Engine
	writer  *SnapshotWriter
	ledger  leaderboard.MessageLedger
	metrics Metrics
	logger  *slog.Logger

	keyword string
}

// NewBackfillChannelHandler creates a new BackfillChannelHandler.
func NewBackfillChannelHandler(
	source MessageSource,
	engine *Engine,
	writer *SnapshotWriter,
	ledger leaderboard.MessageLedger,
	metrics Metrics,
	logger *slog.Logger,
	config BackfillChannelHandlerConfig,
) *BackfillChannelHandler {
	if config.Keyword == "" {
		config = DefaultBackfillChannelHandlerConfig()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackfillChannelHandler{
		source:  source,
		engine:  engine,
		writer:  writer,
		ledger:  ledger,
		metrics: metrics,
		logger:  logger.With("component", "backfill_channel"),
		keyword: config.Keyword,
	}
}

// Handle executes the backfill.
// On transport failure or cancellation the returned result has Partial set,
// reports progress so far, and nothing is saved.
func (h *BackfillChannelHandler) Handle(ctx context.Context, cmd BackfillChannelCommand) (*BackfillChannelResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &BackfillChannelResult{OperationID: uuid.NewString()}
	logger := h.logger.With("operation_id", result.OperationID, "channel_id", cmd.ChannelID)
	defer func() {
		result.Duration = time.Since(start)
		h.metrics.BackfillFinished(result.Duration, result.Scanned)
	}()

	keyword := strings.ToLower(strings.TrimSpace(cmd.Keyword))
	if keyword == "" {
		keyword = strings.ToLower(h.keyword)
	}

	logger.Info("backfill started", "limit", cmd.Limit)

	// Phase 1: collect eligible posts. No snapshot is held while paging.
	var eligible []Message
	scanned, err := h.source.ScanHistory(ctx, cmd.ChannelID, cmd.Limit, func(m Message) error {
		if m.ID == cmd.SkipMessageID {
			return nil
		}
		if !h.engine.IsFromSource(m) {
			return nil
		}
		if !strings.Contains(strings.ToLower(strings.TrimSpace(m.Content)), keyword) {
			return nil
		}
		eligible = append(eligible, m)
		return nil
	})
	result.Scanned = scanned
	result.Eligible = len(eligible)
	if err != nil {
		result.Partial = true
		logger.Warn("backfill aborted while scanning", "scanned", scanned, "error", err)
		return result, fmt.Errorf("backfill_channel: scan history: %w", err)
	}

	eligible = h.dropProcessed(ctx, logger, eligible, result)
	if len(eligible) == 0 {
		logger.Info("backfill found nothing to log", "scanned", result.Scanned)
		return result, nil
	}

	// Phase 2: score everything against one snapshot, saved once.
	var logged []string
	saved, err := h.writer.Update(ctx, func(ctx context.Context, snap *leaderboard.Snapshot) (bool, error) {
		result.MessagesLogged, result.ResultsLogged, result.ParseMisses = 0, 0, 0
		logged = logged[:0]

		for _, m := range eligible {
			res, err := h.engine.Ingest(ctx, ModeBackfill, m, snap)
			if err != nil {
				return false, err
			}
			if res.ParseMiss {
				result.ParseMisses++
				continue
			}
			if res.Logged > 0 {
				result.MessagesLogged++
				result.ResultsLogged += res.Logged
				logged = append(logged, m.ID)
			}
		}
		return result.ResultsLogged > 0, nil
	})
	if err != nil {
		result.Partial = true
		logger.Warn("backfill aborted while scoring", "error", err)
		return result, fmt.Errorf("backfill_channel: %w", err)
	}
	result.Saved = saved

	if saved {
		markProcessed(ctx, h.ledger, logger, logged...)
	}

	logger.Info("backfill completed",
		"scanned", result.Scanned,
		"eligible", result.Eligible,
		"messages_logged", result.MessagesLogged,
		"results_logged", result.ResultsLogged,
		"duplicates", result.Duplicates,
	)
	return result, nil
}

// dropProcessed removes posts the ledger already holds.
func (h *BackfillChannelHandler) dropProcessed(ctx context.Context, logger *slog.Logger, msgs []Message, result *BackfillChannelResult) []Message {
	if h.ledger == nil {
		return msgs
	}

	kept := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		done, err := h.ledger.IsProcessed(ctx, m.ID)
		if err != nil {
			logger.Warn("processed ledger unavailable, scoring all posts", "error", err)
			result.Duplicates = 0
			return msgs
		}
		if done {
			result.Duplicates++
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
