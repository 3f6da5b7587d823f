package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG LIVE MESSAGE COMMAND
// Scores a Wordle App post the moment it arrives in a channel.
// ══════════════════════════════════════════════════════════════════════════════

// LogLiveMessageCommand contains the message to score.
type LogLiveMessageCommand struct {
	Message Message
}

// Validate validates the command.
func (c LogLiveMessageCommand) Validate() error {
	if c.Message.ID == "" {
		return errors.New("log_live_message: message id is required")
	}
	return nil
}

// LogLiveMessageResult contains the result of scoring a live message.
type LogLiveMessageResult struct {
	// Ignored is set when the author is not the result source.
	Ignored bool

	// Duplicate is set when the message was already in the processed ledger.
	Duplicate bool

	// ParseMiss is set when the source message held no results.
	ParseMiss bool

	// Logged is the number of (player, result) pairs applied.
	Logged int

	// Saved reports whether the snapshot was persisted.
	Saved bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// LogLiveMessageHandler handles the LogLiveMessageCommand.
type LogLiveMessageHandler struct {
	engine *Engine
	writer *SnapshotWriter
	ledger leaderboard.MessageLedger
	logger *slog.Logger
}

// NewLogLiveMessageHandler creates a new LogLiveMessageHandler.
// ledger may be nil, in which case re-delivered messages are counted again.
func NewLogLiveMessageHandler(
	engine *Engine,
	writer *SnapshotWriter,
	ledger leaderboard.MessageLedger,
	logger *slog.Logger,
) *LogLiveMessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogLiveMessageHandler{
		engine: engine,
		writer: writer,
		ledger: ledger,
		logger: logger.With("component", "log_live_message"),
	}
}

// Handle executes the log live message command.
func (h *LogLiveMessageHandler) Handle(ctx context.Context, cmd LogLiveMessageCommand) (*LogLiveMessageResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	result := &LogLiveMessageResult{}

	// Cheap author check before any I/O.
	if !h.engine.IsFromSource(cmd.Message) {
		result.Ignored = true
		return result, nil
	}

	if h.ledger != nil {
		done, err := h.ledger.IsProcessed(ctx, cmd.Message.ID)
		if err != nil {
			h.logger.Warn("processed ledger unavailable, scoring anyway", "message_id", cmd.Message.ID, "error", err)
		} else if done {
			result.Duplicate = true
			return result, nil
		}
	}

	saved, err := h.writer.Update(ctx, func(ctx context.Context, snap *leaderboard.Snapshot) (bool, error) {
		res, err := h.engine.Ingest(ctx, ModeLive, cmd.Message, snap)
		if err != nil {
			return false, err
		}
		result.ParseMiss = res.ParseMiss
		result.Logged = res.Logged
		return res.Logged > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("log_live_message: %w", err)
	}
	result.Saved = saved

	if saved {
		markProcessed(ctx, h.ledger, h.logger, cmd.Message.ID)
		h.logger.Info("live results logged", "message_id", cmd.Message.ID, "logged", result.Logged)
	}

	return result, nil
}

// markProcessed records ids in the ledger after a successful save.
// Failures are logged: the snapshot is already durable at this point.
func markProcessed(ctx context.Context, ledger leaderboard.MessageLedger, logger *slog.Logger, ids ...string) {
	if ledger == nil || len(ids) == 0 {
		return
	}
	if err := ledger.MarkProcessed(context.WithoutCancel(ctx), ids...); err != nil {
		logger.Warn("failed to record processed messages", "count", len(ids), "error", err)
	}
}
