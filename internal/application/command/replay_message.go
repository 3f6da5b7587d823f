package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPLAY MESSAGE COMMAND
// Scores one specific message by ID. Used by administrators to recover a post
// the live path missed.
// ══════════════════════════════════════════════════════════════════════════════

// ReplayMessageCommand identifies the message to replay.
type ReplayMessageCommand struct {
	ChannelID string
	MessageID string

	// Force scores the message even if the ledger says it was already counted.
	Force bool
}

// Validate validates the command.
func (c ReplayMessageCommand) Validate() error {
	if c.ChannelID == "" {
		return errors.New("replay_message: channel id is required")
	}
	if !leaderboard.IsValidPlayerID(c.MessageID) {
		return fmt.Errorf("replay_message: message id %q is not numeric: %w", c.MessageID, shared.ErrInvalidInput)
	}
	return nil
}

// ReplayMessageResult contains the result of a replay.
type ReplayMessageResult struct {
	MessageID string
	AuthorID  string

	// RawContent is the fetched message body, kept for operator diagnostics.
	RawContent string

	Logged int
	Saved  bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReplayMessageHandler handles the ReplayMessageCommand.
type ReplayMessageHandler struct {
	source MessageSource
	engine *Engine
	writer *SnapshotWriter
	ledger leaderboard.MessageLedger
	logger *slog.Logger
}

// NewReplayMessageHandler creates a new ReplayMessageHandler.
func NewReplayMessageHandler(
	source MessageSource,
	engine *Engine,
	writer *SnapshotWriter,
	ledger leaderboard.MessageLedger,
	logger *slog.Logger,
) *ReplayMessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplayMessageHandler{
		source: source,
		engine: engine,
		writer: writer,
		ledger: ledger,
		logger: logger.With("component", "replay_message"),
	}
}

// Handle executes the replay.
//
// Errors are distinct per outcome:
//   - shared.ErrNotFound: the message does not exist in the channel
//   - shared.ErrSourceMismatch: the message was not posted by the result source
//   - shared.ErrAlreadyIngested: the ledger already holds the message
//   - shared.ErrNoResults: the message held no results or tagged no players (RawContent is set)
func (h *ReplayMessageHandler) Handle(ctx context.Context, cmd ReplayMessageCommand) (*ReplayMessageResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	msg, err := h.source.FetchMessage(ctx, cmd.ChannelID, cmd.MessageID)
	if err != nil {
		return nil, fmt.Errorf("replay_message: fetch: %w", err)
	}

	result := &ReplayMessageResult{MessageID: msg.ID, AuthorID: msg.AuthorID, RawContent: msg.Content}

	if !h.engine.IsFromSource(msg) {
		return result, shared.ErrSourceMismatch
	}

	if h.ledger != nil && !cmd.Force {
		done, err := h.ledger.IsProcessed(ctx, msg.ID)
		if err != nil {
			h.logger.Warn("processed ledger unavailable, scoring anyway", "message_id", msg.ID, "error", err)
		} else if done {
			return result, shared.ErrAlreadyIngested
		}
	}

	parseMiss := false
	saved, err := h.writer.Update(ctx, func(ctx context.Context, snap *leaderboard.Snapshot) (bool, error) {
		res, err := h.engine.Ingest(ctx, ModeReplay, msg, snap)
		if err != nil {
			return false, err
		}
		parseMiss = res.ParseMiss
		result.Logged = res.Logged
		return res.Logged > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay_message: %w", err)
	}
	result.Saved = saved

	// Tokens without tagged players log nothing; report it like a parse miss.
	if parseMiss || result.Logged == 0 {
		return result, shared.ErrNoResults
	}

	if saved {
		markProcessed(ctx, h.ledger, h.logger, msg.ID)
		h.logger.Info("message replayed", "message_id", msg.ID, "logged", result.Logged)
	}

	return result, nil
}
