package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/etchobot/wordle-hub/internal/application/command"
	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/shared"
	"github.com/etchobot/wordle-hub/internal/interface/discord/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG BY ID HANDLER
// Handles !log_by_id <message_id> [force] - scores one message from the
// current channel. Administrator only.
// ══════════════════════════════════════════════════════════════════════════════

// LogByIDUsage is the argument synopsis shown on bad input.
const LogByIDUsage = "log_by_id <message_id> [force]"

// ReplayRunner replays a single message.
type ReplayRunner interface {
	Handle(ctx context.Context, cmd command.ReplayMessageCommand) (*command.ReplayMessageResult, error)
}

// LogByIDHandler handles the log_by_id command.
type LogByIDHandler struct {
	runner ReplayRunner
	logger *slog.Logger
}

// NewLogByIDHandler creates a new LogByIDHandler.
func NewLogByIDHandler(runner ReplayRunner, logger *slog.Logger) *LogByIDHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogByIDHandler{
		runner: runner,
		logger: logger.With("component", "log_by_id_handler"),
	}
}

// Handle processes the log_by_id command.
func (h *LogByIDHandler) Handle(ctx context.Context, cmdCtx CommandContext) (*Response, error) {
	if len(cmdCtx.Args) == 0 || len(cmdCtx.Args) > 2 || !leaderboard.IsValidPlayerID(cmdCtx.Args[0]) {
		return textResponse(presenter.Usage(cmdCtx.Prefix, LogByIDUsage)), nil
	}
	force := false
	if len(cmdCtx.Args) == 2 {
		if !strings.EqualFold(cmdCtx.Args[1], "force") {
			return textResponse(presenter.Usage(cmdCtx.Prefix, LogByIDUsage)), nil
		}
		force = true
	}
	messageID := cmdCtx.Args[0]

	if err := cmdCtx.notify(ctx, Reply{Text: presenter.ReplayStarted(messageID)}); err != nil {
		h.logger.Warn("failed to announce replay", "message_id", messageID, "error", err)
	}

	result, err := h.runner.Handle(ctx, command.ReplayMessageCommand{
		ChannelID: cmdCtx.ChannelID,
		MessageID: messageID,
		Force:     force,
	})

	switch {
	case err == nil:
		return textResponse(presenter.ReplaySuccess), nil

	case shared.IsNotFound(err):
		return textResponse(presenter.MessageNotFound), nil

	case shared.IsForbidden(err):
		return textResponse(presenter.MessageNoAccess), nil

	case errors.Is(err, shared.ErrSourceMismatch):
		return textResponse(presenter.ReplaySourceMismatch(result.AuthorID)), nil

	case errors.Is(err, shared.ErrAlreadyIngested):
		return textResponse(presenter.ReplayAlreadyLogged(cmdCtx.Prefix, messageID)), nil

	case errors.Is(err, shared.ErrNoResults):
		h.logger.Warn("replayed message held no results",
			"message_id", messageID,
			"author_id", result.AuthorID,
			"content", result.RawContent,
		)
		return textResponse(presenter.ReplayNoResults(result.RawContent)), nil

	default:
		h.logger.Error("replay failed", "message_id", messageID, "error", err)
		return textResponse(presenter.ReplayFailed(err)), nil
	}
}
