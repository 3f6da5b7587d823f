package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/etchobot/wordle-hub/internal/application/command"
	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/interface/discord/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKFILL HANDLER
// Handles !backfill_wordle [#channel] [limit] - rescans channel history.
// Administrator only; the router checks permissions before calling Handle.
// ══════════════════════════════════════════════════════════════════════════════

// BackfillUsage is the argument synopsis shown on bad input.
const BackfillUsage = "backfill_wordle [#channel] [limit]"

// snowflakeMinDigits separates bare channel IDs from scan limits.
const snowflakeMinDigits = 15

// BackfillRunner runs a history backfill.
type BackfillRunner interface {
	Handle(ctx context.Context, cmd command.BackfillChannelCommand) (*command.BackfillChannelResult, error)
}

// ChannelNamer resolves a channel ID to its display name.
type ChannelNamer interface {
	ChannelName(ctx context.Context, channelID string) (string, error)
}

// BackfillHandler handles the backfill_wordle command.
type BackfillHandler struct {
	runner       BackfillRunner
	channels     ChannelNamer
	defaultLimit int
	logger       *slog.Logger
}

// NewBackfillHandler creates a new BackfillHandler.
func NewBackfillHandler(runner BackfillRunner, channels ChannelNamer, defaultLimit int, logger *slog.Logger) *BackfillHandler {
	if defaultLimit <= 0 {
		defaultLimit = 5000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackfillHandler{
		runner:       runner,
		channels:     channels,
		defaultLimit: defaultLimit,
		logger:       logger.With("component", "backfill_handler"),
	}
}

// BackfillRequest contains the parsed arguments.
type BackfillRequest struct {
	ChannelID string
	Limit     int
}

// ParseBackfillArgs parses "[#channel|id] [limit]". The channel defaults to
// the one the command was sent in.
func ParseBackfillArgs(args []string, currentChannel string, defaultLimit int) (BackfillRequest, error) {
	req := BackfillRequest{ChannelID: currentChannel, Limit: defaultLimit}
	if len(args) > 2 {
		return req, fmt.Errorf("too many arguments")
	}

	rest := args
	if len(rest) > 0 {
		if id, ok := parseChannelRef(rest[0], len(rest) == 2); ok {
			req.ChannelID = id
			rest = rest[1:]
		}
	}

	if len(rest) == 1 {
		n, err := strconv.Atoi(rest[0])
		if err != nil || n <= 0 {
			return req, fmt.Errorf("limit must be a positive number, got %q", rest[0])
		}
		req.Limit = n
	} else if len(rest) > 1 {
		return req, fmt.Errorf("unrecognized channel %q", rest[0])
	}

	return req, nil
}

// parseChannelRef accepts a <#id> mention, or a bare ID when it is long
// enough to be a snowflake or a limit follows it.
func parseChannelRef(arg string, limitFollows bool) (string, bool) {
	if strings.HasPrefix(arg, "<#") && strings.HasSuffix(arg, ">") {
		id := strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
		return id, leaderboard.IsValidPlayerID(id)
	}
	if !leaderboard.IsValidPlayerID(arg) {
		return "", false
	}
	return arg, limitFollows || len(arg) >= snowflakeMinDigits
}

// Handle processes the backfill command.
func (h *BackfillHandler) Handle(ctx context.Context, cmdCtx CommandContext) (*Response, error) {
	req, err := ParseBackfillArgs(cmdCtx.Args, cmdCtx.ChannelID, h.defaultLimit)
	if err != nil {
		return textResponse(presenter.Usage(cmdCtx.Prefix, BackfillUsage)), nil
	}

	name := h.channelName(ctx, req.ChannelID)
	if err := cmdCtx.notify(ctx, Reply{Text: presenter.BackfillStarted(name, req.Limit)}); err != nil {
		h.logger.Warn("failed to announce backfill", "channel_id", cmdCtx.ChannelID, "error", err)
	}

	result, err := h.runner.Handle(ctx, command.BackfillChannelCommand{
		ChannelID:     req.ChannelID,
		Limit:         req.Limit,
		SkipMessageID: cmdCtx.MessageID,
	})
	if err != nil {
		h.logger.Error("backfill failed",
			"channel_id", req.ChannelID,
			"invoker_id", cmdCtx.AuthorID,
			"error", err,
		)
		return textResponse(presenter.BackfillFailed(result, err)), nil
	}

	return textResponse(presenter.BackfillFinished(cmdCtx.Prefix, result)), nil
}

// channelName falls back to a channel mention when the lookup fails.
func (h *BackfillHandler) channelName(ctx context.Context, channelID string) string {
	if h.channels != nil {
		if name, err := h.channels.ChannelName(ctx, channelID); err == nil && name != "" {
			return "#" + name
		}
	}
	return "<#" + channelID + ">"
}
