package handler

import (
	"context"
	"log/slog"

	"github.com/etchobot/wordle-hub/internal/application/query"
	"github.com/etchobot/wordle-hub/internal/interface/discord/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// WORDLEBOARD HANDLER
// Handles !wordleboard - shows the cumulative Wordle ranking.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardQuery loads the current ranking.
type LeaderboardQuery interface {
	Handle(ctx context.Context, q query.GetLeaderboardQuery) (*query.GetLeaderboardResult, error)
}

// WordleboardHandler handles the wordleboard command.
type WordleboardHandler struct {
	leaderboardQuery LeaderboardQuery
	presenter        *presenter.LeaderboardPresenter
	useEmbed         func() bool
	logger           *slog.Logger
}

// NewWordleboardHandler creates a new WordleboardHandler.
// useEmbed is consulted on every call; nil means always render an embed.
func NewWordleboardHandler(
	leaderboardQuery LeaderboardQuery,
	p *presenter.LeaderboardPresenter,
	useEmbed func() bool,
	logger *slog.Logger,
) *WordleboardHandler {
	if p == nil {
		p = presenter.NewLeaderboardPresenter("")
	}
	if useEmbed == nil {
		useEmbed = func() bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WordleboardHandler{
		leaderboardQuery: leaderboardQuery,
		presenter:        p,
		useEmbed:         useEmbed,
		logger:           logger.With("component", "wordleboard_handler"),
	}
}

// Handle processes the wordleboard command.
func (h *WordleboardHandler) Handle(ctx context.Context, cmdCtx CommandContext) (*Response, error) {
	result, err := h.leaderboardQuery.Handle(ctx, query.GetLeaderboardQuery{})
	if err != nil {
		h.logger.Error("failed to load leaderboard", "channel_id", cmdCtx.ChannelID, "error", err)
		return textResponse(presenter.LeaderboardError), nil
	}

	if result.IsEmpty() {
		return textResponse(presenter.LeaderboardEmpty), nil
	}

	if !h.useEmbed() {
		return textResponse(h.presenter.Text(result)), nil
	}
	return &Response{Replies: []Reply{{Embed: h.presenter.Embed(result)}}}, nil
}
