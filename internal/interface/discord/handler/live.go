package handler

import (
	"context"
	"log/slog"

	"github.com/etchobot/wordle-hub/internal/application/command"
	"github.com/etchobot/wordle-hub/internal/interface/discord/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIVE HANDLER
// Scores Wordle App posts as they arrive. Not a text command: the bot calls
// it for every message from the result source.
// ══════════════════════════════════════════════════════════════════════════════

// LiveIngester scores one live message.
type LiveIngester interface {
	Handle(ctx context.Context, cmd command.LogLiveMessageCommand) (*command.LogLiveMessageResult, error)
}

// LiveHandler handles live result posts.
type LiveHandler struct {
	ingester LiveIngester
	logger   *slog.Logger
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(ingester LiveIngester, logger *slog.Logger) *LiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveHandler{
		ingester: ingester,
		logger:   logger.With("component", "live_handler"),
	}
}

// Handle scores msg. The acknowledgement is only sent when results were saved.
func (h *LiveHandler) Handle(ctx context.Context, msg command.Message) (*Response, error) {
	result, err := h.ingester.Handle(ctx, command.LogLiveMessageCommand{Message: msg})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		h.logger.Debug("live message already logged", "message_id", msg.ID)
	}
	if !result.Saved {
		return &Response{}, nil
	}
	return textResponse(presenter.LiveAck), nil
}
