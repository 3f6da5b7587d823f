package handler

import (
	"context"

	"github.com/etchobot/wordle-hub/internal/interface/discord/presenter"
)

// HelloHandler handles the hello command.
type HelloHandler struct{}

// NewHelloHandler creates a new HelloHandler.
func NewHelloHandler() *HelloHandler {
	return &HelloHandler{}
}

// Handle replies with a greeting.
func (h *HelloHandler) Handle(_ context.Context, cmdCtx CommandContext) (*Response, error) {
	return textResponse(presenter.Hello(cmdCtx.Prefix)), nil
}
