// Package middleware contains Discord bot middlewares for request processing.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Catches panics in handlers and converts them to a generic reply.
// The bot must stay connected even if a handler crashes.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultUserErrorMessage is sent to the channel when a handler panics.
const DefaultUserErrorMessage = "😔 Something went wrong while handling that command. Please try again in a few minutes."

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace enables capturing stack traces.
	EnableStackTrace bool

	// OnPanic is called when a panic is recovered.
	OnPanic func(ctx context.Context, info *PanicInfo)

	// UserErrorMessage is the reply sent when a panic occurs.
	UserErrorMessage string

	Logger *slog.Logger
}

// DefaultRecoveryConfig returns defaults for the recovery middleware.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace: true,
		UserErrorMessage: DefaultUserErrorMessage,
		Logger:           slog.Default(),
	}
}

// PanicInfo contains information about a recovered panic.
type PanicInfo struct {
	Error      error
	PanicValue any
	StackTrace string
	AuthorID   string
	Command    string
	Timestamp  time.Time
}

// RecoveryResult represents the result of running a handler.
type RecoveryResult struct {
	// Recovered indicates if a panic was recovered.
	Recovered bool

	// PanicInfo contains panic details (if recovered).
	PanicInfo *PanicInfo

	// UserMessage is the message to show to the user.
	UserMessage string
}

// RecoveryMiddleware recovers from panics in handlers.
type RecoveryMiddleware struct {
	config RecoveryConfig
	logger *slog.Logger
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	if config.UserErrorMessage == "" {
		config.UserErrorMessage = DefaultUserErrorMessage
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RecoveryMiddleware{
		config: config,
		logger: config.Logger.With("component", "recovery"),
	}
}

// Run executes handler and recovers from any panic.
// The handler's own error is returned unchanged.
func (m *RecoveryMiddleware) Run(ctx context.Context, authorID, command string, handler func() error) (result *RecoveryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = m.handlePanic(ctx, r, authorID, command)
			err = nil
		}
	}()

	return &RecoveryResult{}, handler()
}

func (m *RecoveryMiddleware) handlePanic(ctx context.Context, value any, authorID, command string) *RecoveryResult {
	info := &PanicInfo{
		Error:      toError(value),
		PanicValue: value,
		AuthorID:   authorID,
		Command:    command,
		Timestamp:  time.Now(),
	}
	if m.config.EnableStackTrace {
		info.StackTrace = string(debug.Stack())
	}

	m.logger.Error("panic recovered",
		"command", command,
		"author_id", authorID,
		"panic", fmt.Sprint(value),
		"stack", info.StackTrace,
	)

	if m.config.OnPanic != nil {
		m.config.OnPanic(ctx, info)
	}

	return &RecoveryResult{
		Recovered:   true,
		PanicInfo:   info,
		UserMessage: m.config.UserErrorMessage,
	}
}

func toError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}
