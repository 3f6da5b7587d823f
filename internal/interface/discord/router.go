package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/etchobot/wordle-hub/internal/domain/shared"
	"github.com/etchobot/wordle-hub/internal/interface/discord/handler"
	"github.com/etchobot/wordle-hub/internal/interface/discord/middleware"
	"github.com/etchobot/wordle-hub/internal/interface/discord/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	// Prefix starts every text command ("!").
	Prefix string

	// IsEnabled reports whether a feature flag is on. Nil enables everything.
	IsEnabled func(feature string) bool

	// RateLimiter throttles commands per user. Nil disables throttling.
	RateLimiter *middleware.RateLimiter

	// Recovery catches handler panics. Nil uses defaults.
	Recovery *middleware.RecoveryMiddleware

	Logger *slog.Logger

	// Debug enables debug logging for routing decisions.
	Debug bool
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// CommandHandler is the interface for text command handlers.
type CommandHandler interface {
	Handle(ctx context.Context, cmdCtx handler.CommandContext) (*handler.Response, error)
}

// Responder sends replies to a channel.
type Responder interface {
	SendText(ctx context.Context, channelID, content string) error
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// PermissionChecker reports whether a user may run privileged commands.
type PermissionChecker interface {
	IsAdministrator(ctx context.Context, userID, channelID string) (bool, error)
}

// CommandOptions describe how a command is gated.
type CommandOptions struct {
	// Feature is the flag that must be on; empty means always on.
	Feature string

	// AdminOnly requires the Administrator permission in the channel.
	AdminOnly bool
}

type route struct {
	handler CommandHandler
	opts    CommandOptions
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Routes prefixed text commands to handlers and sends their replies.
// ══════════════════════════════════════════════════════════════════════════════

// Router routes text commands to handlers.
type Router struct {
	config      RouterConfig
	responder   Responder
	permissions PermissionChecker
	recovery    *middleware.RecoveryMiddleware
	logger      *slog.Logger

	mu     sync.RWMutex
	routes map[string]route
}

// NewRouter creates a new router.
func NewRouter(config RouterConfig, responder Responder, permissions PermissionChecker) *Router {
	if config.Prefix == "" {
		config.Prefix = "!"
	}
	if config.IsEnabled == nil {
		config.IsEnabled = func(string) bool { return true }
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Recovery == nil {
		rc := middleware.DefaultRecoveryConfig()
		rc.Logger = config.Logger
		config.Recovery = middleware.NewRecoveryMiddleware(rc)
	}

	return &Router{
		config:      config,
		responder:   responder,
		permissions: permissions,
		recovery:    config.Recovery,
		logger:      config.Logger.With("component", "router"),
		routes:      make(map[string]route),
	}
}

// RegisterCommand registers a handler for a command name (without prefix).
func (r *Router) RegisterCommand(name string, h CommandHandler, opts CommandOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[strings.ToLower(name)] = route{handler: h, opts: opts}

	if r.config.Debug {
		r.logger.Debug("registered command handler", "command", name, "admin_only", opts.AdminOnly)
	}
}

// Commands returns the registered command names, sorted.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prefix returns the configured command prefix.
func (r *Router) Prefix() string {
	return r.config.Prefix
}

// ParseCommand splits "!name arg1 arg2" into name and args.
// ok is false when content does not start with the prefix.
func ParseCommand(prefix, content string) (name string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// Dispatch routes a message. It returns (false, nil) when the message is not
// a registered command.
func (r *Router) Dispatch(ctx context.Context, msg InboundMessage) (bool, error) {
	name, args, ok := ParseCommand(r.config.Prefix, msg.Content)
	if !ok {
		return false, nil
	}

	r.mu.RLock()
	rt, found := r.routes[name]
	r.mu.RUnlock()

	if !found {
		if r.config.Debug {
			r.logger.Debug("no handler for command", "command", name)
		}
		return false, nil
	}

	logger := r.logger.With("command", name, "author_id", msg.AuthorID, "channel_id", msg.ChannelID)

	if rt.opts.Feature != "" && !r.config.IsEnabled(rt.opts.Feature) {
		logger.Debug("command disabled by feature flag", "feature", rt.opts.Feature)
		return true, nil
	}

	if rl := r.config.RateLimiter; rl != nil {
		if res := rl.Check(msg.AuthorID); !res.Allowed {
			logger.Info("command rate limited", "retry_after", res.RetryAfter)
			return true, r.send(ctx, msg.ChannelID, handler.Reply{Text: res.Message()})
		}
	}

	if rt.opts.AdminOnly {
		if err := r.authorize(ctx, msg); err != nil {
			if errors.Is(err, shared.ErrNotAuthorized) {
				logger.Info("privileged command denied", "error", err)
			} else {
				logger.Error("permission check failed", "error", err)
			}
			return true, r.send(ctx, msg.ChannelID, handler.Reply{Text: presenter.AdminRequired})
		}
	}

	cmdCtx := handler.CommandContext{
		AuthorID:  msg.AuthorID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
		MessageID: msg.ID,
		Prefix:    r.config.Prefix,
		Args:      args,
		Notify: func(ctx context.Context, reply handler.Reply) error {
			return r.send(ctx, msg.ChannelID, reply)
		},
	}

	var resp *handler.Response
	rec, err := r.recovery.Run(ctx, msg.AuthorID, name, func() error {
		var herr error
		resp, herr = rt.handler.Handle(ctx, cmdCtx)
		return herr
	})
	if rec != nil && rec.Recovered {
		return true, r.send(ctx, msg.ChannelID, handler.Reply{Text: rec.UserMessage})
	}
	if err != nil {
		return true, fmt.Errorf("command %s: %w", name, err)
	}

	return true, r.sendResponse(ctx, msg.ChannelID, resp)
}

// authorize runs before any handler work and returns shared.ErrNotAuthorized
// for non-administrators. Direct messages carry no guild permissions and
// are always denied.
func (r *Router) authorize(ctx context.Context, msg InboundMessage) error {
	if msg.GuildID == "" || r.permissions == nil {
		return shared.ErrNotAuthorized
	}
	allowed, err := r.permissions.IsAdministrator(ctx, msg.AuthorID, msg.ChannelID)
	if err != nil {
		return fmt.Errorf("check permissions: %w", err)
	}
	if !allowed {
		return shared.ErrNotAuthorized
	}
	return nil
}

// sendResponse sends all replies in order and stops at the first failure.
func (r *Router) sendResponse(ctx context.Context, channelID string, resp *handler.Response) error {
	if resp == nil {
		return nil
	}
	for _, reply := range resp.Replies {
		if err := r.send(ctx, channelID, reply); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) send(ctx context.Context, channelID string, reply handler.Reply) error {
	var err error
	switch {
	case reply.Embed != nil:
		err = r.responder.SendEmbed(ctx, channelID, reply.Embed)
	case reply.Text != "":
		err = r.responder.SendText(ctx, channelID, reply.Text)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
