// Package discord implements the Discord bot interface for the Wordle leaderboard.
// It receives gateway events, scores result posts from the Wordle App bot as
// they arrive, and routes prefixed text commands to handlers.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/etchobot/wordle-hub/internal/application/command"
	"github.com/etchobot/wordle-hub/internal/interface/discord/handler"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Command names (without prefix).
const (
	CommandWordleboard = "wordleboard"
	CommandBackfill    = "backfill_wordle"
	CommandLogByID     = "log_by_id"
	CommandHello       = "hello"
)

// Intents requests guild and DM messages with their content.
const Intents = discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// BotConfig contains configuration for the Discord bot.
type BotConfig struct {
	// SourceBotID is the author whose posts are scored live.
	SourceBotID string

	// LiveEnabled reports whether live ingestion is on. Nil means always on.
	LiveEnabled func() bool

	// GracefulShutdownTimeout bounds how long Stop waits for in-flight handlers.
	GracefulShutdownTimeout time.Duration

	Logger *slog.Logger
}

// Session is the part of *discordgo.Session the bot drives.
type Session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
}

// BotDependencies contains the handlers the bot dispatches to.
type BotDependencies struct {
	Session Session
	Router  *Router
	Live    *handler.LiveHandler
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// InboundMessage is a gateway message reduced to what routing needs.
type InboundMessage struct {
	ID          string
	ChannelID   string
	GuildID     string
	AuthorID    string
	AuthorIsBot bool
	Content     string
}

func (m InboundMessage) toCommand() command.Message {
	return command.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
	}
}

func inboundFromDiscord(m *discordgo.Message) InboundMessage {
	msg := InboundMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorIsBot = m.Author.Bot
	}
	return msg
}

// Bot is the Discord bot controller.
type Bot struct {
	config  BotConfig
	session Session
	router  *Router
	live    *handler.LiveHandler
	logger  *slog.Logger

	// Lifecycle management
	runningMu sync.RWMutex
	running   bool
	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	removers  []func()

	selfMu sync.RWMutex
	selfID string

	stats *BotStats
}

// BotStats holds runtime statistics.
type BotStats struct {
	mu               sync.RWMutex
	StartedAt        time.Time
	MessagesReceived int64
	LivePosts        int64
	CommandsCount    map[string]int64
	ErrorsCount      int64
}

// NewBot creates a new Discord bot.
func NewBot(config BotConfig, deps BotDependencies) (*Bot, error) {
	if deps.Session == nil {
		return nil, errors.New("discord session is required")
	}
	if deps.Router == nil {
		return nil, errors.New("router is required")
	}
	if config.SourceBotID == "" {
		return nil, errors.New("source bot id is required")
	}
	if config.LiveEnabled == nil {
		config.LiveEnabled = func() bool { return true }
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Bot{
		config:  config,
		session: deps.Session,
		router:  deps.Router,
		live:    deps.Live,
		logger:  config.Logger.With("component", "discord_bot"),
		stats:   &BotStats{CommandsCount: make(map[string]int64)},
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Start registers event handlers and opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.baseCtx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))
	b.running = true
	b.runningMu.Unlock()

	b.stats.mu.Lock()
	b.stats.StartedAt = time.Now()
	b.stats.mu.Unlock()

	b.removers = append(b.removers,
		b.session.AddHandler(b.onReady),
		b.session.AddHandler(b.onMessageCreate),
	)

	if err := b.session.Open(); err != nil {
		b.runningMu.Lock()
		b.running = false
		b.runningMu.Unlock()
		b.cancel()
		return fmt.Errorf("open discord session: %w", err)
	}

	b.logger.Info("discord bot started",
		"prefix", b.router.Prefix(),
		"commands", b.router.Commands(),
		"source_bot_id", b.config.SourceBotID,
	)
	return nil
}

// Stop waits for in-flight handlers, then closes the session.
func (b *Bot) Stop(ctx context.Context) error {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return nil
	}
	b.running = false
	b.runningMu.Unlock()

	b.logger.Info("stopping discord bot")

	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	case <-ctx.Done():
		b.logger.Warn("context cancelled during shutdown")
	}
	b.cancel()

	if err := b.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return ctx.Err()
}

// IsRunning returns whether the bot is currently running.
func (b *Bot) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

// enter registers an in-flight handler. The running check and wg.Add share
// the lock Stop takes, so Stop's Wait never races a late Add.
func (b *Bot) enter() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	if !b.running {
		return false
	}
	b.wg.Add(1)
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT HANDLING
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	b.selfMu.Lock()
	b.selfID = r.User.ID
	b.selfMu.Unlock()

	b.logger.Info("bot connected", "user_id", r.User.ID, "username", r.User.Username, "guilds", len(r.Guilds))
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}

	b.runningMu.RLock()
	ctx := b.baseCtx
	b.runningMu.RUnlock()
	if ctx == nil {
		return
	}

	if err := b.HandleMessage(ctx, inboundFromDiscord(m.Message)); err != nil {
		b.logger.Error("failed to handle message",
			"message_id", m.ID,
			"channel_id", m.ChannelID,
			"error", err,
		)
	}
}

// HandleMessage processes one inbound message: live scoring for result
// posts, command routing for prefixed messages from humans.
func (b *Bot) HandleMessage(ctx context.Context, msg InboundMessage) error {
	if !b.enter() {
		return nil
	}
	defer b.wg.Done()

	b.selfMu.RLock()
	self := b.selfID
	b.selfMu.RUnlock()
	if self != "" && msg.AuthorID == self {
		return nil
	}

	b.stats.mu.Lock()
	b.stats.MessagesReceived++
	b.stats.mu.Unlock()

	var errs []error

	if msg.AuthorID == b.config.SourceBotID && b.live != nil && b.config.LiveEnabled() {
		b.stats.mu.Lock()
		b.stats.LivePosts++
		b.stats.mu.Unlock()

		resp, err := b.live.Handle(ctx, msg.toCommand())
		if err != nil {
			errs = append(errs, fmt.Errorf("live ingest: %w", err))
		} else if err := b.router.sendResponse(ctx, msg.ChannelID, resp); err != nil {
			errs = append(errs, err)
		}
	}

	if !msg.AuthorIsBot {
		if name, _, ok := ParseCommand(b.router.Prefix(), msg.Content); ok {
			handled, err := b.router.Dispatch(ctx, msg)
			if handled {
				b.stats.mu.Lock()
				b.stats.CommandsCount[name]++
				b.stats.mu.Unlock()
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		b.stats.mu.Lock()
		b.stats.ErrorsCount++
		b.stats.mu.Unlock()
		return err
	}
	return nil
}

// GetStats returns a snapshot of runtime statistics.
func (b *Bot) GetStats() map[string]interface{} {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	commands := make(map[string]int64, len(b.stats.CommandsCount))
	for k, v := range b.stats.CommandsCount {
		commands[k] = v
	}

	var uptime time.Duration
	if !b.stats.StartedAt.IsZero() {
		uptime = time.Since(b.stats.StartedAt)
	}

	return map[string]interface{}{
		"started_at":        b.stats.StartedAt,
		"uptime_seconds":    int64(uptime.Seconds()),
		"messages_received": b.stats.MessagesReceived,
		"live_posts":        b.stats.LivePosts,
		"errors_count":      b.stats.ErrorsCount,
		"commands":          commands,
		"running":           b.IsRunning(),
	}
}
