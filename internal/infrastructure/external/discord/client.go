// Package discord implements the Discord REST side of the bot: user lookups,
// message fetches, history scans, permission checks and replies.
// Every call is paced by a token bucket, retried on transient failures and
// guarded by a circuit breaker.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/etchobot/wordle-hub/internal/application/command"
	"github.com/etchobot/wordle-hub/internal/domain/shared"
	"github.com/etchobot/wordle-hub/pkg/circuitbreaker"
	"github.com/etchobot/wordle-hub/pkg/retry"
)

// historyPageSize is the largest page Discord serves for channel history.
const historyPageSize = 100

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// API is the subset of *discordgo.Session used by the client.
type API interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// ClientConfig contains configuration for the Discord client.
type ClientConfig struct {
	// RequestsPerSecond is the sustained REST request rate.
	RequestsPerSecond float64

	// Burst is the number of requests allowed at once.
	Burst int

	// MaxAttempts bounds attempts per call on transient failures.
	MaxAttempts int

	// OnBreakerStateChange is called when the circuit breaker changes state.
	OnBreakerStateChange func(name string, from, to circuitbreaker.State)

	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestsPerSecond: 5,
		Burst:             5,
		MaxAttempts:       3,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Discord REST adapter.
type Client struct {
	api     API
	limiter *rate.Limiter
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a new Discord client over api.
func NewClient(api API, config ClientConfig) *Client {
	defaults := DefaultClientConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	logger := config.Logger.With("component", "discord_client")

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		retrier: retry.DiscordRetrier(config.MaxAttempts, shared.IsRetryable),
		breaker: circuitbreaker.DiscordAPIBreaker(isOutage, config.OnBreakerStateChange),
		logger:  logger,
	}
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// call runs fn paced, retried and behind the breaker.
// notFound is returned (wrapped) when Discord answers 404.
func (c *Client) call(ctx context.Context, op string, notFound *shared.DomainError, fn func(opts ...discordgo.RequestOption) error) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			return mapError(op, notFound, fn(discordgo.WithContext(ctx)))
		})
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return retry.Permanent(shared.ErrDiscordUnavailable.Wrap(err))
		}
		if err != nil {
			c.logger.Debug("discord request failed", "op", op, "error", err)
		}
		return err
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// LookupUser returns the username of a Discord user.
func (c *Client) LookupUser(ctx context.Context, userID string) (string, error) {
	var user *discordgo.User
	err := c.call(ctx, "User", shared.ErrDiscordUserNotFound, func(opts ...discordgo.RequestOption) error {
		var err error
		user, err = c.api.User(userID, opts...)
		return err
	})
	if err != nil {
		return "", err
	}
	if user == nil || user.Username == "" {
		return "", shared.ErrDiscordUserNotFound
	}
	return user.Username, nil
}

// ChannelName returns the channel's name.
func (c *Client) ChannelName(ctx context.Context, channelID string) (string, error) {
	var ch *discordgo.Channel
	err := c.call(ctx, "Channel", shared.ErrDiscordChannelNotFound, func(opts ...discordgo.RequestOption) error {
		var err error
		ch, err = c.api.Channel(channelID, opts...)
		return err
	})
	if err != nil {
		return "", err
	}
	return ch.Name, nil
}

// FetchMessage implements command.MessageSource.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (command.Message, error) {
	var msg *discordgo.Message
	err := c.call(ctx, "ChannelMessage", shared.ErrDiscordMessageNotFound, func(opts ...discordgo.RequestOption) error {
		var err error
		msg, err = c.api.ChannelMessage(channelID, messageID, opts...)
		return err
	})
	if err != nil {
		return command.Message{}, err
	}
	return ToMessage(msg), nil
}

// ScanHistory implements command.MessageSource.
// History is paged newest first, 100 messages per request.
func (c *Client) ScanHistory(ctx context.Context, channelID string, limit int, fn func(command.Message) error) (int, error) {
	visited := 0
	before := ""

	for visited < limit {
		pageSize := min(historyPageSize, limit-visited)

		var page []*discordgo.Message
		err := c.call(ctx, "ChannelMessages", shared.ErrDiscordChannelNotFound, func(opts ...discordgo.RequestOption) error {
			var err error
			page, err = c.api.ChannelMessages(channelID, pageSize, before, "", "", opts...)
			return err
		})
		if err != nil {
			return visited, fmt.Errorf("scan history before %q: %w", before, err)
		}

		for _, m := range page {
			visited++
			if err := fn(ToMessage(m)); err != nil {
				return visited, err
			}
		}

		if len(page) < pageSize {
			break
		}
		before = page[len(page)-1].ID
	}

	return visited, nil
}

// IsAdministrator reports whether userID has the Administrator permission in channelID.
func (c *Client) IsAdministrator(ctx context.Context, userID, channelID string) (bool, error) {
	var perms int64
	err := c.call(ctx, "UserChannelPermissions", shared.ErrDiscordChannelNotFound, func(opts ...discordgo.RequestOption) error {
		var err error
		perms, err = c.api.UserChannelPermissions(userID, channelID, opts...)
		return err
	})
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionAdministrator != 0, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// SendText posts a plain message.
func (c *Client) SendText(ctx context.Context, channelID, content string) error {
	return c.call(ctx, "ChannelMessageSend", shared.ErrDiscordChannelNotFound, func(opts ...discordgo.RequestOption) error {
		_, err := c.api.ChannelMessageSend(channelID, content, opts...)
		return err
	})
}

// SendEmbed posts an embed.
func (c *Client) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	return c.call(ctx, "ChannelMessageSendEmbed", shared.ErrDiscordChannelNotFound, func(opts ...discordgo.RequestOption) error {
		_, err := c.api.ChannelMessageSendEmbed(channelID, embed, opts...)
		return err
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// ToMessage converts a discordgo message to the ingestion view.
func ToMessage(m *discordgo.Message) command.Message {
	if m == nil {
		return command.Message{}
	}
	msg := command.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
	}
	return msg
}

// mapError translates discordgo failures into shared error kinds.
func mapError(op string, notFound *shared.DomainError, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("discord", op, shared.ErrTimeout, "request timed out", err)
	}

	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return shared.ErrDiscordRateLimited.Wrap(err)
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch code := restErr.Response.StatusCode; {
		case code == http.StatusNotFound:
			return notFound.Wrap(err)
		case code == http.StatusForbidden || code == http.StatusUnauthorized:
			return shared.ErrDiscordForbidden.Wrap(err)
		case code == http.StatusTooManyRequests:
			return shared.ErrDiscordRateLimited.Wrap(err)
		case code >= http.StatusInternalServerError:
			return shared.ErrDiscordUnavailable.Wrap(err)
		default:
			return shared.WrapError("discord", op, shared.ErrExternalService, "request rejected", err)
		}
	}

	return shared.ErrDiscordUnavailable.Wrap(err)
}

// isOutage reports whether err says something about Discord's health.
func isOutage(err error) bool {
	return errors.Is(err, shared.ErrServiceUnavailable) || errors.Is(err, shared.ErrTimeout)
}
