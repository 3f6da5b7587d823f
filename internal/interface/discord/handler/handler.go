// Package handler contains Discord command handlers.
// Handlers parse arguments, call application commands and queries, and
// return replies. Sending is left to the router.
package handler

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// CommandContext carries a parsed text command.
type CommandContext struct {
	// AuthorID is the invoking user's Discord ID.
	AuthorID string

	// ChannelID is the channel the command was sent in.
	ChannelID string

	// GuildID is empty for direct messages.
	GuildID string

	// MessageID is the ID of the command message itself.
	MessageID string

	// Prefix is the configured command prefix ("!").
	Prefix string

	// Args are the whitespace-separated words after the command name.
	Args []string

	// Notify sends an interim reply before the handler returns.
	// May be nil, in which case interim replies are dropped.
	Notify func(ctx context.Context, reply Reply) error
}

// notify sends an interim reply if the router provided a sink.
func (c CommandContext) notify(ctx context.Context, reply Reply) error {
	if c.Notify == nil {
		return nil
	}
	return c.Notify(ctx, reply)
}

// Reply is a single outgoing message. Exactly one of Text or Embed is set.
type Reply struct {
	Text  string
	Embed *discordgo.MessageEmbed
}

// Response contains the replies to send back, in order.
type Response struct {
	Replies []Reply
}

// textResponse wraps plain text replies.
func textResponse(texts ...string) *Response {
	resp := &Response{Replies: make([]Reply, 0, len(texts))}
	for _, t := range texts {
		resp.Replies = append(resp.Replies, Reply{Text: t})
	}
	return resp
}
