package presenter

import (
	"fmt"

	"github.com/etchobot/wordle-hub/internal/application/command"
)

// Replies for ingestion commands.
const (
	LiveAck          = "Wordle scores processed and leaderboard updated!"
	MessageNotFound  = "❌ Error: Message not found in this channel."
	MessageNoAccess  = "❌ Error: I don't have permission to read that message."
	ReplaySuccess    = "✅ **Success!** Wordle scores from that message have been logged and the leaderboard updated."
	AdminRequired    = "❌ You need the Administrator permission to use this command."
	LeaderboardError = "❌ Could not load the leaderboard. Please try again later."
)

// Hello is the greeting for the hello command.
func Hello(prefix string) string {
	return fmt.Sprintf("Hello, I am EtchoBot. Try %swordleboard for the daily Wordle scores!", prefix)
}

// Usage formats a usage hint for a command.
func Usage(prefix, usage string) string {
	return fmt.Sprintf("❌ Usage: `%s%s`", prefix, usage)
}

// ─────────────────────────────────────────────────────────────────────────────
// BACKFILL
// ─────────────────────────────────────────────────────────────────────────────

// BackfillStarted announces a history scan.
func BackfillStarted(channelName string, limit int) string {
	return fmt.Sprintf("🔍 Starting mass scan and logging on **%s** for the last **%d** messages...", channelName, limit)
}

// BackfillFinished reports a completed scan.
func BackfillFinished(prefix string, res *command.BackfillChannelResult) string {
	if res.MessagesLogged == 0 {
		msg := fmt.Sprintf("❌ **Mass Logging Complete.** Scanned %d messages but found no Wordle result posts. "+
			"Please ensure the Wordle Bot has posted recent results in this channel.", res.Scanned)
		if res.Duplicates > 0 {
			msg += fmt.Sprintf(" (%d result posts were already logged.)", res.Duplicates)
		}
		return msg
	}

	msg := fmt.Sprintf("✅ **Mass Logging Complete!** Scanned %d messages and successfully logged scores from **%d** Wordle result posts.",
		res.Scanned, res.MessagesLogged)
	if res.Duplicates > 0 {
		msg += fmt.Sprintf(" Skipped %d already logged.", res.Duplicates)
	}
	return msg + fmt.Sprintf("\nUse `%swordleboard` to see the updated rankings.", prefix)
}

// BackfillFailed reports an aborted scan. Nothing was saved.
func BackfillFailed(res *command.BackfillChannelResult, err error) string {
	scanned := 0
	if res != nil {
		scanned = res.Scanned
	}
	return fmt.Sprintf("❌ An error occurred during the history scan after %d messages, nothing was logged: %v", scanned, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// REPLAY
// ─────────────────────────────────────────────────────────────────────────────

// ReplayStarted announces a single-message replay.
func ReplayStarted(messageID string) string {
	return fmt.Sprintf("⏳ Attempting to fetch and log message ID: **%s**...", messageID)
}

// ReplaySourceMismatch reports a message from the wrong author.
func ReplaySourceMismatch(authorID string) string {
	return fmt.Sprintf("❌ Error: Message Author ID (%s) does not match the configured Wordle Bot ID.", authorID)
}

// ReplayAlreadyLogged reports a message the ledger already holds.
func ReplayAlreadyLogged(prefix, messageID string) string {
	return fmt.Sprintf("⚠️ Message %s was already logged. Use `%slog_by_id %s force` to count it again.", messageID, prefix, messageID)
}

// ReplayNoResults reports a parse miss with the raw body for diagnostics.
func ReplayNoResults(raw string) string {
	const maxRaw = 1500
	if r := []rune(raw); len(r) > maxRaw {
		raw = string(r[:maxRaw]) + "…"
	}
	return "⚠️ Warning: Message found, but no valid Wordle scores were extracted.\n" +
		"```\n" + fmt.Sprintf("%q", raw) + "\n```"
}

// ReplayFailed reports an unexpected error.
func ReplayFailed(err error) string {
	return fmt.Sprintf("❌ An error occurred during logging: %v", err)
}
