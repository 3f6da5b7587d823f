// Package presenter formats data for Discord display.
// Presenters turn query results and command outcomes into embeds and
// chat replies.
package presenter

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/etchobot/wordle-hub/internal/application/query"
	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/wordle"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD PRESENTER
// Форматирует лидерборд в Discord embed.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// LeaderboardTitle - заголовок embed.
	LeaderboardTitle = "🏆 Official Wordle Leaderboard 🏆"

	// LeaderboardDescription - подзаголовок embed.
	LeaderboardDescription = "Cumulative scores from the daily Wordle results."

	// LeaderboardEmpty - ответ, когда ещё никто не сыграл.
	LeaderboardEmpty = "The Wordle leaderboard is empty. Wait for the Wordle App bot to post results."

	// LeaderboardColor - зелёный rgb(34, 187, 51).
	LeaderboardColor = 34<<16 | 187<<8 | 51

	// Лимиты Discord: 1024 символа на поле, 6000 на весь embed.
	maxFieldLength = 1024
	maxFields      = 5
)

var medals = [...]string{"🥇", "🥈", "🥉"}

// LeaderboardPresenter форматирует данные лидерборда для Discord.
type LeaderboardPresenter struct {
	failureMarker string
}

// NewLeaderboardPresenter создаёт новый презентер лидерборда.
// failureMarker - токен проигрыша из конфигурации, пустой означает "X".
func NewLeaderboardPresenter(failureMarker string) *LeaderboardPresenter {
	if failureMarker == "" {
		failureMarker = wordle.DefaultFailureMarker
	}
	return &LeaderboardPresenter{failureMarker: failureMarker}
}

// Embed строит embed лидерборда. Для пустого результата возвращает nil,
// вызывающий код должен отправить LeaderboardEmpty.
func (p *LeaderboardPresenter) Embed(result *query.GetLeaderboardResult) *discordgo.MessageEmbed {
	if result == nil || result.IsEmpty() {
		return nil
	}

	lines := make([]string, 0, len(result.Standings))
	for _, st := range result.Standings {
		lines = append(lines, p.FormatLine(st, result.Denominator))
	}

	return &discordgo.MessageEmbed{
		Title:       LeaderboardTitle,
		Description: LeaderboardDescription,
		Color:       LeaderboardColor,
		Fields:      packFields(lines),
		Footer: &discordgo.MessageEmbedFooter{
			Text: p.Footer(result.Denominator),
		},
	}
}

// Text строит текстовую версию лидерборда, когда embed отключён.
// Результат не превышает лимит сообщения Discord (2000 символов).
func (p *LeaderboardPresenter) Text(result *query.GetLeaderboardResult) string {
	if result == nil || result.IsEmpty() {
		return LeaderboardEmpty
	}

	const maxMessageLength = 2000

	footer := "\n_" + p.Footer(result.Denominator) + "_"
	var sb strings.Builder
	sb.WriteString("**" + LeaderboardTitle + "**\n")

	for i, st := range result.Standings {
		line := p.FormatLine(st, result.Denominator) + "\n"
		if sb.Len()+len(line)+len(footer)+32 > maxMessageLength {
			sb.WriteString(fmt.Sprintf("…and %d more\n", len(result.Standings)-i))
			break
		}
		sb.WriteString(line)
	}

	sb.WriteString(footer)
	return sb.String()
}

// FormatLine форматирует одну строку рейтинга.
// Пример: "🥇 **alice**: 11 points, Avg Guess: 1.50/6 (2 games)".
func (p *LeaderboardPresenter) FormatLine(st leaderboard.Standing, denominator int) string {
	avg := fmt.Sprintf("%.2f/%d", st.AverageGuesses, denominator)
	if st.AllFailed() {
		avg = fmt.Sprintf("%s/%d", p.failureMarker, denominator)
	}

	return fmt.Sprintf("%s **%s**: %d points, Avg Guess: %s (%d games)",
		positionMarker(st.Position),
		st.Record.DisplayName,
		st.Record.TotalScore,
		avg,
		st.Record.GamesPlayed,
	)
}

// Footer возвращает легенду начисления очков.
func (p *LeaderboardPresenter) Footer(denominator int) string {
	return fmt.Sprintf("Lower Average Guess is better. Scores: 1/%d=%d pts, %d/%d=1 pt, %s/%d=0 pts.",
		denominator, denominator, denominator, denominator, p.failureMarker, denominator)
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// positionMarker возвращает медаль для первых трёх мест и "N." для остальных.
func positionMarker(position int) string {
	if position >= 1 && position <= len(medals) {
		return medals[position-1]
	}
	return fmt.Sprintf("%d.", position)
}

// packFields раскладывает строки по полям, не превышая лимиты Discord.
// Не поместившиеся строки заменяются на итоговую строку "…and N more".
func packFields(lines []string) []*discordgo.MessageEmbedField {
	var fields []*discordgo.MessageEmbedField
	var sb strings.Builder

	flush := func() {
		name := "Ranks"
		if len(fields) > 0 {
			name = "Ranks (cont.)"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: name, Value: sb.String()})
		sb.Reset()
	}

	for i, line := range lines {
		limit := maxFieldLength
		if len(fields) == maxFields-1 {
			limit -= 32 // room for the "…and N more" line
		}
		if sb.Len() > 0 && sb.Len()+1+len(line) > limit {
			if len(fields) == maxFields-1 {
				sb.WriteString(fmt.Sprintf("\n…and %d more", len(lines)-i))
				break
			}
			flush()
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	if sb.Len() > 0 {
		flush()
	}

	return fields
}
