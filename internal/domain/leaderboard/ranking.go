package leaderboard

import (
	"sort"

	"github.com/etchobot/wordle-hub/internal/domain/wordle"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Standing - позиция игрока в рейтинге.
type Standing struct {
	// Position - место, начиная с 1.
	Position int

	// Record - копия записи игрока.
	Record *PlayerRecord

	// AverageGuesses - среднее число попыток, проигрыш = N+1.
	AverageGuesses float64
}

// AllFailed возвращает true, если игрок ни разу не набрал очков.
// В таком случае среднее показывается как маркер проигрыша.
func (s Standing) AllFailed() bool {
	return s.Record.GamesPlayed > 0 && s.Record.TotalScore == 0
}

// Rank строит рейтинг по снапшоту.
//
// Учитываются только игроки с GamesPlayed > 0. Порядок: сумма очков по
// убыванию, затем среднее число попыток по возрастанию, затем PlayerID.
// Позиции идут подряд: 1..K.
func Rank(s *Snapshot, denominator int) []Standing {
	if s == nil {
		return nil
	}

	standings := make([]Standing, 0, s.Len())
	for _, id := range s.PlayerIDs() {
		rec := s.Records[id]
		if rec.GamesPlayed <= 0 {
			continue
		}
		standings = append(standings, Standing{
			Record:         rec.Clone(),
			AverageGuesses: wordle.AverageGuesses(rec.TotalScore, rec.GamesPlayed, denominator),
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Record.TotalScore != b.Record.TotalScore {
			return a.Record.TotalScore > b.Record.TotalScore
		}
		return a.AverageGuesses < b.AverageGuesses
	})

	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}
