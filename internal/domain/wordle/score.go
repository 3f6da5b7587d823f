// Package wordle содержит доменную модель результатов Wordle:
// токены счёта, функцию начисления очков и парсер сообщений Wordle App.
// Пакет не зависит от транспорта и хранилища.
package wordle

import (
	"fmt"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultDenominator - максимальное число попыток (N в "g/N").
	DefaultDenominator = 6

	// DefaultFailureMarker - токен проигранной партии ("X/6").
	DefaultFailureMarker = "X"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE TOKEN
// ══════════════════════════════════════════════════════════════════════════════

// ScoreToken - исход одной партии: число попыток или проигрыш.
type ScoreToken struct {
	// Guesses - число попыток. Ноль, если Failed.
	Guesses int

	// Failed - партия не разгадана.
	Failed bool
}

// Guess создаёт токен с числом попыток.
func Guess(g int) ScoreToken {
	return ScoreToken{Guesses: g}
}

// Failure создаёт токен проигрыша.
func Failure() ScoreToken {
	return ScoreToken{Failed: true}
}

// ParseToken разбирает сырой токен ("3", "x", "X").
// Маркер проигрыша сравнивается без учёта регистра.
func ParseToken(raw, failureMarker string) (ScoreToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ScoreToken{}, fmt.Errorf("empty score token")
	}
	if strings.EqualFold(raw, failureMarker) {
		return Failure(), nil
	}
	g, err := strconv.Atoi(raw)
	if err != nil {
		return ScoreToken{}, fmt.Errorf("score token %q: %w", raw, err)
	}
	return Guess(g), nil
}

// InRange проверяет, что число попыток лежит в 1..denominator.
func (t ScoreToken) InRange(denominator int) bool {
	return !t.Failed && t.Guesses >= 1 && t.Guesses <= denominator
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORING
// ══════════════════════════════════════════════════════════════════════════════

// Points начисляет очки за партию.
//
//	X         -> 0
//	g в 1..N  -> N + 1 - g  (1/6 = 6 очков, 6/6 = 1 очко)
//	иначе     -> 0
func Points(t ScoreToken, denominator int) int {
	if !t.InRange(denominator) {
		return 0
	}
	return max(0, denominator+1-t.Guesses)
}

// AverageGuesses переводит средние очки обратно в среднее число попыток.
// Проигрыш при этом считается как N+1 попыток.
func AverageGuesses(totalScore, gamesPlayed, denominator int) float64 {
	if gamesPlayed <= 0 {
		return float64(denominator + 1)
	}
	avgPoints := float64(totalScore) / float64(gamesPlayed)
	return float64(denominator+1) - avgPoints
}
