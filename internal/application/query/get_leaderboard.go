// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Получает отсортированный рейтинг из текущего снапшота.
// Игроки без сыгранных партий в рейтинг не попадают.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (0 = все).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	return nil
}

// GetLeaderboardResult содержит результат запроса.
type GetLeaderboardResult struct {
	// Standings - позиции игроков, начиная с первого места.
	Standings []leaderboard.Standing

	// TotalPlayers - число игроков с хотя бы одной партией.
	TotalPlayers int

	// TotalGames - сумма сыгранных партий по всем игрокам.
	TotalGames int

	// Denominator - N, использованный для средних значений.
	Denominator int

	// GeneratedAt - время построения рейтинга.
	GeneratedAt time.Time
}

// IsEmpty возвращает true, если показывать нечего.
func (r *GetLeaderboardResult) IsEmpty() bool {
	return len(r.Standings) == 0
}

// SnapshotLoader - источник снапшота для чтения.
type SnapshotLoader interface {
	Load(ctx context.Context) (*leaderboard.Snapshot, error)
}

// GetLeaderboardHandler обрабатывает запрос лидерборда.
type GetLeaderboardHandler struct {
	loader      SnapshotLoader
	denominator int
}

// NewGetLeaderboardHandler создаёт новый обработчик.
func NewGetLeaderboardHandler(loader SnapshotLoader, denominator int) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		loader:      loader,
		denominator: denominator,
	}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}
	if h.denominator < 1 {
		return nil, shared.ErrInvalidDenominator
	}

	snap, err := h.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: load snapshot: %w", err)
	}

	standings := leaderboard.Rank(snap, h.denominator)

	_, games := snap.Totals()
	result := &GetLeaderboardResult{
		TotalPlayers: len(standings),
		TotalGames:   games,
		Denominator:  h.denominator,
		GeneratedAt:  time.Now().UTC(),
	}

	if q.Limit > 0 && len(standings) > q.Limit {
		standings = standings[:q.Limit]
	}
	result.Standings = standings

	return result, nil
}
