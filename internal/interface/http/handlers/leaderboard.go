package handlers

import (
	"context"
	"math"
	"time"

	"github.com/etchobot/wordle-hub/internal/application/query"
)

// LeaderboardQuery is the read side behind GET /leaderboard.
type LeaderboardQuery interface {
	Handle(ctx context.Context, q query.GetLeaderboardQuery) (*query.GetLeaderboardResult, error)
}

// LeaderboardResponse is the JSON body of GET /leaderboard.
type LeaderboardResponse struct {
	Standings    []StandingDTO `json:"standings"`
	TotalPlayers int           `json:"total_players"`
	TotalGames   int           `json:"total_games"`
	Denominator  int           `json:"denominator"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

// StandingDTO is one ranked player. Average is rounded to two decimals,
// the same precision the Discord embed shows.
type StandingDTO struct {
	Position    int     `json:"position"`
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	GamesPlayed int     `json:"games_played"`
	TotalScore  int     `json:"total_score"`
	Average     float64 `json:"average"`
	AllFailed   bool    `json:"all_failed,omitempty"`
}

// NewLeaderboardResponse converts a query result for the wire.
func NewLeaderboardResponse(r *query.GetLeaderboardResult) LeaderboardResponse {
	resp := LeaderboardResponse{
		Standings:    make([]StandingDTO, 0, len(r.Standings)),
		TotalPlayers: r.TotalPlayers,
		TotalGames:   r.TotalGames,
		Denominator:  r.Denominator,
		GeneratedAt:  r.GeneratedAt,
	}
	for _, s := range r.Standings {
		resp.Standings = append(resp.Standings, StandingDTO{
			Position:    s.Position,
			PlayerID:    s.Record.PlayerID,
			DisplayName: s.Record.DisplayName,
			GamesPlayed: s.Record.GamesPlayed,
			TotalScore:  s.Record.TotalScore,
			Average:     math.Round(s.AverageGuesses*100) / 100,
			AllFailed:   s.AllFailed(),
		})
	}
	return resp
}
