// Package leaderboard содержит доменную модель накопительного лидерборда Wordle.
// Лидерборд хранит по каждому игроку сумму очков и число сыгранных партий;
// ранжирование строится по этим двум числам.
package leaderboard

import (
	"fmt"
	"strconv"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER RECORD
// ══════════════════════════════════════════════════════════════════════════════

// PlayerRecord - накопленная статистика одного игрока.
// TotalScore == 0 при GamesPlayed > 0 допустим: игрок только проигрывал.
type PlayerRecord struct {
	// PlayerID - Discord ID игрока (строка из цифр).
	PlayerID string

	// DisplayName - имя, полученное при последнем начислении.
	DisplayName string

	// TotalScore - сумма очков за все партии.
	TotalScore int

	// GamesPlayed - число засчитанных партий.
	GamesPlayed int
}

// IsValidPlayerID проверяет, что ID состоит только из цифр.
func IsValidPlayerID(id string) bool {
	if id == "" {
		return false
	}
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}

// RecordGame засчитывает партию: +1 игра, +points очков, имя перезаписывается.
func (r *PlayerRecord) RecordGame(points int, displayName string) {
	r.GamesPlayed++
	r.TotalScore += points
	r.DisplayName = displayName
}

// Clone создаёт копию записи.
func (r *PlayerRecord) Clone() *PlayerRecord {
	c := *r
	return &c
}

// String возвращает строковое представление записи.
func (r *PlayerRecord) String() string {
	return fmt.Sprintf("%s (%s): %d pts / %d games", r.DisplayName, r.PlayerID, r.TotalScore, r.GamesPlayed)
}
