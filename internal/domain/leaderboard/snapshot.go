package leaderboard

import (
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - полное состояние лидерборда: игрок -> запись.
// Снапшот загружается в начале каждой операции, изменяется в памяти
// и записывается целиком, только если была засчитана хотя бы одна партия.
//
// Snapshot не потокобезопасен: им владеет одна операция.
type Snapshot struct {
	// Records - записи по PlayerID.
	Records map[string]*PlayerRecord

	// Version - версия хранилища, из которой загружен снапшот.
	// Используется для оптимистичной блокировки (0 = новое хранилище).
	Version int64
}

// NewSnapshot создаёт пустой снапшот.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Records: make(map[string]*PlayerRecord),
	}
}

// Get возвращает запись игрока или nil.
func (s *Snapshot) Get(playerID string) *PlayerRecord {
	return s.Records[playerID]
}

// GetOrCreate возвращает запись игрока, создавая её при отсутствии.
func (s *Snapshot) GetOrCreate(playerID, displayName string) *PlayerRecord {
	if s.Records == nil {
		s.Records = make(map[string]*PlayerRecord)
	}
	if rec, ok := s.Records[playerID]; ok {
		return rec
	}
	rec := &PlayerRecord{PlayerID: playerID, DisplayName: displayName}
	s.Records[playerID] = rec
	return rec
}

// Len возвращает число записей.
func (s *Snapshot) Len() int {
	return len(s.Records)
}

// IsEmpty возвращает true, если в снапшоте нет записей.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Records) == 0
}

// PlayerIDs возвращает ID игроков в лексикографическом порядке.
func (s *Snapshot) PlayerIDs() []string {
	ids := make([]string, 0, len(s.Records))
	for id := range s.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone создаёт глубокую копию снапшота.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Records: make(map[string]*PlayerRecord, len(s.Records)),
		Version: s.Version,
	}
	for id, rec := range s.Records {
		c.Records[id] = rec.Clone()
	}
	return c
}

// Totals возвращает суммарные очки и партии по всем игрокам.
func (s *Snapshot) Totals() (score, games int) {
	for _, rec := range s.Records {
		score += rec.TotalScore
		games += rec.GamesPlayed
	}
	return score, games
}
