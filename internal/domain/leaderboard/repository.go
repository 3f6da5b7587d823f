package leaderboard

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища снапшота.
// Реализация находится в infrastructure слое (JSON-файл, PostgreSQL).
type Repository interface {
	// Load возвращает текущий снапшот.
	// Отсутствующее хранилище - это пустой снапшот, а не ошибка.
	Load(ctx context.Context) (*Snapshot, error)

	// Save заменяет хранимое состояние снапшотом целиком.
	// Реализации с версионированием возвращают shared.ErrSnapshotConflict,
	// если состояние изменилось после Load.
	Save(ctx context.Context, snapshot *Snapshot) error
}

// ══════════════════════════════════════════════════════════════════════════════
// PROCESSED MESSAGE LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// MessageLedger хранит ID уже засчитанных сообщений.
// Движок агрегации сам по себе не идемпотентен; журнал позволяет
// режимам загрузки пропускать повторно доставленные сообщения.
type MessageLedger interface {
	// IsProcessed возвращает true, если сообщение уже засчитано.
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	// MarkProcessed отмечает сообщения как засчитанные.
	MarkProcessed(ctx context.Context, messageIDs ...string) error
}
