package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// Migration is one schema step. AppliedAt and IsApplied are filled by Status.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt *time.Time
	IsApplied bool
}

// migrationLockKey is the advisory lock held while a step is applied, so
// bot replicas starting together apply each step once.
const migrationLockKey int64 = 0x776f72646c65 // "wordle"

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
)`

// Migrator applies GetMigrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a Migrator for the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: sortedMigrations(GetMigrations())}
}

func sortedMigrations(ms []Migration) []Migration {
	out := append([]Migration(nil), ms...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// Migrate applies every pending step, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if _, err := m.conn.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}

	for _, mig := range m.migrations {
		if err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			return applyStep(ctx, tx, mig)
		}); err != nil {
			return fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

func applyStep(ctx context.Context, tx pgx.Tx, mig Migration) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("lock: %w", err)
	}

	var done bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version,
	).Scan(&done); err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if done {
		return nil
	}

	if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
		return fmt.Errorf("up: %w", err)
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
	return err
}

// Status lists every known step with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[version] = at
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	status := make([]Migration, len(m.migrations))
	for i, mig := range m.migrations {
		if at, ok := applied[mig.Version]; ok {
			mig.AppliedAt = &at
			mig.IsApplied = true
		}
		status[i] = mig
	}
	return status, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS leaderboard_players (
    player_id    TEXT PRIMARY KEY,
    username     TEXT NOT NULL,
    total_score  INTEGER NOT NULL DEFAULT 0 CHECK (total_score >= 0),
    games_played INTEGER NOT NULL DEFAULT 0 CHECK (games_played >= 0),
    updated_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_players_score
    ON leaderboard_players (total_score DESC);

-- Single row; version is bumped on every snapshot save.
CREATE TABLE IF NOT EXISTS leaderboard_state (
    id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    version    BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

INSERT INTO leaderboard_state (id, version) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`

const migration001Down = `
DROP TABLE IF EXISTS leaderboard_state;
DROP TABLE IF EXISTS leaderboard_players;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS ingested_messages (
    message_id  TEXT PRIMARY KEY,
    ingested_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration002Down = `
DROP TABLE IF EXISTS ingested_messages;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_leaderboard",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_ingested_messages",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}
