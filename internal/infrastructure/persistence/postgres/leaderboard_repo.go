package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository on PostgreSQL.
//
// Save replaces the whole player table inside one transaction and bumps the
// version row; a snapshot loaded at an older version is rejected with
// shared.ErrSnapshotConflict.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new PostgreSQL leaderboard repository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// Load implements leaderboard.Repository.
// Connection errors are returned rather than masked as an empty board,
// otherwise the next Save would wipe every stored record.
func (r *LeaderboardRepository) Load(ctx context.Context) (*leaderboard.Snapshot, error) {
	snap := leaderboard.NewSnapshot()

	err := r.conn.WithTx(ctx, SnapshotTxOptions(), func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT version FROM leaderboard_state WHERE id = 1`).Scan(&snap.Version)
		if err != nil && !IsNoRows(err) {
			return fmt.Errorf("read version: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT player_id, username, total_score, games_played
			FROM leaderboard_players
		`)
		if err != nil {
			return fmt.Errorf("read players: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			rec := &leaderboard.PlayerRecord{}
			if err := rows.Scan(&rec.PlayerID, &rec.DisplayName, &rec.TotalScore, &rec.GamesPlayed); err != nil {
				return fmt.Errorf("scan player: %w", err)
			}
			snap.Records[rec.PlayerID] = rec
		}
		return rows.Err()
	})
	if err != nil {
		return nil, shared.ErrStoreUnavailable.Wrap(fmt.Errorf("postgres: load leaderboard: %w", err))
	}

	return snap, nil
}

// Save implements leaderboard.Repository.
func (r *LeaderboardRepository) Save(ctx context.Context, snap *leaderboard.Snapshot) error {
	var newVersion int64

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE leaderboard_state
			SET version = version + 1, updated_at = NOW()
			WHERE id = 1 AND version = $1
		`, snap.Version)
		if err != nil {
			return fmt.Errorf("bump version: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrSnapshotConflict
		}
		newVersion = snap.Version + 1

		ids := snap.PlayerIDs()

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM leaderboard_players WHERE NOT (player_id = ANY($1))`, ids)
		for _, id := range ids {
			rec := snap.Records[id]
			batch.Queue(`
				INSERT INTO leaderboard_players (player_id, username, total_score, games_played, updated_at)
				VALUES ($1, $2, $3, $4, NOW())
				ON CONFLICT (player_id) DO UPDATE SET
					username = EXCLUDED.username,
					total_score = EXCLUDED.total_score,
					games_played = EXCLUDED.games_played,
					updated_at = NOW()
				WHERE leaderboard_players.username IS DISTINCT FROM EXCLUDED.username
					OR leaderboard_players.total_score <> EXCLUDED.total_score
					OR leaderboard_players.games_played <> EXCLUDED.games_played
			`, id, rec.DisplayName, rec.TotalScore, rec.GamesPlayed)
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("write players: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		if shared.IsConcurrentModification(err) || IsSerializationFailure(err) {
			return shared.ErrSnapshotConflict
		}
		return shared.ErrSnapshotWrite.Wrap(fmt.Errorf("postgres: save leaderboard: %w", err))
	}

	snap.Version = newVersion
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// MessageLedger implements leaderboard.MessageLedger on the ingested_messages table.
type MessageLedger struct {
	conn *Connection
}

// NewMessageLedger creates a new PostgreSQL message ledger.
func NewMessageLedger(conn *Connection) *MessageLedger {
	return &MessageLedger{conn: conn}
}

// IsProcessed reports whether messageID was already ingested.
func (l *MessageLedger) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := l.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ingested_messages WHERE message_id = $1)`,
		messageID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check ingested message: %w", err)
	}
	return exists, nil
}

// MarkProcessed records message IDs as ingested. Already recorded IDs are ignored.
func (l *MessageLedger) MarkProcessed(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	_, err := l.conn.Exec(ctx, `
		INSERT INTO ingested_messages (message_id)
		SELECT UNNEST($1::text[])
		ON CONFLICT (message_id) DO NOTHING
	`, messageIDs)
	if err != nil {
		return fmt.Errorf("postgres: mark ingested messages: %w", err)
	}
	return nil
}
