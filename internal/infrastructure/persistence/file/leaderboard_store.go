// Package file implements the leaderboard repository on a single JSON document.
// The document layout is {"<player id>": {"username", "total_score", "games_played"}},
// so existing leaderboard.json files load unchanged.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/shared"
)

// playerDTO is the on-disk form of a PlayerRecord.
type playerDTO struct {
	Username    string `json:"username"`
	TotalScore  int    `json:"total_score"`
	GamesPlayed int    `json:"games_played"`
}

// Store is a leaderboard.Repository backed by a JSON file.
//
// Writes go to a temporary file in the same directory which is then renamed
// over the target, so a crash never leaves a half-written document.
// A document that cannot be decoded is moved aside and treated as empty.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	version int64
}

// NewStore creates a Store for path. The file need not exist.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("file store: path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger.With("component", "file_store", "path", path),
	}, nil
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Ping reports whether the directory holding the document is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("file store: %s is not a directory", filepath.Dir(s.path))
	}
	return nil
}

// Load implements leaderboard.Repository.
func (s *Store) Load(ctx context.Context) (*leaderboard.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := leaderboard.NewSnapshot()
	snap.Version = s.version

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		s.logger.Warn("leaderboard file unreadable, starting empty", "error", err)
		return snap, nil
	}

	var doc map[string]playerDTO
	if err := json.Unmarshal(data, &doc); err != nil {
		s.quarantine(err)
		return snap, nil
	}

	for id, p := range doc {
		snap.Records[id] = &leaderboard.PlayerRecord{
			PlayerID:    id,
			DisplayName: p.Username,
			TotalScore:  p.TotalScore,
			GamesPlayed: p.GamesPlayed,
		}
	}
	return snap, nil
}

// Save implements leaderboard.Repository.
// Saves from a snapshot loaded before the latest Save are rejected.
func (s *Store) Save(ctx context.Context, snap *leaderboard.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Version != s.version {
		return shared.ErrSnapshotConflict
	}

	doc := make(map[string]playerDTO, snap.Len())
	for id, rec := range snap.Records {
		doc[id] = playerDTO{
			Username:    rec.DisplayName,
			TotalScore:  rec.TotalScore,
			GamesPlayed: rec.GamesPlayed,
		}
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("file store: encode: %w", err)
	}

	if err := writeAtomic(s.path, data); err != nil {
		return shared.ErrSnapshotWrite.Wrap(fmt.Errorf("file store: %w", err))
	}

	s.version++
	snap.Version = s.version
	return nil
}

// quarantine moves an undecodable document aside so the next Save
// does not silently overwrite it.
func (s *Store) quarantine(cause error) {
	corrupt := shared.ErrSnapshotCorrupt.Wrap(cause)
	aside := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(s.path, aside); err != nil {
		s.logger.Error("leaderboard file could not be moved aside",
			"decode_error", corrupt,
			"error", err,
		)
		return
	}
	s.logger.Warn("leaderboard file moved aside, starting empty",
		"decode_error", corrupt,
		"moved_to", aside,
	)
}

// writeAtomic writes data to a temp file next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
