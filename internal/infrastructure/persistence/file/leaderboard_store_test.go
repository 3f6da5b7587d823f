package file

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etchobot/wordle-hub/internal/domain/shared"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "leaderboard.json"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	snap.GetOrCreate("111", "alice").RecordGame(6, "alice")
	snap.GetOrCreate("222", "bob").RecordGame(0, "bob")
	require.NoError(t, s.Save(ctx, snap))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, "alice", loaded.Get("111").DisplayName)
	assert.Equal(t, 6, loaded.Get("111").TotalScore)
	assert.Equal(t, 0, loaded.Get("222").TotalScore)
	assert.Equal(t, 1, loaded.Get("222").GamesPlayed)
}

func TestStore_ReadsExistingDocument(t *testing.T) {
	s := newTestStore(t)
	doc := `{
    "111": {
        "username": "alice",
        "total_score": 17,
        "games_played": 4
    }
}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(doc), 0o644))

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	rec := snap.Get("111")
	require.NotNil(t, rec)
	assert.Equal(t, "alice", rec.DisplayName)
	assert.Equal(t, 17, rec.TotalScore)
	assert.Equal(t, 4, rec.GamesPlayed)
}

func TestStore_WritesDocumentLayout(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	snap.GetOrCreate("111", "alice").RecordGame(4, "alice")
	require.NoError(t, s.Save(ctx, snap))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"111": {"username": "alice", "total_score": 4, "games_played": 1}}`, string(data))
	assert.Contains(t, string(data), "\n    \"111\"")
}

func TestStore_CorruptFileMovedAside(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"111": {"username": "al`), 0o644))

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "leaderboard.json.corrupt-") {
			found = true
		}
	}
	assert.True(t, found, "corrupt file should be kept next to the original")
}

func TestStore_CorruptFileIsLogged(t *testing.T) {
	var logs bytes.Buffer
	path := filepath.Join(t.TempDir(), "leaderboard.json")
	s, err := NewStore(path, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	_, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, logs.String(), shared.ErrSnapshotCorrupt.Message)
	assert.Contains(t, logs.String(), "moved_to=")
}

func TestStore_SaveFailureIsSnapshotWrite(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "missing", "leaderboard.json"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	snap.GetOrCreate("1", "a").RecordGame(1, "a")

	err = s.Save(context.Background(), snap)
	assert.ErrorIs(t, err, shared.ErrSnapshotWrite)
	assert.ErrorIs(t, err, shared.ErrPersistence)
}

func TestStore_RejectsStaleSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Load(ctx)
	require.NoError(t, err)
	second, err := s.Load(ctx)
	require.NoError(t, err)

	first.GetOrCreate("1", "a").RecordGame(1, "a")
	require.NoError(t, s.Save(ctx, first))

	second.GetOrCreate("2", "b").RecordGame(1, "b")
	err = s.Save(ctx, second)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
}

func TestStore_LeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap, err := s.Load(ctx)
		require.NoError(t, err)
		snap.GetOrCreate("1", "a").RecordGame(1, "a")
		require.NoError(t, s.Save(ctx, snap))
	}

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "leaderboard.json", entries[0].Name())
}

func TestStore_Ping(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))

	missing, err := NewStore(filepath.Join(t.TempDir(), "gone", "leaderboard.json"), nil)
	require.NoError(t, err)
	assert.Error(t, missing.Ping(context.Background()))
}
