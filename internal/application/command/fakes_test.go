package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/shared"
	"github.com/etchobot/wordle-hub/internal/domain/wordle"
)

const testSourceID = "1211781489931452447"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─────────────────────────────────────────────────────────────────────────────
// repository
// ─────────────────────────────────────────────────────────────────────────────

type memoryRepo struct {
	mu        sync.Mutex
	snap      *leaderboard.Snapshot
	saves     int
	loadErr   error
	saveErr   error
	conflicts int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{snap: leaderboard.NewSnapshot()}
}

func (r *memoryRepo) Load(ctx context.Context) (*leaderboard.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.snap.Clone(), nil
}

func (r *memoryRepo) Save(ctx context.Context, s *leaderboard.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.conflicts > 0 {
		r.conflicts--
		r.snap.Version++
		return shared.ErrSnapshotConflict
	}
	if s.Version != r.snap.Version {
		return shared.ErrSnapshotConflict
	}
	r.snap = s.Clone()
	r.snap.Version++
	r.saves++
	return nil
}

func (r *memoryRepo) current() *leaderboard.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Clone()
}

func (r *memoryRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// ─────────────────────────────────────────────────────────────────────────────
// resolver
// ─────────────────────────────────────────────────────────────────────────────

type stubResolver struct {
	names map[string]string
	calls atomic.Int32
}

func (r *stubResolver) Resolve(ctx context.Context, id string) string {
	r.calls.Add(1)
	if name, ok := r.names[id]; ok {
		return name
	}
	return fmt.Sprintf("User %s (Not Found)", id)
}

// ─────────────────────────────────────────────────────────────────────────────
// message source
// ─────────────────────────────────────────────────────────────────────────────

type fakeSource struct {
	history  []Message
	scanErr  error
	failAt   int
	messages map[string]Message
}

func (s *fakeSource) FetchMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	m, ok := s.messages[messageID]
	if !ok || m.ChannelID != channelID {
		return Message{}, shared.ErrDiscordMessageNotFound
	}
	return m, nil
}

func (s *fakeSource) ScanHistory(ctx context.Context, channelID string, limit int, fn func(Message) error) (int, error) {
	scanned := 0
	for _, m := range s.history {
		if scanned >= limit {
			break
		}
		if s.scanErr != nil && scanned == s.failAt {
			return scanned, s.scanErr
		}
		if err := fn(m); err != nil {
			return scanned, err
		}
		scanned++
	}
	return scanned, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ledger
// ─────────────────────────────────────────────────────────────────────────────

type memoryLedger struct {
	mu  sync.Mutex
	ids map[string]bool
	err error
}

func newMemoryLedger(ids ...string) *memoryLedger {
	l := &memoryLedger{ids: make(map[string]bool)}
	for _, id := range ids {
		l.ids[id] = true
	}
	return l
}

func (l *memoryLedger) IsProcessed(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	return l.ids[id], nil
}

func (l *memoryLedger) MarkProcessed(ctx context.Context, ids ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		l.ids[id] = true
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// locker
// ─────────────────────────────────────────────────────────────────────────────

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func(context.Context) error), args.Error(1)
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestEngine(t *testing.T, resolver IdentityResolver) *Engine {
	t.Helper()
	parser, err := wordle.NewParser(wordle.DefaultParserConfig())
	require.NoError(t, err)

	engine, err := NewEngine(EngineConfig{
		SourceBotID: testSourceID,
		Parser:      parser,
		Resolver:    resolver,
		Concurrency: 2,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	return engine
}

func newTestWriter(repo leaderboard.Repository) *SnapshotWriter {
	cfg := DefaultSnapshotWriterConfig()
	cfg.ConflictBackoff = 1
	cfg.Logger = discardLogger()
	return NewSnapshotWriter(repo, cfg)
}

func sourceMessage(id, content string) Message {
	return Message{ID: id, ChannelID: "chan", AuthorID: testSourceID, Content: content}
}
