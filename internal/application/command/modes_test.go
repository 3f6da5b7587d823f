package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etchobot/wordle-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// live
// ─────────────────────────────────────────────────────────────────────────────

func TestLogLiveMessage(t *testing.T) {
	t.Run("scores and saves", func(t *testing.T) {
		repo := newMemoryRepo()
		ledger := newMemoryLedger()
		h := NewLogLiveMessageHandler(newTestEngine(t, &stubResolver{}), newTestWriter(repo), ledger, discardLogger())

		res, err := h.Handle(context.Background(), LogLiveMessageCommand{Message: sourceMessage("m1", "2/6: <@1>")})
		require.NoError(t, err)
		assert.True(t, res.Saved)
		assert.Equal(t, 1, res.Logged)
		assert.Equal(t, 1, repo.saveCount())
		assert.Equal(t, 5, repo.current().Get("1").TotalScore)
		assert.True(t, ledger.ids["m1"])
	})

	t.Run("ignores other authors", func(t *testing.T) {
		repo := newMemoryRepo()
		h := NewLogLiveMessageHandler(newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, discardLogger())

		msg := sourceMessage("m1", "2/6: <@1>")
		msg.AuthorID = "99"
		res, err := h.Handle(context.Background(), LogLiveMessageCommand{Message: msg})
		require.NoError(t, err)
		assert.True(t, res.Ignored)
		assert.Zero(t, repo.saveCount())
	})

	t.Run("parse miss does not save", func(t *testing.T) {
		repo := newMemoryRepo()
		h := NewLogLiveMessageHandler(newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, discardLogger())

		res, err := h.Handle(context.Background(), LogLiveMessageCommand{Message: sourceMessage("m1", "hello")})
		require.NoError(t, err)
		assert.True(t, res.ParseMiss)
		assert.False(t, res.Saved)
		assert.Zero(t, repo.saveCount())
	})

	t.Run("skips redelivered message", func(t *testing.T) {
		repo := newMemoryRepo()
		h := NewLogLiveMessageHandler(newTestEngine(t, &stubResolver{}), newTestWriter(repo), newMemoryLedger("m1"), discardLogger())

		res, err := h.Handle(context.Background(), LogLiveMessageCommand{Message: sourceMessage("m1", "2/6: <@1>")})
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Zero(t, repo.saveCount())
	})

	t.Run("save failure is reported", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.saveErr = errors.New("disk full")
		h := NewLogLiveMessageHandler(newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, discardLogger())

		_, err := h.Handle(context.Background(), LogLiveMessageCommand{Message: sourceMessage("m1", "2/6: <@1>")})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrPersistence)
		assert.ErrorIs(t, err, shared.ErrSnapshotWrite)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// backfill
// ─────────────────────────────────────────────────────────────────────────────

func backfillHistory() []Message {
	other := sourceMessage("o1", "Here are yesterday's results: 1/6: <@9>")
	other.AuthorID = "42"

	return []Message{
		{ID: "cmd", ChannelID: "chan", AuthorID: testSourceID, Content: "!backfill_wordle yesterday's results"},
		sourceMessage("e1", "**Here are yesterday's results:**\n3/6: <@1>"),
		other,
		sourceMessage("e2", "Here are Yesterday's Results:\n2/6: <@1> <@2>"),
		sourceMessage("n1", "Your group is on a 5 day streak! 1/6: <@1>"),
		sourceMessage("e3", "Here are yesterday's results:\nX/6: <@2>"),
	}
}

func TestBackfillChannel_ThreeEligibleOneSave(t *testing.T) {
	repo := newMemoryRepo()
	source := &fakeSource{history: backfillHistory()}
	h := NewBackfillChannelHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, nil, discardLogger(), DefaultBackfillChannelHandlerConfig())

	res, err := h.Handle(context.Background(), BackfillChannelCommand{ChannelID: "chan", Limit: 5000, SkipMessageID: "cmd"})
	require.NoError(t, err)

	assert.NotEmpty(t, res.OperationID)
	assert.Equal(t, 6, res.Scanned)
	assert.Equal(t, 3, res.Eligible)
	assert.Equal(t, 3, res.MessagesLogged)
	assert.Equal(t, 4, res.ResultsLogged)
	assert.True(t, res.Saved)
	assert.False(t, res.Partial)
	assert.Equal(t, 1, repo.saveCount())

	snap := repo.current()
	assert.Equal(t, 4+5, snap.Get("1").TotalScore)
	assert.Equal(t, 2, snap.Get("1").GamesPlayed)
	assert.Equal(t, 5, snap.Get("2").TotalScore)
	assert.Equal(t, 2, snap.Get("2").GamesPlayed)
	assert.Nil(t, snap.Get("9"))
}

func TestBackfillChannel_LimitBoundsScan(t *testing.T) {
	repo := newMemoryRepo()
	source := &fakeSource{history: backfillHistory()}
	h := NewBackfillChannelHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, nil, discardLogger(), DefaultBackfillChannelHandlerConfig())

	res, err := h.Handle(context.Background(), BackfillChannelCommand{ChannelID: "chan", Limit: 2, SkipMessageID: "cmd"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.MessagesLogged)
}

func TestBackfillChannel_TransportFailureSavesNothing(t *testing.T) {
	repo := newMemoryRepo()
	source := &fakeSource{history: backfillHistory(), scanErr: shared.ErrDiscordUnavailable, failAt: 4}
	h := NewBackfillChannelHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, nil, discardLogger(), DefaultBackfillChannelHandlerConfig())

	res, err := h.Handle(context.Background(), BackfillChannelCommand{ChannelID: "chan", Limit: 100})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	require.NotNil(t, res)
	assert.True(t, res.Partial)
	assert.Equal(t, 4, res.Scanned)
	assert.Zero(t, repo.saveCount())
}

func TestBackfillChannel_NothingFound(t *testing.T) {
	repo := newMemoryRepo()
	source := &fakeSource{history: []Message{sourceMessage("n1", "streak update")}}
	h := NewBackfillChannelHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, nil, discardLogger(), DefaultBackfillChannelHandlerConfig())

	res, err := h.Handle(context.Background(), BackfillChannelCommand{ChannelID: "chan", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, res.MessagesLogged)
	assert.False(t, res.Saved)
	assert.Zero(t, repo.saveCount())
}

func TestBackfillChannel_SkipsProcessedMessages(t *testing.T) {
	repo := newMemoryRepo()
	ledger := newMemoryLedger("e1")
	source := &fakeSource{history: backfillHistory()}
	h := NewBackfillChannelHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), ledger, nil, discardLogger(), DefaultBackfillChannelHandlerConfig())

	res, err := h.Handle(context.Background(), BackfillChannelCommand{ChannelID: "chan", Limit: 100, SkipMessageID: "cmd"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 2, res.MessagesLogged)
	assert.True(t, ledger.ids["e2"])
	assert.True(t, ledger.ids["e3"])

	// A second run finds everything already counted.
	res, err = h.Handle(context.Background(), BackfillChannelCommand{ChannelID: "chan", Limit: 100, SkipMessageID: "cmd"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Duplicates)
	assert.Equal(t, 1, repo.saveCount())
}

func TestBackfillChannel_Validation(t *testing.T) {
	h := NewBackfillChannelHandler(&fakeSource{}, newTestEngine(t, &stubResolver{}), newTestWriter(newMemoryRepo()), nil, nil, discardLogger(), BackfillChannelHandlerConfig{})

	_, err := h.Handle(context.Background(), BackfillChannelCommand{Limit: 10})
	assert.Error(t, err)
	_, err = h.Handle(context.Background(), BackfillChannelCommand{ChannelID: "chan"})
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// replay
// ─────────────────────────────────────────────────────────────────────────────

func TestReplayMessage(t *testing.T) {
	other := sourceMessage("102", "1/6: <@1>")
	other.AuthorID = "42"

	source := &fakeSource{messages: map[string]Message{
		"101": sourceMessage("101", "Here are yesterday's results: 4/6: <@1>"),
		"102": other,
		"103": sourceMessage("103", "The puzzle is loading"),
		"104": sourceMessage("104", "Here are yesterday's results: 3/6: nobody tagged"),
	}}

	t.Run("success", func(t *testing.T) {
		repo := newMemoryRepo()
		h := NewReplayMessageHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, discardLogger())

		res, err := h.Handle(context.Background(), ReplayMessageCommand{ChannelID: "chan", MessageID: "101"})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Logged)
		assert.True(t, res.Saved)
		assert.Equal(t, 3, repo.current().Get("1").TotalScore)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newMemoryRepo()
		h := NewReplayMessageHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, discardLogger())

		_, err := h.Handle(context.Background(), ReplayMessageCommand{ChannelID: "chan", MessageID: "999"})
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("wrong author", func(t *testing.T) {
		repo := newMemoryRepo()
		h := NewReplayMessageHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, discardLogger())

		_, err := h.Handle(context.Background(), ReplayMessageCommand{ChannelID: "chan", MessageID: "102"})
		assert.ErrorIs(t, err, shared.ErrSourceMismatch)
		assert.Zero(t, repo.saveCount())
	})

	t.Run("parse miss keeps raw content", func(t *testing.T) {
		repo := newMemoryRepo()
		h := NewReplayMessageHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), nil, discardLogger())

		res, err := h.Handle(context.Background(), ReplayMessageCommand{ChannelID: "chan", MessageID: "103"})
		assert.ErrorIs(t, err, shared.ErrNoResults)
		require.NotNil(t, res)
		assert.Equal(t, "The puzzle is loading", res.RawContent)
		assert.Zero(t, repo.saveCount())
	})

	t.Run("tokens without players log nothing", func(t *testing.T) {
		repo := newMemoryRepo()
		ledger := newMemoryLedger()
		h := NewReplayMessageHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), ledger, discardLogger())

		res, err := h.Handle(context.Background(), ReplayMessageCommand{ChannelID: "chan", MessageID: "104"})
		assert.ErrorIs(t, err, shared.ErrNoResults)
		require.NotNil(t, res)
		assert.Zero(t, res.Logged)
		assert.False(t, res.Saved)
		assert.Contains(t, res.RawContent, "nobody tagged")
		assert.Zero(t, repo.saveCount())
		assert.False(t, ledger.ids["104"])
	})

	t.Run("already ingested unless forced", func(t *testing.T) {
		repo := newMemoryRepo()
		h := NewReplayMessageHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(repo), newMemoryLedger("101"), discardLogger())

		_, err := h.Handle(context.Background(), ReplayMessageCommand{ChannelID: "chan", MessageID: "101"})
		assert.ErrorIs(t, err, shared.ErrAlreadyIngested)

		res, err := h.Handle(context.Background(), ReplayMessageCommand{ChannelID: "chan", MessageID: "101", Force: true})
		require.NoError(t, err)
		assert.True(t, res.Saved)
	})

	t.Run("invalid id", func(t *testing.T) {
		h := NewReplayMessageHandler(source, newTestEngine(t, &stubResolver{}), newTestWriter(newMemoryRepo()), nil, discardLogger())

		_, err := h.Handle(context.Background(), ReplayMessageCommand{ChannelID: "chan", MessageID: "abc"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
