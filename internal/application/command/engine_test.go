package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
)

func TestEngine_Ingest_MultiSegment(t *testing.T) {
	resolver := &stubResolver{names: map[string]string{"111": "alice", "222": "bob", "333": "carol"}}
	engine := newTestEngine(t, resolver)
	snap := leaderboard.NewSnapshot()

	res, err := engine.Ingest(context.Background(), ModeLive, sourceMessage("m1", "1/6: <@!111> 2/6: <@!222> <@!333>"), snap)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Logged)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 3, res.Players)

	require.NotNil(t, snap.Get("111"))
	assert.Equal(t, 6, snap.Get("111").TotalScore)
	assert.Equal(t, 1, snap.Get("111").GamesPlayed)
	assert.Equal(t, "alice", snap.Get("111").DisplayName)

	for _, id := range []string{"222", "333"} {
		rec := snap.Get(id)
		require.NotNil(t, rec, id)
		assert.Equal(t, 5, rec.TotalScore)
		assert.Equal(t, 1, rec.GamesPlayed)
	}
}

func TestEngine_Ingest_Failure(t *testing.T) {
	engine := newTestEngine(t, &stubResolver{names: map[string]string{"111": "alice"}})
	snap := leaderboard.NewSnapshot()

	res, err := engine.Ingest(context.Background(), ModeLive, sourceMessage("m1", "X/6: <@!111>"), snap)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Logged)

	rec := snap.Get("111")
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.TotalScore)
	assert.Equal(t, 1, rec.GamesPlayed)

	standings := leaderboard.Rank(snap, 6)
	require.Len(t, standings, 1)
	assert.True(t, standings[0].AllFailed())
}

func TestEngine_Ingest_OutOfRangeTokenRecordsNoGame(t *testing.T) {
	engine := newTestEngine(t, &stubResolver{names: map[string]string{"111": "alice", "222": "bob"}})

	snap := leaderboard.NewSnapshot()
	res, err := engine.Ingest(context.Background(), ModeLive, sourceMessage("m1", "0/6: <@!111>"), snap)
	require.NoError(t, err)
	assert.True(t, res.ParseMiss)
	assert.Zero(t, res.Logged)
	assert.Nil(t, snap.Get("111"))

	res, err = engine.Ingest(context.Background(), ModeLive, sourceMessage("m2", "2/6: <@!111> 7/6: <@!222>"), snap)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Logged)
	assert.Equal(t, 1, snap.Get("111").GamesPlayed)
	assert.Nil(t, snap.Get("222"))
}

func TestEngine_Ingest_IgnoresOtherAuthors(t *testing.T) {
	resolver := &stubResolver{}
	engine := newTestEngine(t, resolver)
	snap := leaderboard.NewSnapshot()

	msg := sourceMessage("m1", "1/6: <@1>")
	msg.AuthorID = "42"

	res, err := engine.Ingest(context.Background(), ModeLive, msg, snap)
	require.NoError(t, err)
	assert.True(t, res.SourceMismatch)
	assert.Zero(t, res.Logged)
	assert.True(t, snap.IsEmpty())
	assert.Zero(t, resolver.calls.Load())
}

func TestEngine_Ingest_ParseMiss(t *testing.T) {
	engine := newTestEngine(t, &stubResolver{})
	snap := leaderboard.NewSnapshot()

	res, err := engine.Ingest(context.Background(), ModeReplay, sourceMessage("m1", "Wordle is down today, sorry"), snap)
	require.NoError(t, err)
	assert.True(t, res.ParseMiss)
	assert.Zero(t, res.Logged)
	assert.True(t, snap.IsEmpty())
}

func TestEngine_Ingest_TwiceDoublesCounts(t *testing.T) {
	engine := newTestEngine(t, &stubResolver{names: map[string]string{"1": "a"}})
	snap := leaderboard.NewSnapshot()
	msg := sourceMessage("m1", "3/6: <@1>")

	_, err := engine.Ingest(context.Background(), ModeLive, msg, snap)
	require.NoError(t, err)
	_, err = engine.Ingest(context.Background(), ModeLive, msg, snap)
	require.NoError(t, err)

	assert.Equal(t, 8, snap.Get("1").TotalScore)
	assert.Equal(t, 2, snap.Get("1").GamesPlayed)
}

func TestEngine_Ingest_ResolvesEachPlayerOnce(t *testing.T) {
	resolver := &stubResolver{names: map[string]string{"1": "renamed"}}
	engine := newTestEngine(t, resolver)

	snap := leaderboard.NewSnapshot()
	snap.GetOrCreate("1", "old name").RecordGame(6, "old name")

	res, err := engine.Ingest(context.Background(), ModeLive, sourceMessage("m1", "2/6: <@1> <@1> 4/6: <@1> <@2>"), snap)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Logged)
	assert.Equal(t, int32(2), resolver.calls.Load())

	rec := snap.Get("1")
	assert.Equal(t, "renamed", rec.DisplayName)
	assert.Equal(t, 4, rec.GamesPlayed)
	assert.Equal(t, 6+5+5+3, rec.TotalScore)

	assert.Equal(t, "User 2 (Not Found)", snap.Get("2").DisplayName)
}

func TestEngine_Ingest_TokenWithoutPlayers(t *testing.T) {
	engine := newTestEngine(t, &stubResolver{})
	snap := leaderboard.NewSnapshot()

	res, err := engine.Ingest(context.Background(), ModeLive, sourceMessage("m1", "1/6: 2/6:"), snap)
	require.NoError(t, err)
	assert.False(t, res.ParseMiss)
	assert.Equal(t, 2, res.Parsed)
	assert.Zero(t, res.Logged)
}

func TestEngine_Ingest_CancelledLeavesSnapshotUntouched(t *testing.T) {
	engine := newTestEngine(t, &stubResolver{})
	snap := leaderboard.NewSnapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Ingest(ctx, ModeBackfill, sourceMessage("m1", "1/6: <@1> <@2> <@3>"), snap)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, snap.IsEmpty())
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(EngineConfig{})
	assert.Error(t, err)

	_, err = NewEngine(EngineConfig{SourceBotID: testSourceID})
	assert.Error(t, err)
}
