package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/etchobot/wordle-hub/internal/application/command"
	"github.com/etchobot/wordle-hub/internal/domain/shared"
	"github.com/etchobot/wordle-hub/internal/interface/discord/handler"
	"github.com/etchobot/wordle-hub/internal/interface/discord/middleware"
	"github.com/etchobot/wordle-hub/internal/interface/discord/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type sent struct {
	channelID string
	text      string
	embed     *discordgo.MessageEmbed
}

type fakeResponder struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeResponder) SendText(_ context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{channelID: channelID, text: content})
	return f.err
}

func (f *fakeResponder) SendEmbed(_ context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{channelID: channelID, embed: embed})
	return f.err
}

func (f *fakeResponder) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.text)
	}
	return out
}

type MockPermissions struct{ mock.Mock }

func (m *MockPermissions) IsAdministrator(ctx context.Context, userID, channelID string) (bool, error) {
	args := m.Called(ctx, userID, channelID)
	return args.Bool(0), args.Error(1)
}

type MockCommandHandler struct{ mock.Mock }

func (m *MockCommandHandler) Handle(ctx context.Context, cmdCtx handler.CommandContext) (*handler.Response, error) {
	args := m.Called(ctx, cmdCtx)
	resp, _ := args.Get(0).(*handler.Response)
	return resp, args.Error(1)
}

type panicHandler struct{}

func (panicHandler) Handle(context.Context, handler.CommandContext) (*handler.Response, error) {
	panic("handler bug")
}

type fakeSession struct {
	opened, closed bool
	handlers       int
}

func (s *fakeSession) Open() error  { s.opened = true; return nil }
func (s *fakeSession) Close() error { s.closed = true; return nil }
func (s *fakeSession) AddHandler(interface{}) func() {
	s.handlers++
	return func() { s.handlers-- }
}

type fakeIngester struct {
	calls  []command.LogLiveMessageCommand
	result *command.LogLiveMessageResult
}

func (f *fakeIngester) Handle(_ context.Context, cmd command.LogLiveMessageCommand) (*command.LogLiveMessageResult, error) {
	f.calls = append(f.calls, cmd)
	return f.result, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textReply(s string) *handler.Response {
	return &handler.Response{Replies: []handler.Reply{{Text: s}}}
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

func TestParseCommand(t *testing.T) {
	name, args, ok := ParseCommand("!", "  !Backfill_Wordle <#1>  20 ")
	require.True(t, ok)
	assert.Equal(t, "backfill_wordle", name)
	assert.Equal(t, []string{"<#1>", "20"}, args)

	_, _, ok = ParseCommand("!", "hello")
	assert.False(t, ok)
	_, _, ok = ParseCommand("!", "!")
	assert.False(t, ok)
}

func TestRouter_Dispatch(t *testing.T) {
	ctx := context.Background()
	msg := InboundMessage{ID: "9", ChannelID: "100", GuildID: "g", AuthorID: "u1", Content: "!wordleboard"}

	t.Run("routes and sends replies", func(t *testing.T) {
		resp := &fakeResponder{}
		h := new(MockCommandHandler)
		h.On("Handle", ctx, mock.MatchedBy(func(c handler.CommandContext) bool {
			return c.AuthorID == "u1" && c.MessageID == "9" && c.Prefix == "!" && len(c.Args) == 0
		})).Return(&handler.Response{Replies: []handler.Reply{{Embed: &discordgo.MessageEmbed{Title: "board"}}}}, nil)

		r := NewRouter(RouterConfig{Logger: quietLogger()}, resp, nil)
		r.RegisterCommand("wordleboard", h, CommandOptions{})

		handled, err := r.Dispatch(ctx, msg)
		require.NoError(t, err)
		assert.True(t, handled)
		require.Len(t, resp.sent, 1)
		assert.Equal(t, "board", resp.sent[0].embed.Title)
		assert.Equal(t, "100", resp.sent[0].channelID)
	})

	t.Run("unknown command is not handled", func(t *testing.T) {
		r := NewRouter(RouterConfig{Logger: quietLogger()}, &fakeResponder{}, nil)
		handled, err := r.Dispatch(ctx, InboundMessage{Content: "!play"})
		require.NoError(t, err)
		assert.False(t, handled)
	})

	t.Run("disabled feature is silent", func(t *testing.T) {
		resp := &fakeResponder{}
		h := new(MockCommandHandler)
		r := NewRouter(RouterConfig{
			Logger:    quietLogger(),
			IsEnabled: func(f string) bool { return f != "greeting.hello" },
		}, resp, nil)
		r.RegisterCommand("hello", h, CommandOptions{Feature: "greeting.hello"})

		handled, err := r.Dispatch(ctx, InboundMessage{Content: "!hello"})
		require.NoError(t, err)
		assert.True(t, handled)
		assert.Empty(t, resp.sent)
		h.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})

	t.Run("admin only denies before work", func(t *testing.T) {
		resp := &fakeResponder{}
		perms := new(MockPermissions)
		perms.On("IsAdministrator", ctx, "u1", "100").Return(false, nil)
		h := new(MockCommandHandler)

		r := NewRouter(RouterConfig{Logger: quietLogger()}, resp, perms)
		r.RegisterCommand("backfill_wordle", h, CommandOptions{AdminOnly: true})

		msg := InboundMessage{ID: "9", ChannelID: "100", GuildID: "g", AuthorID: "u1", Content: "!backfill_wordle"}
		handled, err := r.Dispatch(ctx, msg)
		require.NoError(t, err)
		assert.True(t, handled)
		assert.Equal(t, []string{presenter.AdminRequired}, resp.texts())
		h.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
		assert.ErrorIs(t, r.authorize(ctx, msg), shared.ErrNotAuthorized)
	})

	t.Run("admin check failure denies", func(t *testing.T) {
		resp := &fakeResponder{}
		perms := new(MockPermissions)
		perms.On("IsAdministrator", ctx, "u1", "100").Return(false, errors.New("403"))
		h := new(MockCommandHandler)

		r := NewRouter(RouterConfig{Logger: quietLogger()}, resp, perms)
		r.RegisterCommand("log_by_id", h, CommandOptions{AdminOnly: true})

		msg := InboundMessage{ChannelID: "100", GuildID: "g", AuthorID: "u1", Content: "!log_by_id 1"}
		_, err := r.Dispatch(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, []string{presenter.AdminRequired}, resp.texts())
		h.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)

		err = r.authorize(ctx, msg)
		require.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrNotAuthorized)
	})

	t.Run("direct messages never pass admin check", func(t *testing.T) {
		resp := &fakeResponder{}
		perms := new(MockPermissions)
		h := new(MockCommandHandler)

		r := NewRouter(RouterConfig{Logger: quietLogger()}, resp, perms)
		r.RegisterCommand("log_by_id", h, CommandOptions{AdminOnly: true})

		msg := InboundMessage{ChannelID: "dm", AuthorID: "u1", Content: "!log_by_id 1"}
		_, err := r.Dispatch(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, []string{presenter.AdminRequired}, resp.texts())
		assert.ErrorIs(t, r.authorize(ctx, msg), shared.ErrNotAuthorized)
		perms.AssertNotCalled(t, "IsAdministrator", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("admin allowed with notify", func(t *testing.T) {
		resp := &fakeResponder{}
		perms := new(MockPermissions)
		perms.On("IsAdministrator", ctx, "u1", "100").Return(true, nil)

		h := new(MockCommandHandler)
		h.On("Handle", ctx, mock.Anything).Run(func(args mock.Arguments) {
			c := args.Get(1).(handler.CommandContext)
			require.NoError(t, c.Notify(ctx, handler.Reply{Text: "working"}))
		}).Return(textReply("done"), nil)

		r := NewRouter(RouterConfig{Logger: quietLogger()}, resp, perms)
		r.RegisterCommand("backfill_wordle", h, CommandOptions{AdminOnly: true})

		_, err := r.Dispatch(ctx, InboundMessage{ChannelID: "100", GuildID: "g", AuthorID: "u1", Content: "!backfill_wordle 10"})
		require.NoError(t, err)
		assert.Equal(t, []string{"working", "done"}, resp.texts())
	})

	t.Run("panic is recovered", func(t *testing.T) {
		resp := &fakeResponder{}
		r := NewRouter(RouterConfig{Logger: quietLogger()}, resp, nil)
		r.RegisterCommand("wordleboard", panicHandler{}, CommandOptions{})

		handled, err := r.Dispatch(ctx, msg)
		require.NoError(t, err)
		assert.True(t, handled)
		assert.Equal(t, []string{middleware.DefaultUserErrorMessage}, resp.texts())
	})

	t.Run("rate limited", func(t *testing.T) {
		resp := &fakeResponder{}
		h := new(MockCommandHandler)
		h.On("Handle", ctx, mock.Anything).Return(textReply("ok"), nil)

		r := NewRouter(RouterConfig{
			Logger:      quietLogger(),
			RateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{CommandsPerMinute: 1, BurstSize: 1}),
		}, resp, nil)
		r.RegisterCommand("wordleboard", h, CommandOptions{})

		_, err := r.Dispatch(ctx, msg)
		require.NoError(t, err)
		_, err = r.Dispatch(ctx, msg)
		require.NoError(t, err)

		got := resp.texts()
		require.Len(t, got, 2)
		assert.Equal(t, "ok", got[0])
		assert.Contains(t, got[1], "Too many commands")
		h.AssertNumberOfCalls(t, "Handle", 1)
	})

	t.Run("send failure surfaces", func(t *testing.T) {
		resp := &fakeResponder{err: errors.New("403")}
		h := new(MockCommandHandler)
		h.On("Handle", ctx, mock.Anything).Return(textReply("ok"), nil)

		r := NewRouter(RouterConfig{Logger: quietLogger()}, resp, nil)
		r.RegisterCommand("wordleboard", h, CommandOptions{})

		_, err := r.Dispatch(ctx, msg)
		assert.ErrorContains(t, err, "send reply")
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

func newTestBot(t *testing.T, ing *fakeIngester, resp *fakeResponder, liveOn bool) (*Bot, *MockCommandHandler, *fakeSession) {
	t.Helper()

	h := new(MockCommandHandler)
	h.On("Handle", mock.Anything, mock.Anything).Return(textReply("board"), nil).Maybe()

	r := NewRouter(RouterConfig{Logger: quietLogger()}, resp, nil)
	r.RegisterCommand(CommandWordleboard, h, CommandOptions{})

	session := &fakeSession{}
	bot, err := NewBot(BotConfig{
		SourceBotID: "src",
		LiveEnabled: func() bool { return liveOn },
		Logger:      quietLogger(),
	}, BotDependencies{
		Session: session,
		Router:  r,
		Live:    handler.NewLiveHandler(ing, quietLogger()),
	})
	require.NoError(t, err)
	require.NoError(t, bot.Start(context.Background()))
	return bot, h, session
}

func TestBot_Lifecycle(t *testing.T) {
	bot, _, session := newTestBot(t, &fakeIngester{}, &fakeResponder{}, true)
	assert.True(t, session.opened)
	assert.Equal(t, 2, session.handlers)
	assert.Error(t, bot.Start(context.Background()))

	require.NoError(t, bot.Stop(context.Background()))
	assert.True(t, session.closed)
	assert.Zero(t, session.handlers)
	assert.False(t, bot.IsRunning())
	require.NoError(t, bot.Stop(context.Background()))
}

func TestBot_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("live post is scored and acknowledged", func(t *testing.T) {
		ing := &fakeIngester{result: &command.LogLiveMessageResult{Logged: 2, Saved: true}}
		resp := &fakeResponder{}
		bot, _, _ := newTestBot(t, ing, resp, true)

		err := bot.HandleMessage(ctx, InboundMessage{ID: "1", ChannelID: "100", AuthorID: "src", AuthorIsBot: true, Content: "results"})
		require.NoError(t, err)
		require.Len(t, ing.calls, 1)
		assert.Equal(t, "1", ing.calls[0].Message.ID)
		assert.Equal(t, []string{presenter.LiveAck}, resp.texts())
		assert.Equal(t, int64(1), bot.GetStats()["live_posts"])
	})

	t.Run("live ingest disabled", func(t *testing.T) {
		ing := &fakeIngester{result: &command.LogLiveMessageResult{Saved: true}}
		resp := &fakeResponder{}
		bot, _, _ := newTestBot(t, ing, resp, false)

		require.NoError(t, bot.HandleMessage(ctx, InboundMessage{ID: "1", AuthorID: "src", AuthorIsBot: true}))
		assert.Empty(t, ing.calls)
		assert.Empty(t, resp.sent)
	})

	t.Run("own messages are ignored", func(t *testing.T) {
		ing := &fakeIngester{}
		resp := &fakeResponder{}
		bot, h, _ := newTestBot(t, ing, resp, true)
		bot.onReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "me"}})

		require.NoError(t, bot.HandleMessage(ctx, InboundMessage{ID: "1", AuthorID: "me", Content: "!wordleboard"}))
		h.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
		assert.Empty(t, resp.sent)
	})

	t.Run("commands from humans are routed", func(t *testing.T) {
		resp := &fakeResponder{}
		bot, h, _ := newTestBot(t, &fakeIngester{}, resp, true)

		require.NoError(t, bot.HandleMessage(ctx, InboundMessage{ID: "1", ChannelID: "100", AuthorID: "u1", Content: "!wordleboard"}))
		h.AssertNumberOfCalls(t, "Handle", 1)
		assert.Equal(t, []string{"board"}, resp.texts())
		assert.Equal(t, map[string]int64{"wordleboard": 1}, bot.GetStats()["commands"])
	})

	t.Run("commands from other bots are ignored", func(t *testing.T) {
		resp := &fakeResponder{}
		bot, h, _ := newTestBot(t, &fakeIngester{}, resp, true)

		require.NoError(t, bot.HandleMessage(ctx, InboundMessage{ID: "1", AuthorID: "other", AuthorIsBot: true, Content: "!wordleboard"}))
		h.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
	})

	t.Run("stopped bot drops messages", func(t *testing.T) {
		ing := &fakeIngester{result: &command.LogLiveMessageResult{Saved: true}}
		bot, _, _ := newTestBot(t, ing, &fakeResponder{}, true)
		require.NoError(t, bot.Stop(ctx))

		require.NoError(t, bot.HandleMessage(ctx, InboundMessage{ID: "1", AuthorID: "src"}))
		assert.Empty(t, ing.calls)
	})
}

type blockingIngester struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *blockingIngester) Handle(ctx context.Context, _ command.LogLiveMessageCommand) (*command.LogLiveMessageResult, error) {
	f.once.Do(func() { close(f.started) })
	select {
	case <-f.release:
	case <-ctx.Done():
	}
	return &command.LogLiveMessageResult{Saved: true}, nil
}

func TestBot_StopWaitsForInFlightHandlers(t *testing.T) {
	ing := &blockingIngester{started: make(chan struct{}), release: make(chan struct{})}
	r := NewRouter(RouterConfig{Logger: quietLogger()}, &fakeResponder{}, nil)
	session := &fakeSession{}
	bot, err := NewBot(BotConfig{
		SourceBotID: "src",
		LiveEnabled: func() bool { return true },
		Logger:      quietLogger(),
	}, BotDependencies{
		Session: session,
		Router:  r,
		Live:    handler.NewLiveHandler(ing, quietLogger()),
	})
	require.NoError(t, err)
	require.NoError(t, bot.Start(context.Background()))

	post := InboundMessage{ID: "1", ChannelID: "100", AuthorID: "src", AuthorIsBot: true, Content: "results"}
	go func() { _ = bot.HandleMessage(context.Background(), post) }()
	<-ing.started

	stopped := make(chan error, 1)
	go func() { stopped <- bot.Stop(context.Background()) }()

	// Messages arriving while Stop is draining are dropped, not counted.
	var late sync.WaitGroup
	for i := 0; i < 20; i++ {
		late.Add(1)
		go func() {
			defer late.Done()
			_ = bot.HandleMessage(context.Background(), post)
		}()
	}

	select {
	case <-stopped:
		t.Fatal("Stop returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(ing.release)
	late.Wait()
	require.NoError(t, <-stopped)
	assert.True(t, session.closed)
	assert.False(t, bot.enter())
}

func TestNewBot_Validation(t *testing.T) {
	r := NewRouter(RouterConfig{Logger: quietLogger()}, &fakeResponder{}, nil)

	_, err := NewBot(BotConfig{SourceBotID: "src"}, BotDependencies{Router: r})
	assert.Error(t, err)
	_, err = NewBot(BotConfig{SourceBotID: "src"}, BotDependencies{Session: &fakeSession{}})
	assert.Error(t, err)
	_, err = NewBot(BotConfig{}, BotDependencies{Session: &fakeSession{}, Router: r})
	assert.Error(t, err)
}
