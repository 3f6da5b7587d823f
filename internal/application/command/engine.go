package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/wordle"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION ENGINE
// Applies one Wordle App post to an in-memory snapshot. The engine owns no
// state between calls; callers load and save the snapshot around it.
// ══════════════════════════════════════════════════════════════════════════════

// EngineConfig contains configuration for the Engine.
type EngineConfig struct {
	// SourceBotID is the only author whose posts are scored.
	SourceBotID string

	// Parser extracts results from message text.
	Parser *wordle.Parser

	// Resolver resolves display names.
	Resolver IdentityResolver

	// Concurrency bounds parallel name lookups within one message.
	Concurrency int

	Metrics Metrics
	Logger  *slog.Logger
}

// IngestResult describes what Ingest did with a message.
type IngestResult struct {
	// Logged is the number of (player, result) pairs applied to the snapshot.
	Logged int

	// Parsed is the number of score tokens found.
	Parsed int

	// Players is the number of distinct players touched.
	Players int

	// ParseMiss is set when the message came from the source but held no results.
	ParseMiss bool

	// SourceMismatch is set when the author is not the result source.
	SourceMismatch bool
}

// Engine is the aggregation engine.
type Engine struct {
	sourceID    string
	parser      *wordle.Parser
	resolver    IdentityResolver
	concurrency int
	metrics     Metrics
	logger      *slog.Logger
}

// NewEngine creates a new Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.SourceBotID == "" {
		return nil, errors.New("engine: source bot id is required")
	}
	if cfg.Parser == nil {
		return nil, errors.New("engine: parser is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("engine: resolver is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		sourceID:    cfg.SourceBotID,
		parser:      cfg.Parser,
		resolver:    cfg.Resolver,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With("component", "ingest_engine"),
	}, nil
}

// SourceBotID returns the configured result source.
func (e *Engine) SourceBotID() string {
	return e.sourceID
}

// IsFromSource reports whether msg was posted by the result source.
func (e *Engine) IsFromSource(msg Message) bool {
	return msg.AuthorID == e.sourceID
}

// Ingest parses msg and applies every (player, result) pair to snap.
//
// Each occurrence of a player in a result segment counts as one game, so
// ingesting the same message twice counts it twice. The only error is
// cancellation of ctx during name resolution, in which case snap is untouched.
func (e *Engine) Ingest(ctx context.Context, mode string, msg Message, snap *leaderboard.Snapshot) (IngestResult, error) {
	if !e.IsFromSource(msg) {
		return IngestResult{SourceMismatch: true}, nil
	}

	results, ok := e.parser.Parse(msg.Content)
	if !ok {
		e.metrics.ParseMiss(mode)
		e.logger.Warn("no results found in source message",
			"mode", mode,
			"message_id", msg.ID,
			"channel_id", msg.ChannelID,
			"content", fmt.Sprintf("%q", msg.Content),
		)
		return IngestResult{ParseMiss: true}, nil
	}

	names, err := e.resolveAll(ctx, distinctRefs(results))
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest: resolve players: %w", err)
	}

	res := IngestResult{Parsed: len(results), Players: len(names)}
	denominator := e.parser.Denominator()
	for _, r := range results {
		points := wordle.Points(r.Token, denominator)
		for _, ref := range r.PlayerRefs {
			name := names[ref]
			snap.GetOrCreate(ref, name).RecordGame(points, name)
			res.Logged++
		}
	}

	e.metrics.MessageIngested(mode)
	e.metrics.ResultsLogged(mode, res.Logged)
	e.logger.Debug("message ingested",
		"mode", mode,
		"message_id", msg.ID,
		"tokens", res.Parsed,
		"logged", res.Logged,
	)

	return res, nil
}

// resolveAll looks up every distinct reference with bounded concurrency.
func (e *Engine) resolveAll(ctx context.Context, refs []string) (map[string]string, error) {
	resolved := make([]string, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resolved[i] = e.resolver.Resolve(gctx, ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(refs))
	for i, ref := range refs {
		names[ref] = resolved[i]
	}
	return names, nil
}

// distinctRefs returns the player references in first-seen order.
func distinctRefs(results []wordle.ParsedResult) []string {
	seen := make(map[string]struct{})
	refs := make([]string, 0)
	for _, r := range results {
		for _, ref := range r.PlayerRefs {
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}
