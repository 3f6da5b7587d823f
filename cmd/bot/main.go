// Package main - точка входа Discord-бота Wordle Hub.
//
// Бот читает посты Wordle App с результатами дня, ведёт накопительную
// таблицу игроков и показывает её по команде !wordleboard.
//
// Архитектура:
// - Domain: парсер результатов и снапшот таблицы без внешних зависимостей
// - Application: режимы загрузки (live, backfill, replay) и запрос рейтинга
// - Infrastructure: JSON-файл или PostgreSQL, Redis, Discord REST
// - Interface: Discord gateway и команды, HTTP health/metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/etchobot/wordle-hub/config"

	// Application layer
	"github.com/etchobot/wordle-hub/internal/application/command"
	"github.com/etchobot/wordle-hub/internal/application/query"
	"github.com/etchobot/wordle-hub/internal/domain/leaderboard"
	"github.com/etchobot/wordle-hub/internal/domain/wordle"

	// Infrastructure layer
	discordclient "github.com/etchobot/wordle-hub/internal/infrastructure/external/discord"
	"github.com/etchobot/wordle-hub/internal/infrastructure/metrics"
	"github.com/etchobot/wordle-hub/internal/infrastructure/persistence/file"
	"github.com/etchobot/wordle-hub/internal/infrastructure/persistence/postgres"
	"github.com/etchobot/wordle-hub/internal/infrastructure/persistence/redis"
	"github.com/etchobot/wordle-hub/internal/infrastructure/service"

	// Interface layer
	"github.com/etchobot/wordle-hub/internal/interface/discord"
	"github.com/etchobot/wordle-hub/internal/interface/discord/handler"
	"github.com/etchobot/wordle-hub/internal/interface/discord/middleware"
	"github.com/etchobot/wordle-hub/internal/interface/discord/presenter"
	httpserver "github.com/etchobot/wordle-hub/internal/interface/http"
	"github.com/etchobot/wordle-hub/internal/interface/http/handlers"

	// Packages
	"github.com/etchobot/wordle-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// run собирает зависимости, запускает бота и ждёт сигнала остановки.
func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Wordle Hub bot",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
		"storage", cfg.Storage.Backend,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMetrics := metrics.NewPrometheusMetrics(registry)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ХРАНИЛИЩЕ ТАБЛИЦЫ
	// ─────────────────────────────────────────────────────────────────────────
	var (
		repo        leaderboard.Repository
		storePinger handlers.Pinger
		ledger      leaderboard.MessageLedger
	)

	switch cfg.Storage.Backend {
	case "postgres":
		log.Info("connecting to database...")
		dbConn, err := connectPostgres(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if status, err := migrator.Status(ctx); err != nil {
			log.Warn("failed to get migration status", "error", err)
		} else {
			applied := 0
			for _, m := range status {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("migrations completed", "applied", applied, "total", len(status))
		}

		repo = postgres.NewLeaderboardRepository(dbConn)
		storePinger = dbConn
		if cfg.Wordle.SkipProcessed {
			ledger = postgres.NewMessageLedger(dbConn)
		}

	default:
		store, err := file.NewStore(cfg.Storage.FilePath, log)
		if err != nil {
			return fmt.Errorf("failed to open leaderboard file: %w", err)
		}
		repo = store
		storePinger = store
		log.Info("using leaderboard file", "path", store.Path())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache *redis.Cache
		nameCache  service.NameCache
		writerLock command.Locker
	)

	if cfg.Redis.Enabled {
		log.Info("connecting to Redis...")
		redisCache, err = redis.NewCache(redisConfig(cfg))
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			nameCache = redis.NewNameCache(redisCache, cfg.Redis.NameCacheTTL)
			writerLock = redis.NewWriterLock(redisCache, "leaderboard", cfg.Redis.LockTTL)
			if cfg.Wordle.SkipProcessed && ledger == nil {
				ledger = redis.NewMessageLedger(redisCache)
			}
			log.Info("Redis connection established")
		}
	}

	if cfg.Wordle.SkipProcessed && ledger == nil {
		log.Warn("processed-message ledger requested but no backend supports it; re-delivered posts will count again")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. DISCORD SESSION И REST-КЛИЕНТ
	// ─────────────────────────────────────────────────────────────────────────
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discord.Intents

	clientConfig := discordclient.DefaultClientConfig()
	clientConfig.RequestsPerSecond = cfg.Discord.RequestsPerSecond
	clientConfig.Burst = cfg.Discord.RequestBurst
	clientConfig.MaxAttempts = cfg.Discord.MaxRetries
	clientConfig.OnBreakerStateChange = promMetrics.BreakerStateChanged
	clientConfig.Logger = log
	client := discordclient.NewClient(session, clientConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	parserConfig := wordle.DefaultParserConfig()
	parserConfig.Denominator = cfg.Wordle.Denominator
	parserConfig.FailureMarker = cfg.Wordle.FailureMarker
	parserConfig.MentionPolicy = wordle.MentionPolicy(cfg.Wordle.MentionPolicy)
	parser, err := wordle.NewParser(parserConfig)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	resolver := service.NewIdentityResolver(client, nameCache, promMetrics, log)

	engine, err := command.NewEngine(command.EngineConfig{
		SourceBotID: cfg.Discord.SourceBotID,
		Parser:      parser,
		Resolver:    resolver,
		Concurrency: cfg.Wordle.ResolverConcurrency,
		Metrics:     promMetrics,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	writerConfig := command.DefaultSnapshotWriterConfig()
	writerConfig.Locker = writerLock
	writerConfig.Metrics = promMetrics
	writerConfig.Logger = log
	writer := command.NewSnapshotWriter(repo, writerConfig)

	liveCmd := command.NewLogLiveMessageHandler(engine, writer, ledger, log)
	backfillCmd := command.NewBackfillChannelHandler(client, engine, writer, ledger, promMetrics, log,
		command.BackfillChannelHandlerConfig{Keyword: cfg.Wordle.BackfillKeyword})
	replayCmd := command.NewReplayMessageHandler(client, engine, writer, ledger, log)
	leaderboardQuery := query.NewGetLeaderboardHandler(writer, cfg.Wordle.Denominator)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. КОМАНДЫ И РОУТЕР
	// ─────────────────────────────────────────────────────────────────────────
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	go rateLimiter.Run(ctx)

	recoveryConfig := middleware.DefaultRecoveryConfig()
	recoveryConfig.EnableStackTrace = cfg.App.Debug
	recoveryConfig.Logger = log

	router := discord.NewRouter(discord.RouterConfig{
		Prefix:      cfg.Discord.CommandPrefix,
		IsEnabled:   cfg.Features.IsEnabled,
		RateLimiter: rateLimiter,
		Recovery:    middleware.NewRecoveryMiddleware(recoveryConfig),
		Logger:      log,
		Debug:       cfg.App.Debug,
	}, client, client)

	router.RegisterCommand(discord.CommandWordleboard,
		handler.NewWordleboardHandler(leaderboardQuery, presenter.NewLeaderboardPresenter(cfg.Wordle.FailureMarker), func() bool {
			return cfg.Features.IsEnabled(config.FeatureLeaderboardEmbed)
		}, log),
		discord.CommandOptions{})
	router.RegisterCommand(discord.CommandBackfill,
		handler.NewBackfillHandler(backfillCmd, client, cfg.Wordle.BackfillLimit, log),
		discord.CommandOptions{Feature: config.FeatureIngestBackfill, AdminOnly: true})
	router.RegisterCommand(discord.CommandLogByID,
		handler.NewLogByIDHandler(replayCmd, log),
		discord.CommandOptions{Feature: config.FeatureIngestReplay, AdminOnly: true})
	router.RegisterCommand(discord.CommandHello,
		handler.NewHelloHandler(),
		discord.CommandOptions{Feature: config.FeatureGreeting})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. СОЗДАНИЕ DISCORD BOT
	// ─────────────────────────────────────────────────────────────────────────
	bot, err := discord.NewBot(discord.BotConfig{
		SourceBotID: cfg.Discord.SourceBotID,
		LiveEnabled: func() bool {
			return cfg.Features.IsEnabled(config.FeatureIngestLive)
		},
		GracefulShutdownTimeout: cfg.App.ShutdownTimeout,
		Logger:                  log,
	}, discord.BotDependencies{
		Session: session,
		Router:  router,
		Live:    handler.NewLiveHandler(liveCmd, log),
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. СОЗДАНИЕ HTTP SERVER (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var httpServer *httpserver.Server
	if cfg.HTTP.Enabled {
		healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
		healthChecker.AddCheck("store", handlers.NewPingCheck(storePinger))
		if redisCache != nil {
			healthChecker.AddCheck("redis", handlers.NewPingCheck(redisCache))
		}
		healthChecker.AddCheck("discord", func(context.Context) error {
			if !bot.IsRunning() {
				return errors.New("gateway not connected")
			}
			return nil
		})

		httpConfig := httpserver.DefaultConfig()
		httpConfig.Host = cfg.HTTP.Host
		httpConfig.Port = cfg.HTTP.Port
		httpConfig.EnableMetrics = cfg.Observability.MetricsEnabled

		var leaderboardAPI handlers.LeaderboardQuery
		if cfg.Features.IsEnabled(config.FeatureLeaderboardAPI) {
			leaderboardAPI = leaderboardQuery
		}

		httpServer = httpserver.NewServer(httpConfig, httpserver.Dependencies{
			HealthChecker:  healthChecker,
			Gatherer:       registry,
			Stats:          bot.GetStats,
			Leaderboard:    leaderboardAPI,
			ObserveRequest: promMetrics.HTTPRequestServed,
			Logger:         log,
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting services...")

	errCh := make(chan error, 1)

	if httpServer != nil {
		go func() {
			if err := httpServer.Start(); err != nil {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	if err := bot.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	log.Info("Wordle Hub bot is running",
		"prefix", cfg.Discord.CommandPrefix,
		"source_bot_id", cfg.Discord.SourceBotID,
		"http_enabled", cfg.HTTP.Enabled,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 12. ОЖИДАНИЕ СИГНАЛА ЗАВЕРШЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// Бот первым: после этого новые посты не пишутся в хранилище.
	if err := bot.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop bot", "error", err)
		shutdownErr = errors.Join(shutdownErr, err)
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown http server", "error", err)
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
		return shutdownErr
	}
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// connectPostgres открывает пул с повторами: база часто поднимается
// позже бота при общем старте контейнеров.
func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	pgConfig := postgres.DefaultConfig()
	if cfg.Storage.MaxConns > 0 {
		pgConfig.MaxConns = int32(cfg.Storage.MaxConns)
	}
	if cfg.Storage.ConnMaxLifetime > 0 {
		pgConfig.MaxConnLifetime = cfg.Storage.ConnMaxLifetime
	}

	var conn *postgres.Connection
	err := retry.DatabaseRetrier().Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnectionFromURL(ctx, cfg.Storage.DatabaseURL, pgConfig)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return conn, nil
}

// redisConfig переносит настройки окружения поверх значений по умолчанию.
func redisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	if cfg.Redis.Namespace != "" {
		rc.Namespace = cfg.Redis.Namespace
	}
	if cfg.Redis.Port > 0 {
		rc.Port = cfg.Redis.Port
	}
	if cfg.Redis.PoolSize > 0 {
		rc.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.MinIdleConns > 0 {
		rc.MinIdleConns = cfg.Redis.MinIdleConns
	}
	if cfg.Redis.DialTimeout > 0 {
		rc.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.Redis.WriteTimeout
	}
	return rc
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var h slog.Handler
	if cfg.IsProduction() || cfg.Observability.LogFormat == "json" {
		// JSON формат для production (лучше для агрегаторов логов)
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(h).With("app", cfg.App.Name)
	slog.SetDefault(log)
	return log
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
