// Package main - точка входа для API-сервера DeoGlory Study Engine.
//
// Движок ведёт учебную прогрессию недель (estude - medite - responda),
// начисляет XP и серии, проводит практические сессии со звёздами,
// проверяет достижения и собирает недельные, годовые и сезонные рейтинги.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/EventHandlers)
// - Infrastructure: PostgreSQL, Redis, внешний генератор вопросов, планировщик
// - Interface: HTTP endpoints и WebSocket присутствия
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/deoglory/study-engine/config"

	// Application layer
	"github.com/deoglory/study-engine/internal/application/command"
	"github.com/deoglory/study-engine/internal/application/eventhandler"
	"github.com/deoglory/study-engine/internal/application/query"

	// Domain layer
	"github.com/deoglory/study-engine/internal/domain/achievement"
	"github.com/deoglory/study-engine/internal/domain/practice"

	// Infrastructure layer
	"github.com/deoglory/study-engine/internal/infrastructure/external/lessonsai"
	"github.com/deoglory/study-engine/internal/infrastructure/messaging"
	"github.com/deoglory/study-engine/internal/infrastructure/persistence/postgres"
	"github.com/deoglory/study-engine/internal/infrastructure/persistence/redis"
	"github.com/deoglory/study-engine/internal/infrastructure/scheduler"
	"github.com/deoglory/study-engine/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/deoglory/study-engine/internal/interface/http"
	"github.com/deoglory/study-engine/internal/interface/http/handlers"

	// Packages
	"github.com/deoglory/study-engine/pkg/logger"
	"github.com/deoglory/study-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// .env - только для локальной разработки, в production его нет.
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	scoring := practice.ScoringConfig{
		TotalQuestions:   cfg.Practice.Questions,
		TimeLimit:        cfg.Practice.TimeLimit,
		ThreeStarCorrect: cfg.Practice.ThreeStarCorrect,
		TwoStarCorrect:   cfg.Practice.TwoStarCorrect,
		OneStarCorrect:   cfg.Practice.OneStarCorrect,
		TimeTolerance:    cfg.Practice.TimeTolerance,
		XPPerStar:        cfg.Practice.XPPerStar,
	}
	if err := scoring.Validate(); err != nil {
		return fmt.Errorf("invalid scoring config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	slogger := setupLogger(cfg)
	log := logger.Default()
	slogger.Info("starting DeoGlory Study Engine",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		slogger.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	slogger.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slogger.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS
	// Redis обязателен: guard практических сессий, присутствие и кеш
	// рейтинга живут в нём.
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("connecting to Redis...")
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns

	redisCache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisCache.Close()
	slogger.Info("Redis connection established")

	presenceTracker := redis.NewPresenceTracker(redisCache, cfg.Presence.Timeout)
	leaderboardCache := redis.NewLeaderboardCache(redisCache)
	sessionGuard := redis.NewSessionGuard(redisCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing repositories...")
	contentRepo := postgres.NewContentRepository(dbConn)
	completionRepo := postgres.NewCompletionRepository(dbConn)
	progressRepo := postgres.NewProgressRepository(dbConn)
	xpEventRepo := postgres.NewXPEventRepository(dbConn)
	sessionRepo := postgres.NewSessionRepository(dbConn)
	resultRepo := postgres.NewResultRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	seasonRepo := postgres.NewSeasonRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		slogger.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ ВНЕШНИХ КЛИЕНТОВ
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing question generator client...")
	lessonsConfig := lessonsai.DefaultClientConfig(cfg.LessonsAI.BaseURL)
	lessonsConfig.APIKey = cfg.LessonsAI.APIKey
	lessonsConfig.Timeout = cfg.LessonsAI.RequestTimeout
	lessonsConfig.Logger = log
	lessonsConfig.Debug = cfg.App.Debug
	questionClient := lessonsai.NewClient(lessonsConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries)
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing application layer...")
	location := cfg.App.Location
	// Окна лидерборда и дневные границы серий считаются в одной зоне.
	timeutil.SetLocation(location)

	completeUnitCmd := command.NewCompleteUnitHandler(
		contentRepo, completionRepo, progressRepo, resultRepo,
		eventBus, location, cfg.Rewards.XPPerLesson,
	)
	startPracticeCmd := command.NewStartPracticeHandler(
		contentRepo, completionRepo, sessionRepo, resultRepo,
		sessionGuard, questionClient, eventBus, scoring, cfg.Practice.SessionTTL,
	)
	completePracticeCmd := command.NewCompletePracticeHandler(
		sessionRepo, resultRepo, progressRepo,
		sessionGuard, eventBus, scoring, location,
	)

	leaderboardQuery := query.NewGetLeaderboardHandler(
		xpEventRepo, progressRepo, seasonRepo, leaderboardCache,
		presenceTracker, cfg.Leaderboard.CacheTTL, cfg.Leaderboard.MaxEntries,
	)
	userProgressQuery := query.NewGetUserProgressHandler(progressRepo)
	learningPathQuery := query.NewGetLearningPathHandler(contentRepo, completionRepo, resultRepo)
	practiceStatusQuery := query.NewGetPracticeStatusHandler(contentRepo, completionRepo, resultRepo)
	achievementsQuery := query.NewGetAchievementsHandler(achievementRepo)
	onlineNowQuery := query.NewGetOnlineNowHandler(presenceTracker, progressRepo)
	seasonsQuery := query.NewListSeasonsHandler(seasonRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("registering event handlers...")

	evaluator := achievement.NewEvaluator(achievement.DefaultCatalog())
	progressChangedHandler := eventhandler.NewOnProgressChangedHandler(
		progressRepo, resultRepo, achievementRepo, evaluator, eventBus, log,
	)
	xpGainedHandler := eventhandler.NewOnXPGainedHandler(leaderboardCache, log)

	for _, eventType := range progressChangedHandler.EventTypes() {
		if err := eventBus.Subscribe(eventType, progressChangedHandler.Handle); err != nil {
			return fmt.Errorf("failed to subscribe achievement handler: %w", err)
		}
	}
	for _, eventType := range xpGainedHandler.EventTypes() {
		if err := eventBus.Subscribe(eventType, xpGainedHandler.Handle); err != nil {
			return fmt.Errorf("failed to subscribe cache invalidation handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. ИНИЦИАЛИЗАЦИЯ ПЛАНИРОВЩИКА
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		slogger.Info("initializing scheduler...")

		schedConfig := scheduler.DefaultSchedulerConfig()
		schedConfig.Logger = slogger
		schedConfig.Timezone = location
		schedConfig.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs
		schedConfig.JobTimeout = cfg.Scheduler.JobTimeout
		sched = scheduler.NewScheduler(schedConfig)

		cleanupConfig := jobs.DefaultCleanupSessionsConfig()
		cleanupConfig.MaxSessionAge = cfg.Practice.SessionTTL

		cleanupJob := jobs.NewCleanupSessionsJob(sessionRepo, slogger, cleanupConfig)
		pruneJob := jobs.NewPrunePresenceJob(presenceTracker, slogger)
		warmJob := jobs.NewRefreshLeaderboardJob(leaderboardQuery, slogger)

		if err := sched.Register(cleanupJob, scheduler.NewIntervalSchedule(cfg.Scheduler.CleanupSessionsInterval)); err != nil {
			return fmt.Errorf("failed to register cleanup job: %w", err)
		}
		if err := sched.Register(pruneJob, scheduler.NewIntervalSchedule(cfg.Scheduler.PrunePresenceInterval)); err != nil {
			return fmt.Errorf("failed to register presence prune job: %w", err)
		}
		if err := sched.Register(warmJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshLeaderboardInterval)); err != nil {
			return fmt.Errorf("failed to register leaderboard warm job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			slogger.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	healthChecker.AddCheck("redis", handlers.NewCacheCheck(redisCache))
	healthChecker.AddCheck("lessonsai", handlers.NewExternalAPICheck(questionHealthAdapter{client: questionClient}))

	// ─────────────────────────────────────────────────────────────────────────
	// 13. СОЗДАНИЕ HTTP SERVER И PRESENCE HUB
	// ─────────────────────────────────────────────────────────────────────────
	slogger.Info("initializing HTTP server...")

	presenceHub := httpserver.NewPresenceHub(presenceTracker, log)
	go presenceHub.Run(ctx)

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	httpDeps := httpserver.Dependencies{
		CompleteUnitHandler:      completeUnitCmd,
		StartPracticeHandler:     startPracticeCmd,
		CompletePracticeHandler:  completePracticeCmd,
		GetLeaderboardHandler:    leaderboardQuery,
		GetUserProgressHandler:   userProgressQuery,
		GetLearningPathHandler:   learningPathQuery,
		GetPracticeStatusHandler: practiceStatusQuery,
		GetAchievementsHandler:   achievementsQuery,
		GetOnlineNowHandler:      onlineNowQuery,
		ListSeasonsHandler:       seasonsQuery,
		PresenceHub:              presenceHub,
		Logger:                   log,
		HealthChecker:            healthChecker,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 14. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	slogger.Info("DeoGlory Study Engine is running",
		"http_address", httpServer.Address(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slogger.Error("service error", "error", err)
		return err
	}

	slogger.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	presenceHub.Stop()

	slogger.Info("stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slogger.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	// Планировщик, event bus, Redis и база закрываются через defer.

	if shutdownErr != nil {
		slogger.Warn("shutdown completed with errors")
	} else {
		slogger.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// parseLogLevel переводит строковый уровень в slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
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

// ══════════════════════════════════════════════════════════════════════════════
// ADAPTERS
// ══════════════════════════════════════════════════════════════════════════════

// questionHealthAdapter адаптирует lessonsai.Client к handlers.ExternalAPIChecker.
type questionHealthAdapter struct {
	client *lessonsai.Client
}

// HealthCheck implements handlers.ExternalAPIChecker.
func (a questionHealthAdapter) HealthCheck(ctx context.Context) error {
	if !a.client.IsHealthy(ctx) {
		return errors.New("question generator is unhealthy")
	}
	return nil
}
