// Package main - точка входа движка прогресса Oqu.
//
// Worker собирает весь граф зависимостей и запускает фоновые процессы:
// - периодическая синхронизация журналов с платформой Oqu
// - ежедневный rollover: архивация целей дня и сгорание серий
// - шина событий и живые фиды прогресса
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/config"
	"github.com/oqu-hub/oqu-progress-engine/internal/application"
	"github.com/oqu-hub/oqu-progress-engine/internal/application/eventhandler"
	"github.com/oqu-hub/oqu-progress-engine/internal/application/query"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/internal/infrastructure/external/oquapi"
	"github.com/oqu-hub/oqu-progress-engine/internal/infrastructure/messaging"
	"github.com/oqu-hub/oqu-progress-engine/internal/infrastructure/persistence/memory"
	"github.com/oqu-hub/oqu-progress-engine/internal/infrastructure/persistence/postgres"
	rediscache "github.com/oqu-hub/oqu-progress-engine/internal/infrastructure/persistence/redis"
	"github.com/oqu-hub/oqu-progress-engine/internal/infrastructure/scheduler"
	"github.com/oqu-hub/oqu-progress-engine/internal/infrastructure/scheduler/jobs"
	"github.com/oqu-hub/oqu-progress-engine/pkg/circuitbreaker"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Level: logger.ParseLevel(cfg.App.LogLevel)})
	log.Info("starting",
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", timeutil.PlatformTimezone))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─────────────────────────────────────────────────────────────────────────
	// Infrastructure
	// ─────────────────────────────────────────────────────────────────────────

	pg, err := postgres.NewConnection(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := postgres.RunMigrations(ctx, pg, log); err != nil {
		return err
	}

	ledgerRepo := postgres.NewLedgerRepository(pg)
	eventRepo := postgres.NewXPEventRepository(pg)
	goalRepo := postgres.NewDailyGoalRepository(pg)

	var cohortCache query.CohortCache
	if cfg.Redis.Disabled {
		log.Warn("redis disabled, using in-memory cohort cache")
		cohortCache = memory.NewCohortCache()
	} else {
		cache, err := rediscache.NewCache(rediscache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		cohortCache = rediscache.NewCohortCache(cache)
	}

	breakerCfg := circuitbreaker.DefaultConfig("oqu-platform")
	breakerCfg.FailureThreshold = cfg.Oqu.CircuitBreakerThreshold
	breakerCfg.OpenTimeout = cfg.Oqu.CircuitBreakerTimeout

	oquClient := oquapi.NewClient(oquapi.ClientConfig{
		BaseURL: cfg.Oqu.BaseURL,
		APIKey:  cfg.Oqu.APIKey,
		Timeout: cfg.Oqu.RequestTimeout,
		RateLimiter: oquapi.RateLimiterConfig{
			RequestsPerSecond: cfg.Oqu.RequestsPerSecond,
			BurstSize:         cfg.Oqu.RateLimitBurst,
			WaitTimeout:       30 * time.Second,
		},
		CircuitBreaker: breakerCfg,
		Logger:         log,
	})

	bus := messaging.NewInMemoryEventBus(messaging.Config{
		AsyncMode:      true,
		WorkerPoolSize: 8,
		HandlerTimeout: 10 * time.Second,
		Logger:         log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Engine
	// ─────────────────────────────────────────────────────────────────────────

	engineCfg := application.DefaultConfig()
	engineCfg.GracePolicy = progress.GracePolicy{ExtraDays: cfg.Engine.StreakGraceDays}
	engineCfg.GoalTargets = dailygoal.Targets{
		XP:      progress.XP(cfg.Engine.DailyGoalXP),
		Quizzes: cfg.Engine.DailyGoalQuizzes,
	}
	engineCfg.Sync.Retry.MaxAttempts = cfg.Engine.SyncMaxAttempts
	engineCfg.Leaderboard.FreshFor = cfg.Engine.LeaderboardFreshFor

	engine, err := application.New(application.Deps{
		LedgerRepo:  ledgerRepo,
		EventRepo:   eventRepo,
		GoalRepo:    goalRepo,
		Remote:      oquClient,
		CohortCache: cohortCache,
		Publisher:   bus,
		Logger:      log,
	}, engineCfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// Event subscriptions
	// ─────────────────────────────────────────────────────────────────────────

	refresh := eventhandler.NewRefreshProgressHandler(engine.Observer)
	for _, eventType := range refresh.EventTypes() {
		if err := bus.Subscribe(eventType, refresh); err != nil {
			return err
		}
	}

	syncMerged := eventhandler.NewSyncMergedHandler(ledgerRepo, eventRepo,
		engine.Evaluator, engine.Locks, log)
	if err := bus.Subscribe(shared.EventSyncMerged, syncMerged); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Scheduler
	// ─────────────────────────────────────────────────────────────────────────

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(scheduler.Config{
			Logger:   log,
			Timezone: timeutil.Location(),
		})

		if cfg.Features.IsEnabled(config.FeatureSyncSweep, "") {
			syncJob := jobs.NewSyncAllLedgersJob(ledgerRepo, engine.Sync, jobs.SyncAllLedgersConfig{
				Concurrency: cfg.Scheduler.SyncConcurrency,
				Timeout:     10 * time.Minute,
			}, log)
			if err := sched.Register(syncJob,
				scheduler.NewIntervalSchedule(cfg.Scheduler.SyncInterval)); err != nil {
				return err
			}
		}

		if cfg.Features.IsEnabled(config.FeatureDailyRollover, "") {
			rolloverJob := jobs.NewDailyRolloverJob(ledgerRepo, goalRepo, engine.Locks,
				bus, engineCfg.GracePolicy, log)
			if err := sched.Register(rolloverJob, scheduler.NewDailySchedule(
				cfg.Scheduler.RolloverHour, cfg.Scheduler.RolloverMinute, timeutil.Location())); err != nil {
				return err
			}
		}

		if cfg.Features.IsEnabled(config.FeatureLeaderboardWarmup, "") {
			warmupJob := jobs.NewRebuildLeaderboardJob(ledgerRepo, oquClient, cohortCache,
				jobs.DefaultRebuildLeaderboardConfig(), log)
			if err := sched.Register(warmupJob,
				scheduler.NewIntervalSchedule(cfg.Scheduler.LeaderboardInterval)); err != nil {
				return err
			}
		}

		if err := sched.Start(ctx); err != nil {
			return err
		}
	}

	log.Info("engine ready")
	<-ctx.Done()
	log.Info("shutdown signal received")

	// A hung job or handler must not keep the process alive forever.
	watchdog := time.AfterFunc(cfg.App.ShutdownTimeout, func() {
		fmt.Fprintln(os.Stderr, "fatal: shutdown timed out")
		os.Exit(1)
	})
	defer watchdog.Stop()

	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Error("scheduler stop failed", logger.Err(err))
		}
	}
	if err := bus.Close(); err != nil {
		log.Error("event bus close failed", logger.Err(err))
	}

	log.Info("stopped")
	return nil
}
