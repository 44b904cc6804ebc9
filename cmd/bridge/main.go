// Package main - точка входа моста между Telegram-ботом, основным
// бэкендом викторин и зеркалом в Supabase.
//
// Процесс обслуживает:
//   - вебхук Telegram-бота (/api/telegram/webhook)
//   - эндпоинты синхронизации, которые вызывает основной бэкенд (/api/sync/*)
//   - фоновую очистку просроченных link_code
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
	"time"

	"github.com/auniver/quiz-bridge/config"
	"github.com/auniver/quiz-bridge/internal/application/linking"
	"github.com/auniver/quiz-bridge/internal/application/mirror"
	"github.com/auniver/quiz-bridge/internal/infrastructure/external/backend"
	"github.com/auniver/quiz-bridge/internal/infrastructure/external/telegram"
	"github.com/auniver/quiz-bridge/internal/infrastructure/messaging"
	"github.com/auniver/quiz-bridge/internal/infrastructure/persistence/postgres"
	"github.com/auniver/quiz-bridge/internal/infrastructure/persistence/redis"
	"github.com/auniver/quiz-bridge/internal/infrastructure/scheduler"
	httpserver "github.com/auniver/quiz-bridge/internal/interface/http"
	"github.com/auniver/quiz-bridge/internal/interface/http/handlers"
	tgbot "github.com/auniver/quiz-bridge/internal/interface/telegram"
	"github.com/auniver/quiz-bridge/internal/interface/telegram/middleware"
	"github.com/auniver/quiz-bridge/internal/interface/telegram/presenter"
	"github.com/auniver/quiz-bridge/pkg/logger"
	"github.com/auniver/quiz-bridge/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	appLog := logger.FromSlog(log)
	log.Info("starting quiz bridge",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRES (SUPABASE)
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := retry.DoWithData(ctx, startupRetrier(log, "postgres", cfg.Database.ConnectAttempts),
		func(ctx context.Context) (*postgres.Connection, error) {
			return postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolOptions{
				MaxConns: cfg.Database.MaxConns,
				MinConns: cfg.Database.MinConns,
			})
		})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conn.Close()
	log.Info("connected to postgres")

	if cfg.Database.AutoMigrate {
		n, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations applied", "count", n)
	}

	users := postgres.NewUserRepository(conn)
	telegramUsers := postgres.NewTelegramUserRepository(conn)
	results := postgres.NewTestResultRepository(conn)

	health := handlers.NewHealthRegistry(cfg.App.Version, cfg.HTTP.HealthCheckTimeout)
	health.Register("postgres", handlers.Critical, handlers.PingCheck(conn))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (ОПЦИОНАЛЬНО): дедупликация апдейтов
	// ─────────────────────────────────────────────────────────────────────────
	var dedup *middleware.Dedup
	if cfg.Redis.Enabled {
		cacheCfg := redis.DefaultConfig()
		cacheCfg.Addr = cfg.Redis.Addr
		cacheCfg.Password = cfg.Redis.Password
		cacheCfg.DB = cfg.Redis.DB

		cache, err := retry.DoWithData(ctx, startupRetrier(log, "redis", 3),
			func(context.Context) (*redis.Cache, error) { return redis.NewCache(cacheCfg) })
		if err != nil {
			log.Warn("redis unavailable, update de-duplication disabled", "error", err)
		} else {
			defer cache.Close()
			dedup = middleware.NewDedup(redis.NewUpdateDeduplicator(cache, cfg.Redis.DedupTTL), appLog)
			health.Register("redis", handlers.Degraded, handlers.PingCheck(cache))
			log.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. AMQP (ОПЦИОНАЛЬНО): события синхронизации
	// ─────────────────────────────────────────────────────────────────────────
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.Broker.AMQPURL != "" {
		amqpPub, err := retry.DoWithData(ctx, startupRetrier(log, "amqp", 3),
			func(context.Context) (*messaging.AMQPPublisher, error) {
				return messaging.NewAMQPPublisher(messaging.AMQPConfig{
					URL:         cfg.Broker.AMQPURL,
					Exchange:    cfg.Broker.Exchange,
					DialTimeout: cfg.Broker.DialTimeout,
					Logger:      log,
				})
			})
		if err != nil {
			log.Warn("broker unavailable, sync events disabled", "error", err)
		} else {
			defer amqpPub.Close()
			publisher = amqpPub
			log.Info("connected to broker", "exchange", cfg.Broker.Exchange)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ВНЕШНИЕ КЛИЕНТЫ
	// ─────────────────────────────────────────────────────────────────────────
	tgClient := telegram.NewClient(telegram.ClientConfig{
		Token:   cfg.Telegram.Token,
		BaseURL: cfg.Telegram.APIURL,
		Timeout: cfg.Telegram.Timeout,
		Logger:  log,
	})

	backendCfg := backend.DefaultClientConfig(cfg.Backend.APIURL)
	backendCfg.Timeout = cfg.Backend.Timeout
	backendCfg.Logger = log
	backendClient := backend.NewClient(backendCfg)
	health.Register("primary_backend", handlers.Degraded, backendClient.Available)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. СЕРВИСЫ
	// ─────────────────────────────────────────────────────────────────────────
	linker := linking.NewService(telegramUsers, backendClient, linking.Config{
		LinkCodeTTL: cfg.Linking.CodeTTL,
		Logger:      log,
	})
	mirrorSvc := mirror.NewService(users, results, telegramUsers, publisher, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. TELEGRAM-БОТ
	// ─────────────────────────────────────────────────────────────────────────
	router := tgbot.NewDefaultRouter(tgbot.RouterDependencies{
		Backend:   backendClient,
		Users:     telegramUsers,
		Linker:    linker,
		Presenter: presenter.New(cfg.Backend.SiteURL),
		Logger:    appLog,
	})
	bot := tgbot.NewBot(tgbot.BotDependencies{
		Sender:   tgClient,
		Router:   router,
		Dedup:    dedup,
		Recovery: middleware.NewRecovery(middleware.DefaultRecoveryConfig(), appLog),
		Logger:   appLog,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{Logger: log})
	if cfg.Linking.CodeTTL > 0 {
		job := scheduler.NewExpireLinkCodesJob(linker, log)
		if err := sched.Register(job, cfg.Linking.SweepSchedule); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Name(), err)
		}
		health.Register("link_code_sweep", handlers.Degraded, func(context.Context) error {
			return sched.JobHealth(job.Name())
		})

		// Этапы, просроченные пока мост был остановлен, чистятся сразу.
		if _, err := sched.RunNow(ctx, job.Name()); err != nil {
			return fmt.Errorf("failed to run %s: %w", job.Name(), err)
		}
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP-СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout

	server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Logger:        appLog,
		HealthChecker: health,
		Webhook:       handlers.NewTelegramWebhook(bot, appLog),
		Bridge:        handlers.NewBridgeHandlers(mirrorSvc, handlers.NewBearerAuth(cfg.Bridge.Secret), appLog),
	})
	serverErr := server.StartAsync()
	log.Info("health checks registered", "checks", health.Names())

	// ─────────────────────────────────────────────────────────────────────────
	// 11. РЕГИСТРАЦИЯ ВЕБХУКА
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Telegram.WebhookURL != "" {
		if err := tgClient.SetWebhook(ctx, cfg.Telegram.WebhookURL); err != nil {
			log.Error("failed to register telegram webhook", "error", err)
		} else {
			log.Info("telegram webhook registered", "url", cfg.Telegram.WebhookURL)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. ОЖИДАНИЕ СИГНАЛА И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = err
			log.Error("http server stopped", "error", err)
		}
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Error("failed to stop scheduler gracefully", "error", err)
	}

	log.Info("shutdown complete")
	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает slog по LOG_LEVEL и LOG_FORMAT.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: logger.ParseLevel(cfg.App.LogLevel).SlogLevel(),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.App.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", cfg.App.Name)
	slog.SetDefault(log)

	return log
}

func startupRetrier(log *slog.Logger, dependency string, attempts int) *retry.Retrier {
	return retry.StartupRetrier(attempts, func(attempt int, err error, delay time.Duration) {
		log.Warn("dependency not ready, retrying",
			"dependency", dependency,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
	})
}
