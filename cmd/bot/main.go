// Agent Zero Telegram bot: relays chat messages to a remote agent.
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
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/agent"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/api"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/bot"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/config"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/dispatch"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/events"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/identity"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/schedule"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/session"
	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/store"
)

const (
	pruneInterval   = 24 * time.Hour
	runRetention    = 30 * 24 * time.Hour
	shutdownTimeout = 30 * time.Second
)

func main() {
	envFile := pflag.String("env-file", ".env", "path of the .env file to load")
	logLevel := pflag.String("log-level", "", "log level override (debug, info, warn, error)")
	pflag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil {
		slog.Info("No .env file found, using environment variables", "path", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)
	if *logLevel != "" {
		if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
			slog.Warn("Ignoring invalid --log-level", "value", *logLevel)
		}
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Bot stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Bot stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting bot",
		"environment", cfg.Environment,
		"agent_url", cfg.Agent.BaseURL,
		"pic_dir", cfg.PicDir,
		"admin", cfg.AdminEnabled(),
	)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(context.Background()); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	state := session.New()

	client, err := agent.NewClient(agent.ClientConfig{
		BaseURL:        cfg.Agent.BaseURL,
		APIKey:         cfg.Agent.APIKey,
		LifetimeHours:  cfg.Agent.LifetimeHours,
		RequestTimeout: cfg.Agent.RequestTimeout,
	}, state, logger)
	if err != nil {
		return fmt.Errorf("initialize agent client: %w", err)
	}

	tg, err := bot.NewTelegram(cfg.TelegramToken, logger)
	if err != nil {
		return err
	}

	hub := events.NewHub(logger)
	defer hub.Close()

	dispatcher := dispatch.New(client, tg, dispatch.Options{
		Runs:     repo,
		Events:   hub,
		PoolSize: cfg.WorkerPool,
		Logger:   logger,
	})

	registry := schedule.NewRegistry(func(ctx context.Context, job domain.ScheduledJob) {
		dispatcher.Execute(ctx, domain.Task{
			Prompt:    job.Prompt,
			ChatID:    job.ChatID,
			Scheduled: true,
			JobName:   job.Name,
		})
	}, schedule.Options{
		InitialDelay:  cfg.Schedule.InitialDelay,
		MaxConcurrent: cfg.Schedule.MaxConcurrent,
		OnSkip: func(job domain.ScheduledJob) {
			hub.Publish(events.Event{
				Type:      events.ScheduleSkipped,
				ChatID:    job.ChatID,
				Scheduled: true,
				JobName:   job.Name,
				Prompt:    job.Prompt,
				At:        time.Now().UTC(),
			})
		},
		Logger: logger,
	})

	router := bot.NewRouter(bot.RouterConfig{
		Allow:       identity.NewAllowlist(cfg.AllowedUserID),
		Notifier:    tg,
		Files:       tg,
		Dispatcher:  dispatcher,
		Schedules:   registry,
		Session:     state,
		Photos:      bot.NewPhotoStore(cfg.PicDir),
		AgentURL:    cfg.Agent.BaseURL,
		Environment: cfg.Environment,
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pruneDone := store.StartPruneWorker(ctx, repo, pruneInterval, runRetention)

	var srv *http.Server
	if cfg.AdminEnabled() {
		srv = &http.Server{
			Addr: ":" + cfg.Admin.Port,
			Handler: api.NewRouter(
				api.NewHandler(registry, repo, state),
				api.NewHealthHandler(repo, client, hub),
				events.NewWebSocketHandler(hub, logger),
				cfg.Admin.Token,
			),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // 0 = no timeout for the event stream
			IdleTimeout:  120 * time.Second,
		}
		go func() {
			slog.Info("Admin server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Admin server failed", "error", err)
				stop()
			}
		}()
	}

	pollErr := make(chan error, 1)
	go func() {
		pollErr <- tg.Run(ctx, router.Handle)
	}()

	// Wait for shutdown signal.
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down gracefully...")
		// Handlers may still hand tasks to the dispatcher until polling stops.
		runErr = <-pollErr
	case runErr = <-pollErr:
		slog.Info("Shutting down gracefully...")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Admin server forced to shutdown", "error", err)
		}
	}
	if err := registry.Close(shutdownCtx); err != nil {
		slog.Warn("Scheduled firings still running at shutdown", "error", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		slog.Warn("Tasks still running at shutdown", "error", err)
	}
	<-pruneDone

	return runErr
}
