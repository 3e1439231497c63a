package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"slackpost/internal/api"
	"slackpost/internal/cache"
	"slackpost/internal/client"
	"slackpost/internal/config"
	"slackpost/internal/db"
	"slackpost/internal/repo"
	"slackpost/internal/scheduler"
	"slackpost/internal/service"
	"slackpost/internal/token"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadAll()
	if err != nil {
		return err
	}

	slog.Info("slackpost starting",
		"addr", cfg.Server.Address,
		"interval", cfg.Scheduler.Interval.String(),
		"batch", cfg.Scheduler.BatchSize,
		"redis", cfg.Redis.Enabled,
	)

	database, err := db.Connect(cfg.Database.PostgresURL)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(ctx, database, cfg.Database.MigrationsDir); err != nil {
		return err
	}

	var channelCache cache.ChannelCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		channelCache = cache.NewRedisChannelCache(rdb, cfg.Redis.TTL)
	}

	messages := repo.NewPostgresMessageRepo(database)
	workspaces := repo.NewPostgresWorkspaceRepo(database)

	slackClient := client.NewSlackClient(
		cfg.Slack.APIBase,
		cfg.Slack.ClientID,
		cfg.Slack.ClientSecret,
		cfg.Slack.RedirectURI,
	)

	svc := service.New(service.Dependencies{
		Messages:   messages,
		Workspaces: workspaces,
		Tokens:     token.NewManager(workspaces, slackClient),
		Slack:      slackClient,
		Channels:   channelCache,
	}, service.Options{
		BatchSize: cfg.Scheduler.BatchSize,
	})

	sched, err := scheduler.New(cfg.Scheduler.Interval, func(tickCtx context.Context) {
		if err := svc.ProcessDue(tickCtx); err != nil {
			slog.Error("due message processing failed", "err", err)
		}
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(svc, sched, slackClient)
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      loggingMiddleware(api.Router(handler)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
