package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wholesale-pos/wholesale-pos/internal/app"
	"github.com/wholesale-pos/wholesale-pos/internal/assistant"
	"github.com/wholesale-pos/wholesale-pos/internal/observability"
	"github.com/wholesale-pos/wholesale-pos/internal/pos"
	"github.com/wholesale-pos/wholesale-pos/internal/remotesync"
	"github.com/wholesale-pos/wholesale-pos/internal/storage"
	"github.com/wholesale-pos/wholesale-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("open storage", slog.String("driver", cfg.StorageDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("close storage", slog.Any("error", err))
		}
	}()

	repo := storage.NewRepository(backends.KV)
	snap, err := repo.Load(ctx, cfg.DefaultSyncSettings())
	if err != nil {
		logger.Error("load state", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("state loaded",
		slog.String("driver", cfg.StorageDriver),
		slog.Int("products", len(snap.Products)),
		slog.Int("sales", len(snap.Sales)),
		slog.Bool("seeded", snap.Seeded))

	metrics := observability.NewMetrics()
	hub := remotesync.NewHub(logger, nil)
	syncer := remotesync.NewSyncer(remotesync.SyncerConfig{
		Client:   remotesync.NewClient(remotesync.ClientConfig{Timeout: cfg.SyncTimeout, Logger: logger}),
		Logger:   logger,
		Metrics:  metrics,
		Notifier: hub,
	})
	hub.SetSnapshot(syncer.StatusJSON)

	var generator assistant.Generator
	if cfg.AssistantAPIKey != "" {
		gemini, err := assistant.NewGeminiGenerator(ctx, cfg.AssistantAPIKey, cfg.AssistantModel)
		if err != nil {
			logger.Warn("assistant disabled", slog.Any("error", err))
		} else {
			generator = gemini
		}
	}

	deps := pos.Deps{
		Store:     repo,
		Sync:      syncer,
		Assistant: assistant.NewService(generator, logger),
		Metrics:   metrics,
		Logger:    logger,
		Location:  cfg.Location(),
	}
	if idem := backends.Idempotency(cfg); idem != nil {
		deps.Idempotency = idem
	}
	service, err := pos.NewService(snap, deps)
	if err != nil {
		logger.Error("init store state", slog.Any("error", err))
		os.Exit(1)
	}

	var jobHandler *jobs.Handler
	if backends.Redis != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, jobClient, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		POSHandler: pos.NewHandler(logger, service),
		SyncEvents: hub,
		JobHandler: jobHandler,
		Metrics:    metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if err := syncer.Close(shutdownCtx); err != nil {
		logger.Warn("pending remote pushes abandoned", slog.Any("error", err))
	}
	hub.Close()
}
