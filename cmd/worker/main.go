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

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/quillfeed/quillfeed/internal/app"
	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/observability"
	"github.com/quillfeed/quillfeed/internal/platform/cache"
	"github.com/quillfeed/quillfeed/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	store, closeStore, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	replay := jobs.NewMirrorReplayJob(store, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeMirrorPut, Handler: replay.HandlePut},
			{Type: jobs.TaskTypeMirrorDelete, Handler: replay.HandleDelete},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	var opsServer *http.Server
	if cfg.OpsAddr != "" {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		router := chi.NewRouter()
		router.Method(http.MethodGet, "/metrics", metrics.Handler())
		jobs.NewHandler(inspector, logger).MountRoutes(router)

		opsServer = &http.Server{Addr: cfg.OpsAddr, Handler: router}
		go func() {
			logger.Info("starting ops listener", slog.String("addr", cfg.OpsAddr))
			if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("ops listener", slog.Any("error", err))
				stop()
			}
		}()
	}

	logger.Info("starting mirror replay worker", slog.String("queue", jobs.QueueMirror))
	runErr := worker.Run(ctx)

	if opsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops listener shutdown", slog.Any("error", err))
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", runErr))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}

// openLedger selects the audit store named by LEDGER_BACKEND. The returned
// closer releases backend resources.
func openLedger(ctx context.Context, cfg *app.Config, logger *slog.Logger) (ledger.Ledger, func(), error) {
	switch cfg.LedgerBackend {
	case "redis":
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
		return ledger.NewRedisLedger(client), closer, nil
	case "badger":
		store, err := ledger.OpenBadgerLedger(cfg.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := store.Close(); err != nil {
				logger.Warn("badger close", slog.Any("error", err))
			}
		}
		return store, closer, nil
	default:
		return ledger.Nop{}, func() {}, nil
	}
}
