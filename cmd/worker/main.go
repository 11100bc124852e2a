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
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/zoning-feasibility/internal/bootstrap"
	"github.com/kirillkom/zoning-feasibility/internal/config"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/watcher"
	"github.com/kirillkom/zoning-feasibility/internal/observability/logging"
	"github.com/kirillkom/zoning-feasibility/internal/observability/metrics"
)

const (
	service      = "worker"
	buildTimeout = 30 * time.Minute
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	app, err := bootstrap.New(ctx, cfg,
		bootstrap.WithResilienceObserver(workerMetrics.Dependencies()),
		bootstrap.WithDeliveryLagObserver(func(lag time.Duration) {
			workerMetrics.ObserveRequestLag(service, lag)
		}),
	)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeRebuildRequested(groupCtx, func(handlerCtx context.Context, reason string) error {
			buildCtx, cancel := context.WithTimeout(handlerCtx, buildTimeout)
			defer cancel()

			workerMetrics.StartBuild()
			started := time.Now()
			build, err := app.Builder.Rebuild(buildCtx, reason)
			workerMetrics.FinishBuild(service, time.Since(started), build, err)
			return err
		})
	})

	if cfg.WatchDocuments {
		docWatcher, err := watcher.New(app.Storage.BasePath(), cfg.WatchDebounce)
		if err != nil {
			slog.Error("document_watch_init_failed", "error", err)
			os.Exit(1)
		}
		defer docWatcher.Close()

		group.Go(func() error {
			slog.Info("document_watch_started", "path", app.Storage.BasePath())
			return docWatcher.Run(groupCtx, func(watchCtx context.Context, path string) {
				err := app.Queue.PublishRebuildRequested(watchCtx, "documents changed: "+path)
				workerMetrics.RecordWatchTrigger(service, err)
				if err != nil {
					slog.Error("document_watch_publish_failed", "path", path, "error", err)
				}
			})
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}
