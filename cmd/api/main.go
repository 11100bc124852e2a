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

	httpadapter "github.com/kirillkom/zoning-feasibility/internal/adapters/http"
	"github.com/kirillkom/zoning-feasibility/internal/bootstrap"
	"github.com/kirillkom/zoning-feasibility/internal/config"
	"github.com/kirillkom/zoning-feasibility/internal/observability/logging"
	"github.com/kirillkom/zoning-feasibility/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.WithResilienceObserver(httpMetrics.Dependencies()))
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.IndexBuildOnStartup {
		go func() {
			built, err := app.Builder.EnsureBuilt(ctx)
			if err != nil {
				slog.Error("index_startup_build_failed", "error", err)
				return
			}
			slog.Info("index_startup_check", "built_now", built)
		}()
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Zoning:   app.Zoning,
		Site:     app.Site,
		Draw:     app.Draw,
		Index:    app.IndexAdmin,
		Uploader: app.Uploader,
	}, httpMetrics)
	handler, err := router.Handler()
	if err != nil {
		slog.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.APIRequestTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
