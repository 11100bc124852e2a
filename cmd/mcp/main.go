package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/zoning-feasibility/internal/adapters/mcp"
	"github.com/kirillkom/zoning-feasibility/internal/bootstrap"
	"github.com/kirillkom/zoning-feasibility/internal/config"
	"github.com/kirillkom/zoning-feasibility/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	// stdout is the MCP transport.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := bootstrap.NewLocal(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if cfg.IndexBuildOnStartup {
		if _, err := app.Builder.EnsureBuilt(ctx); err != nil {
			slog.Error("index_startup_build_failed", "error", err)
		}
	}

	if err := mcpadapter.NewServer(app.Zoning).ServeStdio(); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
