package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/zoning-feasibility/internal/adapters/cli"
	"github.com/kirillkom/zoning-feasibility/internal/bootstrap"
	"github.com/kirillkom/zoning-feasibility/internal/config"
	"github.com/kirillkom/zoning-feasibility/internal/observability/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries command output.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "zoningctl", cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewLocal(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	root := cli.NewRootCommand(cli.Dependencies{
		Builder:   app.Builder,
		Retriever: app.Retriever,
		Extractor: app.Extractor,
		Zoning:    app.Zoning,
		Draw:      app.Draw,
		Fetcher:   app.Fetcher,
		Storage:   app.Storage,
		TopK:      cfg.RAGTopK,
	})
	return root.ExecuteContext(ctx)
}
