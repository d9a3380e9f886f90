package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/albertai/studyset/internal/adapters/mcp"
	"github.com/albertai/studyset/internal/bootstrap"
	"github.com/albertai/studyset/internal/config"
	"github.com/albertai/studyset/internal/observability/logging"
)

const (
	serviceName = "studyset-mcp"
	version     = "0.1.0"
)

func main() {
	// stdout carries the protocol, so every log line goes to stderr.
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(serviceName, version, mcpadapter.NewTools(app.GenerateUC, app.GenerateUC))
	stdio := server.NewStdioServer(s)
	slog.Info("mcp_serving_stdio")
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
