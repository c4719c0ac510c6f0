package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricetrack/cmd/pricetrack/commands"
	"pricetrack/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	providers, err := telemetry.SetupFromEnv(ctx, "pricetrack")
	if err != nil {
		slog.Warn("failed to setup otel, continuing without it", "err", err)
	}

	code := commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = providers.Shutdown(shutdownCtx)
	if err != nil {
		slog.Warn("failed to flush otel providers", "err", err)
	}
	cancel()
	stop()
	os.Exit(code)
}
