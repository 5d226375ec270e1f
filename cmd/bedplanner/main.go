package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bedplanner/internal/app"
	"bedplanner/internal/config"
	"bedplanner/internal/logging"
	"bedplanner/internal/telemetry"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "bedplanner")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "bedplanner", cfg.Tracing.Endpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting bedplanner",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("lock", cfg.Lock.Backend),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server stopped")
}
