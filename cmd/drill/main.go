package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"bedplanner/internal/client"
	"bedplanner/internal/config"
	"bedplanner/internal/drill"
	"bedplanner/internal/logging"
	"bedplanner/internal/telemetry"

	"github.com/golang-sql/civil"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "bedplanner-drill")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, "bedplanner-drill", cfg.Tracing.Endpoint)
	if err != nil {
		logger.Error("failed to set up tracing", zap.Error(err))
		return 2
	}
	defer shutdownTracing(ctx)

	engine := drill.NewEngine(logger)
	exp := drill.PlacementRace(client.New(cfg.Drill.BaseURL), cfg.Drill.Workers, civil.DateOf(time.Now()))
	logger.Info("running drill",
		zap.String("target", cfg.Drill.BaseURL),
		zap.String("hypothesis", exp.Hypothesis),
		zap.Int("workers", cfg.Drill.Workers),
	)

	result, err := engine.Run(ctx, exp)
	if err != nil {
		logger.Error("drill aborted", zap.Error(err))
		return 2
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
	if !result.HypothesisHeld {
		return 1
	}
	return 0
}
