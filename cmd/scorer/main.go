package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spacesedan/toxiflow/config"
	"github.com/spacesedan/toxiflow/internal/db"
	"github.com/spacesedan/toxiflow/internal/logging"
	"github.com/spacesedan/toxiflow/internal/scoring"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	if err := db.InitDB(); err != nil {
		slog.Error("Failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.CloseDB()

	repo := db.NewRepository()
	batchSize := config.IntOr("SCORE_BATCH_SIZE", 500)
	interval := config.DurationOr("SCORE_INTERVAL", time.Minute)
	threshold := config.FloatOr("TOXICITY_THRESHOLD", scoring.DEFAULT_THRESHOLD)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runBatch := func() {
		scored, err := scoring.ScoreBatch(ctx, repo, batchSize, threshold)
		if err != nil {
			slog.Error("Scoring batch failed", slog.String("error", err.Error()))
			return
		}
		if scored == 0 {
			slog.Debug("No unscored items found")
		}
	}

	runBatch()
	for {
		select {
		case <-ticker.C:
			runBatch()
		case <-ctx.Done():
			slog.Info("Shutting down scorer gracefully...")
			return
		}
	}
}
