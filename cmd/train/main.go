package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"yacht-twin/monitor/internal/config"
	"yacht-twin/monitor/internal/logging"
	"yacht-twin/monitor/internal/training"
)

const defaultSeed = 42

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	dataset := flag.String("data", cfg.DatasetPath, "CSV dataset with LC,PC,LD,BDr,LB,Fr,Rr columns")
	modelDir := flag.String("out", cfg.ModelDir, "directory for the scaler and model artefacts")
	folds := flag.Int("folds", cfg.CVFolds, "cross-validation folds")
	testSize := flag.Float64("test-size", cfg.TestSize, "held-out fraction")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file loaded, using process environment")
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = defaultSeed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := training.Run(ctx, training.Options{
		DatasetPath: *dataset,
		ModelDir:    *modelDir,
		TestSize:    *testSize,
		Folds:       *folds,
		Seed:        seed,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Str("dataset", *dataset).Msg("training failed")
		stop()
		os.Exit(1)
	}

	for _, r := range report.Results {
		logger.Info().
			Str("model", r.Name).
			Interface("params", r.Params).
			Float64("cv_mse", r.MeanMSE).
			Msg("cv result")
	}
	logger.Info().
		Str("run_id", report.RunID).
		Str("best", report.Best.Name).
		Float64("test_mse", report.TestMSE).
		Int("train_rows", report.TrainRows).
		Int("test_rows", report.TestRows).
		Str("model_path", report.ModelPath).
		Msg("training complete")
}
