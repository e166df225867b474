package training

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

type Options struct {
	DatasetPath string
	ModelDir    string
	TestSize    float64
	Folds       int
	Seed        uint64
	// Candidates defaults to DefaultCandidates(Seed).
	Candidates []Candidate
}

type Report struct {
	RunID      string
	Best       CVResult
	TestMSE    float64
	Results    []CVResult
	TrainRows  int
	TestRows   int
	ScalerPath string
	ModelPath  string
}

// Run loads the dataset, searches the grid, refits the winner on the full
// training split, scores it on the held-out rows and saves the artefacts.
func Run(ctx context.Context, opts Options, logger zerolog.Logger) (*Report, error) {
	runID := uuid.NewString()
	log := logger.With().Str("component", "training").Str("run_id", runID).Logger()

	if opts.Folds == 0 {
		opts.Folds = 5
	}
	if opts.TestSize == 0 {
		opts.TestSize = 0.2
	}
	candidates := opts.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates(opts.Seed)
	}

	ds, err := LoadCSV(opts.DatasetPath)
	if err != nil {
		return nil, err
	}
	log.Info().Int("rows", ds.Len()).Str("path", opts.DatasetPath).Msg("dataset loaded")

	split, err := TrainTestSplit(ds.X, ds.Y, opts.TestSize, opts.Seed)
	if err != nil {
		return nil, err
	}

	scaler := StandardScaler{Features: ds.Features}
	trainScaled, err := scaler.FitTransform(split.XTrain)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	testScaled, err := scaler.Transform(split.XTest)
	if err != nil {
		return nil, fmt.Errorf("scale test rows: %w", err)
	}

	results, bestIdx, err := GridSearch(ctx, candidates, split.XTrain, trainScaled, split.YTrain, opts.Folds)
	if err != nil {
		return nil, fmt.Errorf("grid search: %w", err)
	}
	for _, r := range results {
		log.Debug().Str("model", r.Name).Interface("params", r.Params).Float64("cv_mse", r.MeanMSE).Msg("candidate scored")
	}

	best := candidates[bestIdx]
	trainX, testX := mat.Matrix(split.XTrain), mat.Matrix(split.XTest)
	if best.Scaled {
		trainX, testX = trainScaled, testScaled
	}

	model := best.New()
	if err := model.Fit(trainX, split.YTrain); err != nil {
		return nil, fmt.Errorf("refit %s: %w", best.Name, err)
	}
	testMSE := MeanSquaredError(split.YTest, model.Predict(testX))

	log.Info().
		Str("model", best.Name).
		Interface("params", best.Params).
		Float64("cv_mse", results[bestIdx].MeanMSE).
		Float64("test_mse", testMSE).
		Msg("best model selected")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scalerPath, modelPath, err := SaveArtifacts(opts.ModelDir,
		ScalerArtifact{RunID: runID, StandardScaler: scaler},
		ModelArtifact{
			RunID:      runID,
			CreatedAt:  time.Now().UTC(),
			Name:       best.Name,
			Params:     best.Params,
			Scaled:     best.Scaled,
			Features:   ds.Features,
			CVMSE:      results[bestIdx].MeanMSE,
			TestMSE:    testMSE,
			Candidates: results,
			Model:      model,
		})
	if err != nil {
		return nil, err
	}
	log.Info().Str("scaler", scalerPath).Str("model", modelPath).Msg("artefacts saved")

	return &Report{
		RunID:      runID,
		Best:       results[bestIdx],
		TestMSE:    testMSE,
		Results:    results,
		TrainRows:  len(split.YTrain),
		TestRows:   len(split.YTest),
		ScalerPath: scalerPath,
		ModelPath:  modelPath,
	}, nil
}
