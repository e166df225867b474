package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	ScalerFile = "feature_scaler.json"
	ModelFile  = "best_yacht_model.json"
)

type ModelArtifact struct {
	RunID      string             `json:"run_id"`
	CreatedAt  time.Time          `json:"created_at"`
	Name       string             `json:"name"`
	Params     map[string]float64 `json:"params"`
	Scaled     bool               `json:"scaled"`
	Features   []string           `json:"features"`
	CVMSE      float64            `json:"cv_mse"`
	TestMSE    float64            `json:"test_mse"`
	Candidates []CVResult         `json:"candidates"`
	Model      Regressor          `json:"model"`
}

type ScalerArtifact struct {
	RunID string `json:"run_id"`
	StandardScaler
}

// SaveArtifacts writes the scaler and model as indented JSON under dir,
// creating it if needed, and returns the two paths.
func SaveArtifacts(dir string, scaler ScalerArtifact, model ModelArtifact) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create model dir: %w", err)
	}

	scalerPath := filepath.Join(dir, ScalerFile)
	if err := writeJSONFile(scalerPath, scaler); err != nil {
		return "", "", err
	}
	modelPath := filepath.Join(dir, ModelFile)
	if err := writeJSONFile(modelPath, model); err != nil {
		return "", "", err
	}
	return scalerPath, modelPath, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
