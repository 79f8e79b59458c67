package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Model type names recorded in artifacts and metrics.
const (
	TypeGradientBoosting = "gradient_boosting"
	TypeRandomForest     = "random_forest"
)

// ErrFeatureMismatch means a persisted model was trained against a
// different feature schema than the one currently in use.
var ErrFeatureMismatch = errors.New("model feature schema mismatch")

// ClassifierArtifact is the persisted readmission-risk classifier: the
// fitted model, its scaler, and the exact feature schema it was trained on.
type ClassifierArtifact struct {
	ModelType string            `json:"model_type"`
	Features  []string          `json:"features"`
	Scaler    *Scaler           `json:"scaler"`
	Boosting  *GradientBoosting `json:"boosting,omitempty"`
	Forest    *RandomForest     `json:"forest,omitempty"`
	TrainedAt time.Time         `json:"trained_at"`
}

// PredictProbability scales a raw feature vector and returns the
// positive-class probability.
func (a *ClassifierArtifact) PredictProbability(raw []float64) float64 {
	x := a.Scaler.Transform(raw)
	if a.Boosting != nil {
		return a.Boosting.Predict(x)
	}
	return clamp01(a.Forest.Predict(x))
}

// RegressorArtifact is the persisted wait-time regressor.
type RegressorArtifact struct {
	ModelType string        `json:"model_type"`
	Features  []string      `json:"features"`
	Scaler    *Scaler       `json:"scaler"`
	Forest    *RandomForest `json:"forest"`
	TrainedAt time.Time     `json:"trained_at"`
}

// Predict scales a raw feature vector and returns the predicted minutes,
// clamped to zero.
func (a *RegressorArtifact) Predict(raw []float64) float64 {
	v := a.Forest.Predict(a.Scaler.Transform(raw))
	if v < 0 {
		return 0
	}
	return v
}

// SaveJSON writes an artifact, creating the directory if needed.
func SaveJSON(path string, artifact any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadClassifier reads a classifier artifact and refuses one whose stored
// feature list differs from wantFeatures.
func LoadClassifier(path string, wantFeatures []string) (*ClassifierArtifact, error) {
	var a ClassifierArtifact
	if err := loadJSON(path, &a); err != nil {
		return nil, err
	}
	if err := checkFeatures(path, a.Features, wantFeatures); err != nil {
		return nil, err
	}
	if a.Scaler == nil || (a.Boosting == nil && a.Forest == nil) {
		return nil, fmt.Errorf("load %s: incomplete artifact", path)
	}
	return &a, nil
}

// LoadRegressor reads a regressor artifact with the same schema check.
func LoadRegressor(path string, wantFeatures []string) (*RegressorArtifact, error) {
	var a RegressorArtifact
	if err := loadJSON(path, &a); err != nil {
		return nil, err
	}
	if err := checkFeatures(path, a.Features, wantFeatures); err != nil {
		return nil, err
	}
	if a.Scaler == nil || a.Forest == nil {
		return nil, fmt.Errorf("load %s: incomplete artifact", path)
	}
	return &a, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model artifact: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func checkFeatures(path string, got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: %s has %d features, schema has %d", ErrFeatureMismatch, path, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: %s column %d is %q, schema has %q", ErrFeatureMismatch, path, i, got[i], want[i])
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
