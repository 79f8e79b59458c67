package model

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"
)

func TestScalerStandardizes(t *testing.T) {
	samples := [][]float64{{1, 10}, {2, 20}, {3, 30}, {4, 40}}
	s, err := FitScaler(samples)
	if err != nil {
		t.Fatal(err)
	}
	if s.Mean[0] != 2.5 || s.Mean[1] != 25 {
		t.Fatalf("means = %v", s.Mean)
	}
	scaled := s.TransformAll(samples)
	for j := 0; j < 2; j++ {
		var sum float64
		for _, row := range scaled {
			sum += row[j]
		}
		if math.Abs(sum) > 1e-9 {
			t.Fatalf("column %d not centered: sum=%v", j, sum)
		}
	}
}

func TestScalerConstantColumn(t *testing.T) {
	s, err := FitScaler([][]float64{{5, 1}, {5, 2}, {5, 3}})
	if err != nil {
		t.Fatal(err)
	}
	out := s.Transform([]float64{5, 2})
	if out[0] != 0 {
		t.Fatalf("constant column transformed to %v, want 0", out[0])
	}
	if math.IsNaN(out[1]) || math.IsInf(out[1], 0) {
		t.Fatalf("non-finite transform: %v", out)
	}
}

// separable builds a two-cluster dataset: feature 0 below 0 ⇒ label 0,
// above 1 ⇒ label 1, with a noise feature.
func separable(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	samples := make([][]float64, n)
	targets := make([]float64, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = []float64{rng.Float64() - 1, rng.Float64()}
			targets[i] = 0
		} else {
			samples[i] = []float64{rng.Float64() + 1, rng.Float64()}
			targets[i] = 1
		}
	}
	return samples, targets
}

func TestTreeLearnsThresholdSplit(t *testing.T) {
	samples, targets := separable(200, 1)
	idx := make([]int, len(samples))
	for i := range idx {
		idx[i] = i
	}
	tree := fitTree(samples, targets, idx, treeConfig{maxDepth: 4, minSamplesLeaf: 2})

	if p := tree.Predict([]float64{-0.5, 0.5}); p > 0.1 {
		t.Fatalf("negative cluster predicted %v", p)
	}
	if p := tree.Predict([]float64{1.5, 0.5}); p < 0.9 {
		t.Fatalf("positive cluster predicted %v", p)
	}
}

func TestForestSeparatesClusters(t *testing.T) {
	samples, targets := separable(300, 2)
	forest, err := FitForest(samples, targets, ForestParams{NumTrees: 20, MaxDepth: 5, Seed: 42})
	if err != nil {
		t.Fatal(err)
	}
	if p := forest.Predict([]float64{-0.5, 0.5}); p > 0.2 {
		t.Fatalf("negative cluster predicted %v", p)
	}
	if p := forest.Predict([]float64{1.5, 0.5}); p < 0.8 {
		t.Fatalf("positive cluster predicted %v", p)
	}
}

func TestForestDeterministicForSeed(t *testing.T) {
	samples, targets := separable(100, 3)
	a, _ := FitForest(samples, targets, ForestParams{NumTrees: 10, Seed: 7})
	b, _ := FitForest(samples, targets, ForestParams{NumTrees: 10, Seed: 7})
	probe := []float64{0.3, 0.3}
	if a.Predict(probe) != b.Predict(probe) {
		t.Fatal("same seed produced different forests")
	}
}

func TestBoostingSeparatesClusters(t *testing.T) {
	samples, targets := separable(300, 4)
	g, err := FitBoosting(samples, targets, BoostingParams{NumTrees: 30})
	if err != nil {
		t.Fatal(err)
	}
	if p := g.Predict([]float64{-0.5, 0.5}); p > 0.2 {
		t.Fatalf("negative cluster predicted %v", p)
	}
	if p := g.Predict([]float64{1.5, 0.5}); p < 0.8 {
		t.Fatalf("positive cluster predicted %v", p)
	}
}

func TestBoostingRejectsOversizedTrainingSet(t *testing.T) {
	samples := make([][]float64, MaxBoostingRows+1)
	targets := make([]float64, len(samples))
	for i := range samples {
		samples[i] = []float64{0}
	}
	if _, err := FitBoosting(samples, targets, BoostingParams{NumTrees: 1}); err == nil {
		t.Fatal("want size error")
	}
}

func TestBoostingProbabilitiesInRange(t *testing.T) {
	samples, targets := separable(100, 5)
	g, err := FitBoosting(samples, targets, BoostingParams{NumTrees: 10})
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range samples {
		p := g.Predict(x)
		if p < 0 || p > 1 || math.IsNaN(p) {
			t.Fatalf("probability out of range: %v", p)
		}
	}
}

func TestClassifierRoundTripAndSchemaCheck(t *testing.T) {
	samples, targets := separable(100, 6)
	scaler, _ := FitScaler(samples)
	g, err := FitBoosting(scaler.TransformAll(samples), targets, BoostingParams{NumTrees: 10})
	if err != nil {
		t.Fatal(err)
	}

	features := []string{"f0", "f1"}
	artifact := &ClassifierArtifact{
		ModelType: TypeGradientBoosting,
		Features:  features,
		Scaler:    scaler,
		Boosting:  g,
		TrainedAt: time.Now().UTC(),
	}
	path := filepath.Join(t.TempDir(), "classifier.json")
	if err := SaveJSON(path, artifact); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadClassifier(path, features)
	if err != nil {
		t.Fatal(err)
	}
	probe := []float64{1.5, 0.5}
	if got, want := loaded.PredictProbability(probe), artifact.PredictProbability(probe); got != want {
		t.Fatalf("round-trip changed prediction: %v vs %v", got, want)
	}

	if _, err := LoadClassifier(path, []string{"f1", "f0"}); !errors.Is(err, ErrFeatureMismatch) {
		t.Fatalf("reordered schema: want ErrFeatureMismatch, got %v", err)
	}
	if _, err := LoadClassifier(path, []string{"f0", "f1", "f2"}); !errors.Is(err, ErrFeatureMismatch) {
		t.Fatalf("extra column: want ErrFeatureMismatch, got %v", err)
	}
}

func TestRegressorRoundTripClampsNegative(t *testing.T) {
	// Targets are negative so raw predictions are negative.
	samples := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	targets := []float64{-10, -10, -10, -10, -10, -10}
	scaler, _ := FitScaler(samples)
	forest, err := FitForest(scaler.TransformAll(samples), targets, ForestParams{NumTrees: 5, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	artifact := &RegressorArtifact{
		ModelType: TypeRandomForest,
		Features:  []string{"x"},
		Scaler:    scaler,
		Forest:    forest,
		TrainedAt: time.Now().UTC(),
	}
	path := filepath.Join(t.TempDir(), "regressor.json")
	if err := SaveJSON(path, artifact); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadRegressor(path, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if got := loaded.Predict([]float64{3}); got != 0 {
		t.Fatalf("negative prediction not clamped: %v", got)
	}
}
