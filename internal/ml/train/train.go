// Package train fits the risk classifier and wait-time regressor from the
// warehouse and persists them as JSON artifacts.
package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/insights/insights/internal/ml/feature"
	"github.com/insights/insights/internal/ml/model"
	"github.com/insights/insights/internal/pipeline/warehouse"
)

// Artifact file names under the model directory.
const (
	ClassifierFile = "classifier.json"
	RegressorFile  = "regressor.json"
	MetricsFile    = "metrics.json"
)

// High-risk label thresholds: a patient with at least one admission is
// labeled high risk when readmissions are frequent in rate or count.
const (
	labelAdmissionRate  = 0.3
	labelAdmissionCount = 2
)

const testFraction = 0.2

// ClassifierMetrics summarizes held-out classifier performance.
type ClassifierMetrics struct {
	ModelType    string  `json:"model_type"`
	Accuracy     float64 `json:"accuracy"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1"`
	ROCAUC       float64 `json:"roc_auc"`
	TrainSamples int     `json:"train_samples"`
	TestSamples  int     `json:"test_samples"`
	FeatureCount int     `json:"feature_count"`
}

// RegressorMetrics summarizes held-out regressor performance.
type RegressorMetrics struct {
	ModelType    string  `json:"model_type"`
	RMSE         float64 `json:"rmse"`
	MAE          float64 `json:"mae"`
	R2           float64 `json:"r2"`
	TrainSamples int     `json:"train_samples"`
	TestSamples  int     `json:"test_samples"`
	FeatureCount int     `json:"feature_count"`
}

// Metrics is the persisted metrics document served at /metrics.
type Metrics struct {
	Classifier ClassifierMetrics `json:"classifier"`
	Regressor  RegressorMetrics  `json:"regressor"`
	TrainedAt  time.Time         `json:"trained_at"`
}

// Trainer runs both training jobs against a built warehouse.
type Trainer struct {
	store    *warehouse.Store
	modelDir string
	seed     int64
	log      zerolog.Logger
}

func New(store *warehouse.Store, modelDir string, seed int64, log zerolog.Logger) *Trainer {
	return &Trainer{store: store, modelDir: modelDir, seed: seed, log: log}
}

// Run trains, evaluates and persists both models plus the metrics document.
func (t *Trainer) Run(ctx context.Context) (Metrics, error) {
	trainedAt := time.Now().UTC()

	cm, err := t.trainClassifier(ctx, trainedAt)
	if err != nil {
		return Metrics{}, fmt.Errorf("train classifier: %w", err)
	}
	rm, err := t.trainRegressor(ctx, trainedAt)
	if err != nil {
		return Metrics{}, fmt.Errorf("train regressor: %w", err)
	}

	metrics := Metrics{Classifier: cm, Regressor: rm, TrainedAt: trainedAt}
	if err := model.SaveJSON(filepath.Join(t.modelDir, MetricsFile), metrics); err != nil {
		return Metrics{}, err
	}

	t.log.Info().
		Str("classifier", cm.ModelType).
		Float64("roc_auc", cm.ROCAUC).
		Float64("rmse", rm.RMSE).
		Msg("models trained")
	return metrics, nil
}

func (t *Trainer) trainClassifier(ctx context.Context, trainedAt time.Time) (ClassifierMetrics, error) {
	profiles, err := t.store.PatientProfiles(ctx)
	if err != nil {
		return ClassifierMetrics{}, err
	}

	// Only patients with admission history carry a meaningful readmission
	// label.
	var samples [][]float64
	var labels []float64
	for _, p := range profiles {
		if p.TotalAdmissions < 1 {
			continue
		}
		samples = append(samples, feature.ClassifierVector(p))
		if p.AdmissionRate() >= labelAdmissionRate || p.TotalAdmissions >= labelAdmissionCount {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}
	if len(samples) < 10 {
		return ClassifierMetrics{}, fmt.Errorf("only %d labeled patients, need at least 10", len(samples))
	}

	trainX, trainY, testX, testY := split(samples, labels, t.seed)
	scaler, err := model.FitScaler(trainX)
	if err != nil {
		return ClassifierMetrics{}, err
	}
	trainX = scaler.TransformAll(trainX)
	testX = scaler.TransformAll(testX)

	artifact := &model.ClassifierArtifact{
		Features:  feature.ClassifierFeatures,
		Scaler:    scaler,
		TrainedAt: trainedAt,
	}
	// The boosted model is preferred but bounded; past its supported size
	// the forest takes over. Either way the choice lands in the metrics.
	if len(trainX) <= model.MaxBoostingRows {
		boosting, err := model.FitBoosting(trainX, trainY, model.BoostingParams{})
		if err != nil {
			return ClassifierMetrics{}, err
		}
		artifact.ModelType = model.TypeGradientBoosting
		artifact.Boosting = boosting
	} else {
		forest, err := model.FitForest(trainX, trainY, model.ForestParams{Seed: t.seed})
		if err != nil {
			return ClassifierMetrics{}, err
		}
		artifact.ModelType = model.TypeRandomForest
		artifact.Forest = forest
		t.log.Warn().Int("rows", len(trainX)).Msg("training set too large for boosting, using forest")
	}

	if err := model.SaveJSON(filepath.Join(t.modelDir, ClassifierFile), artifact); err != nil {
		return ClassifierMetrics{}, err
	}

	probs := make([]float64, len(testX))
	for i, x := range testX {
		if artifact.Boosting != nil {
			probs[i] = artifact.Boosting.Predict(x)
		} else {
			probs[i] = artifact.Forest.Predict(x)
		}
	}
	m := classificationMetrics(probs, testY)
	m.ModelType = artifact.ModelType
	m.TrainSamples = len(trainX)
	m.TestSamples = len(testX)
	m.FeatureCount = len(feature.ClassifierFeatures)
	return m, nil
}

func (t *Trainer) trainRegressor(ctx context.Context, trainedAt time.Time) (RegressorMetrics, error) {
	visits, err := t.store.RegressionSamples(ctx)
	if err != nil {
		return RegressorMetrics{}, err
	}
	if len(visits) < 10 {
		return RegressorMetrics{}, fmt.Errorf("only %d visits, need at least 10", len(visits))
	}

	samples := make([][]float64, len(visits))
	targets := make([]float64, len(visits))
	for i, v := range visits {
		samples[i] = feature.RegressorVector(v.Hour, v.DayOfWeek, v.IsEmergency, v.Department)
		targets[i] = v.WaitTime
	}

	trainX, trainY, testX, testY := split(samples, targets, t.seed)
	scaler, err := model.FitScaler(trainX)
	if err != nil {
		return RegressorMetrics{}, err
	}
	trainX = scaler.TransformAll(trainX)
	testX = scaler.TransformAll(testX)

	forest, err := model.FitForest(trainX, trainY, model.ForestParams{Seed: t.seed})
	if err != nil {
		return RegressorMetrics{}, err
	}
	artifact := &model.RegressorArtifact{
		ModelType: model.TypeRandomForest,
		Features:  feature.RegressorFeatures(),
		Scaler:    scaler,
		Forest:    forest,
		TrainedAt: trainedAt,
	}
	if err := model.SaveJSON(filepath.Join(t.modelDir, RegressorFile), artifact); err != nil {
		return RegressorMetrics{}, err
	}

	preds := make([]float64, len(testX))
	for i, x := range testX {
		preds[i] = forest.Predict(x)
	}
	m := regressionMetrics(preds, testY)
	m.ModelType = model.TypeRandomForest
	m.TrainSamples = len(trainX)
	m.TestSamples = len(testX)
	m.FeatureCount = len(artifact.Features)
	return m, nil
}

// split shuffles deterministically and holds out the test fraction.
func split(samples [][]float64, targets []float64, seed int64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(samples))

	nTest := int(float64(len(samples)) * testFraction)
	if nTest < 1 {
		nTest = 1
	}
	for k, i := range perm {
		if k < nTest {
			testX = append(testX, samples[i])
			testY = append(testY, targets[i])
		} else {
			trainX = append(trainX, samples[i])
			trainY = append(trainY, targets[i])
		}
	}
	return trainX, trainY, testX, testY
}

func classificationMetrics(probs, truth []float64) ClassifierMetrics {
	var tp, tn, fp, fn float64
	for i, p := range probs {
		predicted := p >= 0.5
		actual := truth[i] == 1
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		default:
			tn++
		}
	}
	m := ClassifierMetrics{
		Accuracy: (tp + tn) / float64(len(probs)),
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.ROCAUC = rocAUC(probs, truth)
	return m
}

// rocAUC computes the area under the ROC curve. A held-out set with a
// single class has no curve; 0.5 is reported.
func rocAUC(probs, truth []float64) float64 {
	scores := make([]float64, len(probs))
	copy(scores, probs)
	classes := make([]bool, len(truth))
	hasPos, hasNeg := false, false
	for i, y := range truth {
		classes[i] = y == 1
		if classes[i] {
			hasPos = true
		} else {
			hasNeg = true
		}
	}
	if !hasPos || !hasNeg {
		return 0.5
	}

	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	auc := integrate.Trapezoidal(fpr, tpr)
	if math.IsNaN(auc) {
		return 0.5
	}
	return auc
}

func regressionMetrics(preds, truth []float64) RegressorMetrics {
	var sse, sae float64
	for i, p := range preds {
		d := p - truth[i]
		sse += d * d
		sae += math.Abs(d)
	}
	n := float64(len(preds))

	mean := stat.Mean(truth, nil)
	var sst float64
	for _, y := range truth {
		d := y - mean
		sst += d * d
	}

	m := RegressorMetrics{
		RMSE: math.Sqrt(sse / n),
		MAE:  sae / n,
	}
	if sst > 0 {
		m.R2 = 1 - sse/sst
	}
	return m
}
