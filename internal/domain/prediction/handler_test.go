package prediction

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/insights/insights/internal/hospital"
	"github.com/insights/insights/internal/ml/feature"
	"github.com/insights/insights/internal/ml/model"
	"github.com/insights/insights/internal/ml/train"
	"github.com/insights/insights/internal/pipeline/warehouse"
)

type fakeStore struct {
	profiles map[string]feature.PatientProfile
}

func (f *fakeStore) PatientProfile(_ context.Context, id string) (feature.PatientProfile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return feature.PatientProfile{}, warehouse.ErrPatientNotFound
	}
	return p, nil
}

func (f *fakeStore) DepartmentWaitStats(_ context.Context, department string) (warehouse.WaitStats, error) {
	return warehouse.WaitStats{Department: department, AvgWait: 35, MinWait: 5, MaxWait: 120, Visits: 40}, nil
}

func riskyProfile() feature.PatientProfile {
	return feature.PatientProfile{
		PatientID: "P-RISKY", Age: 78, BMI: 33, ChronicConditionCount: 3, IsSmoker: true,
		TotalVisits: 8, TotalAdmissions: 5, AvgWaitTime: 60,
		FirstVisit: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LastVisit:  time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
	}
}

func healthyProfile() feature.PatientProfile {
	return feature.PatientProfile{
		PatientID: "P-HEALTHY", Age: 25, BMI: 22,
		TotalVisits: 2, TotalAdmissions: 0, AvgWaitTime: 20,
		FirstVisit: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		LastVisit:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// writeArtifacts trains small models on synthetic risky/healthy cohorts.
func writeArtifacts(t *testing.T, dir string) {
	t.Helper()
	rng := rand.New(rand.NewSource(9))

	var samples [][]float64
	var labels []float64
	for i := 0; i < 60; i++ {
		risky := riskyProfile()
		risky.Age += rng.Intn(10) - 5
		healthy := healthyProfile()
		healthy.Age += rng.Intn(10) - 5
		samples = append(samples, feature.ClassifierVector(risky), feature.ClassifierVector(healthy))
		labels = append(labels, 1, 0)
	}
	scaler, err := model.FitScaler(samples)
	if err != nil {
		t.Fatal(err)
	}
	boosting, err := model.FitBoosting(scaler.TransformAll(samples), labels, model.BoostingParams{NumTrees: 20})
	if err != nil {
		t.Fatal(err)
	}
	clf := &model.ClassifierArtifact{
		ModelType: model.TypeGradientBoosting,
		Features:  feature.ClassifierFeatures,
		Scaler:    scaler,
		Boosting:  boosting,
		TrainedAt: time.Now().UTC(),
	}
	if err := model.SaveJSON(filepath.Join(dir, train.ClassifierFile), clf); err != nil {
		t.Fatal(err)
	}

	var regX [][]float64
	var regY []float64
	depts := hospital.SortedDepartments()
	for i := 0; i < 200; i++ {
		hour := rng.Intn(24)
		day := rng.Intn(7)
		dept := depts[rng.Intn(len(depts))]
		regX = append(regX, feature.RegressorVector(hour, day, dept == "Emergency", dept))
		regY = append(regY, 15+2*float64(hour)+rng.Float64()*5)
	}
	regScaler, err := model.FitScaler(regX)
	if err != nil {
		t.Fatal(err)
	}
	forest, err := model.FitForest(regScaler.TransformAll(regX), regY, model.ForestParams{NumTrees: 10, Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	reg := &model.RegressorArtifact{
		ModelType: model.TypeRandomForest,
		Features:  feature.RegressorFeatures(),
		Scaler:    regScaler,
		Forest:    forest,
		TrainedAt: time.Now().UTC(),
	}
	if err := model.SaveJSON(filepath.Join(dir, train.RegressorFile), reg); err != nil {
		t.Fatal(err)
	}

	metrics := train.Metrics{
		Classifier: train.ClassifierMetrics{ModelType: model.TypeGradientBoosting, Accuracy: 0.9, ROCAUC: 0.95},
		Regressor:  train.RegressorMetrics{ModelType: model.TypeRandomForest, RMSE: 8.2},
		TrainedAt:  time.Now().UTC(),
	}
	if err := model.SaveJSON(filepath.Join(dir, train.MetricsFile), metrics); err != nil {
		t.Fatal(err)
	}
}

func newTestHandler(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	dir := t.TempDir()
	writeArtifacts(t, dir)

	store := &fakeStore{profiles: map[string]feature.PatientProfile{
		"P-RISKY":   riskyProfile(),
		"P-HEALTHY": healthyProfile(),
	}}
	svc, err := NewService(store, dir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group(""))
	return e, svc
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetPatientRisk(t *testing.T) {
	e, _ := newTestHandler(t)

	rec := doRequest(e, http.MethodGet, "/risk/P-RISKY", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var result RiskResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.PatientID != "P-RISKY" || result.TotalAdmissions != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.RiskProbability < 0 || result.RiskProbability > 1 {
		t.Fatalf("probability out of range: %v", result.RiskProbability)
	}
	if result.RiskLevel != "Low" && result.RiskLevel != "Medium" && result.RiskLevel != "High" {
		t.Fatalf("unexpected risk level %q", result.RiskLevel)
	}

	healthy := doRequest(e, http.MethodGet, "/risk/P-HEALTHY", "")
	var healthyResult RiskResult
	if err := json.Unmarshal(healthy.Body.Bytes(), &healthyResult); err != nil {
		t.Fatal(err)
	}
	if healthyResult.RiskProbability >= result.RiskProbability {
		t.Fatalf("healthy patient scored %v, risky %v", healthyResult.RiskProbability, result.RiskProbability)
	}
}

func TestGetPatientRiskNotFound(t *testing.T) {
	e, _ := newTestHandler(t)
	rec := doRequest(e, http.MethodGet, "/risk/NOPE", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestPredictRiskCustomValidation(t *testing.T) {
	e, _ := newTestHandler(t)

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing age", `{"bmi": 25}`, "age"},
		{"missing bmi", `{"age": 50}`, "bmi"},
		{"age out of range", `{"age": 300, "bmi": 25}`, "age"},
		{"negative visits", `{"age": 50, "bmi": 25, "total_visits": -1}`, "total_visits"},
		{"bad admission rate", `{"age": 50, "bmi": 25, "admission_rate": 1.5}`, "admission_rate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, "/predict-risk", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.field) {
				t.Fatalf("error does not name field %q: %s", tc.field, rec.Body.String())
			}
		})
	}
}

func TestPredictRiskCustomDeterministic(t *testing.T) {
	e, _ := newTestHandler(t)
	body := `{"age": 70, "bmi": 32, "chronic_condition_count": 2, "total_visits": 6, "total_admissions": 3, "is_smoker": true}`

	a := doRequest(e, http.MethodPost, "/predict-risk", body)
	b := doRequest(e, http.MethodPost, "/predict-risk", body)
	if a.Code != http.StatusOK || b.Code != http.StatusOK {
		t.Fatalf("statuses %d, %d", a.Code, b.Code)
	}
	if a.Body.String() != b.Body.String() {
		t.Fatalf("identical payloads, different responses:\n%s\n%s", a.Body.String(), b.Body.String())
	}
}

func TestWaitTimeForecast(t *testing.T) {
	e, _ := newTestHandler(t)

	rec := doRequest(e, http.MethodGet, "/wait-time-forecast?department=Cardiology&hour=14&day_of_week=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var forecast Forecast
	if err := json.Unmarshal(rec.Body.Bytes(), &forecast); err != nil {
		t.Fatal(err)
	}
	if forecast.PredictedWaitMinutes < 0 {
		t.Fatalf("negative forecast: %v", forecast.PredictedWaitMinutes)
	}
	if forecast.Department != "Cardiology" || forecast.Factors.Hour != 14 {
		t.Fatalf("echoed inputs wrong: %+v", forecast)
	}
	if forecast.Historical.Visits == 0 {
		t.Fatal("historical context missing")
	}
}

func TestWaitTimeForecastValidation(t *testing.T) {
	e, _ := newTestHandler(t)

	for _, target := range []string{
		"/wait-time-forecast?department=Alchemy",
		"/wait-time-forecast?department=Cardiology&hour=99",
		"/wait-time-forecast?department=Cardiology&day_of_week=9",
	} {
		if rec := doRequest(e, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", target, rec.Code)
		}
	}
}

func TestModelMetricsEndpoint(t *testing.T) {
	e, _ := newTestHandler(t)
	rec := doRequest(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), model.TypeGradientBoosting) {
		t.Fatalf("metrics missing model type: %s", rec.Body.String())
	}
}

func TestMissingArtifactsReturn503(t *testing.T) {
	svc, err := NewService(&fakeStore{}, t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group(""))

	for _, target := range []string{"/risk/P1", "/metrics", "/wait-time-forecast"} {
		if rec := doRequest(e, http.MethodGet, target, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status %d, want 503", target, rec.Code)
		}
	}
	rec := doRequest(e, http.MethodPost, "/predict-risk", `{"age": 50, "bmi": 25}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("predict-risk: status %d, want 503", rec.Code)
	}
}
