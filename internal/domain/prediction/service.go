package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/insights/insights/internal/hospital"
	"github.com/insights/insights/internal/ml/feature"
	"github.com/insights/insights/internal/ml/model"
	"github.com/insights/insights/internal/ml/train"
	"github.com/insights/insights/internal/pipeline/warehouse"
	"github.com/insights/insights/pkg/riskband"
)

// ErrModelsNotReady means the model artifacts are missing or unloadable.
var ErrModelsNotReady = errors.New("models not trained, run the pipeline")

// ProfileStore is the warehouse surface the prediction service needs.
type ProfileStore interface {
	PatientProfile(ctx context.Context, patientID string) (feature.PatientProfile, error)
	DepartmentWaitStats(ctx context.Context, department string) (warehouse.WaitStats, error)
}

// Service serves model predictions. A service constructed before the
// pipeline has run stays up and reports ErrModelsNotReady per request.
type Service struct {
	store      ProfileStore
	classifier *model.ClassifierArtifact
	regressor  *model.RegressorArtifact
	metrics    *train.Metrics
	log        zerolog.Logger
}

// NewService loads artifacts from modelDir. Missing artifacts are logged
// and tolerated; a stale feature schema is not.
func NewService(store ProfileStore, modelDir string, log zerolog.Logger) (*Service, error) {
	s := &Service{store: store, log: log}

	classifier, err := model.LoadClassifier(filepath.Join(modelDir, train.ClassifierFile), feature.ClassifierFeatures)
	switch {
	case errors.Is(err, model.ErrFeatureMismatch):
		return nil, err
	case err != nil:
		log.Warn().Err(err).Msg("classifier not loaded")
	default:
		s.classifier = classifier
	}

	regressor, err := model.LoadRegressor(filepath.Join(modelDir, train.RegressorFile), feature.RegressorFeatures())
	switch {
	case errors.Is(err, model.ErrFeatureMismatch):
		return nil, err
	case err != nil:
		log.Warn().Err(err).Msg("regressor not loaded")
	default:
		s.regressor = regressor
	}

	metricsPath := filepath.Join(modelDir, train.MetricsFile)
	if data, err := os.ReadFile(metricsPath); err == nil {
		var m train.Metrics
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn().Err(err).Msg("metrics document unreadable")
		} else {
			s.metrics = &m
		}
	}

	return s, nil
}

// Ready reports which models are loaded, for /health.
func (s *Service) Ready() map[string]bool {
	return map[string]bool{
		"classifier": s.classifier != nil,
		"regressor":  s.regressor != nil,
		"metrics":    s.metrics != nil,
	}
}

// PredictRisk scores a known patient from their live warehouse profile.
func (s *Service) PredictRisk(ctx context.Context, patientID string) (RiskResult, error) {
	if s.classifier == nil || s.store == nil {
		return RiskResult{}, ErrModelsNotReady
	}
	profile, err := s.store.PatientProfile(ctx, patientID)
	if err != nil {
		return RiskResult{}, err
	}

	p := s.classifier.PredictProbability(feature.ClassifierVector(profile))
	result := riskResult(p)
	result.PatientID = patientID
	result.Age = profile.Age
	result.TotalVisits = profile.TotalVisits
	result.TotalAdmissions = profile.TotalAdmissions
	return result, nil
}

// PredictRiskCustom scores an ad-hoc payload. Identical payloads always
// produce identical results.
func (s *Service) PredictRiskCustom(req CustomRiskRequest) (RiskResult, error) {
	if s.classifier == nil {
		return RiskResult{}, ErrModelsNotReady
	}
	summary, err := validateCustom(req)
	if err != nil {
		return RiskResult{}, err
	}

	p := s.classifier.PredictProbability(feature.SummaryVector(summary))
	result := riskResult(p)
	result.PatientID = req.PatientID
	return result, nil
}

func validateCustom(req CustomRiskRequest) (feature.Summary, error) {
	var s feature.Summary

	if req.Age == nil {
		return s, &ValidationError{Field: "age", Reason: "required"}
	}
	if *req.Age < 0 || *req.Age > 120 {
		return s, &ValidationError{Field: "age", Reason: "must be between 0 and 120"}
	}
	s.Age = *req.Age

	if req.BMI == nil {
		return s, &ValidationError{Field: "bmi", Reason: "required"}
	}
	if *req.BMI <= 0 || *req.BMI > 100 {
		return s, &ValidationError{Field: "bmi", Reason: "must be between 0 and 100"}
	}
	s.BMI = *req.BMI

	s.ChronicConditionCount = 0
	if req.ChronicConditionCount != nil {
		if *req.ChronicConditionCount < 0 {
			return s, &ValidationError{Field: "chronic_condition_count", Reason: "must not be negative"}
		}
		s.ChronicConditionCount = *req.ChronicConditionCount
	}

	s.TotalVisits = 1
	if req.TotalVisits != nil {
		if *req.TotalVisits < 0 {
			return s, &ValidationError{Field: "total_visits", Reason: "must not be negative"}
		}
		s.TotalVisits = *req.TotalVisits
	}

	if req.TotalAdmissions != nil {
		if *req.TotalAdmissions < 0 {
			return s, &ValidationError{Field: "total_admissions", Reason: "must not be negative"}
		}
		s.TotalAdmissions = *req.TotalAdmissions
	}

	s.AvgWaitTime = 30
	if req.AvgWaitTime != nil {
		if *req.AvgWaitTime < 0 {
			return s, &ValidationError{Field: "avg_wait_time", Reason: "must not be negative"}
		}
		s.AvgWaitTime = *req.AvgWaitTime
	}

	if req.VisitFrequency != nil {
		if *req.VisitFrequency < 0 {
			return s, &ValidationError{Field: "visit_frequency", Reason: "must not be negative"}
		}
		s.VisitFrequency = *req.VisitFrequency
	}

	if req.AdmissionRate != nil {
		if *req.AdmissionRate < 0 || *req.AdmissionRate > 1 {
			return s, &ValidationError{Field: "admission_rate", Reason: "must be between 0 and 1"}
		}
		s.AdmissionRate = *req.AdmissionRate
	} else if s.TotalVisits > 0 {
		s.AdmissionRate = float64(s.TotalAdmissions) / float64(s.TotalVisits)
	}

	if req.IsSmoker != nil {
		s.IsSmoker = *req.IsSmoker
	}
	return s, nil
}

// ForecastWaitTime predicts expected wait minutes for a department and
// time slot, alongside the department's historical range.
func (s *Service) ForecastWaitTime(ctx context.Context, department string, hour, dayOfWeek int, isEmergency bool) (Forecast, error) {
	if s.regressor == nil || s.store == nil {
		return Forecast{}, ErrModelsNotReady
	}
	if !hospital.ValidDepartment(department) {
		return Forecast{}, &ValidationError{Field: "department", Reason: fmt.Sprintf("unknown department %q", department)}
	}
	if hour < 0 || hour > 23 {
		return Forecast{}, &ValidationError{Field: "hour", Reason: "must be between 0 and 23"}
	}
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return Forecast{}, &ValidationError{Field: "day_of_week", Reason: "must be between 0 and 6"}
	}

	stats, err := s.store.DepartmentWaitStats(ctx, department)
	if err != nil {
		return Forecast{}, err
	}

	minutes := s.regressor.Predict(feature.RegressorVector(hour, dayOfWeek, isEmergency, department))
	return Forecast{
		Department:             department,
		PredictedWaitMinutes:   round1(minutes),
		PredictedWaitFormatted: formatWait(minutes),
		Historical:             stats,
		Factors: ForecastFactors{
			Hour:        hour,
			DayOfWeek:   dayOfWeek,
			IsWeekend:   dayOfWeek >= 5,
			IsEmergency: isEmergency,
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ModelMetrics returns the persisted evaluation document.
func (s *Service) ModelMetrics() (train.Metrics, error) {
	if s.metrics == nil {
		return train.Metrics{}, ErrModelsNotReady
	}
	return *s.metrics, nil
}

func riskResult(p float64) RiskResult {
	class := "Low Risk"
	if p >= 0.5 {
		class = "High Risk"
	}
	return RiskResult{
		RiskProbability: p,
		RiskClass:       class,
		RiskLevel:       string(riskband.FromProbability(p)),
	}
}

func formatWait(minutes float64) string {
	m := int(minutes + 0.5)
	if m < 60 {
		return fmt.Sprintf("%d minutes", m)
	}
	return fmt.Sprintf("%dh %dm", m/60, m%60)
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
