package prediction

import (
	"fmt"
	"time"

	"github.com/insights/insights/internal/pipeline/warehouse"
)

// RiskResult is a readmission-risk prediction for one patient.
type RiskResult struct {
	PatientID       string  `json:"patient_id,omitempty"`
	RiskProbability float64 `json:"risk_probability"`
	RiskClass       string  `json:"risk_class"`
	RiskLevel       string  `json:"risk_level"`
	Age             int     `json:"age,omitempty"`
	TotalVisits     int     `json:"total_visits,omitempty"`
	TotalAdmissions int     `json:"total_admissions,omitempty"`
}

// CustomRiskRequest is the POST /predict-risk payload. Age and BMI are
// required; history fields default to a first-time visitor. Derived flags
// are always computed server-side from these values.
type CustomRiskRequest struct {
	PatientID             string   `json:"patient_id"`
	Age                   *float64 `json:"age"`
	BMI                   *float64 `json:"bmi"`
	ChronicConditionCount *int     `json:"chronic_condition_count"`
	TotalVisits           *int     `json:"total_visits"`
	TotalAdmissions       *int     `json:"total_admissions"`
	AvgWaitTime           *float64 `json:"avg_wait_time"`
	VisitFrequency        *float64 `json:"visit_frequency"`
	AdmissionRate         *float64 `json:"admission_rate"`
	IsSmoker              *bool    `json:"is_smoker"`
}

// Forecast is a wait-time prediction with historical context.
type Forecast struct {
	Department             string              `json:"department"`
	PredictedWaitMinutes   float64             `json:"predicted_wait_time_minutes"`
	PredictedWaitFormatted string              `json:"predicted_wait_time_formatted"`
	Historical             warehouse.WaitStats `json:"historical"`
	Factors                ForecastFactors     `json:"factors"`
	GeneratedAt            time.Time           `json:"generated_at"`
}

// ForecastFactors echoes the inputs the forecast was conditioned on.
type ForecastFactors struct {
	Hour        int  `json:"hour"`
	DayOfWeek   int  `json:"day_of_week"`
	IsWeekend   bool `json:"is_weekend"`
	IsEmergency bool `json:"is_emergency"`
}

// ValidationError names the first request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}
