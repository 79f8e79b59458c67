// Package feature is the single source of truth for model input schemas.
// Every vector, at training time and at serving time, is produced here so
// the two paths can never drift apart.
package feature

import (
	"time"

	"github.com/insights/insights/internal/hospital"
)

// ClassifierFeatures is the ordered input schema of the readmission-risk
// classifier. Persisted models embed this list and refuse to load against
// a different one.
var ClassifierFeatures = []string{
	"age",
	"bmi",
	"chronic_condition_count",
	"total_visits",
	"total_admissions",
	"avg_wait_time",
	"visit_frequency",
	"admission_rate",
	"is_smoker",
	"has_chronic_condition",
	"high_bmi",
	"senior_citizen",
	"multiple_conditions",
	"frequent_visitor",
}

// RegressorFeatures is the ordered input schema of the wait-time regressor:
// time-of-visit columns followed by a one-hot department encoding over the
// fixed vocabulary in sorted order.
func RegressorFeatures() []string {
	names := []string{"hour", "day_of_week", "is_weekend", "is_emergency"}
	for _, d := range hospital.SortedDepartments() {
		names = append(names, "dept_"+d)
	}
	return names
}

// PatientProfile is a patient's demographic and visit-history summary as
// read from the warehouse.
type PatientProfile struct {
	PatientID             string
	Age                   int
	BMI                   float64
	ChronicConditionCount int
	IsSmoker              bool
	TotalVisits           int
	TotalAdmissions       int
	AvgWaitTime           float64
	FirstVisit            time.Time
	LastVisit             time.Time
}

// VisitFrequency is visits per year over the patient's observed span,
// counting a single visit day as a one-day span.
func (p PatientProfile) VisitFrequency() float64 {
	if p.TotalVisits == 0 || p.FirstVisit.IsZero() {
		return 0
	}
	days := p.LastVisit.Sub(p.FirstVisit).Hours()/24 + 1
	return float64(p.TotalVisits) / days * 365
}

// AdmissionRate is admissions over visits, 0 for patients with no visits.
func (p PatientProfile) AdmissionRate() float64 {
	if p.TotalVisits == 0 {
		return 0
	}
	return float64(p.TotalAdmissions) / float64(p.TotalVisits)
}

// Summary carries the classifier's raw inputs. The derived flags are
// always recomputed here, never taken from callers.
type Summary struct {
	Age                   float64
	BMI                   float64
	ChronicConditionCount int
	TotalVisits           int
	TotalAdmissions       int
	AvgWaitTime           float64
	VisitFrequency        float64
	AdmissionRate         float64
	IsSmoker              bool
}

// SummaryVector renders a summary in ClassifierFeatures order.
func SummaryVector(s Summary) []float64 {
	return []float64{
		s.Age,
		s.BMI,
		float64(s.ChronicConditionCount),
		float64(s.TotalVisits),
		float64(s.TotalAdmissions),
		s.AvgWaitTime,
		s.VisitFrequency,
		s.AdmissionRate,
		boolToFloat(s.IsSmoker),
		boolToFloat(s.ChronicConditionCount >= 1),
		boolToFloat(s.BMI >= 30),
		boolToFloat(s.Age >= 65),
		boolToFloat(s.ChronicConditionCount >= 2),
		boolToFloat(s.TotalVisits >= 5),
	}
}

// ClassifierVector renders a warehouse profile in ClassifierFeatures order.
func ClassifierVector(p PatientProfile) []float64 {
	return SummaryVector(Summary{
		Age:                   float64(p.Age),
		BMI:                   p.BMI,
		ChronicConditionCount: p.ChronicConditionCount,
		TotalVisits:           p.TotalVisits,
		TotalAdmissions:       p.TotalAdmissions,
		AvgWaitTime:           p.AvgWaitTime,
		VisitFrequency:        p.VisitFrequency(),
		AdmissionRate:         p.AdmissionRate(),
		IsSmoker:              p.IsSmoker,
	})
}

// RegressorVector renders a visit context in RegressorFeatures order.
// The department must already be validated against the vocabulary; an
// unknown department yields an all-zero one-hot block.
func RegressorVector(hour, dayOfWeek int, isEmergency bool, department string) []float64 {
	v := []float64{
		float64(hour),
		float64(dayOfWeek),
		boolToFloat(dayOfWeek >= 5),
		boolToFloat(isEmergency),
	}
	for _, d := range hospital.SortedDepartments() {
		v = append(v, boolToFloat(d == department))
	}
	return v
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
