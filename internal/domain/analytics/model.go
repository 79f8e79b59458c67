package analytics

import "time"

// Summary is the top-level warehouse roll-up served at /summary.
type Summary struct {
	TotalPatients        int       `json:"total_patients"`
	TotalVisits          int       `json:"total_visits"`
	TotalAdmissions      int       `json:"total_admissions"`
	AdmissionRatePercent float64   `json:"admission_rate_percent"`
	AvgWaitTimeMinutes   float64   `json:"avg_wait_time_minutes"`
	AvgSatisfactionScore float64   `json:"avg_satisfaction_score"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// DepartmentStat is one department's visit roll-up.
type DepartmentStat struct {
	Department      string  `json:"department"`
	VisitCount      int     `json:"visit_count"`
	AvgWaitTime     float64 `json:"avg_wait_time"`
	AdmissionCount  int     `json:"admission_count"`
	AvgSatisfaction float64 `json:"avg_satisfaction"`
}

// MonthlyTrend is one calendar month's visit roll-up, oldest first.
type MonthlyTrend struct {
	Year            int     `json:"year"`
	Month           int     `json:"month"`
	MonthName       string  `json:"month_name"`
	VisitCount      int     `json:"visit_count"`
	AvgWaitTime     float64 `json:"avg_wait_time"`
	AvgSatisfaction float64 `json:"avg_satisfaction"`
}

// HighRiskPatient is a chronic-condition-heavy patient row.
type HighRiskPatient struct {
	PatientID             string `json:"patient_id"`
	Age                   int    `json:"age"`
	ChronicConditionCount int    `json:"chronic_condition_count"`
	VisitCount            int    `json:"visit_count"`
	AdmissionCount        int    `json:"admission_count"`
}

// PatientSummary is one patient with visit aggregates and condition flags.
type PatientSummary struct {
	PatientID             string  `json:"patient_id"`
	Age                   int     `json:"age"`
	Gender                string  `json:"gender"`
	BMI                   float64 `json:"bmi"`
	SmokingStatus         string  `json:"smoking_status"`
	ChronicConditionCount int     `json:"chronic_condition_count"`
	ChronicConditions     string  `json:"chronic_conditions"`
	HasDiabetes           bool    `json:"has_diabetes"`
	HasHypertension       bool    `json:"has_hypertension"`
	HasAsthma             bool    `json:"has_asthma"`
	HasHeartDisease       bool    `json:"has_heart_disease"`
	TotalVisits           int     `json:"total_visits"`
	TotalAdmissions       int     `json:"total_admissions"`
	AvgLOS                float64 `json:"avg_los"`
}

// DepartmentWait is outpatient wait time grouped by department.
type DepartmentWait struct {
	Department  string  `json:"department"`
	AvgWaitTime float64 `json:"avg_wait_time"`
	VisitCount  int     `json:"visit_count"`
}

// HourlyWait is outpatient wait time grouped by hour of day.
type HourlyWait struct {
	HourOfDay   int     `json:"hour_of_day"`
	AvgWaitTime float64 `json:"avg_wait_time"`
}

// DailyWait is outpatient wait time grouped by day of week (Monday=0).
type DailyWait struct {
	DayOfWeek   int     `json:"day_of_week"`
	AvgWaitTime float64 `json:"avg_wait_time"`
	VisitCount  int     `json:"visit_count"`
}

// OPDAnalytics covers non-admitted visits only.
type OPDAnalytics struct {
	WaitTimesByDepartment []DepartmentWait `json:"wait_times_by_department"`
	WaitTimesByHour       []HourlyWait     `json:"wait_times_by_hour"`
	WaitTimesByDay        []DailyWait      `json:"wait_times_by_day"`
	GeneratedAt           time.Time        `json:"generated_at"`
}

// WardLOS is average length of stay per ward.
type WardLOS struct {
	Ward           string  `json:"ward"`
	AvgLOS         float64 `json:"avg_los"`
	AdmissionCount int     `json:"admission_count"`
}

// DiagnosisReadmissions is the 30-day readmission rate per diagnosis code.
type DiagnosisReadmissions struct {
	DiagnosisCode   string  `json:"diagnosis_code"`
	Readmissions    int     `json:"readmissions"`
	TotalAdmissions int     `json:"total_admissions"`
	ReadmissionRate float64 `json:"readmission_rate"`
}

// MonthlyAdmissions is admission volume for one "YYYY-MM" month.
type MonthlyAdmissions struct {
	Month          string `json:"month"`
	AdmissionCount int    `json:"admission_count"`
}

// InpatientAnalytics covers admitted visits only.
type InpatientAnalytics struct {
	LOSByWard               []WardLOS               `json:"los_by_ward"`
	ReadmissionsByDiagnosis []DiagnosisReadmissions `json:"readmissions_by_diagnosis"`
	MonthlyAdmissionTrends  []MonthlyAdmissions     `json:"monthly_admission_trends"`
	GeneratedAt             time.Time               `json:"generated_at"`
}

// BillingSummary is the revenue roll-up.
type BillingSummary struct {
	TotalRevenue           float64            `json:"total_revenue"`
	AverageBillingPerVisit float64            `json:"average_billing_per_visit"`
	RevenueByDepartment    map[string]float64 `json:"revenue_by_department"`
	GeneratedAt            time.Time          `json:"generated_at"`
}
