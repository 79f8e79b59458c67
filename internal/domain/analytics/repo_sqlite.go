package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"
)

type sqliteRepo struct {
	db *sql.DB
}

// NewSQLiteRepo reads aggregates from a built warehouse.
func NewSQLiteRepo(db *sql.DB) Repo {
	return &sqliteRepo{db: db}
}

func (r *sqliteRepo) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM dim_patient),
			COUNT(*),
			COALESCE(SUM(is_admitted), 0),
			COALESCE(AVG(wait_time_minutes), 0),
			COALESCE(AVG(satisfaction_score), 0)
		FROM fact_visits`).
		Scan(&s.TotalPatients, &s.TotalVisits, &s.TotalAdmissions,
			&s.AvgWaitTimeMinutes, &s.AvgSatisfactionScore)
	if err != nil {
		return Summary{}, fmt.Errorf("query summary: %w", err)
	}
	if s.TotalVisits > 0 {
		s.AdmissionRatePercent = round2(float64(s.TotalAdmissions) / float64(s.TotalVisits) * 100)
	}
	s.AvgWaitTimeMinutes = round1(s.AvgWaitTimeMinutes)
	s.AvgSatisfactionScore = round2(s.AvgSatisfactionScore)
	s.GeneratedAt = time.Now().UTC()
	return s, nil
}

func (r *sqliteRepo) DepartmentStats(ctx context.Context) ([]DepartmentStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT dd.department_name, COUNT(*), AVG(f.wait_time_minutes),
		       SUM(f.is_admitted), AVG(f.satisfaction_score)
		FROM fact_visits f
		JOIN dim_department dd ON dd.department_id = f.department_id
		GROUP BY dd.department_name
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query department stats: %w", err)
	}
	defer rows.Close()

	var stats []DepartmentStat
	for rows.Next() {
		var d DepartmentStat
		if err := rows.Scan(&d.Department, &d.VisitCount, &d.AvgWaitTime, &d.AdmissionCount, &d.AvgSatisfaction); err != nil {
			return nil, err
		}
		d.AvgWaitTime = round1(d.AvgWaitTime)
		d.AvgSatisfaction = round2(d.AvgSatisfaction)
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

func (r *sqliteRepo) MonthlyTrends(ctx context.Context, limit int) ([]MonthlyTrend, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.year, d.month, d.month_name, COUNT(*),
		       AVG(f.wait_time_minutes), AVG(f.satisfaction_score)
		FROM fact_visits f
		JOIN dim_date d ON d.date_id = f.date_id
		GROUP BY d.year, d.month, d.month_name
		ORDER BY d.year DESC, d.month DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query monthly trends: %w", err)
	}
	defer rows.Close()

	var trends []MonthlyTrend
	for rows.Next() {
		var t MonthlyTrend
		if err := rows.Scan(&t.Year, &t.Month, &t.MonthName, &t.VisitCount, &t.AvgWaitTime, &t.AvgSatisfaction); err != nil {
			return nil, err
		}
		t.AvgWaitTime = round1(t.AvgWaitTime)
		t.AvgSatisfaction = round2(t.AvgSatisfaction)
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Chronological order for charting.
	for i, j := 0, len(trends)-1; i < j; i, j = i+1, j-1 {
		trends[i], trends[j] = trends[j], trends[i]
	}
	return trends, nil
}

func (r *sqliteRepo) HighRiskPatients(ctx context.Context, limit int) ([]HighRiskPatient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT dp.patient_id, dp.age, dp.chronic_condition_count,
		       COUNT(f.visit_id), SUM(f.is_admitted)
		FROM dim_patient dp
		JOIN fact_visits f ON f.patient_id = dp.patient_id
		WHERE dp.chronic_condition_count >= 2
		GROUP BY dp.patient_id, dp.age, dp.chronic_condition_count
		ORDER BY dp.chronic_condition_count DESC, SUM(f.is_admitted) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query high-risk patients: %w", err)
	}
	defer rows.Close()

	var patients []HighRiskPatient
	for rows.Next() {
		var p HighRiskPatient
		if err := rows.Scan(&p.PatientID, &p.Age, &p.ChronicConditionCount, &p.VisitCount, &p.AdmissionCount); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *sqliteRepo) PatientList(ctx context.Context, limit int) ([]PatientSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT dp.patient_id, dp.age, dp.gender, dp.bmi, dp.smoking_status,
		       dp.chronic_condition_count, dp.chronic_conditions,
		       COUNT(f.visit_id), COALESCE(SUM(f.is_admitted), 0),
		       COALESCE(AVG(CASE WHEN f.is_admitted = 1 THEN f.length_of_stay_days END), 0)
		FROM dim_patient dp
		LEFT JOIN fact_visits f ON f.patient_id = dp.patient_id
		GROUP BY dp.patient_id
		ORDER BY dp.patient_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query patient list: %w", err)
	}
	defer rows.Close()

	var patients []PatientSummary
	for rows.Next() {
		var p PatientSummary
		if err := rows.Scan(&p.PatientID, &p.Age, &p.Gender, &p.BMI, &p.SmokingStatus,
			&p.ChronicConditionCount, &p.ChronicConditions,
			&p.TotalVisits, &p.TotalAdmissions, &p.AvgLOS); err != nil {
			return nil, err
		}
		p.AvgLOS = round1(p.AvgLOS)
		p.HasDiabetes = strings.Contains(p.ChronicConditions, "Diabetes")
		p.HasHypertension = strings.Contains(p.ChronicConditions, "Hypertension")
		p.HasAsthma = strings.Contains(p.ChronicConditions, "Asthma")
		p.HasHeartDisease = strings.Contains(p.ChronicConditions, "Heart Disease")
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *sqliteRepo) OPDAnalytics(ctx context.Context) (OPDAnalytics, error) {
	out := OPDAnalytics{GeneratedAt: time.Now().UTC()}

	rows, err := r.db.QueryContext(ctx, `
		SELECT dd.department_name, AVG(f.wait_time_minutes), COUNT(*)
		FROM fact_visits f
		JOIN dim_department dd ON dd.department_id = f.department_id
		WHERE f.is_admitted = 0
		GROUP BY dd.department_name
		ORDER BY AVG(f.wait_time_minutes) DESC`)
	if err != nil {
		return OPDAnalytics{}, fmt.Errorf("query opd department waits: %w", err)
	}
	for rows.Next() {
		var w DepartmentWait
		if err := rows.Scan(&w.Department, &w.AvgWaitTime, &w.VisitCount); err != nil {
			rows.Close()
			return OPDAnalytics{}, err
		}
		w.AvgWaitTime = round1(w.AvgWaitTime)
		out.WaitTimesByDepartment = append(out.WaitTimesByDepartment, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return OPDAnalytics{}, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT hour_of_day, AVG(wait_time_minutes)
		FROM fact_visits
		WHERE is_admitted = 0
		GROUP BY hour_of_day
		ORDER BY hour_of_day`)
	if err != nil {
		return OPDAnalytics{}, fmt.Errorf("query opd hourly waits: %w", err)
	}
	for rows.Next() {
		var w HourlyWait
		if err := rows.Scan(&w.HourOfDay, &w.AvgWaitTime); err != nil {
			rows.Close()
			return OPDAnalytics{}, err
		}
		w.AvgWaitTime = round1(w.AvgWaitTime)
		out.WaitTimesByHour = append(out.WaitTimesByHour, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return OPDAnalytics{}, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT day_of_week, AVG(wait_time_minutes), COUNT(*)
		FROM fact_visits
		WHERE is_admitted = 0
		GROUP BY day_of_week
		ORDER BY day_of_week`)
	if err != nil {
		return OPDAnalytics{}, fmt.Errorf("query opd daily waits: %w", err)
	}
	for rows.Next() {
		var w DailyWait
		if err := rows.Scan(&w.DayOfWeek, &w.AvgWaitTime, &w.VisitCount); err != nil {
			rows.Close()
			return OPDAnalytics{}, err
		}
		w.AvgWaitTime = round1(w.AvgWaitTime)
		out.WaitTimesByDay = append(out.WaitTimesByDay, w)
	}
	rows.Close()
	return out, rows.Err()
}

func (r *sqliteRepo) InpatientAnalytics(ctx context.Context) (InpatientAnalytics, error) {
	out := InpatientAnalytics{GeneratedAt: time.Now().UTC()}

	rows, err := r.db.QueryContext(ctx, `
		SELECT dw.ward_name, AVG(f.length_of_stay_days), COUNT(*)
		FROM fact_visits f
		JOIN dim_ward dw ON dw.ward_id = f.ward_id
		WHERE f.is_admitted = 1
		GROUP BY dw.ward_name
		ORDER BY dw.ward_name`)
	if err != nil {
		return InpatientAnalytics{}, fmt.Errorf("query ward los: %w", err)
	}
	for rows.Next() {
		var w WardLOS
		if err := rows.Scan(&w.Ward, &w.AvgLOS, &w.AdmissionCount); err != nil {
			rows.Close()
			return InpatientAnalytics{}, err
		}
		w.AvgLOS = round1(w.AvgLOS)
		out.LOSByWard = append(out.LOSByWard, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return InpatientAnalytics{}, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT diagnosis_code, SUM(readmitted_30d), COUNT(*)
		FROM fact_visits
		WHERE is_admitted = 1 AND diagnosis_code IS NOT NULL
		GROUP BY diagnosis_code
		ORDER BY diagnosis_code`)
	if err != nil {
		return InpatientAnalytics{}, fmt.Errorf("query readmissions by diagnosis: %w", err)
	}
	for rows.Next() {
		var d DiagnosisReadmissions
		if err := rows.Scan(&d.DiagnosisCode, &d.Readmissions, &d.TotalAdmissions); err != nil {
			rows.Close()
			return InpatientAnalytics{}, err
		}
		if d.TotalAdmissions > 0 {
			d.ReadmissionRate = round2(float64(d.Readmissions) / float64(d.TotalAdmissions) * 100)
		}
		out.ReadmissionsByDiagnosis = append(out.ReadmissionsByDiagnosis, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return InpatientAnalytics{}, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT printf('%04d-%02d', d.year, d.month), COUNT(*)
		FROM fact_visits f
		JOIN dim_date d ON d.date_id = f.date_id
		WHERE f.is_admitted = 1
		GROUP BY d.year, d.month
		ORDER BY d.year, d.month`)
	if err != nil {
		return InpatientAnalytics{}, fmt.Errorf("query monthly admissions: %w", err)
	}
	for rows.Next() {
		var m MonthlyAdmissions
		if err := rows.Scan(&m.Month, &m.AdmissionCount); err != nil {
			rows.Close()
			return InpatientAnalytics{}, err
		}
		out.MonthlyAdmissionTrends = append(out.MonthlyAdmissionTrends, m)
	}
	rows.Close()
	return out, rows.Err()
}

func (r *sqliteRepo) BillingSummary(ctx context.Context) (BillingSummary, error) {
	out := BillingSummary{
		RevenueByDepartment: map[string]float64{},
		GeneratedAt:         time.Now().UTC(),
	}

	var visits int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(billing_amount), 0), COUNT(*) FROM fact_visits`).
		Scan(&out.TotalRevenue, &visits)
	if err != nil {
		return BillingSummary{}, fmt.Errorf("query billing totals: %w", err)
	}
	out.TotalRevenue = round2(out.TotalRevenue)
	if visits > 0 {
		out.AverageBillingPerVisit = round2(out.TotalRevenue / float64(visits))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT dd.department_name, SUM(f.billing_amount)
		FROM fact_visits f
		JOIN dim_department dd ON dd.department_id = f.department_id
		GROUP BY dd.department_name`)
	if err != nil {
		return BillingSummary{}, fmt.Errorf("query department revenue: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dept string
		var revenue float64
		if err := rows.Scan(&dept, &revenue); err != nil {
			return BillingSummary{}, err
		}
		out.RevenueByDepartment[dept] = round2(revenue)
	}
	return out, rows.Err()
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
