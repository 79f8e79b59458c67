package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/insights/insights/internal/ml/feature"
)

// ErrPatientNotFound is returned when a profile lookup misses.
var ErrPatientNotFound = errors.New("patient not found")

// Store reads model inputs back out of the warehouse. Both the trainer and
// the prediction service go through it, so serving features are computed by
// the same SQL that produced the training set.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const profileQuery = `
	SELECT
		p.patient_id, p.age, p.bmi, p.chronic_condition_count, p.is_smoker,
		COUNT(f.visit_id),
		COALESCE(SUM(f.is_admitted), 0),
		COALESCE(AVG(f.wait_time_minutes), 0),
		MIN(d.full_date),
		MAX(d.full_date)
	FROM dim_patient p
	LEFT JOIN fact_visits f ON f.patient_id = p.patient_id
	LEFT JOIN dim_date d ON d.date_id = f.date_id`

// PatientProfile returns one patient's live feature profile.
func (s *Store) PatientProfile(ctx context.Context, patientID string) (feature.PatientProfile, error) {
	row := s.db.QueryRowContext(ctx, profileQuery+`
		WHERE p.patient_id = ?
		GROUP BY p.patient_id`, patientID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return feature.PatientProfile{}, ErrPatientNotFound
	}
	return p, err
}

// PatientProfiles returns every patient's profile, for training.
func (s *Store) PatientProfiles(ctx context.Context) ([]feature.PatientProfile, error) {
	rows, err := s.db.QueryContext(ctx, profileQuery+`
		GROUP BY p.patient_id
		ORDER BY p.patient_id`)
	if err != nil {
		return nil, fmt.Errorf("query patient profiles: %w", err)
	}
	defer rows.Close()

	var profiles []feature.PatientProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(r rowScanner) (feature.PatientProfile, error) {
	var (
		p                     feature.PatientProfile
		smoker                int
		firstVisit, lastVisit sql.NullString
	)
	err := r.Scan(&p.PatientID, &p.Age, &p.BMI, &p.ChronicConditionCount, &smoker,
		&p.TotalVisits, &p.TotalAdmissions, &p.AvgWaitTime, &firstVisit, &lastVisit)
	if err != nil {
		return feature.PatientProfile{}, err
	}
	p.IsSmoker = smoker == 1
	if p.FirstVisit, err = parseNullDate(firstVisit); err != nil {
		return feature.PatientProfile{}, err
	}
	if p.LastVisit, err = parseNullDate(lastVisit); err != nil {
		return feature.PatientProfile{}, err
	}
	return p, nil
}

func parseNullDate(s sql.NullString) (time.Time, error) {
	if !s.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse warehouse date %q: %w", s.String, err)
	}
	return t, nil
}

// RegressionSample is one visit's wait-time observation.
type RegressionSample struct {
	Hour        int
	DayOfWeek   int
	IsEmergency bool
	Department  string
	WaitTime    float64
}

// RegressionSamples returns the wait-time training set.
func (s *Store) RegressionSamples(ctx context.Context) ([]RegressionSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.hour_of_day, f.day_of_week, f.visit_type = 'Emergency',
		       dd.department_name, f.wait_time_minutes
		FROM fact_visits f
		JOIN dim_department dd ON dd.department_id = f.department_id
		ORDER BY f.visit_id`)
	if err != nil {
		return nil, fmt.Errorf("query regression samples: %w", err)
	}
	defer rows.Close()

	var samples []RegressionSample
	for rows.Next() {
		var r RegressionSample
		var emergency int
		if err := rows.Scan(&r.Hour, &r.DayOfWeek, &emergency, &r.Department, &r.WaitTime); err != nil {
			return nil, err
		}
		r.IsEmergency = emergency == 1
		samples = append(samples, r)
	}
	return samples, rows.Err()
}

// WaitStats is a department's historical wait-time summary.
type WaitStats struct {
	Department string  `json:"department"`
	AvgWait    float64 `json:"avg_wait_minutes"`
	MinWait    float64 `json:"min_wait_minutes"`
	MaxWait    float64 `json:"max_wait_minutes"`
	Visits     int     `json:"visit_count"`
}

// DepartmentWaitStats summarizes historical waits for one department.
// A department with no recorded visits returns zeroed stats, not an error.
func (s *Store) DepartmentWaitStats(ctx context.Context, department string) (WaitStats, error) {
	stats := WaitStats{Department: department}
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(f.wait_time_minutes), 0),
		       COALESCE(MIN(f.wait_time_minutes), 0),
		       COALESCE(MAX(f.wait_time_minutes), 0),
		       COUNT(*)
		FROM fact_visits f
		JOIN dim_department dd ON dd.department_id = f.department_id
		WHERE dd.department_name = ?`, department).
		Scan(&stats.AvgWait, &stats.MinWait, &stats.MaxWait, &stats.Visits)
	if err != nil {
		return WaitStats{}, fmt.Errorf("query wait stats for %s: %w", department, err)
	}
	return stats, nil
}
