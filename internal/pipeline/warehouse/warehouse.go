// Package warehouse builds and reads the star-schema sqlite warehouse.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/insights/insights/internal/hospital"
	"github.com/insights/insights/internal/pipeline/etl"
)

const dateLayout = "2006-01-02"

var schema = []string{
	`CREATE TABLE dim_patient (
		patient_id TEXT PRIMARY KEY,
		age INTEGER NOT NULL,
		gender TEXT NOT NULL,
		bmi REAL NOT NULL,
		smoking_status TEXT NOT NULL,
		chronic_conditions TEXT NOT NULL,
		chronic_condition_count INTEGER NOT NULL,
		registration_date TEXT NOT NULL,
		is_smoker INTEGER NOT NULL,
		has_chronic_condition INTEGER NOT NULL
	)`,
	`CREATE TABLE dim_department (
		department_id INTEGER PRIMARY KEY,
		department_name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE dim_ward (
		ward_id INTEGER PRIMARY KEY,
		ward_name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE dim_date (
		date_id INTEGER PRIMARY KEY,
		full_date TEXT NOT NULL UNIQUE,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		day INTEGER NOT NULL,
		quarter INTEGER NOT NULL,
		day_of_week INTEGER NOT NULL,
		day_name TEXT NOT NULL,
		month_name TEXT NOT NULL,
		is_weekend INTEGER NOT NULL
	)`,
	`CREATE TABLE fact_visits (
		visit_id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL REFERENCES dim_patient(patient_id),
		date_id INTEGER NOT NULL REFERENCES dim_date(date_id),
		department_id INTEGER NOT NULL REFERENCES dim_department(department_id),
		ward_id INTEGER REFERENCES dim_ward(ward_id),
		visit_type TEXT NOT NULL,
		triage_level TEXT NOT NULL,
		hour_of_day INTEGER NOT NULL,
		day_of_week INTEGER NOT NULL,
		wait_time_minutes REAL NOT NULL,
		is_admitted INTEGER NOT NULL,
		length_of_stay_days INTEGER NOT NULL,
		diagnosis_code TEXT,
		readmitted_30d INTEGER NOT NULL,
		satisfaction_score INTEGER NOT NULL,
		billing_amount REAL NOT NULL
	)`,
	`CREATE INDEX idx_fact_patient ON fact_visits(patient_id)`,
	`CREATE INDEX idx_fact_date ON fact_visits(date_id)`,
	`CREATE INDEX idx_fact_dept ON fact_visits(department_id)`,
}

var tables = []string{"fact_visits", "dim_date", "dim_ward", "dim_department", "dim_patient"}

// Builder rebuilds the warehouse from cleaned tables.
type Builder struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewBuilder(db *sql.DB, log zerolog.Logger) *Builder {
	return &Builder{db: db, log: log}
}

// Build drops and recreates the whole schema inside one transaction, loads
// dimensions first, then facts. Every fact foreign key must resolve; an
// unresolvable department or date aborts the build. Building twice from the
// same input yields identical row counts.
func (b *Builder) Build(ctx context.Context, result etl.Result) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin warehouse build: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if err := b.loadPatients(ctx, tx, result.Patients); err != nil {
		return err
	}
	deptIDs, err := b.loadDepartments(ctx, tx)
	if err != nil {
		return err
	}
	wardIDs, err := b.loadWards(ctx, tx)
	if err != nil {
		return err
	}
	dateIDs, err := b.loadDates(ctx, tx, result.Visits)
	if err != nil {
		return err
	}
	if err := b.loadFacts(ctx, tx, result.Visits, deptIDs, wardIDs, dateIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit warehouse build: %w", err)
	}

	b.log.Info().
		Int("patients", len(result.Patients)).
		Int("visits", len(result.Visits)).
		Int("dates", len(dateIDs)).
		Msg("warehouse rebuilt")
	return nil
}

func (b *Builder) loadPatients(ctx context.Context, tx *sql.Tx, patients []etl.Patient) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dim_patient
		(patient_id, age, gender, bmi, smoking_status, chronic_conditions,
		 chronic_condition_count, registration_date, is_smoker, has_chronic_condition)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare dim_patient: %w", err)
	}
	defer stmt.Close()

	for _, p := range patients {
		_, err := stmt.ExecContext(ctx,
			p.PatientID, p.Age, p.Gender, p.BMI, p.SmokingStatus,
			strings.Join(p.ChronicConditions, ", "), p.ChronicConditionCount,
			p.RegistrationDate.Format(dateLayout),
			boolToInt(p.IsSmoker), boolToInt(p.HasChronicCondition))
		if err != nil {
			return fmt.Errorf("insert patient %s: %w", p.PatientID, err)
		}
	}
	return nil
}

func (b *Builder) loadDepartments(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	ids := make(map[string]int64, len(hospital.Departments))
	for i, name := range hospital.SortedDepartments() {
		id := int64(i + 1)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO dim_department (department_id, department_name) VALUES (?, ?)", id, name); err != nil {
			return nil, fmt.Errorf("insert department %s: %w", name, err)
		}
		ids[name] = id
	}
	return ids, nil
}

func (b *Builder) loadWards(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	ids := make(map[string]int64, len(hospital.Wards))
	for i, name := range hospital.Wards {
		id := int64(i + 1)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO dim_ward (ward_id, ward_name) VALUES (?, ?)", id, name); err != nil {
			return nil, fmt.Errorf("insert ward %s: %w", name, err)
		}
		ids[name] = id
	}
	return ids, nil
}

// loadDates fills dim_date with one row per calendar day spanning the visit
// range, so trend queries can join a contiguous calendar.
func (b *Builder) loadDates(ctx context.Context, tx *sql.Tx, visits []etl.Visit) (map[string]int64, error) {
	ids := make(map[string]int64)
	if len(visits) == 0 {
		return ids, nil
	}

	min, max := visits[0].VisitDate, visits[0].VisitDate
	for _, v := range visits[1:] {
		if v.VisitDate.Before(min) {
			min = v.VisitDate
		}
		if v.VisitDate.After(max) {
			max = v.VisitDate
		}
	}
	min = truncateDay(min)
	max = truncateDay(max)

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dim_date
		(date_id, full_date, year, month, day, quarter, day_of_week, day_name, month_name, is_weekend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare dim_date: %w", err)
	}
	defer stmt.Close()

	id := int64(1)
	for d := min; !d.After(max); d = d.AddDate(0, 0, 1) {
		dow := (int(d.Weekday()) + 6) % 7
		_, err := stmt.ExecContext(ctx,
			id, d.Format(dateLayout), d.Year(), int(d.Month()), d.Day(),
			(int(d.Month())-1)/3+1, dow, d.Weekday().String(), d.Month().String(),
			boolToInt(dow >= 5))
		if err != nil {
			return nil, fmt.Errorf("insert date %s: %w", d.Format(dateLayout), err)
		}
		ids[d.Format(dateLayout)] = id
		id++
	}
	return ids, nil
}

func (b *Builder) loadFacts(ctx context.Context, tx *sql.Tx, visits []etl.Visit,
	deptIDs, wardIDs, dateIDs map[string]int64) error {

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fact_visits
		(visit_id, patient_id, date_id, department_id, ward_id, visit_type,
		 triage_level, hour_of_day, day_of_week, wait_time_minutes, is_admitted,
		 length_of_stay_days, diagnosis_code, readmitted_30d, satisfaction_score,
		 billing_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fact_visits: %w", err)
	}
	defer stmt.Close()

	for _, v := range visits {
		deptID, ok := deptIDs[v.Department]
		if !ok {
			return fmt.Errorf("visit %s: department %q has no dimension row", v.VisitID, v.Department)
		}
		dateID, ok := dateIDs[truncateDay(v.VisitDate).Format(dateLayout)]
		if !ok {
			return fmt.Errorf("visit %s: date %s has no dimension row", v.VisitID, v.VisitDate.Format(dateLayout))
		}

		var wardID any
		if v.Ward != "" {
			id, ok := wardIDs[v.Ward]
			if !ok {
				return fmt.Errorf("visit %s: ward %q has no dimension row", v.VisitID, v.Ward)
			}
			wardID = id
		}
		var diagnosis any
		if v.DiagnosisCode != "" {
			diagnosis = v.DiagnosisCode
		}

		_, err := stmt.ExecContext(ctx,
			v.VisitID, v.PatientID, dateID, deptID, wardID, v.VisitType,
			v.TriageLevel, v.HourOfDay, v.DayOfWeek, v.WaitTimeMinutes,
			boolToInt(v.IsAdmitted), v.LengthOfStayDays, diagnosis,
			boolToInt(v.Readmitted30d), v.SatisfactionScore, v.BillingAmount)
		if err != nil {
			return fmt.Errorf("insert visit %s: %w", v.VisitID, err)
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
