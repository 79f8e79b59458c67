// Package etl cleans raw generated records into analysis-ready tables.
// Malformed rows are dropped and counted, never fatal.
package etl

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/insights/insights/internal/hospital"
	"github.com/insights/insights/internal/pipeline/generator"
)

// Patient is a cleaned patient row with derived flags.
type Patient struct {
	PatientID             string
	Age                   int
	Gender                string
	BMI                   float64
	SmokingStatus         string
	ChronicConditions     []string
	ChronicConditionCount int
	RegistrationDate      time.Time
	IsSmoker              bool
	HasChronicCondition   bool
}

// Visit is a cleaned visit row with derived time columns and the
// recomputed 30-day readmission flag for admitting visits.
type Visit struct {
	VisitID           string
	PatientID         string
	VisitDate         time.Time
	Department        string
	VisitType         string
	TriageLevel       string
	HourOfDay         int // 0-23
	DayOfWeek         int // 0-6, Monday=0
	IsWeekend         bool
	WaitTimeMinutes   float64
	IsAdmitted        bool
	Ward              string
	DiagnosisCode     string
	LengthOfStayDays  int
	Readmitted30d     bool
	SatisfactionScore int
	BillingAmount     float64
}

// Admission is a cleaned admission row.
type Admission struct {
	AdmissionID      string
	VisitID          string
	PatientID        string
	AdmitDate        time.Time
	DischargeDate    time.Time
	Ward             string
	DiagnosisCode    string
	LengthOfStayDays int
	DischargeStatus  string
	Readmitted30d    bool
	BillingAmount    float64
}

// Result holds the cleaned tables of one run.
type Result struct {
	Patients   []Patient
	Visits     []Visit
	Admissions []Admission
}

// Report counts what the run dropped and why.
type Report struct {
	PatientsIn      int
	PatientsKept    int
	VisitsIn        int
	VisitsKept      int
	AdmissionsIn    int
	AdmissionsKept  int
	DroppedByReason map[string]int
}

// DroppedTotal sums drops across every reason.
func (r *Report) DroppedTotal() int {
	total := 0
	for _, n := range r.DroppedByReason {
		total += n
	}
	return total
}

func (r *Report) drop(reason string) {
	if r.DroppedByReason == nil {
		r.DroppedByReason = make(map[string]int)
	}
	r.DroppedByReason[reason]++
}

// Processor runs the cleaning pipeline.
type Processor struct {
	log zerolog.Logger
}

func NewProcessor(log zerolog.Logger) *Processor {
	return &Processor{log: log}
}

// ReadmissionWindow is the inclusive discharge-to-next-admission gap that
// counts as a readmission.
const ReadmissionWindow = 30 * 24 * time.Hour

// Process cleans all three tables and recomputes the readmission flags.
// The generator's own readmission signal, if any, is ignored: the flag is
// derived from actual discharge-to-next-admission gaps.
func (p *Processor) Process(ds generator.Dataset) (Result, Report) {
	report := Report{
		PatientsIn:   len(ds.Patients),
		VisitsIn:     len(ds.Visits),
		AdmissionsIn: len(ds.Admissions),
	}

	patients := p.cleanPatients(ds.Patients, &report)
	visits := p.cleanVisits(ds.Visits, &report)
	admissions := p.cleanAdmissions(ds.Admissions, &report)

	flagReadmissions(admissions)

	// Propagate the admission-level flag onto its admitting visit.
	flagByVisit := make(map[string]bool, len(admissions))
	for _, a := range admissions {
		flagByVisit[a.VisitID] = a.Readmitted30d
	}
	for i := range visits {
		visits[i].Readmitted30d = flagByVisit[visits[i].VisitID]
	}

	report.PatientsKept = len(patients)
	report.VisitsKept = len(visits)
	report.AdmissionsKept = len(admissions)

	dropped := report.PatientsIn - report.PatientsKept +
		report.VisitsIn - report.VisitsKept +
		report.AdmissionsIn - report.AdmissionsKept
	p.log.Info().
		Int("patients", report.PatientsKept).
		Int("visits", report.VisitsKept).
		Int("admissions", report.AdmissionsKept).
		Int("dropped", dropped).
		Msg("etl complete")
	for reason, n := range report.DroppedByReason {
		p.log.Warn().Str("reason", reason).Int("count", n).Msg("rows dropped")
	}

	return Result{Patients: patients, Visits: visits, Admissions: admissions}, report
}

func (p *Processor) cleanPatients(raw []generator.Patient, report *Report) []Patient {
	// Median BMI over well-formed rows backfills missing values.
	known := make([]float64, 0, len(raw))
	for _, r := range raw {
		if r.BMI > 0 {
			known = append(known, r.BMI)
		}
	}
	medianBMI := median(known)

	out := make([]Patient, 0, len(raw))
	for _, r := range raw {
		if r.PatientID == "" {
			report.drop("patient: missing id")
			continue
		}
		if r.Age < 0 || r.Age > 120 {
			report.drop("patient: implausible age")
			continue
		}

		gender := strings.ToUpper(strings.TrimSpace(r.Gender))
		if gender != "M" && gender != "F" && gender != "OTHER" {
			report.drop("patient: unknown gender")
			continue
		}

		smoking := normalizeYesNo(r.SmokingStatus)
		if smoking == "" {
			report.drop("patient: unknown smoking status")
			continue
		}

		bmi := r.BMI
		if bmi <= 0 {
			bmi = medianBMI
		}

		conditions := make([]string, 0, len(r.ChronicConditions))
		for _, c := range r.ChronicConditions {
			c = strings.TrimSpace(c)
			if c == "" || strings.EqualFold(c, "None") {
				continue
			}
			conditions = append(conditions, c)
		}

		out = append(out, Patient{
			PatientID:             r.PatientID,
			Age:                   r.Age,
			Gender:                gender,
			BMI:                   bmi,
			SmokingStatus:         smoking,
			ChronicConditions:     conditions,
			ChronicConditionCount: len(conditions),
			RegistrationDate:      r.RegistrationDate,
			IsSmoker:              smoking == "Yes",
			HasChronicCondition:   len(conditions) > 0,
		})
	}
	return out
}

func (p *Processor) cleanVisits(raw []generator.Visit, report *Report) []Visit {
	out := make([]Visit, 0, len(raw))
	for _, r := range raw {
		if r.VisitID == "" || r.PatientID == "" {
			report.drop("visit: missing id")
			continue
		}
		if r.VisitDate.IsZero() {
			report.drop("visit: missing date")
			continue
		}

		department := titleWords(r.Department)
		if !hospital.ValidDepartment(department) {
			report.drop("visit: unknown department")
			continue
		}
		visitType := titleWords(r.VisitType)
		if visitType == "Opd" {
			visitType = "OPD"
		}
		if !hospital.ValidVisitType(visitType) {
			report.drop("visit: unknown visit type")
			continue
		}
		if !hospital.ValidTriage(r.TriageLevel) {
			report.drop("visit: unknown triage level")
			continue
		}

		ward := strings.TrimSpace(r.Ward)
		diagnosis := strings.TrimSpace(r.DiagnosisCode)
		if r.IsAdmitted {
			if !hospital.ValidWard(ward) {
				report.drop("visit: unknown ward")
				continue
			}
			if !hospital.ValidDiagnosis(diagnosis) {
				report.drop("visit: unknown diagnosis code")
				continue
			}
		} else {
			ward, diagnosis = "", ""
		}

		wait := r.WaitTimeMinutes
		if wait < 0 {
			wait = 0
		}

		satisfaction := r.SatisfactionScore
		if satisfaction < 1 {
			satisfaction = 1
		} else if satisfaction > 5 {
			satisfaction = 5
		}

		out = append(out, Visit{
			VisitID:           r.VisitID,
			PatientID:         r.PatientID,
			VisitDate:         r.VisitDate,
			Department:        department,
			VisitType:         visitType,
			TriageLevel:       r.TriageLevel,
			HourOfDay:         r.VisitDate.Hour(),
			DayOfWeek:         mondayIndexed(r.VisitDate.Weekday()),
			IsWeekend:         isWeekend(r.VisitDate.Weekday()),
			WaitTimeMinutes:   wait,
			IsAdmitted:        r.IsAdmitted,
			Ward:              ward,
			DiagnosisCode:     diagnosis,
			LengthOfStayDays:  r.LengthOfStayDays,
			SatisfactionScore: satisfaction,
			BillingAmount:     r.BillingAmount,
		})
	}
	return out
}

func (p *Processor) cleanAdmissions(raw []generator.Admission, report *Report) []Admission {
	out := make([]Admission, 0, len(raw))
	for _, r := range raw {
		if r.AdmissionID == "" || r.VisitID == "" || r.PatientID == "" {
			report.drop("admission: missing id")
			continue
		}
		if r.AdmitDate.IsZero() || r.DischargeDate.IsZero() {
			report.drop("admission: missing dates")
			continue
		}
		if r.DischargeDate.Before(r.AdmitDate) {
			report.drop("admission: discharge before admit")
			continue
		}
		out = append(out, Admission{
			AdmissionID:      r.AdmissionID,
			VisitID:          r.VisitID,
			PatientID:        r.PatientID,
			AdmitDate:        r.AdmitDate,
			DischargeDate:    r.DischargeDate,
			Ward:             r.Ward,
			DiagnosisCode:    r.DiagnosisCode,
			LengthOfStayDays: r.LengthOfStayDays,
			DischargeStatus:  titleWords(r.DischargeStatus),
			BillingAmount:    r.BillingAmount,
		})
	}
	return out
}

// flagReadmissions marks an admission when the same patient's next
// admission starts within ReadmissionWindow (inclusive) of its discharge.
func flagReadmissions(admissions []Admission) {
	byPatient := make(map[string][]int)
	for i, a := range admissions {
		byPatient[a.PatientID] = append(byPatient[a.PatientID], i)
	}

	for _, idx := range byPatient {
		sort.Slice(idx, func(a, b int) bool {
			return admissions[idx[a]].AdmitDate.Before(admissions[idx[b]].AdmitDate)
		})
		for k := 0; k < len(idx)-1; k++ {
			cur := &admissions[idx[k]]
			next := admissions[idx[k+1]]
			gap := next.AdmitDate.Sub(cur.DischargeDate)
			cur.Readmitted30d = gap <= ReadmissionWindow
		}
	}
}

// titleWords lowercases then capitalizes each space-separated word, so
// "EMERGENCY" and "emergency" both normalize to "Emergency".
func titleWords(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func normalizeYesNo(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true":
		return "Yes"
	case "no", "n", "false":
		return "No"
	}
	return ""
}

// mondayIndexed converts time.Weekday (Sunday=0) to Monday=0 numbering.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
