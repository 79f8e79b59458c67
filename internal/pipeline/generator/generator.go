// Package generator produces the synthetic hospital dataset the pipeline
// runs on. Output is deterministic for a given seed.
package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/insights/insights/internal/hospital"
)

// Patient is a raw generated patient record.
type Patient struct {
	PatientID             string
	Age                   int
	Gender                string
	BMI                   float64
	SmokingStatus         string
	ChronicConditions     []string
	ChronicConditionCount int
	RegistrationDate      time.Time
}

// Visit is a raw generated hospital visit record.
type Visit struct {
	VisitID           string
	PatientID         string
	VisitDate         time.Time
	Department        string
	VisitType         string
	TriageLevel       string
	WaitTimeMinutes   float64
	IsAdmitted        bool
	Ward              string // empty unless admitted
	DiagnosisCode     string // empty unless admitted
	LengthOfStayDays  int
	SatisfactionScore int
	BillingAmount     float64
}

// Admission is a raw admission record derived from an admitted visit.
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
	BillingAmount    float64
}

// Dataset bundles one generated cohort.
type Dataset struct {
	Patients   []Patient
	Visits     []Visit
	Admissions []Admission
}

// Generator produces seeded synthetic data.
type Generator struct {
	rng   *rand.Rand
	faker *gofakeit.Faker
	now   time.Time
}

// New returns a Generator seeded for reproducible output. The reference
// clock is fixed at construction so a run's date ranges are stable.
func New(seed int64) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		faker: gofakeit.New(uint64(seed)),
		now:   time.Now().Truncate(time.Hour),
	}
}

// Generate produces nPatients patients, nVisits visits skewed toward a
// subset of frequent visitors, and one admission per admitted visit.
func (g *Generator) Generate(nPatients, nVisits int) Dataset {
	patients := g.patients(nPatients)
	visits := g.visits(patients, nVisits)
	admissions := g.admissions(visits)
	return Dataset{Patients: patients, Visits: visits, Admissions: admissions}
}

func (g *Generator) patients(n int) []Patient {
	patients := make([]Patient, 0, n)
	for i := 1; i <= n; i++ {
		age := g.rng.Intn(94) + 1

		// Age shifts the BMI distribution
		var bmi float64
		if age < 18 {
			bmi = g.rng.NormFloat64()*3 + 18
		} else {
			bmi = g.rng.NormFloat64()*5 + 26
		}
		bmi = clamp(bmi, 15, 45)

		smoking := "No"
		if age >= 18 && g.rng.Float64() < 0.25 {
			smoking = "Yes"
		}

		chronicProb := float64(age) / 100
		if chronicProb > 0.7 {
			chronicProb = 0.7
		}
		conditions := g.sampleConditions(g.binomial(3, chronicProb))

		patients = append(patients, Patient{
			PatientID:             fmt.Sprintf("P%05d", i),
			Age:                   age,
			Gender:                pick(g.rng, []string{"M", "F", "Other"}),
			BMI:                   round1(bmi),
			SmokingStatus:         smoking,
			ChronicConditions:     conditions,
			ChronicConditionCount: len(conditions),
			RegistrationDate:      g.faker.DateRange(g.now.AddDate(-5, 0, 0), g.now),
		})
	}
	return patients
}

func (g *Generator) visits(patients []Patient, n int) []Visit {
	visits := make([]Visit, 0, n)
	zipf := rand.NewZipf(g.rng, 1.5, 1, uint64(len(patients)-1))

	for i := 1; i <= n; i++ {
		p := patients[int(zipf.Uint64())]

		visitDate := g.faker.DateRange(g.now.AddDate(-2, 0, 0), g.now)
		department := pick(g.rng, hospital.Departments)
		visitType := "Emergency"
		if department != "Emergency" {
			visitType = pick(g.rng, []string{"OPD", "Scheduled"})
		}

		// Emergency visits triage 1-3, everything else 3-5
		var triage string
		if visitType == "Emergency" {
			triage = pick(g.rng, hospital.TriageLevels[:3])
		} else {
			triage = pick(g.rng, hospital.TriageLevels[2:])
		}

		baseWait := 45.0
		switch {
		case visitType == "Emergency" && strings.HasPrefix(triage, "Level 1"):
			baseWait = 15
		case visitType == "Emergency":
			baseWait = 25
		case department == "Emergency":
			baseWait = 20
		}
		hour := visitDate.Hour()
		if hour >= 9 && hour <= 16 {
			baseWait *= 1.3
		}
		waitTime := g.rng.NormFloat64()*baseWait*0.4 + baseWait
		if waitTime < 5 {
			waitTime = 5
		}

		admissionProb := 0.15 + float64(p.Age)/200 + float64(p.ChronicConditionCount)*0.05
		if visitType == "Emergency" {
			admissionProb *= 1.5
		}
		if admissionProb > 0.8 {
			admissionProb = 0.8
		}
		isAdmitted := g.rng.Float64() < admissionProb

		var ward, diagnosis string
		los := 0
		if isAdmitted {
			ward = g.assignWard(p, department, visitType, triage)
			diagnosis = pick(g.rng, hospital.DiagnosisCodes)
			los = int(g.rng.ExpFloat64() * 4)
			if los < 1 {
				los = 1
			}
		}

		baseBilling := 1500.0
		if visitType == "OPD" {
			baseBilling = 500
		}
		billing := baseBilling + float64(los)*1200 + g.rng.NormFloat64()*200
		if billing < 0 {
			billing = 0
		}

		visits = append(visits, Visit{
			VisitID:           fmt.Sprintf("V%06d", i),
			PatientID:         p.PatientID,
			VisitDate:         visitDate,
			Department:        department,
			VisitType:         visitType,
			TriageLevel:       triage,
			WaitTimeMinutes:   round1(waitTime),
			IsAdmitted:        isAdmitted,
			Ward:              ward,
			DiagnosisCode:     diagnosis,
			LengthOfStayDays:  los,
			SatisfactionScore: g.rng.Intn(5) + 1,
			BillingAmount:     round2(billing),
		})
	}
	return visits
}

func (g *Generator) admissions(visits []Visit) []Admission {
	admissions := make([]Admission, 0)
	for _, v := range visits {
		if !v.IsAdmitted {
			continue
		}
		admissions = append(admissions, Admission{
			AdmissionID:      fmt.Sprintf("A%05d", len(admissions)+1),
			VisitID:          v.VisitID,
			PatientID:        v.PatientID,
			AdmitDate:        v.VisitDate,
			DischargeDate:    v.VisitDate.AddDate(0, 0, v.LengthOfStayDays),
			Ward:             v.Ward,
			DiagnosisCode:    v.DiagnosisCode,
			LengthOfStayDays: v.LengthOfStayDays,
			DischargeStatus:  pick(g.rng, []string{"Improved", "Recovered", "Stable"}),
			BillingAmount:    v.BillingAmount,
		})
	}
	return admissions
}

// assignWard applies the admission routing rules: children to the pediatric
// ward, cardiology often to CCU, level-1 emergencies to ICU, the rest to
// the general wards.
func (g *Generator) assignWard(p Patient, department, visitType, triage string) string {
	switch {
	case p.Age < 18:
		return "Pediatric Ward"
	case department == "Cardiology":
		if g.rng.Float64() < 0.3 {
			return "CCU"
		}
		return pick(g.rng, []string{"Ward A", "Ward B"})
	case visitType == "Emergency" && strings.HasPrefix(triage, "Level 1"):
		return "ICU"
	default:
		return pick(g.rng, hospital.Wards[:4])
	}
}

func (g *Generator) sampleConditions(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(hospital.ChronicConditions) {
		n = len(hospital.ChronicConditions)
	}
	idx := g.rng.Perm(len(hospital.ChronicConditions))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, hospital.ChronicConditions[i])
	}
	return out
}

func (g *Generator) binomial(n int, p float64) int {
	count := 0
	for i := 0; i < n; i++ {
		if g.rng.Float64() < p {
			count++
		}
	}
	return count
}

func pick(rng *rand.Rand, options []string) string {
	return options[rng.Intn(len(options))]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 { return float64(int(v*10+0.5)) / 10 }
func round2(v float64) float64 { return float64(int(v*100+0.5)) / 100 }
