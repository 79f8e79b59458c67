// Package hospital holds the fixed vocabularies shared by the data
// generator, the ETL normalizer, the warehouse and the feature schema.
// Values outside these enumerations are rejected during ETL.
package hospital

import "sort"

var Departments = []string{
	"Cardiology", "Orthopedics", "Neurology",
	"Pediatrics", "Emergency", "General Medicine",
	"Surgery", "Oncology", "Psychiatry", "Dermatology",
}

var Wards = []string{
	"Ward A", "Ward B", "Ward C", "Ward D",
	"ICU", "CCU", "NICU", "Pediatric Ward",
}

var DiagnosisCodes = []string{
	"I10", "E11", "J44", "I25", "N18", "M15", "F32", "C34", "J18", "I50",
}

var TriageLevels = []string{
	"Level 1 - Resuscitation",
	"Level 2 - Emergency",
	"Level 3 - Urgent",
	"Level 4 - Semi-urgent",
	"Level 5 - Non-urgent",
}

var ChronicConditions = []string{
	"Diabetes", "Hypertension", "Asthma", "Heart Disease",
	"Kidney Disease", "COPD", "Arthritis",
}

var VisitTypes = []string{"Emergency", "OPD", "Scheduled"}

// SortedDepartments returns the department vocabulary in sorted order.
// Dimension keys and one-hot feature columns both rely on this ordering.
func SortedDepartments() []string {
	out := make([]string, len(Departments))
	copy(out, Departments)
	sort.Strings(out)
	return out
}

func ValidDepartment(name string) bool { return contains(Departments, name) }
func ValidWard(name string) bool       { return contains(Wards, name) }
func ValidDiagnosis(code string) bool  { return contains(DiagnosisCodes, code) }
func ValidTriage(level string) bool    { return contains(TriageLevels, level) }
func ValidVisitType(t string) bool     { return contains(VisitTypes, t) }

func contains(vocab []string, v string) bool {
	for _, s := range vocab {
		if s == v {
			return true
		}
	}
	return false
}
