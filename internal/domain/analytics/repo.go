package analytics

import "context"

// Repo reads aggregate analytics out of the warehouse.
type Repo interface {
	Summary(ctx context.Context) (Summary, error)
	DepartmentStats(ctx context.Context) ([]DepartmentStat, error)
	MonthlyTrends(ctx context.Context, limit int) ([]MonthlyTrend, error)
	HighRiskPatients(ctx context.Context, limit int) ([]HighRiskPatient, error)
	PatientList(ctx context.Context, limit int) ([]PatientSummary, error)
	OPDAnalytics(ctx context.Context) (OPDAnalytics, error)
	InpatientAnalytics(ctx context.Context) (InpatientAnalytics, error)
	BillingSummary(ctx context.Context) (BillingSummary, error)
}
