package analytics

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNotInitialized means the warehouse has not been built yet.
var ErrNotInitialized = errors.New("warehouse not built, run the pipeline")

const (
	defaultTrendMonths  = 12
	defaultHighRiskRows = 10
	defaultPatientRows  = 1000
	maxListRows         = 10000
)

// Service validates inputs and delegates to the warehouse repo. A nil repo
// (no warehouse yet) makes every call return ErrNotInitialized.
type Service struct {
	repo Repo
	log  zerolog.Logger
}

func NewService(repo Repo, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Ready reports whether the warehouse is queryable, for /health.
func (s *Service) Ready() bool {
	return s.repo != nil
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if s.repo == nil {
		return Summary{}, ErrNotInitialized
	}
	return s.repo.Summary(ctx)
}

func (s *Service) DepartmentStats(ctx context.Context) ([]DepartmentStat, error) {
	if s.repo == nil {
		return nil, ErrNotInitialized
	}
	return s.repo.DepartmentStats(ctx)
}

func (s *Service) MonthlyTrends(ctx context.Context, limit int) ([]MonthlyTrend, error) {
	if s.repo == nil {
		return nil, ErrNotInitialized
	}
	return s.repo.MonthlyTrends(ctx, clampLimit(limit, defaultTrendMonths))
}

func (s *Service) HighRiskPatients(ctx context.Context, limit int) ([]HighRiskPatient, error) {
	if s.repo == nil {
		return nil, ErrNotInitialized
	}
	return s.repo.HighRiskPatients(ctx, clampLimit(limit, defaultHighRiskRows))
}

func (s *Service) PatientList(ctx context.Context, limit int) ([]PatientSummary, error) {
	if s.repo == nil {
		return nil, ErrNotInitialized
	}
	return s.repo.PatientList(ctx, clampLimit(limit, defaultPatientRows))
}

func (s *Service) OPDAnalytics(ctx context.Context) (OPDAnalytics, error) {
	if s.repo == nil {
		return OPDAnalytics{}, ErrNotInitialized
	}
	return s.repo.OPDAnalytics(ctx)
}

func (s *Service) InpatientAnalytics(ctx context.Context) (InpatientAnalytics, error) {
	if s.repo == nil {
		return InpatientAnalytics{}, ErrNotInitialized
	}
	return s.repo.InpatientAnalytics(ctx)
}

func (s *Service) BillingSummary(ctx context.Context) (BillingSummary, error) {
	if s.repo == nil {
		return BillingSummary{}, ErrNotInitialized
	}
	return s.repo.BillingSummary(ctx)
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListRows {
		return maxListRows
	}
	return limit
}
