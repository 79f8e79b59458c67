package analytics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/summary", h.GetSummary)
	api.GET("/department-stats", h.GetDepartmentStats)
	api.GET("/monthly-trends", h.GetMonthlyTrends)
	api.GET("/patients/high-risk", h.GetHighRiskPatients)
	api.GET("/patients/list", h.GetPatientList)
	api.GET("/opd-analytics", h.GetOPDAnalytics)
	api.GET("/inpatient-analytics", h.GetInpatientAnalytics)
	api.GET("/billing-summary", h.GetBillingSummary)
}

func (h *Handler) GetSummary(c echo.Context) error {
	summary, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) GetDepartmentStats(c echo.Context) error {
	stats, err := h.svc.DepartmentStats(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"departments":       stats,
		"total_departments": len(stats),
		"generated_at":      time.Now().UTC(),
	})
}

func (h *Handler) GetMonthlyTrends(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}
	trends, err := h.svc.MonthlyTrends(c.Request().Context(), limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"trends":       trends,
		"generated_at": time.Now().UTC(),
	})
}

func (h *Handler) GetHighRiskPatients(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.HighRiskPatients(c.Request().Context(), limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"high_risk_patients": patients,
		"count":              len(patients),
		"generated_at":       time.Now().UTC(),
	})
}

func (h *Handler) GetPatientList(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.PatientList(c.Request().Context(), limit)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"patients":     patients,
		"total_count":  len(patients),
		"generated_at": time.Now().UTC(),
	})
}

func (h *Handler) GetOPDAnalytics(c echo.Context) error {
	out, err := h.svc.OPDAnalytics(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetInpatientAnalytics(c echo.Context) error {
	out, err := h.svc.InpatientAnalytics(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetBillingSummary(c echo.Context) error {
	out, err := h.svc.BillingSummary(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func mapError(err error) error {
	if errors.Is(err, ErrNotInitialized) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrNotInitialized.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func limitParam(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "field \"limit\": must be a non-negative integer")
	}
	return limit, nil
}
