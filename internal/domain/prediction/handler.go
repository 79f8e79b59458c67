package prediction

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/insights/insights/internal/pipeline/warehouse"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/risk/:patient_id", h.GetPatientRisk)
	api.POST("/predict-risk", h.PredictRisk)
	api.GET("/wait-time-forecast", h.GetWaitTimeForecast)
	api.GET("/metrics", h.GetModelMetrics)
}

func (h *Handler) GetPatientRisk(c echo.Context) error {
	patientID := c.Param("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	result, err := h.svc.PredictRisk(c.Request().Context(), patientID)
	if err != nil {
		return mapError(err, "patient "+patientID+" not found")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) PredictRisk(c echo.Context) error {
	var req CustomRiskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := h.svc.PredictRiskCustom(req)
	if err != nil {
		return mapError(err, "")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetWaitTimeForecast(c echo.Context) error {
	department := c.QueryParam("department")
	if department == "" {
		department = "Emergency"
	}
	hour, err := queryInt(c, "hour", 10)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "field \"hour\": must be an integer")
	}
	dayOfWeek, err := queryInt(c, "day_of_week", 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "field \"day_of_week\": must be an integer")
	}
	isEmergency := department == "Emergency" || c.QueryParam("emergency") == "true"

	forecast, err := h.svc.ForecastWaitTime(c.Request().Context(), department, hour, dayOfWeek, isEmergency)
	if err != nil {
		return mapError(err, "")
	}
	return c.JSON(http.StatusOK, forecast)
}

func (h *Handler) GetModelMetrics(c echo.Context) error {
	metrics, err := h.svc.ModelMetrics()
	if err != nil {
		return mapError(err, "")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"metrics": metrics,
	})
}

func mapError(err error, notFoundMsg string) error {
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrModelsNotReady):
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrModelsNotReady.Error())
	case errors.Is(err, warehouse.ErrPatientNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "patient not found"
		}
		return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
	case errors.As(err, &vErr):
		return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
