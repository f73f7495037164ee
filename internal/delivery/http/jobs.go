package http

import (
	"errors"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupJobs(base *echo.Group) {
	jobs := base.Group("/jobs")
	{
		jobs.GET("", h.ListJobs)
		jobs.POST("/:name/run", h.RunJob)
	}
}

func (h *HttpAPIHandler) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Scheduled jobs", h.service.SchedulerService.ListJobs(c.Request().Context())))
}

func (h *HttpAPIHandler) RunJob(c echo.Context) error {
	response := dto.NewBaseResponse(http.StatusAccepted, "Start running job", nil)
	if err := h.service.SchedulerService.RunJob(c.Request().Context(), c.Param("name")); err != nil {
		response.Code = http.StatusInternalServerError
		if errors.Is(err, service.ErrJobNotFound) {
			response.Code = http.StatusNotFound
		}
		response.Message = err.Error()
	}
	return c.JSON(response.Code, response)
}
