package http

import (
	"errors"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/repository"
	"golang-backtest/internal/service"
	"golang-backtest/internal/signal"
	"golang-backtest/pkg/logger"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupBacktest(base *echo.Group) {
	backtestGroup := base.Group("/backtest")
	backtestGroup.POST("", h.runBacktest)
	backtestGroup.GET("/strategies", h.listStrategies)
	backtestGroup.GET("/runs", h.listRuns)
	backtestGroup.GET("/runs/:id", h.getRun)
}

// runBacktest answers 200 for a successful run and 422 with the failed
// result otherwise.
func (h *HttpAPIHandler) runBacktest(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.BacktestRequest)
	if err := h.bind(c, req); err != nil {
		return badRequest(c, err)
	}

	result := h.service.BacktestService.RunBacktest(ctx, *req)
	if !result.Success {
		return c.JSON(http.StatusUnprocessableEntity, dto.NewBaseResponse(http.StatusUnprocessableEntity, result.Error, result))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Backtest completed", result))
}

func (h *HttpAPIHandler) listStrategies(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Recommended strategies", signal.RecommendedIDs()))
}

func (h *HttpAPIHandler) listRuns(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.ListBacktestRunsRequest)
	if err := h.bind(c, req); err != nil {
		return badRequest(c, err)
	}

	runs, err := h.service.BacktestService.ListRuns(ctx, *req)
	if err != nil {
		return h.runError(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Backtest runs", runs))
}

func (h *HttpAPIHandler) getRun(c echo.Context) error {
	ctx := c.Request().Context()

	run, err := h.service.BacktestService.GetRun(ctx, c.Param("id"))
	if err != nil {
		return h.runError(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Backtest run", run))
}

func (h *HttpAPIHandler) runError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrRunNotFound):
		return c.JSON(http.StatusNotFound, dto.NewBaseResponse(http.StatusNotFound, err.Error(), nil))
	case errors.Is(err, service.ErrPersistenceDisabled):
		return c.JSON(http.StatusNotImplemented, dto.NewBaseResponse(http.StatusNotImplemented, err.Error(), nil))
	}
	h.log.ErrorContext(c.Request().Context(), "Failed to read backtest runs", logger.ErrorField(err))
	return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, "failed to read backtest runs", nil))
}
