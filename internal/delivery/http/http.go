package http

import (
	"context"
	"errors"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/service"
	"golang-backtest/pkg/logger"
	"golang-backtest/pkg/middleware"
	"net/http"
	"time"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type HttpAPIHandler struct {
	echo      *echo.Echo
	validator *goValidator.Validate
	service   *service.Service
	log       *logger.Logger
	rateLimit middleware.RateLimitConfig
	upgrader  websocket.Upgrader
}

func NewHttpAPIHandler(
	ctx context.Context,
	echo *echo.Echo,
	validator *goValidator.Validate,
	service *service.Service,
	log *logger.Logger,
	rateLimit middleware.RateLimitConfig,
) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:      echo,
		validator: validator,
		service:   service,
		log:       log,
		rateLimit: rateLimit,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	base := h.echo.Group("/api", middleware.NewRateLimiterMiddleware(h.rateLimit))
	base.GET("/health", h.health)
	h.SetupJobs(base)
	h.SetupBacktest(base)
	h.SetupReplay(base)
}

func (h *HttpAPIHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// bind decodes the request into req and runs the struct validator.
func (h *HttpAPIHandler) bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.New("invalid request body")
	}
	return h.validator.Struct(req)
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
}
