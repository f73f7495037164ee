package http

import (
	"errors"
	"golang-backtest/internal/dto"
	"golang-backtest/internal/replay"
	"golang-backtest/internal/service"
	"golang-backtest/pkg/logger"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamBuffer     = 32
	streamReadLimit  = 4096
)

type replayMessage struct {
	Type  string        `json:"type"`
	State *replay.State `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

func (h *HttpAPIHandler) SetupReplay(base *echo.Group) {
	sessions := base.Group("/replay/sessions")
	sessions.POST("", h.createReplaySession)
	sessions.GET("", h.listReplaySessions)
	sessions.GET("/:id", h.getReplaySession)
	sessions.DELETE("/:id", h.closeReplaySession)
	sessions.POST("/:id/commands", h.replayCommand)
	sessions.GET("/:id/stream", h.streamReplaySession)
}

func (h *HttpAPIHandler) createReplaySession(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.CreateReplaySessionRequest)
	if err := h.bind(c, req); err != nil {
		return badRequest(c, err)
	}

	session, err := h.service.ReplayService.CreateSession(ctx, *req)
	if err != nil {
		return replayError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "Replay session created", session))
}

func (h *HttpAPIHandler) listReplaySessions(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Replay sessions", h.service.ReplayService.ListSessions(c.Request().Context())))
}

func (h *HttpAPIHandler) getReplaySession(c echo.Context) error {
	session, err := h.service.ReplayService.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return replayError(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Replay session", session))
}

func (h *HttpAPIHandler) closeReplaySession(c echo.Context) error {
	if err := h.service.ReplayService.CloseSession(c.Request().Context(), c.Param("id")); err != nil {
		return replayError(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Replay session closed", nil))
}

func (h *HttpAPIHandler) replayCommand(c echo.Context) error {
	ctx := c.Request().Context()

	cmd := new(replay.Command)
	if err := h.bind(c, cmd); err != nil {
		return badRequest(c, err)
	}

	session, err := h.service.ReplayService.Command(ctx, c.Param("id"), *cmd)
	if err != nil {
		return replayError(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Command applied", session))
}

// streamReplaySession pushes every state change of the session to a
// websocket and applies commands read from it. Slow clients miss
// intermediate states rather than stalling playback.
func (h *HttpAPIHandler) streamReplaySession(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	session, err := h.service.ReplayService.GetSession(ctx, id)
	if err != nil {
		return replayError(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.WarnContext(ctx, "Failed to upgrade replay stream", logger.ErrorField(err))
		return nil
	}
	defer conn.Close()

	out := make(chan replayMessage, streamBuffer)
	push := func(msg replayMessage) {
		select {
		case out <- msg:
		default:
		}
	}

	unsubscribe, err := h.service.ReplayService.Subscribe(id, func(state replay.State) {
		push(replayMessage{Type: "state", State: &state})
	})
	if err != nil {
		_ = conn.WriteJSON(replayMessage{Type: "error", Error: err.Error()})
		return nil
	}
	defer unsubscribe()
	push(replayMessage{Type: "state", State: &session.State})

	h.log.InfoContext(ctx, "Replay stream opened", logger.StringField("session_id", id))
	defer h.log.InfoContext(ctx, "Replay stream closed", logger.StringField("session_id", id))

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(streamReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			var cmd replay.Command
			if err := conn.ReadJSON(&cmd); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.WarnContext(ctx, "Replay stream read failed", logger.ErrorField(err))
				}
				return
			}
			if err := h.validator.Struct(cmd); err != nil {
				push(replayMessage{Type: "error", Error: err.Error()})
				continue
			}
			if _, err := h.service.ReplayService.Command(ctx, id, cmd); err != nil {
				push(replayMessage{Type: "error", Error: err.Error()})
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return nil
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return nil
			}
		}
	}
}

func replayError(c echo.Context, err error) error {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrResultNotAvailable):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrTooManySessions):
		code = http.StatusTooManyRequests
	}
	return c.JSON(code, dto.NewBaseResponse(code, err.Error(), nil))
}
