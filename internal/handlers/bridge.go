package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/forumgram/forumgram/internal/bindings"
	"github.com/forumgram/forumgram/internal/bridge"
	"github.com/forumgram/forumgram/internal/logger"
)

// BridgeHandler exposes identity binding, registration and the chat
// platform webhook via REST API.
type BridgeHandler struct {
	service *bridge.Service
	logger  *slog.Logger
}

// NewBridgeHandler creates a BridgeHandler.
func NewBridgeHandler(log *slog.Logger, service *bridge.Service) *BridgeHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BridgeHandler{
		service: service,
		logger:  log.With(slog.String("handler", "bridge")),
	}
}

// Register registers bridge routes.
func (h *BridgeHandler) Register(e *echo.Echo) {
	e.POST("/bind_user", h.Bind)
	e.POST("/register_user", h.RegisterUser)
	e.POST("/webhook", h.Webhook)
}

type bindResponse struct {
	Success bool   `json:"success"`
	LocalID string `json:"local_id,omitempty"`
}

// Bind links a chat identity to an existing forum user.
func (h *BridgeHandler) Bind(c echo.Context) error {
	if h.service == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "bridge service not available")
	}
	var req bridge.BindRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	binding, err := h.service.Bind(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, bindings.ErrInvalidArgument) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("bind failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "bind failed")
	}
	return c.JSON(http.StatusOK, bindResponse{Success: true, LocalID: binding.LocalID})
}

// RegisterUser creates a forum account and binds it to the chat identity.
func (h *BridgeHandler) RegisterUser(c echo.Context) error {
	if h.service == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "bridge service not available")
	}
	var req bridge.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	binding, err := h.service.RegisterAndBind(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, bindings.ErrInvalidArgument) || errors.Is(err, bridge.ErrAccountCreationFailed) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("registration failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}
	return c.JSON(http.StatusOK, bindResponse{Success: true, LocalID: binding.LocalID})
}

// Webhook ingests one raw chat-platform event. The platform expects a
// fast 2xx whatever happens downstream, so parse and delivery problems
// still acknowledge receipt.
func (h *BridgeHandler) Webhook(c echo.Context) error {
	if h.service == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "bridge service not available")
	}
	rawBody, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body failed")
	}
	ctx := c.Request().Context()
	if _, err := h.service.HandleWebhook(ctx, rawBody); err != nil {
		logger.FromContext(ctx).Error("webhook dispatch failed", slog.Any("error", err))
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
