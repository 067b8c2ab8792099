package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/PranavReddyGaddam/Signal/hub"
	"github.com/PranavReddyGaddam/Signal/relay"
)

// InternalHandler serves the internal surface used by relaying workers.
type InternalHandler struct {
	hub *hub.Hub
}

// NewInternalHandler creates the internal handler feeding the local hub.
func NewInternalHandler(h *hub.Hub) *InternalHandler {
	return &InternalHandler{hub: h}
}

// RegisterRoutes registers the internal routes with the echo server.
func (h *InternalHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/internal/events", h.PushEvent)
	e.GET("/health", h.Health)
}

// Health returns health status for the internal server.
func (h *InternalHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// PushEvent ingests an event published by a remote worker and fans it
// out to the local subscribers of the session.
// POST /internal/events
func (h *InternalHandler) PushEvent(c echo.Context) error {
	var req relay.PushRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id is required"})
	}

	h.hub.Publish(req.SessionID, req.Event)
	return c.JSON(http.StatusOK, relay.PushResponse{OK: true})
}
