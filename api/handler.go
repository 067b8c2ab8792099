// Package api provides HTTP handlers for the orchestrator.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the public routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/sessions", h.CreateSession)
	e.GET("/api/v1/sessions", h.ListSessions)
	e.GET("/api/v1/sessions/:session_id", h.GetSession)
	e.DELETE("/api/v1/sessions/:session_id", h.DeleteSession)
	e.POST("/api/v1/sessions/:session_id/confirm", h.ConfirmStep)
	e.POST("/api/v1/sessions/:session_id/abort", h.AbortSession)

	e.GET("/api/v1/artifacts/:artifact_id", h.GetArtifact)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

// jsonError maps service errors to HTTP responses.
func jsonError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
