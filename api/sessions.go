package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/PranavReddyGaddam/Signal/domain"
)

// CreateSessionRequest is the body for session creation.
type CreateSessionRequest struct {
	UserInput string `json:"user_input"`
}

// ConfirmStepRequest is the body for step confirmation.
type ConfirmStepRequest struct {
	Step      string `json:"step"`
	Confirmed bool   `json:"confirmed"`
}

// AbortSessionRequest is the body for an explicit abort.
type AbortSessionRequest struct {
	Reason string `json:"reason"`
}

// CreateSession creates a new analysis session and starts the pipeline.
// POST /api/v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserInput == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_input is required"})
	}

	session, err := h.svc.CreateSession(c.Request().Context(), req.UserInput)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// GetSession returns the session state by ID.
// GET /api/v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.svc.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// ListSessions returns all sessions.
// GET /api/v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.svc.ListSessions(c.Request().Context())
	if err != nil {
		return jsonError(c, err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(http.StatusOK, sessions)
}

// ConfirmStep confirms or rejects the step awaiting confirmation.
// POST /api/v1/sessions/:session_id/confirm
func (h *Handler) ConfirmStep(c echo.Context) error {
	var req ConfirmStepRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Step == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "step is required"})
	}

	session, err := h.svc.ConfirmStep(c.Request().Context(), c.Param("session_id"), req.Step, req.Confirmed)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// AbortSession forces a non-terminal session to FAILED.
// POST /api/v1/sessions/:session_id/abort
func (h *Handler) AbortSession(c echo.Context) error {
	var req AbortSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	session, err := h.svc.AbortSession(c.Request().Context(), c.Param("session_id"), req.Reason)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteSession removes a session, cancelling any in-flight work.
// DELETE /api/v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.svc.DeleteSession(c.Request().Context(), c.Param("session_id")); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "session deleted"})
}

// GetArtifact returns a stage artifact by ID.
// GET /api/v1/artifacts/:artifact_id
func (h *Handler) GetArtifact(c echo.Context) error {
	artifact, err := h.svc.GetArtifact(c.Request().Context(), c.Param("artifact_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, artifact)
}
