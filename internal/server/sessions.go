package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/forensicflow/forensicflow/internal/store"
)

type SessionsHandler struct {
	Store *store.Store
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.POST("/:id/sessions", h.create)
	g.GET("/:id/sessions", h.list)
	g.PUT("/:id/sessions/:session_id", h.rename)
	g.DELETE("/:id/sessions/:session_id", h.archive)
	g.GET("/:id/sessions/:session_id/messages", h.messages)
}

func (h *SessionsHandler) create(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New session"
	}
	sess, err := h.Store.CreateSession(c.Request().Context(), c.Param("id"), title)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *SessionsHandler) list(c echo.Context) error {
	sessions, err := h.Store.ListSessions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *SessionsHandler) rename(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	if err := h.Store.UpdateSessionTitle(c.Request().Context(), c.Param("session_id"), req.Title); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"id": c.Param("session_id"), "title": req.Title})
}

func (h *SessionsHandler) archive(c echo.Context) error {
	if err := h.Store.ArchiveSession(c.Request().Context(), c.Param("session_id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionsHandler) messages(c echo.Context) error {
	messages, err := h.Store.ListMessages(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, messages)
}
