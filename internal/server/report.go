package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/forensicflow/forensicflow/internal/store"
)

type ReportHandler struct {
	Store *store.Store
}

func (h *ReportHandler) Register(g *echo.Group) {
	g.POST("/:id/report", h.add)
	g.GET("/:id/report", h.list)
	g.PUT("/:id/report/order", h.reorder)
	g.DELETE("/:id/report/:item_id", h.remove)
}

// add pins either an evidence item (evidence_id, optional note) or an
// analyst response (content) to the case report.
func (h *ReportHandler) add(c echo.Context) error {
	var req struct {
		EvidenceID string `json:"evidence_id"`
		Note       string `json:"note"`
		Content    string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	caseID := c.Param("id")

	var rec store.ReportItemRecord
	var err error
	switch {
	case strings.TrimSpace(req.EvidenceID) != "":
		rec, err = h.Store.AddReportItem(ctx, caseID, req.EvidenceID, req.Note)
	case strings.TrimSpace(req.Content) != "":
		rec, err = h.Store.AddReportNote(ctx, caseID, req.Content)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "evidence_id or content required")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *ReportHandler) list(c echo.Context) error {
	items, err := h.Store.ListReportItems(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ReportHandler) reorder(c echo.Context) error {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids required")
	}
	if err := h.Store.ReorderReportItems(c.Request().Context(), c.Param("id"), req.IDs); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ReportHandler) remove(c echo.Context) error {
	if err := h.Store.RemoveReportItem(c.Request().Context(), c.Param("item_id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
