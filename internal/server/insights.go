package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/forensicflow/forensicflow/internal/engine"
	"github.com/forensicflow/forensicflow/internal/search"
	"github.com/forensicflow/forensicflow/internal/store"
)

type InsightsHandler struct {
	Store  *store.Store
	Search *search.Registry
}

func (h *InsightsHandler) Register(g *echo.Group) {
	g.GET("/:id/insights", h.list)
	g.POST("/:id/insights/rescan", h.rescan)
}

func (h *InsightsHandler) list(c echo.Context) error {
	insights, err := h.Store.ListInsights(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, insights)
}

// rescan reruns the red-flag and pattern detectors over the current
// evidence snapshot, replacing the stored insights.
func (h *InsightsHandler) rescan(c echo.Context) error {
	ctx := c.Request().Context()
	caseID := c.Param("id")
	items, err := loadCaseItems(ctx, h.Store, h.Search, caseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	insights, err := persistInsights(ctx, h.Store, caseID, engine.AnalyzeCase(items))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, insights)
}

// persistInsights replaces a case's stored insights with the findings of a
// fresh scan.
func persistInsights(ctx context.Context, st *store.Store, caseID string, analysis engine.CaseAnalysis) ([]store.InsightRecord, error) {
	if err := st.DeleteInsights(ctx, caseID); err != nil {
		return nil, err
	}
	groups := [][]engine.Finding{analysis.Flags, analysis.Patterns, analysis.Anomalies}
	out := []store.InsightRecord{}
	for _, findings := range groups {
		for _, f := range findings {
			rec, err := st.InsertInsight(ctx, store.InsightRecord{
				CaseID:      caseID,
				Kind:        f.Type,
				Title:       f.Title,
				Description: f.Description,
				Confidence:  f.Confidence,
				Metadata:    f.Metadata,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}
