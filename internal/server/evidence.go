package server

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/forensicflow/forensicflow/internal/engine"
	"github.com/forensicflow/forensicflow/internal/engine/telemetry"
	"github.com/forensicflow/forensicflow/internal/evidence"
	"github.com/forensicflow/forensicflow/internal/search"
	"github.com/forensicflow/forensicflow/internal/store"
)

type EvidenceHandler struct {
	Store  *store.Store
	Search *search.Registry
}

func (h *EvidenceHandler) Register(g *echo.Group) {
	g.POST("/:id/evidence", h.ingest)
	g.GET("/:id/evidence", h.list)
	g.GET("/:id/search", h.search)
	g.GET("/:id/autocomplete", h.autocomplete)
}

// ingest accepts a forensic export either as a multipart upload (field
// "file") or as the raw request body with ?filename= hinting the format.
// The batch is normalized, persisted, indexed and scanned for red flags.
func (h *EvidenceHandler) ingest(c echo.Context) error {
	ctx := c.Request().Context()
	caseID := c.Param("id")
	if _, ok, err := h.Store.GetCase(ctx, caseID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	}

	filename, data, err := readUpload(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	parser := &evidence.Parser{}
	items, err := parser.Parse(filename, data)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	for _, it := range items {
		if err := h.Store.InsertEvidence(ctx, caseID, it); err != nil {
			_ = h.Store.SetCaseStatus(ctx, caseID, store.CaseStatusFailed)
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	telemetry.EvidenceIngested.Add(float64(len(items)))

	// Re-index and rescan over the full corpus, not just this batch.
	all, err := h.Store.ListEvidence(ctx, caseID, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if idx, err := h.Search.Get(caseID); err == nil {
		if err := idx.AddAll(all); err != nil {
			c.Logger().Warnf("index case %s: %v", caseID, err)
		}
	}

	analysis := engine.AnalyzeCase(all)
	insights, err := persistInsights(ctx, h.Store, caseID, analysis)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.SetCaseStatus(ctx, caseID, store.CaseStatusReady); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"ingested":       len(items),
		"evidence_count": len(all),
		"insights":       len(insights),
	})
}

func (h *EvidenceHandler) list(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	items, err := h.Store.ListEvidence(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *EvidenceHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	idx, err := caseIndex(c.Request().Context(), h.Store, h.Search, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	hits, err := idx.Search(q, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "hits": hits})
}

func (h *EvidenceHandler) autocomplete(c echo.Context) error {
	prefix := c.QueryParam("prefix")
	idx, err := caseIndex(c.Request().Context(), h.Store, h.Search, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"suggestions": idx.Suggest(prefix, 0)})
}

// readUpload pulls the export payload from a multipart form or the raw body.
func readUpload(c echo.Context) (string, []byte, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, err
		}
		return fh.Filename, data, nil
	}
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return "", nil, err
	}
	filename := c.QueryParam("filename")
	if filename == "" {
		filename = "export.json"
	}
	return filename, data, nil
}

// caseIndex returns the case's search index, seeding it from the store on
// first use so searches survive process restarts.
func caseIndex(ctx context.Context, st *store.Store, reg *search.Registry, caseID string) (*search.CaseIndex, error) {
	idx, err := reg.Get(caseID)
	if err != nil {
		return nil, err
	}
	if idx.Count() == 0 {
		items, err := st.ListEvidence(ctx, caseID, 0)
		if err != nil {
			return nil, err
		}
		if err := idx.AddAll(items); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// loadCaseItems returns the case's evidence snapshot, preferring the
// in-memory index over a store round trip.
func loadCaseItems(ctx context.Context, st *store.Store, reg *search.Registry, caseID string) ([]evidence.Item, error) {
	idx, err := reg.Get(caseID)
	if err == nil && idx.Count() > 0 {
		return idx.Items(), nil
	}
	items, err := st.ListEvidence(ctx, caseID, 0)
	if err != nil {
		return nil, err
	}
	if idx != nil {
		if err := idx.AddAll(items); err != nil {
			return nil, err
		}
	}
	return items, nil
}
