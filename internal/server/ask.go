package server

import (
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/forensicflow/forensicflow/internal/engine"
	"github.com/forensicflow/forensicflow/internal/search"
	"github.com/forensicflow/forensicflow/internal/store"
)

const (
	minHypothesisLen = 10
	maxHypothesisLen = 500

	conversationDepth = 10
)

// Conversations holds per-session trackers in memory. Sessions outlive the
// tracker across restarts; only prompt context is lost.
type Conversations struct {
	mu       sync.Mutex
	sessions map[string]*engine.Conversation
}

func NewConversations() *Conversations {
	return &Conversations{sessions: make(map[string]*engine.Conversation)}
}

func (c *Conversations) Get(sessionID string) *engine.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.sessions[sessionID]
	if !ok {
		conv = engine.NewConversation(conversationDepth)
		c.sessions[sessionID] = conv
	}
	return conv
}

type AskHandler struct {
	Store         *store.Store
	Search        *search.Registry
	Engine        *engine.Engine
	Conversations *Conversations
}

func (h *AskHandler) Register(g *echo.Group) {
	g.POST("/:id/ask", h.ask)
	g.POST("/:id/hypothesis", h.hypothesis)
	g.GET("/:id/expand", h.expand)
}

func (h *AskHandler) ask(c echo.Context) error {
	ctx := c.Request().Context()
	caseID := c.Param("id")

	var req struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	query, err := validateQuery(req.Query)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	items, err := loadCaseItems(ctx, h.Store, h.Search, caseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var conv *engine.Conversation
	if req.SessionID != "" {
		conv = h.Conversations.Get(req.SessionID)
	}

	result := h.Engine.ProcessQuery(ctx, caseID, query, items, conv)

	if _, err := h.Store.InsertQueryLog(ctx, store.QueryRecord{
		CaseID:     caseID,
		SessionID:  req.SessionID,
		Query:      query,
		Summary:    result.Summary,
		Confidence: result.Confidence,
		Mode:       result.Mode,
	}); err != nil {
		c.Logger().Warnf("log query case %s: %v", caseID, err)
	}

	if req.SessionID != "" {
		h.recordExchange(c, req.SessionID, query, result, conv)
	}
	return c.JSON(http.StatusOK, result)
}

// recordExchange persists the chat turn and titles the session after its
// first query.
func (h *AskHandler) recordExchange(c echo.Context, sessionID, query string, result engine.QueryResult, conv *engine.Conversation) {
	ctx := c.Request().Context()
	if _, err := h.Store.InsertMessage(ctx, store.MessageRecord{
		SessionID: sessionID,
		Role:      store.RoleInvestigator,
		Content:   query,
	}); err != nil {
		c.Logger().Warnf("record message session %s: %v", sessionID, err)
		return
	}
	if _, err := h.Store.InsertMessage(ctx, store.MessageRecord{
		SessionID: sessionID,
		Role:      store.RoleAnalyst,
		Content:   result.Summary,
		Metadata: map[string]interface{}{
			"mode":       result.Mode,
			"confidence": result.Confidence,
		},
	}); err != nil {
		c.Logger().Warnf("record message session %s: %v", sessionID, err)
		return
	}
	if conv != nil && conv.QueryCount() == 1 {
		if err := h.Store.UpdateSessionTitle(ctx, sessionID, h.Engine.SuggestTitle(ctx, query)); err != nil {
			c.Logger().Warnf("title session %s: %v", sessionID, err)
		}
	}
}

func (h *AskHandler) hypothesis(c echo.Context) error {
	ctx := c.Request().Context()
	caseID := c.Param("id")

	var req struct {
		Hypothesis string `json:"hypothesis"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Hypothesis = strings.TrimSpace(req.Hypothesis)
	if len(req.Hypothesis) < minHypothesisLen || len(req.Hypothesis) > maxHypothesisLen {
		return echo.NewHTTPError(http.StatusBadRequest, "hypothesis must be between 10 and 500 characters")
	}

	items, err := loadCaseItems(ctx, h.Store, h.Search, caseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, h.Engine.TestHypothesis(ctx, req.Hypothesis, items))
}

func (h *AskHandler) expand(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	terms := h.Engine.ExpandQuery(c.Request().Context(), q)
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "terms": terms})
}
