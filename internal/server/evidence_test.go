package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/forensicflow/forensicflow/internal/search"
	"github.com/forensicflow/forensicflow/internal/store"
)

const listEvidenceSQL = `
SELECT id, type, content, source, device, ts, entities, metadata
FROM evidence_items
WHERE case_id=$1
ORDER BY created_at, id
`

func TestIngestEvidence(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &EvidenceHandler{Store: &store.Store{DB: db}, Search: search.NewRegistry()}
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT c.id, c.name, c.status, c.created_at, c.updated_at,
  (SELECT COUNT(*) FROM evidence_items e WHERE e.case_id = c.id)
FROM cases c
WHERE c.id=$1
`)).WithArgs("case-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "created_at", "updated_at", "count"}).
			AddRow("case-1", "Operation Quiet", store.CaseStatusProcessing, now, now, 0))

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO evidence_items (id, case_id, type, content, source, device, ts, entities, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
ON CONFLICT (id, case_id) DO UPDATE SET
  type = EXCLUDED.type,
  content = EXCLUDED.content,
  source = EXCLUDED.source,
  device = EXCLUDED.device,
  ts = EXCLUDED.ts,
  entities = EXCLUDED.entities,
  metadata = EXCLUDED.metadata
`)).WithArgs(sqlmock.AnyArg(), "case-1", "message", "meeting at the office tomorrow", "SMS",
		sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta(listEvidenceSQL)).WithArgs("case-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "content", "source", "device", "ts", "entities", "metadata"}).
			AddRow("e1", "message", "meeting at the office tomorrow", "SMS", "", "", []byte(`[]`), []byte(`{}`)))

	mock.ExpectExec(regexp.QuoteMeta(`
DELETE FROM insights WHERE case_id=$1
`)).WithArgs("case-1").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(regexp.QuoteMeta(`
UPDATE cases SET status=$2, updated_at=NOW() WHERE id=$1
`)).WithArgs("case-1", store.CaseStatusReady).WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"messages":[{"content":"meeting at the office tomorrow","source":"SMS"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/evidence?filename=export.json", strings.NewReader(body))
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("case-1")

	if err := handler.ingest(ctx); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["ingested"] != float64(1) || resp["evidence_count"] != float64(1) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestIngestRejectsEmptyPayload(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &EvidenceHandler{Store: &store.Store{DB: db}, Search: search.NewRegistry()}
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT c.id, c.name, c.status, c.created_at, c.updated_at,
  (SELECT COUNT(*) FROM evidence_items e WHERE e.case_id = c.id)
FROM cases c
WHERE c.id=$1
`)).WithArgs("case-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "created_at", "updated_at", "count"}).
			AddRow("case-1", "Operation Quiet", store.CaseStatusProcessing, now, now, 0))

	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/evidence", strings.NewReader("   "))
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("case-1")

	err = handler.ingest(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %#v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &EvidenceHandler{Store: &store.Store{DB: db}, Search: search.NewRegistry()}
	mock.ExpectQuery(regexp.QuoteMeta(listEvidenceSQL)).WithArgs("case-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "content", "source", "device", "ts", "entities", "metadata"}).
			AddRow("e1", "message", "bitcoin wallet transfer confirmed", "WhatsApp", "", "", []byte(`[]`), []byte(`{}`)).
			AddRow("e2", "call", "missed call from unknown number", "CallLog", "", "", []byte(`[]`), []byte(`{}`)))

	req := httptest.NewRequest(http.MethodGet, "/api/cases/case-1/search?q=bitcoin", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("case-1")

	if err := handler.search(ctx); err != nil {
		t.Fatalf("search: %v", err)
	}
	var resp struct {
		Query string       `json:"query"`
		Hits  []search.Hit `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].ID != "e1" {
		t.Fatalf("unexpected hits: %+v", resp.Hits)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	e := echo.New()
	handler := &EvidenceHandler{Search: search.NewRegistry()}

	req := httptest.NewRequest(http.MethodGet, "/api/cases/case-1/search", nil)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("case-1")

	err := handler.search(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %#v", err)
	}
}
