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

	"github.com/forensicflow/forensicflow/internal/store"
)

func TestAddReportItem(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ReportHandler{Store: &store.Store{DB: db}}
	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO report_items (id, case_id, kind, evidence_id, note, position, created_at)
VALUES ($1,$2,$3,$4,$5,
  (SELECT COALESCE(MAX(position),0)+1 FROM report_items WHERE case_id=$2),
  NOW())
RETURNING position, created_at
`)).WithArgs(sqlmock.AnyArg(), "case-1", store.ReportKindEvidence, "e1", "key transfer").
		WillReturnRows(sqlmock.NewRows([]string{"position", "created_at"}).AddRow(3, time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/report", strings.NewReader(`{"evidence_id":"e1","note":"key transfer"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("case-1")

	if err := handler.add(ctx); err != nil {
		t.Fatalf("add: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	var resp store.ReportItemRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Position != 3 || resp.EvidenceID != "e1" {
		t.Fatalf("unexpected record: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPinResponseToReport(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ReportHandler{Store: &store.Store{DB: db}}
	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO report_items (id, case_id, kind, evidence_id, note, position, created_at)
VALUES ($1,$2,$3,$4,$5,
  (SELECT COALESCE(MAX(position),0)+1 FROM report_items WHERE case_id=$2),
  NOW())
RETURNING position, created_at
`)).WithArgs(sqlmock.AnyArg(), "case-1", store.ReportKindResponse, "", "the burner phone links both suspects").
		WillReturnRows(sqlmock.NewRows([]string{"position", "created_at"}).AddRow(1, time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/report", strings.NewReader(`{"content":"the burner phone links both suspects"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("case-1")

	if err := handler.add(ctx); err != nil {
		t.Fatalf("add: %v", err)
	}
	var resp store.ReportItemRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != store.ReportKindResponse || resp.EvidenceID != "" {
		t.Fatalf("unexpected record: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddReportItemRequiresEvidenceID(t *testing.T) {
	e := echo.New()
	handler := &ReportHandler{}

	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/report", strings.NewReader(`{"note":"no id"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues("case-1")

	err := handler.add(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %#v", err)
	}
}

func TestReorderReport(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &ReportHandler{Store: &store.Store{DB: db}}
	update := regexp.QuoteMeta(`
UPDATE report_items SET position=$3 WHERE id=$1 AND case_id=$2
`)
	mock.ExpectBegin()
	mock.ExpectExec(update).WithArgs("r2", "case-1", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WithArgs("r1", "case-1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodPut, "/api/cases/case-1/report/order", strings.NewReader(`{"ids":["r2","r1"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("case-1")

	if err := handler.reorder(ctx); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
