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

func TestCreateSessionDefaultTitle(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &SessionsHandler{Store: &store.Store{DB: db}}
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO chat_sessions (id, case_id, title, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW())
RETURNING created_at, updated_at
`)).WithArgs(sqlmock.AnyArg(), "case-1", "New session").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	req := httptest.NewRequest(http.MethodPost, "/api/cases/case-1/sessions", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("case-1")

	if err := handler.create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	var resp store.SessionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Title != "New session" || resp.CaseID != "case-1" {
		t.Fatalf("unexpected session: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRenameSessionRequiresTitle(t *testing.T) {
	e := echo.New()
	handler := &SessionsHandler{}

	req := httptest.NewRequest(http.MethodPut, "/api/cases/case-1/sessions/s1", strings.NewReader(`{"title":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id", "session_id")
	ctx.SetParamValues("case-1", "s1")

	err := handler.rename(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %#v", err)
	}
}
