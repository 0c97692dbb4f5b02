// Package store persists cases, evidence, sessions, insights and report
// items in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/forensicflow/forensicflow/internal/evidence"
)

var tracer = otel.Tracer("forensicflow/store")

type Store struct {
	DB *sql.DB
}

// Case statuses.
const (
	CaseStatusProcessing = "processing"
	CaseStatusReady      = "ready"
	CaseStatusFailed     = "failed"
)

// Chat message roles.
const (
	RoleInvestigator = "investigator"
	RoleAnalyst      = "analyst"
)

// Case is one investigation with its evidence corpus.
type Case struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	EvidenceCount int       `json:"evidence_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// QueryRecord is one logged investigator query and its answer.
type QueryRecord struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"case_id"`
	SessionID  string    `json:"session_id,omitempty"`
	Query      string    `json:"query"`
	Summary    string    `json:"summary"`
	Confidence float64   `json:"confidence"`
	Mode       string    `json:"mode"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsightRecord is one persisted finding from the case-load scan or a
// pattern detector.
type InsightRecord struct {
	ID          string                 `json:"id"`
	CaseID      string                 `json:"case_id"`
	Kind        string                 `json:"kind"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Confidence  float64                `json:"confidence"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// SessionRecord is one chat session within a case.
type SessionRecord struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	Title     string    `json:"title"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRecord is one chat message within a session.
type MessageRecord struct {
	ID        string                 `json:"id"`
	SessionID string                 `json:"session_id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Report item kinds.
const (
	ReportKindEvidence = "evidence"
	ReportKindResponse = "response"
)

// ReportItemRecord is one evidence item or analyst response pinned to a
// case report. Response pins carry the pinned text in Note.
type ReportItemRecord struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"case_id"`
	Kind       string    `json:"kind"`
	EvidenceID string    `json:"evidence_id,omitempty"`
	Note       string    `json:"note,omitempty"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

// New opens a store from DATABASE_URL or the POSTGRES_* environment.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN opens and pings a store at the given DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// CreateCase inserts a new case in processing state.
func (s *Store) CreateCase(ctx context.Context, name string) (Case, error) {
	c := Case{ID: uuid.NewString(), Name: name, Status: CaseStatusProcessing}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO cases (id, name, status, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW())
RETURNING created_at, updated_at
`, c.ID, c.Name, c.Status).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Case{}, fmt.Errorf("failed to create case: %w", err)
	}
	return c, nil
}

// GetCase loads one case; ok is false when it does not exist.
func (s *Store) GetCase(ctx context.Context, id string) (Case, bool, error) {
	var c Case
	err := s.DB.QueryRowContext(ctx, `
SELECT c.id, c.name, c.status, c.created_at, c.updated_at,
  (SELECT COUNT(*) FROM evidence_items e WHERE e.case_id = c.id)
FROM cases c
WHERE c.id=$1
`, id).Scan(&c.ID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.EvidenceCount)
	if err == sql.ErrNoRows {
		return Case{}, false, nil
	}
	if err != nil {
		return Case{}, false, fmt.Errorf("failed to get case: %w", err)
	}
	return c, true, nil
}

// ListCases returns all cases, newest first.
func (s *Store) ListCases(ctx context.Context) ([]Case, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT c.id, c.name, c.status, c.created_at, c.updated_at,
  (SELECT COUNT(*) FROM evidence_items e WHERE e.case_id = c.id)
FROM cases c
ORDER BY c.created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()
	var out []Case
	for rows.Next() {
		var c Case
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.EvidenceCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCaseStatus updates a case's processing status.
func (s *Store) SetCaseStatus(ctx context.Context, id, status string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE cases SET status=$2, updated_at=NOW() WHERE id=$1
`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set case status: %w", err)
	}
	return nil
}

// InsertEvidence stores one normalized evidence item. Entities and
// metadata are serialized as JSONB.
func (s *Store) InsertEvidence(ctx context.Context, caseID string, it evidence.Item) error {
	ctx, span := tracer.Start(ctx, "store.InsertEvidence")
	span.SetAttributes(attribute.String("case_id", caseID))
	defer span.End()

	entities, err := json.Marshal(it.Entities)
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}
	metadata, err := json.Marshal(it.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
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
`, it.ID, caseID, it.Type, it.Content, it.Source, it.Device, it.Timestamp, entities, metadata)
	if err != nil {
		return fmt.Errorf("failed to insert evidence: %w", err)
	}
	return nil
}

// ListEvidence returns a case's evidence in insertion order. limit <= 0
// means no limit.
func (s *Store) ListEvidence(ctx context.Context, caseID string, limit int) ([]evidence.Item, error) {
	ctx, span := tracer.Start(ctx, "store.ListEvidence")
	span.SetAttributes(attribute.String("case_id", caseID))
	defer span.End()

	q := `
SELECT id, type, content, source, device, ts, entities, metadata
FROM evidence_items
WHERE case_id=$1
ORDER BY created_at, id
`
	args := []interface{}{caseID}
	if limit > 0 {
		q += "LIMIT $2\n"
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	var out []evidence.Item
	for rows.Next() {
		var it evidence.Item
		var entities, metadata []byte
		if err := rows.Scan(&it.ID, &it.Type, &it.Content, &it.Source, &it.Device, &it.Timestamp, &entities, &metadata); err != nil {
			return nil, err
		}
		if len(entities) > 0 {
			if err := json.Unmarshal(entities, &it.Entities); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &it.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// InsertQueryLog records one answered query.
func (s *Store) InsertQueryLog(ctx context.Context, rec QueryRecord) (QueryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO query_log (id, case_id, session_id, query, summary, confidence, mode, created_at)
VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,NOW())
RETURNING created_at
`, rec.ID, rec.CaseID, rec.SessionID, rec.Query, rec.Summary, rec.Confidence, rec.Mode).Scan(&rec.CreatedAt)
	if err != nil {
		return QueryRecord{}, fmt.Errorf("failed to insert query log: %w", err)
	}
	return rec, nil
}

// ListQueryLog returns a case's most recent queries.
func (s *Store) ListQueryLog(ctx context.Context, caseID string, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, case_id, COALESCE(session_id,''), query, summary, confidence, mode, created_at
FROM query_log
WHERE case_id=$1
ORDER BY created_at DESC
LIMIT $2
`, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list query log: %w", err)
	}
	defer rows.Close()
	var out []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		if err := rows.Scan(&rec.ID, &rec.CaseID, &rec.SessionID, &rec.Query, &rec.Summary, &rec.Confidence, &rec.Mode, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertInsight persists one finding.
func (s *Store) InsertInsight(ctx context.Context, rec InsightRecord) (InsightRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return InsightRecord{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	err = s.DB.QueryRowContext(ctx, `
INSERT INTO insights (id, case_id, kind, title, description, confidence, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
RETURNING created_at
`, rec.ID, rec.CaseID, rec.Kind, rec.Title, rec.Description, rec.Confidence, metadata).Scan(&rec.CreatedAt)
	if err != nil {
		return InsightRecord{}, fmt.Errorf("failed to insert insight: %w", err)
	}
	return rec, nil
}

// ListInsights returns a case's insights, highest confidence first.
func (s *Store) ListInsights(ctx context.Context, caseID string) ([]InsightRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, case_id, kind, title, description, confidence, metadata, created_at
FROM insights
WHERE case_id=$1
ORDER BY confidence DESC, created_at
`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()
	var out []InsightRecord
	for rows.Next() {
		var rec InsightRecord
		var metadata []byte
		if err := rows.Scan(&rec.ID, &rec.CaseID, &rec.Kind, &rec.Title, &rec.Description, &rec.Confidence, &metadata, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteInsights clears a case's insights, used before a re-scan.
func (s *Store) DeleteInsights(ctx context.Context, caseID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM insights WHERE case_id=$1`, caseID)
	if err != nil {
		return fmt.Errorf("failed to delete insights: %w", err)
	}
	return nil
}

// CreateSession starts a chat session for a case.
func (s *Store) CreateSession(ctx context.Context, caseID, title string) (SessionRecord, error) {
	rec := SessionRecord{ID: uuid.NewString(), CaseID: caseID, Title: title}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO chat_sessions (id, case_id, title, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW())
RETURNING created_at, updated_at
`, rec.ID, rec.CaseID, rec.Title).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("failed to create session: %w", err)
	}
	return rec, nil
}

// ListSessions returns a case's live sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context, caseID string) ([]SessionRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, case_id, title, archived, created_at, updated_at
FROM chat_sessions
WHERE case_id=$1 AND NOT archived
ORDER BY updated_at DESC
`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.CaseID, &rec.Title, &rec.Archived, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ArchiveSession hides a session from listings without deleting its
// messages.
func (s *Store) ArchiveSession(ctx context.Context, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE chat_sessions SET archived=TRUE, updated_at=NOW() WHERE id=$1
`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return nil
}

// UpdateSessionTitle renames a session.
func (s *Store) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE chat_sessions SET title=$2, updated_at=NOW() WHERE id=$1
`, sessionID, title)
	if err != nil {
		return fmt.Errorf("failed to update session title: %w", err)
	}
	return nil
}

// InsertMessage appends a message to a session and bumps the session's
// activity timestamp.
func (s *Store) InsertMessage(ctx context.Context, rec MessageRecord) (MessageRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return MessageRecord{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	err = s.DB.QueryRowContext(ctx, `
INSERT INTO chat_messages (id, session_id, role, content, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
RETURNING created_at
`, rec.ID, rec.SessionID, rec.Role, rec.Content, metadata).Scan(&rec.CreatedAt)
	if err != nil {
		return MessageRecord{}, fmt.Errorf("failed to insert message: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `
UPDATE chat_sessions SET updated_at=NOW() WHERE id=$1
`, rec.SessionID); err != nil {
		return MessageRecord{}, fmt.Errorf("failed to touch session: %w", err)
	}
	return rec, nil
}

// ListMessages returns a session's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, role, content, metadata, created_at
FROM chat_messages
WHERE session_id=$1
ORDER BY created_at, id
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()
	var out []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		var metadata []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Role, &rec.Content, &metadata, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AddReportItem pins an evidence item to the case report at the end of
// the current order.
func (s *Store) AddReportItem(ctx context.Context, caseID, evidenceID, note string) (ReportItemRecord, error) {
	return s.insertReportItem(ctx, ReportItemRecord{
		CaseID: caseID, Kind: ReportKindEvidence, EvidenceID: evidenceID, Note: note,
	})
}

// AddReportNote pins an analyst response to the case report.
func (s *Store) AddReportNote(ctx context.Context, caseID, content string) (ReportItemRecord, error) {
	return s.insertReportItem(ctx, ReportItemRecord{
		CaseID: caseID, Kind: ReportKindResponse, Note: content,
	})
}

func (s *Store) insertReportItem(ctx context.Context, rec ReportItemRecord) (ReportItemRecord, error) {
	rec.ID = uuid.NewString()
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO report_items (id, case_id, kind, evidence_id, note, position, created_at)
VALUES ($1,$2,$3,$4,$5,
  (SELECT COALESCE(MAX(position),0)+1 FROM report_items WHERE case_id=$2),
  NOW())
RETURNING position, created_at
`, rec.ID, rec.CaseID, rec.Kind, rec.EvidenceID, rec.Note).Scan(&rec.Position, &rec.CreatedAt)
	if err != nil {
		return ReportItemRecord{}, fmt.Errorf("failed to add report item: %w", err)
	}
	return rec, nil
}

// ListReportItems returns a case's pinned items in report order.
func (s *Store) ListReportItems(ctx context.Context, caseID string) ([]ReportItemRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, case_id, kind, evidence_id, note, position, created_at
FROM report_items
WHERE case_id=$1
ORDER BY position, created_at
`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list report items: %w", err)
	}
	defer rows.Close()
	var out []ReportItemRecord
	for rows.Next() {
		var rec ReportItemRecord
		if err := rows.Scan(&rec.ID, &rec.CaseID, &rec.Kind, &rec.EvidenceID, &rec.Note, &rec.Position, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RemoveReportItem unpins one report item.
func (s *Store) RemoveReportItem(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM report_items WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to remove report item: %w", err)
	}
	return nil
}

// ReorderReportItems rewrites positions to match the given item-id order.
func (s *Store) ReorderReportItems(ctx context.Context, caseID string, ids []string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder: %w", err)
	}
	defer tx.Rollback()
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `
UPDATE report_items SET position=$3 WHERE id=$1 AND case_id=$2
`, id, caseID, i+1); err != nil {
			return fmt.Errorf("failed to reorder report item: %w", err)
		}
	}
	return tx.Commit()
}
