package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

const sessionColumns = `id, highlight_id, document_path, selection_text, question,
	answer_preview, context_snippet, metadata_json, created_at, updated_at`

// NewSession carries the fields of a session to create.
type NewSession struct {
	HighlightID    *int64
	DocumentHash   string
	SelectionText  string
	Question       string
	ContextSnippet string
	Metadata       map[string]string
}

// CreateSession inserts a session with an empty answer preview and returns it
// as stored.
func (db *DB) CreateSession(ctx context.Context, s NewSession) (*models.Session, error) {
	meta := s.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("store: encode session metadata: %w", err)
	}

	var snippet sql.NullString
	if s.ContextSnippet != "" {
		snippet = sql.NullString{String: s.ContextSnippet, Valid: true}
	}

	ts := db.timestamp()
	res, err := db.shared.ExecContext(ctx, `
		INSERT INTO ai_sessions (highlight_id, document_path, selection_text, question,
		                         answer_preview, context_snippet, metadata_json,
		                         created_at, updated_at)
		VALUES (?, ?, ?, ?, '', ?, ?, ?, ?)
	`, nullableID(s.HighlightID), s.DocumentHash, s.SelectionText, s.Question,
		snippet, string(metaJSON), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: session id: %w", err)
	}
	return db.GetSession(ctx, id)
}

// GetSession loads a session summary. Unknown ids yield apperr.ErrNotFound.
func (db *DB) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	row := db.shared.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM ai_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: session %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return s, nil
}

// ListSessions returns the document's sessions, most recently active first.
func (db *DB) ListSessions(ctx context.Context, docHash string) ([]models.Session, error) {
	rows, err := db.shared.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM ai_sessions
		WHERE document_path = ?
		ORDER BY updated_at DESC
	`, docHash)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SessionByHighlight returns the most recently updated session attached to
// the highlight, or nil when it has none.
func (db *DB) SessionByHighlight(ctx context.Context, highlightID int64) (*models.Session, error) {
	row := db.shared.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM ai_sessions
		WHERE highlight_id = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`, highlightID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: session by highlight: %w", err)
	}
	return s, nil
}

// UpdatePreview overwrites the answer preview and marks the session as just updated.
func (db *DB) UpdatePreview(ctx context.Context, sessionID int64, preview string) error {
	if _, err := db.shared.ExecContext(ctx,
		`UPDATE ai_sessions SET answer_preview = ?, updated_at = ? WHERE id = ?`,
		preview, db.timestamp(), sessionID); err != nil {
		return fmt.Errorf("store: update preview: %w", err)
	}
	return nil
}

// DeleteSession removes a session and, through the foreign key, its messages.
func (db *DB) DeleteSession(ctx context.Context, id int64) error {
	if _, err := db.shared.ExecContext(ctx, `DELETE FROM ai_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	return nil
}

func scanSession(r rowScanner) (*models.Session, error) {
	var (
		s           models.Session
		highlightID sql.NullInt64
		selection   sql.NullString
		question    sql.NullString
		preview     sql.NullString
		snippet     sql.NullString
		metaJSON    sql.NullString
	)
	if err := r.Scan(&s.ID, &highlightID, &s.DocumentHash, &selection, &question,
		&preview, &snippet, &metaJSON, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if highlightID.Valid {
		id := highlightID.Int64
		s.HighlightID = &id
	}
	s.SelectionText = selection.String
	s.Question = question.String
	s.AnswerPreview = preview.String
	s.ContextSnippet = snippet.String
	s.Metadata = map[string]string{}
	if metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &s.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &s, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
