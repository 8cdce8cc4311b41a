package store

import (
	"context"
	"fmt"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

// AppendMessage adds a turn to the session. The session's updated_at and
// preview are left alone; callers bump them with UpdatePreview once a reply
// is complete.
func (db *DB) AppendMessage(ctx context.Context, sessionID int64, role, content string) (*models.Message, error) {
	if role != models.RoleUser && role != models.RoleAssistant {
		return nil, fmt.Errorf("store: message role %q: %w", role, apperr.ErrInvalidInput)
	}

	ts := db.timestamp()
	res, err := db.shared.ExecContext(ctx, `
		INSERT INTO ai_messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, role, content, ts)
	if err != nil {
		return nil, fmt.Errorf("store: append message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: message id: %w", err)
	}
	return &models.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: ts,
	}, nil
}

// Messages returns the session's turns in conversation order.
func (db *DB) Messages(ctx context.Context, sessionID int64) ([]models.Message, error) {
	rows, err := db.shared.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM ai_messages
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
