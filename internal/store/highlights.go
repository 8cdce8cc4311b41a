package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

const highlightColumns = `id, document_path, desc, type, begin_x, begin_y, end_x, end_y, is_ai`

// FindOrCreateHighlight returns the id of the AI highlight covering the given
// absolute rectangle. A highlight whose four coordinates each lie strictly
// within the exact tolerance is reused: its description and type are
// overwritten and it is marked AI-originated. Otherwise a new row is inserted.
func (db *DB) FindOrCreateHighlight(ctx context.Context, docHash, desc, typ string, begin, end models.AbsolutePos) (int64, error) {
	id, found, err := db.FindHighlight(ctx, docHash, begin, end, db.exactTolerance)
	if err != nil {
		return 0, err
	}
	if found {
		if _, err := db.shared.ExecContext(ctx,
			`UPDATE highlights SET desc = ?, type = ?, is_ai = 1 WHERE id = ?`, desc, typ, id); err != nil {
			return 0, fmt.Errorf("store: update highlight: %w", err)
		}
		db.logger.Debug("store: highlight reused", slog.Int64("id", id))
		return id, nil
	}

	res, err := db.shared.ExecContext(ctx, `
		INSERT INTO highlights (document_path, desc, type, begin_x, begin_y, end_x, end_y, is_ai)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	`, docHash, desc, typ, begin.X, begin.Y, end.X, end.Y)
	if err != nil {
		return 0, fmt.Errorf("store: insert highlight: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: highlight id: %w", err)
	}
	db.logger.Debug("store: highlight created", slog.Int64("id", id))
	return id, nil
}

// FindHighlight looks for a highlight of the document whose begin and end
// points both match within tolerance on every axis. When several match, the
// most recently inserted one wins.
func (db *DB) FindHighlight(ctx context.Context, docHash string, begin, end models.AbsolutePos, tolerance float64) (int64, bool, error) {
	var id int64
	err := db.shared.QueryRowContext(ctx, `
		SELECT id FROM highlights
		WHERE document_path = ?
		  AND ABS(begin_x - ?) < ?
		  AND ABS(begin_y - ?) < ?
		  AND ABS(end_x - ?) < ?
		  AND ABS(end_y - ?) < ?
		ORDER BY id DESC
		LIMIT 1
	`, docHash,
		begin.X, tolerance,
		begin.Y, tolerance,
		end.X, tolerance,
		end.Y, tolerance,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: find highlight: %w", err)
	}
	return id, true, nil
}

// GetHighlight loads a single highlight by id.
func (db *DB) GetHighlight(ctx context.Context, id int64) (*models.Highlight, error) {
	row := db.shared.QueryRowContext(ctx,
		`SELECT `+highlightColumns+` FROM highlights WHERE id = ?`, id)
	h, err := scanHighlight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: highlight %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get highlight: %w", err)
	}
	return h, nil
}

// ListHighlights returns every highlight of the document in store order.
func (db *DB) ListHighlights(ctx context.Context, docHash string) ([]models.Highlight, error) {
	rows, err := db.shared.QueryContext(ctx,
		`SELECT `+highlightColumns+` FROM highlights WHERE document_path = ?`, docHash)
	if err != nil {
		return nil, fmt.Errorf("store: list highlights: %w", err)
	}
	defer rows.Close()

	var out []models.Highlight
	for rows.Next() {
		h, err := scanHighlight(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan highlight: %w", err)
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list highlights: %w", err)
	}
	db.logger.Debug("store: highlights fetched",
		slog.String("document", docHash), slog.Int("count", len(out)))
	return out, nil
}

// DeleteHighlight removes a highlight; its sessions and their messages go with it.
func (db *DB) DeleteHighlight(ctx context.Context, id int64) error {
	if _, err := db.shared.ExecContext(ctx, `DELETE FROM highlights WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete highlight: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHighlight(r rowScanner) (*models.Highlight, error) {
	var (
		h    models.Highlight
		doc  sql.NullString
		desc sql.NullString
		typ  sql.NullString
		isAI sql.NullInt64
	)
	if err := r.Scan(&h.ID, &doc, &desc, &typ, &h.BeginX, &h.BeginY, &h.EndX, &h.EndY, &isAI); err != nil {
		return nil, err
	}
	h.DocumentHash = doc.String
	h.Desc = desc.String
	h.Type = typ.String
	h.IsAI = isAI.Int64 != 0
	return &h, nil
}
