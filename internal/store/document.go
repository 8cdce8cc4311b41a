package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/marginalia/internal/checksum"
)

// DocumentHash returns the content hash the viewer uses to identify the
// document at path. The local store acts as a read-through cache keyed by the
// cleaned path; on a miss the file is hashed and the result recorded. A file
// whose content changed without moving keeps its old hash.
func (db *DB) DocumentHash(ctx context.Context, path string) (string, error) {
	norm := filepath.Clean(path)

	var hash string
	err := db.local.QueryRowContext(ctx,
		`SELECT hash FROM document_hash WHERE path = ? LIMIT 1`, norm).Scan(&hash)
	switch {
	case err == nil:
		return hash, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("store: lookup document hash: %w", err)
	}

	hash, err = checksum.File(norm)
	if err != nil {
		return "", fmt.Errorf("store: hash document: %w", err)
	}
	if _, err := db.local.ExecContext(ctx,
		`INSERT INTO document_hash (path, hash) VALUES (?, ?)`, norm, hash); err != nil {
		return "", fmt.Errorf("store: record document hash: %w", err)
	}
	db.logger.Debug("store: document hashed", slog.String("path", norm), slog.String("hash", hash))
	return hash, nil
}
