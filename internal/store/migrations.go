package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

const localSchemaSQL = `
CREATE TABLE IF NOT EXISTS document_hash (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	hash TEXT NOT NULL
);
`

// baselineHighlightsSQL mirrors the host viewer's highlights table. It is only
// applied when the shared database has never been initialised by the host.
const baselineHighlightsSQL = `
CREATE TABLE IF NOT EXISTS highlights (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	document_path     TEXT,
	desc              TEXT,
	text_annot        TEXT,
	type              CHAR,
	creation_time     TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	modification_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	uuid              TEXT,
	begin_x           REAL,
	begin_y           REAL,
	end_x             REAL,
	end_y             REAL
);
`

// migration is one additive schema step. pending reports whether the step
// still has to run, which makes every step safe to re-apply on each startup
// even when another tool already upgraded the shared database.
type migration struct {
	name    string
	pending func(ctx context.Context, conn *sql.DB) (bool, error)
	stmt    string
}

var sharedMigrations = []migration{
	{
		name:    "highlights baseline",
		pending: tableMissing("highlights"),
		stmt:    baselineHighlightsSQL,
	},
	{
		name:    "create ai_sessions",
		pending: tableMissing("ai_sessions"),
		stmt: `
CREATE TABLE ai_sessions (
	id             INTEGER PRIMARY KEY,
	highlight_id   INTEGER,
	document_path  TEXT NOT NULL,
	selection_text TEXT,
	question       TEXT,
	answer_preview TEXT,
	context_snippet TEXT,
	metadata_json  TEXT,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL,
	FOREIGN KEY(highlight_id) REFERENCES highlights(id) ON DELETE CASCADE
)`,
	},
	{
		name:    "create ai_messages",
		pending: tableMissing("ai_messages"),
		stmt: `
CREATE TABLE ai_messages (
	id         INTEGER PRIMARY KEY,
	session_id INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY(session_id) REFERENCES ai_sessions(id) ON DELETE CASCADE
)`,
	},
	{
		name:    "index ai_sessions.document_path",
		pending: indexMissing("idx_ai_sessions_document_path"),
		stmt:    `CREATE INDEX idx_ai_sessions_document_path ON ai_sessions(document_path)`,
	},
	{
		name:    "index ai_messages.session_id",
		pending: indexMissing("idx_ai_messages_session_id"),
		stmt:    `CREATE INDEX idx_ai_messages_session_id ON ai_messages(session_id)`,
	},
	{
		name:    "highlights.is_ai",
		pending: columnMissing("highlights", "is_ai"),
		stmt:    `ALTER TABLE highlights ADD COLUMN is_ai INTEGER DEFAULT 0`,
	},
	{
		name:    "ai_sessions.context_snippet",
		pending: columnMissing("ai_sessions", "context_snippet"),
		stmt:    `ALTER TABLE ai_sessions ADD COLUMN context_snippet TEXT`,
	},
	{
		name:    "ai_sessions.metadata_json",
		pending: columnMissing("ai_sessions", "metadata_json"),
		stmt:    `ALTER TABLE ai_sessions ADD COLUMN metadata_json TEXT`,
	},
}

// migrate applies every pending shared-schema step in order.
func (db *DB) migrate() error {
	ctx := context.Background()
	for _, m := range sharedMigrations {
		pending, err := m.pending(ctx, db.shared)
		if err != nil {
			return fmt.Errorf("store: check migration %q: %w", m.name, err)
		}
		if !pending {
			continue
		}
		if _, err := db.shared.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("store: apply migration %q: %w", m.name, err)
		}
		db.logger.Debug("store: migration applied", slog.String("migration", m.name))
	}
	return nil
}

func tableMissing(table string) func(context.Context, *sql.DB) (bool, error) {
	return schemaObjectMissing("table", table)
}

func indexMissing(index string) func(context.Context, *sql.DB) (bool, error) {
	return schemaObjectMissing("index", index)
}

func schemaObjectMissing(kind, name string) func(context.Context, *sql.DB) (bool, error) {
	return func(ctx context.Context, conn *sql.DB) (bool, error) {
		var n int
		err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?`, kind, name).Scan(&n)
		return n == 0, err
	}
}

func columnMissing(table, column string) func(context.Context, *sql.DB) (bool, error) {
	return func(ctx context.Context, conn *sql.DB) (bool, error) {
		var n int
		err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
		return n == 0, err
	}
}
