// Package testutil provides shared test helpers for annotation stores,
// documents and export directories.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/storage"
	"github.com/starford/marginalia/internal/store"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStore opens a local/shared store pair in a temp dir that is closed on
// cleanup.
func TestStore(t *testing.T, opts ...store.Option) *store.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "local.db"), filepath.Join(dir, "shared.db"), Logger(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDocument writes a placeholder document and returns its path and the
// hash the store assigned to it.
func TestDocument(t *testing.T, db *store.DB) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 "+t.Name()), 0o644); err != nil {
		t.Fatal(err)
	}
	hash, err := db.DocumentHash(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	return path, hash
}

// SeedConversation stores an AI highlight over begin/end with one session
// holding a question and an answer.
func SeedConversation(t *testing.T, db *store.DB, docHash string, begin, end models.AbsolutePos, question, answer string) (int64, *models.Session) {
	t.Helper()
	ctx := context.Background()
	hid, err := db.FindOrCreateHighlight(ctx, docHash, "selected text", models.HighlightTypeAI, begin, end)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := db.CreateSession(ctx, store.NewSession{
		HighlightID:   &hid,
		DocumentHash:  docHash,
		SelectionText: "selected text",
		Question:      question,
		Metadata:      map[string]string{"title": "Test Paper", "file_name": "paper.pdf"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.AppendMessage(ctx, sess.ID, models.RoleUser, question); err != nil {
		t.Fatal(err)
	}
	if answer != "" {
		if _, err := db.AppendMessage(ctx, sess.ID, models.RoleAssistant, answer); err != nil {
			t.Fatal(err)
		}
		if err := db.UpdatePreview(ctx, sess.ID, answer); err != nil {
			t.Fatal(err)
		}
	}
	sess, err = db.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	return hid, sess
}

// TestExportDir creates a temporary export root with a storage.Provider.
func TestExportDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
