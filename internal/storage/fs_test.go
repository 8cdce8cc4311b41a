package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/marginalia/internal/checksum"
)

func tempExport(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempExport(t)
	content := []byte("# Session\nAnswer\n")
	if err := s.Write("abc/session-1.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("abc/session-1.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempExport(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempExport(t)
	_ = s.Write("abc/session-1.md", []byte("a"))
	_ = s.Write("abc/session-2.md", []byte("b"))
	_ = s.Write("other/session-3.md", []byte("c"))
	_ = s.Write("abc/readme.txt", []byte("not md"))

	items, err := s.List("abc")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Path != "abc/session-1.md" || items[0].Checksum != checksum.Sum([]byte("a")) {
		t.Errorf("items[0] = %+v", items[0])
	}
}

func TestList_MissingDir(t *testing.T) {
	s := tempExport(t)
	items, err := s.List("nothing-here")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempExport(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempExport(t)
	_ = s.Write("atomic.md", []byte("original"))
	if err := s.Write("atomic.md", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".marginalia-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "exports", "nested")
	if _, err := NewFS(root); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(f, []byte("x"), 0o644)
	if _, err := NewFS(f); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestDelete_PrunesEmptyDocumentDir(t *testing.T) {
	s := tempExport(t)
	_ = s.Write("abc/session-1.md", []byte("a"))
	_ = s.Write("abc/session-2.md", []byte("b"))

	if err := s.Delete("abc/session-1.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "abc")); err != nil {
		t.Fatalf("dir removed while a transcript remains: %v", err)
	}

	if err := s.Delete("abc/session-2.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "abc")); !os.IsNotExist(err) {
		t.Errorf("empty dir still present: %v", err)
	}
	if _, err := os.Stat(s.Root()); err != nil {
		t.Errorf("root removed: %v", err)
	}
}
