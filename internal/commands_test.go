package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/askservice"
	"github.com/starford/marginalia/internal/llm"
	"github.com/starford/marginalia/internal/testutil"
)

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *statusRecorder) SetStatus(_ context.Context, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
	return nil
}

func (r *statusRecorder) Reload(context.Context) error { return nil }

func (r *statusRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

type cannedProvider struct {
	snapshots []string
}

func (p cannedProvider) StreamChat(context.Context, []llm.Message) (<-chan llm.StreamResponse, error) {
	ch := make(chan llm.StreamResponse, len(p.snapshots)+1)
	text := ""
	for _, s := range p.snapshots {
		text = s
		ch <- llm.StreamResponse{Text: s}
	}
	ch <- llm.StreamResponse{Text: text, Done: true}
	close(ch)
	return ch, nil
}

// interruptedProvider streams part of a reply and is then cancelled.
type interruptedProvider struct{}

func (interruptedProvider) StreamChat(context.Context, []llm.Message) (<-chan llm.StreamResponse, error) {
	ch := make(chan llm.StreamResponse, 2)
	ch <- llm.StreamResponse{Text: "Atten"}
	ch <- llm.StreamResponse{Text: "Atten", Cancelled: true}
	close(ch)
	return ch, nil
}

type commandEnv struct {
	cfg    *Config
	viewer *statusRecorder
	out    *bytes.Buffer
	pdf    string
}

func newCommandEnv(t *testing.T) *commandEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Store.Local = filepath.Join(dir, "local.db")
	cfg.Store.Shared = filepath.Join(dir, "shared.db")
	cfg.Export.Dir = filepath.Join(dir, "export")

	pdf := filepath.Join(dir, "paper.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4 placeholder"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &commandEnv{cfg: cfg, viewer: &statusRecorder{}, out: &bytes.Buffer{}, pdf: pdf}
}

func (e *commandEnv) options(snapshots ...string) []Option {
	return []Option{
		WithConfig(e.cfg),
		WithLogger(testutil.Logger()),
		WithViewer(e.viewer),
		WithOutput(e.out),
		WithProvider(cannedProvider{snapshots: snapshots}),
	}
}

func TestAsk_StreamsReply(t *testing.T) {
	e := newCommandEnv(t)

	err := Ask(context.Background(), AskParams{
		FilePath:  e.pdf,
		Selection: `"attention"`,
		Question:  "What is it?",
		Begin:     "0 10 20",
		End:       "0 60 35",
	}, e.options("Atten", "Attention is", "Attention is a weighting.")...)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := e.out.String(); got != "Attention is a weighting.\n" {
		t.Errorf("output = %q", got)
	}
	if got := e.viewer.last(); got != askservice.StatusReady {
		t.Errorf("status = %q", got)
	}

	e.out.Reset()
	if err := Export(context.Background(), ExportParams{FilePath: e.pdf}, e.options()...); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(e.out.String(), "1 written") {
		t.Errorf("export output = %q", e.out.String())
	}
}

func TestAsk_CancelledFails(t *testing.T) {
	e := newCommandEnv(t)
	opts := append(e.options(), WithProvider(interruptedProvider{}))

	err := Ask(context.Background(), AskParams{
		FilePath:  e.pdf,
		Selection: "attention",
		Question:  "What is it?",
		Begin:     "0 10 20",
		End:       "0 60 35",
	}, opts...)
	if !errors.Is(err, apperr.ErrCancelled) {
		t.Fatalf("Ask error = %v, want cancellation", err)
	}
	if got := e.viewer.last(); got != askservice.StatusCancelled {
		t.Errorf("status = %q", got)
	}
}

func TestNewApplication_UnquotesDatabasePaths(t *testing.T) {
	e := newCommandEnv(t)
	local, shared := e.cfg.Store.Local, e.cfg.Store.Shared
	e.cfg.Store.Local = `"` + local + `"`
	e.cfg.Store.Shared = " '" + shared + "' "

	app, err := newApplication(e.options())
	if err != nil {
		t.Fatal(err)
	}
	if app.config.Store.Local != local || app.config.Store.Shared != shared {
		t.Errorf("store paths = %q, %q", app.config.Store.Local, app.config.Store.Shared)
	}
	db, err := app.openStore()
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	db.Close()
}

func TestAsk_QuotedArguments(t *testing.T) {
	e := newCommandEnv(t)

	err := Ask(context.Background(), AskParams{
		FilePath:  `"` + e.pdf + `"`,
		Selection: `"attention"`,
		Question:  `'What is it?'`,
		Begin:     `"0 10 20"`,
		End:       `'0,60,35'`,
	}, e.options("Attention is a weighting.")...)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := e.viewer.last(); got != askservice.StatusReady {
		t.Errorf("status = %q", got)
	}
}

func TestAsk_NoSelection(t *testing.T) {
	e := newCommandEnv(t)
	e.cfg.Store = StoreConfig{}

	if err := Ask(context.Background(), AskParams{FilePath: e.pdf, Selection: "  "}, e.options()...); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := e.viewer.last(); got != askservice.StatusNoSelection {
		t.Errorf("status = %q", got)
	}
}

func TestAsk_MissingDatabases(t *testing.T) {
	e := newCommandEnv(t)
	e.cfg.Store.Shared = ""

	err := Ask(context.Background(), AskParams{FilePath: e.pdf, Selection: "text", Question: "q"}, e.options()...)
	if err == nil {
		t.Fatal("expected error without shared database")
	}
	if got := e.viewer.last(); got != "AI error: missing database paths" {
		t.Errorf("status = %q", got)
	}
}

func TestAsk_WithoutQuestionPrintsHistory(t *testing.T) {
	e := newCommandEnv(t)

	if err := Ask(context.Background(), AskParams{FilePath: e.pdf, Selection: "text"}, e.options()...); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	var view askservice.HistoryView
	if err := json.Unmarshal(e.out.Bytes(), &view); err != nil {
		t.Fatalf("output is not a history view: %v\n%s", err, e.out.String())
	}
	if view.Selection != "text" {
		t.Errorf("selection = %q", view.Selection)
	}
}

func TestHistory_BadPosition(t *testing.T) {
	e := newCommandEnv(t)

	err := History(context.Background(), HistoryParams{FilePath: e.pdf, Pos: "not a position"}, e.options()...)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if got := e.viewer.last(); got != "AI history error: unable to parse position" {
		t.Errorf("status = %q", got)
	}
}

func TestHistory_MissingDatabases(t *testing.T) {
	e := newCommandEnv(t)
	e.cfg.Store = StoreConfig{}

	if err := History(context.Background(), HistoryParams{FilePath: e.pdf, Pos: "0 0 0"}, e.options()...); err == nil {
		t.Fatal("expected error without databases")
	}
	if got := e.viewer.last(); got != "AI history error: missing database paths" {
		t.Errorf("status = %q", got)
	}
}

func TestDeltaPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &deltaPrinter{w: &buf}
	p.Update("Hel")
	p.Update("Hello")
	p.Update("Hello, world")
	p.finish()
	if got := buf.String(); got != "Hello, world\n" {
		t.Errorf("output = %q", got)
	}
}
