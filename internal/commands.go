package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/askservice"
	"github.com/starford/marginalia/internal/geom"
	"github.com/starford/marginalia/internal/mcpserver"
	"github.com/starford/marginalia/internal/storage"
)

// Status messages reported before the service is available.
const (
	statusAskMissingDatabases     = "AI error: missing database paths"
	statusHistoryMissingDatabases = "AI history error: missing database paths"
	statusHistoryBadPosition      = "AI history error: unable to parse position"
)

// AskParams are the raw arguments of a selection event as the viewer passes
// them. Positions use the viewer's "page offset_x offset_y" form.
type AskParams struct {
	FilePath  string
	Selection string
	Question  string
	Begin     string
	End       string
}

// Ask records a question about a selection and streams the reply to the
// configured output. Without a question the selection's history is printed
// as JSON instead.
func Ask(ctx context.Context, p AskParams, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger

	selection := unquote(p.Selection)
	if strings.TrimSpace(selection) == "" {
		setStatus(ctx, app, askservice.StatusNoSelection)
		return nil
	}

	db, err := app.openStore()
	if err != nil {
		if errors.Is(err, errMissingDatabases) {
			setStatus(ctx, app, statusAskMissingDatabases)
		}
		return err
	}
	defer db.Close()

	svc, err := app.newService(db)
	if err != nil {
		return err
	}

	req := askservice.AskRequest{
		FilePath:  unquote(p.FilePath),
		Selection: selection,
		Question:  strings.TrimSpace(unquote(p.Question)),
	}
	if pos, ok := geom.ParsePosition(unquote(p.Begin)); ok {
		req.Begin = &pos
	}
	if pos, ok := geom.ParsePosition(unquote(p.End)); ok {
		req.End = &pos
	}
	if req.Begin == nil || req.End == nil {
		logger.Warn("selection coordinates unavailable",
			slog.String("begin", p.Begin), slog.String("end", p.End))
	}

	printer := &deltaPrinter{w: app.stdout}
	result, err := svc.Ask(ctx, req, printer)
	printer.finish()

	if result != nil && result.History != nil {
		if werr := writeIndentedJSON(app.stdout, result.History); werr != nil {
			return werr
		}
	}
	if errors.Is(err, apperr.ErrCancelled) {
		// The exchange did not complete; the viewer sees a failed command.
		logger.Info("ask cancelled")
	}
	return err
}

// HistoryParams are the raw arguments of a history click.
type HistoryParams struct {
	FilePath string
	Pos      string
}

// History prints the history view for the AI highlight nearest to a click.
func History(ctx context.Context, p HistoryParams, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	db, err := app.openStore()
	if err != nil {
		if errors.Is(err, errMissingDatabases) {
			setStatus(ctx, app, statusHistoryMissingDatabases)
		}
		return err
	}
	defer db.Close()

	pos, ok := geom.ParsePosition(unquote(p.Pos))
	if !ok {
		setStatus(ctx, app, statusHistoryBadPosition)
		return fmt.Errorf("parse position %q: %w", p.Pos, apperr.ErrInvalidInput)
	}

	svc, err := app.newService(db)
	if err != nil {
		return err
	}
	view, err := svc.History(ctx, askservice.HistoryRequest{
		FilePath: unquote(p.FilePath),
		Pos:      pos,
	})
	if err != nil {
		return err
	}
	return writeIndentedJSON(app.stdout, view)
}

// ExportParams select the document whose conversations are exported.
type ExportParams struct {
	FilePath string
	// Dir overrides the configured export directory.
	Dir string
}

// Export writes Markdown transcripts of a document's conversations.
func Export(ctx context.Context, p ExportParams, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	db, err := app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	docHash, err := db.DocumentHash(ctx, unquote(p.FilePath))
	if err != nil {
		return fmt.Errorf("hash document: %w", err)
	}

	dir := p.Dir
	if dir == "" {
		dir = app.config.Export.Dir
	}
	dst, err := storage.NewFS(dir)
	if err != nil {
		return fmt.Errorf("init export dir: %w", err)
	}

	svc, err := app.newService(db)
	if err != nil {
		return err
	}
	report, err := svc.Export(ctx, docHash, dst)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	app.logger.Info("export finished",
		slog.String("dir", dir),
		slog.Int("written", report.Written),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("removed", report.Removed))
	_, err = fmt.Fprintf(app.stdout, "%s: %d written, %d unchanged, %d removed\n",
		dir, report.Written, report.Unchanged, report.Removed)
	return err
}

// ServeMCP exposes saved conversations to MCP clients on stdin/stdout.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	db, err := app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := app.newService(db)
	if err != nil {
		return err
	}
	app.logger.Info("MCP server starting", slog.String("version", app.version))

	errCh := make(chan error, 1)
	go func() { errCh <- mcpserver.New(svc, app.version, app.logger).ServeStdio() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func setStatus(ctx context.Context, app *application, msg string) {
	if err := app.viewer.SetStatus(ctx, msg); err != nil {
		app.logger.Warn("set status failed", slog.String("error", err.Error()))
	}
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// deltaPrinter writes the growth of each cumulative snapshot.
type deltaPrinter struct {
	w       io.Writer
	printed string
}

func (p *deltaPrinter) Update(text string) {
	if strings.HasPrefix(text, p.printed) {
		_, _ = io.WriteString(p.w, text[len(p.printed):])
	} else {
		_, _ = io.WriteString(p.w, "\n"+text)
	}
	p.printed = text
}

func (p *deltaPrinter) finish() {
	if p.printed != "" {
		_, _ = io.WriteString(p.w, "\n")
	}
}
