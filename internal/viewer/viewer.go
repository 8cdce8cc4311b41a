// Package viewer drives the host PDF viewer through its command-line interface.
package viewer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Viewer is the part of the host viewer this tool talks to.
type Viewer interface {
	// SetStatus shows a message in the viewer's status bar.
	SetStatus(ctx context.Context, msg string) error
	// Reload makes the viewer re-read annotations from the shared store.
	Reload(ctx context.Context) error
}

// CLI sends commands to a running viewer by invoking its executable.
type CLI struct {
	executable string
	logger     *slog.Logger
}

// NewCLI returns a CLI for the given executable path. An empty path yields a
// CLI that only logs.
func NewCLI(executable string, logger *slog.Logger) *CLI {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLI{executable: strings.TrimSpace(executable), logger: logger}
}

// SetStatus implements Viewer.
func (c *CLI) SetStatus(ctx context.Context, msg string) error {
	c.logger.Debug("viewer: set status", slog.Int("length", len(msg)))
	return c.run(ctx, "--execute-command", "set_status_string", "--execute-command-data", msg)
}

// Reload implements Viewer.
func (c *CLI) Reload(ctx context.Context) error {
	return c.run(ctx, "--execute-command", "reload")
}

func (c *CLI) run(ctx context.Context, args ...string) error {
	if c.executable == "" {
		c.logger.Debug("viewer: skipped, no executable", slog.String("command", args[1]))
		return nil
	}

	cmd := exec.CommandContext(ctx, c.executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if s := strings.TrimSpace(stdout.String()); s != "" {
		c.logger.Debug("viewer: stdout", slog.String("command", args[1]), slog.String("output", s))
	}
	if s := strings.TrimSpace(stderr.String()); s != "" {
		c.logger.Debug("viewer: stderr", slog.String("command", args[1]), slog.String("output", s))
	}
	if err != nil {
		return fmt.Errorf("viewer: %s: %w", args[1], err)
	}
	return nil
}

// Nop discards every command.
type Nop struct{}

// SetStatus implements Viewer.
func (Nop) SetStatus(context.Context, string) error { return nil }

// Reload implements Viewer.
func (Nop) Reload(context.Context) error { return nil }

var (
	_ Viewer = (*CLI)(nil)
	_ Viewer = Nop{}
)
