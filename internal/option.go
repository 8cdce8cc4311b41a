package internal

import (
	"io"
	"log/slog"

	"github.com/starford/marginalia/internal/llm"
	"github.com/starford/marginalia/internal/viewer"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	logger   *slog.Logger
	version  string
	stdout   io.Writer
	viewer   viewer.Viewer
	provider llm.Provider
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithOutput sets where commands print replies and history views.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithViewer replaces the viewer built from the configured executable.
func WithViewer(v viewer.Viewer) Option {
	return func(a *application) {
		a.viewer = v
	}
}

// WithProvider replaces the chat provider built from the LLM configuration.
func WithProvider(p llm.Provider) Option {
	return func(a *application) {
		a.provider = p
	}
}
