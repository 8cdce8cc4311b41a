package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/askservice"
	"github.com/starford/marginalia/internal/geom"
	"github.com/starford/marginalia/internal/llm"
	"github.com/starford/marginalia/internal/pdfdoc"
	"github.com/starford/marginalia/internal/store"
	"github.com/starford/marginalia/internal/viewer"
)

var errMissingDatabases = fmt.Errorf("local and shared database paths are required: %w", apperr.ErrInvalidInput)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	// The viewer passes its database paths through quoted placeholders.
	cfg := *app.config
	cfg.Store.Local = unquote(cfg.Store.Local)
	cfg.Store.Shared = unquote(cfg.Store.Shared)
	app.config = &cfg
	if app.logger == nil {
		app.logger = slog.Default()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.version == "" {
		app.version = "dev"
	}
	if app.viewer == nil {
		app.viewer = viewer.NewCLI(app.config.Viewer.Executable, app.logger)
	}
	return app, nil
}

func (a *application) openStore() (*store.DB, error) {
	if !a.config.Store.Complete() {
		return nil, errMissingDatabases
	}
	db, err := store.Open(
		a.config.Store.Local,
		a.config.Store.Shared,
		a.logger,
		store.WithExactTolerance(a.config.Match.ExactTolerance),
	)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return db, nil
}

// chatProvider returns nil when no API key is configured; the service then
// reports the missing key when a question is asked.
func (a *application) chatProvider() (llm.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}
	p, err := llm.NewOpenAIProvider(a.config.LLM.ProviderConfig(), a.logger)
	if errors.Is(err, llm.ErrMissingAPIKey) {
		a.logger.Warn("chat provider unavailable", slog.String("error", err.Error()))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("init chat provider: %w", err)
	}
	return p, nil
}

func (a *application) newService(db *store.DB) (*askservice.Service, error) {
	provider, err := a.chatProvider()
	if err != nil {
		return nil, err
	}
	return askservice.New(askservice.Deps{
		Store:     db,
		Converter: geom.NewConverter(pdfdoc.Opener{}),
		Inspector: pdfdoc.Inspector{
			Window:   a.config.Context.Window,
			MaxChars: a.config.Context.MaxChars,
			Logger:   a.logger,
		},
		Provider: provider,
		Viewer:   a.viewer,
		Logger:   a.logger,
	}, askservice.Options{
		HighlightType: a.config.Match.HighlightType,
		NearTolerance: a.config.Match.NearTolerance,
		SystemPrompt:  a.config.LLM.SystemPrompt,
	}), nil
}
