package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// NewLogger builds the JSON logger described by cfg. With a log file set,
// records are appended to it and the returned closer closes the file;
// otherwise they go to fallback. Every invocation starts with a record
// carrying its arguments.
func NewLogger(cfg ApplicationConfig, args []string, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	var w io.Writer = fallback
	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger.Info("invocation",
		slog.String("started_at", time.Now().UTC().Format(time.RFC3339Nano)),
		slog.Any("argv", args))
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
