package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/marginalia/internal"
	pkgconfig "github.com/starford/marginalia/pkg/config"
)

var version = "dev"

// loadConfig reads the optional config file and applies the flags of the
// running command on top.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if v := cmd.String("viewer"); v != "" {
		cfg.Viewer.Executable = v
	}
	if v := cmd.String("local-db"); v != "" {
		cfg.Store.Local = v
	}
	if v := cmd.String("shared-db"); v != "" {
		cfg.Store.Shared = v
	}
	return cfg, nil
}

// setup loads the configuration, lets apply adjust it, and installs the
// logger. The returned closer flushes the log file.
func setup(cmd *cli.Command, apply func(*internal.Config)) ([]internal.Option, io.Closer, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if apply != nil {
		apply(cfg)
	}
	logger, closer, err := internal.NewLogger(cfg.App, os.Args, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithLogger(logger),
		internal.WithVersion(version),
	}, closer, nil
}

// positional returns the i-th argument when the viewer passed them in its
// fixed order instead of as flags.
func positional(cmd *cli.Command, flag string, i int) string {
	if v := cmd.String(flag); v != "" {
		return v
	}
	return cmd.Args().Get(i)
}

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask the model about a selection, or open its history when no question is given",
		ArgsUsage: "[viewer selection file question begin end local-db shared-db]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "viewer", Usage: "Viewer executable used for status messages", Sources: cli.EnvVars("MARGINALIA_VIEWER")},
			&cli.StringFlag{Name: "selection", Usage: "Selected text"},
			&cli.StringFlag{Name: "file", Usage: "Path of the PDF"},
			&cli.StringFlag{Name: "question", Usage: "Question about the selection"},
			&cli.StringFlag{Name: "begin", Usage: "Selection start as \"page offset_x offset_y\""},
			&cli.StringFlag{Name: "end", Usage: "Selection end as \"page offset_x offset_y\""},
			&cli.StringFlag{Name: "local-db", Usage: "Viewer local database", Sources: cli.EnvVars("MARGINALIA_LOCAL_DB")},
			&cli.StringFlag{Name: "shared-db", Usage: "Viewer shared database", Sources: cli.EnvVars("MARGINALIA_SHARED_DB")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() >= 8 {
				return runAskPositional(ctx, cmd)
			}
			opts, closer, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer closer.Close()
			return internal.Ask(ctx, internal.AskParams{
				FilePath:  cmd.String("file"),
				Selection: cmd.String("selection"),
				Question:  cmd.String("question"),
				Begin:     cmd.String("begin"),
				End:       cmd.String("end"),
			}, opts...)
		},
	}
}

func runAskPositional(ctx context.Context, cmd *cli.Command) error {
	opts, closer, err := setup(cmd, func(cfg *internal.Config) {
		cfg.Viewer.Executable = positional(cmd, "viewer", 0)
		cfg.Store.Local = positional(cmd, "local-db", 6)
		cfg.Store.Shared = positional(cmd, "shared-db", 7)
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	return internal.Ask(ctx, internal.AskParams{
		Selection: positional(cmd, "selection", 1),
		FilePath:  positional(cmd, "file", 2),
		Question:  positional(cmd, "question", 3),
		Begin:     positional(cmd, "begin", 4),
		End:       positional(cmd, "end", 5),
	}, opts...)
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Print the conversation history near a click position as JSON",
		ArgsUsage: "[viewer file pos local-db shared-db]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "viewer", Usage: "Viewer executable used for status messages", Sources: cli.EnvVars("MARGINALIA_VIEWER")},
			&cli.StringFlag{Name: "file", Usage: "Path of the PDF"},
			&cli.StringFlag{Name: "pos", Usage: "Click position as \"page offset_x offset_y\", relative to the page centre"},
			&cli.StringFlag{Name: "local-db", Usage: "Viewer local database", Sources: cli.EnvVars("MARGINALIA_LOCAL_DB")},
			&cli.StringFlag{Name: "shared-db", Usage: "Viewer shared database", Sources: cli.EnvVars("MARGINALIA_SHARED_DB")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, closer, err := setup(cmd, func(cfg *internal.Config) {
				if cmd.Args().Len() >= 5 {
					cfg.Viewer.Executable = positional(cmd, "viewer", 0)
					cfg.Store.Local = positional(cmd, "local-db", 3)
					cfg.Store.Shared = positional(cmd, "shared-db", 4)
				}
			})
			if err != nil {
				return err
			}
			defer closer.Close()
			return internal.History(ctx, internal.HistoryParams{
				FilePath: positional(cmd, "file", 1),
				Pos:      positional(cmd, "pos", 2),
			}, opts...)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write Markdown transcripts of a document's conversations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "Path of the PDF", Required: true},
			&cli.StringFlag{Name: "out", Usage: "Export directory (defaults to export.dir)"},
			&cli.StringFlag{Name: "local-db", Usage: "Viewer local database", Sources: cli.EnvVars("MARGINALIA_LOCAL_DB")},
			&cli.StringFlag{Name: "shared-db", Usage: "Viewer shared database", Sources: cli.EnvVars("MARGINALIA_SHARED_DB")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, closer, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer closer.Close()
			return internal.Export(ctx, internal.ExportParams{
				FilePath: cmd.String("file"),
				Dir:      cmd.String("out"),
			}, opts...)
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "local-db", Usage: "Viewer local database", Sources: cli.EnvVars("MARGINALIA_LOCAL_DB")},
		&cli.StringFlag{Name: "shared-db", Usage: "Viewer shared database", Sources: cli.EnvVars("MARGINALIA_SHARED_DB")},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve saved conversations over HTTP with a live event stream",
		Flags: storeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, closer, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer closer.Close()
			if err := internal.Run(ctx, opts...); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Expose saved conversations as MCP tools over stdio",
		Flags: storeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, closer, err := setup(cmd, nil)
			if err != nil {
				return err
			}
			defer closer.Close()
			return internal.ServeMCP(ctx, opts...)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "marginalia",
		Usage:   "Ask an LLM about PDF selections and keep the conversations next to your highlights",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("MARGINALIA_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			askCommand(),
			historyCommand(),
			exportCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
