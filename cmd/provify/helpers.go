package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"provify/internal/config"
	"provify/internal/format"
	"provify/internal/logging"
	"provify/internal/observability"
	"provify/internal/wiring"
)

// load reads the configuration and applies the logging flags.
func (g *globalFlags) load() (config.Config, error) {
	cfg, err := config.LoadFromPath(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return config.Config{}, err
	}
	logging.Init(level, cfg.Logging.Format)
	return cfg, nil
}

// withEngine builds the engine for one command invocation and tears it down
// afterwards.
func (g *globalFlags) withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *wiring.Engine) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	shutdown, err := observability.InitTracing(cfg.Observability.TraceExporter, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logging.New("cli").Warn("tracing shutdown", slog.String("error", err.Error()))
		}
	}()

	e, err := wiring.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			logging.New("cli").Warn("close engine", slog.String("error", err.Error()))
		}
	}()
	return fn(ctx, e)
}

// mode picks the table style: the --format flag, else box drawing on a
// terminal and plain ASCII otherwise.
func (g *globalFlags) mode(w io.Writer) (format.Mode, error) {
	if g.output != "" {
		m, ok := format.ParseMode(g.output)
		if !ok {
			return format.Plain, fmt.Errorf("unknown --format %q: want ascii, plain or markdown", g.output)
		}
		return m, nil
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return format.ASCII, nil
	}
	return format.Plain, nil
}

// print writes a rendered table in the selected style.
func (g *globalFlags) print(cmd *cobra.Command, render func(format.Mode) string) error {
	out := cmd.OutOrStdout()
	m, err := g.mode(out)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, render(m))
	return nil
}
