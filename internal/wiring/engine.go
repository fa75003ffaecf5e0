// Package wiring builds the verification engine from configuration: store,
// device registry, agent executor, runner, orchestrator and intake.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"provify/internal/agent"
	"provify/internal/config"
	"provify/internal/intake"
	"provify/internal/logging"
	"provify/internal/mcp"
	"provify/internal/observability"
	"provify/internal/orchestrate"
	"provify/internal/resolve"
	"provify/internal/runner"
	"provify/internal/store"
	"provify/internal/target"
)

// ErrNoLocalAgent is returned when a verification is requested outside the
// MCP server while agents are configured to connect over MCP.
var ErrNoLocalAgent = errors.New("agent.mode is mcp: verifications run through `provify serve` where device agents connect")

// Engine is the assembled application.
type Engine struct {
	Config       config.Config
	Store        store.Store
	Registry     target.Registry
	Mux          *agent.MuxExecutor
	Executor     agent.Executor
	Runner       *runner.Runner
	Orchestrator *orchestrate.Orchestrator
	Intake       *intake.Service
	Metrics      *observability.Metrics

	closers []io.Closer
	log     *slog.Logger
}

// Build assembles an engine. ctx bounds the MCP executor's lifetime.
func Build(ctx context.Context, cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	e := &Engine{Config: cfg, Metrics: observability.NewMetrics(), log: logging.New("wiring")}

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	e.Store = st
	if c, ok := st.(io.Closer); ok {
		e.closers = append(e.closers, c)
	}

	e.Registry = buildRegistry(cfg.Targets)

	switch cfg.Agent.Mode {
	case "command":
		e.Executor = agent.NewCommandExecutor(cfg.Agent.Command, cfg.Agent.Args, cfg.Agent.Env)
	default:
		e.Mux = agent.NewMuxExecutor(ctx)
		e.Executor = e.Mux
	}

	e.Runner = runner.New(e.Executor, e.Registry,
		runner.WithTimeout(cfg.Agent.Timeout.Duration),
		runner.WithMetrics(e.Metrics),
	)
	e.Orchestrator = orchestrate.New(e.Store, e.Registry, e.Runner,
		orchestrate.WithResolver(buildResolver(cfg)),
		orchestrate.WithMaxParallel(cfg.Orchestrator.MaxParallelTargets),
		orchestrate.WithMetrics(e.Metrics),
		orchestrate.WithPoolLock(target.NewPoolLock(cfg.Targets.LockFile)),
	)
	e.Intake = intake.New(e.Store)

	e.log.Debug("engine built",
		slog.String("store", cfg.Store.Driver),
		slog.String("targets", cfg.Targets.Source),
		slog.String("agent", cfg.Agent.Mode),
		slog.Duration("timeout", cfg.Agent.Timeout.Duration),
	)
	return e, nil
}

func openStore(c config.StoreConfig) (store.Store, error) {
	if c.Driver == "memory" {
		return store.NewMemStore(), nil
	}
	s, err := store.Open(c.Driver, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", c.Driver, err)
	}
	return s, nil
}

func buildRegistry(c config.TargetsConfig) target.Registry {
	if c.Source == "static" {
		ts := make([]target.Target, len(c.Static))
		for i, s := range c.Static {
			ts[i] = target.Target{ID: s.ID, Label: s.Label}
		}
		return target.NewStatic(ts...)
	}
	return target.NewADB(c.ADBPath)
}

func buildResolver(cfg config.Config) resolve.Resolver {
	chain := resolve.Chain{resolve.NewTable(cfg.Packages)}
	if cfg.Orchestrator.HeuristicPackages {
		chain = append(chain, resolve.Heuristic{})
	}
	return chain
}

// CanVerifyLocally reports whether this process can dispatch to agents
// without an MCP server.
func (e *Engine) CanVerifyLocally() error {
	if e.Mux != nil {
		return ErrNoLocalAgent
	}
	return nil
}

// MCPServer builds the MCP server over this engine.
func (e *Engine) MCPServer() *mcp.Server {
	return mcp.NewServer(mcp.Deps{
		Orchestrator: e.Orchestrator,
		Store:        e.Store,
		Intake:       e.Intake,
		Registry:     e.Registry,
		Mux:          e.Mux,
	})
}

// Close releases the store.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
