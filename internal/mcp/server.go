// Package mcp exposes provify over the Model Context Protocol. Operators
// (or an orchestrating LLM) manage and verify bugs; device agents pull
// verification tasks with next_task and answer with submit_result.
package mcp

import (
	"errors"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"provify/internal/agent"
	"provify/internal/intake"
	"provify/internal/logging"
	"provify/internal/orchestrate"
	"provify/internal/store"
	"provify/internal/target"
)

var (
	// DefaultNextTaskTimeout bounds how long next_task waits for work.
	DefaultNextTaskTimeout = 10 * time.Second
	// Version is reported in the MCP implementation info.
	Version = "dev"
)

// Deps are the services behind the tools. Mux is nil when agents are run as
// local commands; the agent tools are then not registered.
type Deps struct {
	Orchestrator *orchestrate.Orchestrator
	Store        store.Store
	Intake       *intake.Service
	Registry     target.Registry
	Mux          *agent.MuxExecutor
}

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server

	deps Deps
	log  *slog.Logger
}

// NewServer creates an MCP server with the operator tools and, when deps.Mux
// is set, the agent tools.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, log: logging.New("mcp")}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "provify", Version: Version},
		nil,
	)
	s.registerOperatorTools()
	if deps.Mux != nil {
		s.registerAgentTools()
	}
	return s
}

// Shutdown fails any verification still waiting on a device agent.
func (s *Server) Shutdown() {
	if s.deps.Mux != nil {
		s.deps.Mux.Abort(errors.New("mcp server shutting down"))
	}
}
