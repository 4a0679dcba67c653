// Package mcp exposes company introspection over the Model Context Protocol
// so external assistants can inspect agents, tasks, and spend.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/AgentCorp/internal/bus"
	"github.com/Strob0t/AgentCorp/internal/cost"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
	"github.com/Strob0t/AgentCorp/internal/service"
)

// ServerConfig configures the MCP server endpoint.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string // empty disables auth
}

// StatusReader provides the aggregate company snapshot.
type StatusReader interface {
	Status() service.Status
}

// OrgChartReader provides the reporting tree.
type OrgChartReader interface {
	OrgChart() []service.OrgNode
}

// ServerDeps are the read-only collaborators the tools expose. Nil fields
// produce tool errors rather than panics.
type ServerDeps struct {
	Status  StatusReader
	Chart   OrgChartReader
	Board   *task.Board
	Tracker *cost.Tracker
	Bus     *bus.Bus
}

// Server hosts the MCP tools and resources over streamable HTTP.
type Server struct {
	cfg  ServerConfig
	deps ServerDeps

	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:       cfg,
		deps:      deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcpServer }

// Start binds the listener and serves in the background. Bind errors are
// returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen on %s: %w", s.cfg.Addr, err)
	}

	handler := AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
	s.httpServer = &http.Server{Handler: handler}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server terminated", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
