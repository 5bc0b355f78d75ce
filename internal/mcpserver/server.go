// Package mcpserver exposes call-log waterfalls to MCP clients over stdio.
package mcpserver

import (
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"waterfall-mcp/internal/calllog"
	"waterfall-mcp/internal/config"
	"waterfall-mcp/internal/waterfall"
)

const (
	// Name is the server name announced to clients.
	Name = "waterfall-profiler"
	// Version is the server version announced to clients.
	Version = "1.0.0"
)

// loaded is a call log together with its finalized waterfall.
type loaded struct {
	log *calllog.CallLog
	gui *waterfall.GUI
}

// Server serves the waterfall analysis tools.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger
	mcp    *server.MCPServer

	mu    sync.RWMutex
	cache map[string]*loaded
}

// New creates a server and registers every tool.
func New(cfg *config.Config, logger zerolog.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		mcp: server.NewMCPServer(
			Name,
			Version,
			server.WithLogging(),
		),
		cache: make(map[string]*loaded),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves requests on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info().Str("name", Name).Str("version", Version).Msg("Serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

// Load reads a call log, finalizes its waterfall and caches it under path.
func (s *Server) Load(path string) (*calllog.CallLog, *waterfall.GUI, error) {
	cl, err := calllog.ReadCallLog(path)
	if err != nil {
		return nil, nil, err
	}

	w, err := cl.Waterfall(s.cfg.Waterfall, waterfall.WithLogger(s.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure waterfall: %w", err)
	}
	gui := w.GUI()

	s.mu.Lock()
	s.cache[path] = &loaded{log: cl, gui: gui}
	s.mu.Unlock()

	s.logger.Debug().
		Str("file", path).
		Int("calls", cl.Stats.NumCalls).
		Int("problems", len(gui.Problems)).
		Msg("Loaded call log")
	return cl, gui, nil
}

func (s *Server) lookup(path string) (*loaded, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.cache[path]
	return l, ok
}
