// Package mcpserver exposes the dealradar backend as Model Context Protocol
// tools so assistants can queue companies and read their scores.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"dealradar/internal/api"
	"dealradar/internal/logging"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// Server serves the dealradar tools.
type Server struct {
	backend api.Backend
	logger  *slog.Logger
	server  *mcp.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger used for tool calls.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New registers every tool against backend.
func New(backend api.Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "mcp")
	s.server = mcp.NewServer(&mcp.Implementation{Name: "dealradar", Version: Version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one session over transport. Used by in-process clients.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}
