package mcp

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// shutdownGrace bounds how long an HTTP shutdown waits for in-flight
// tool calls to drain.
const shutdownGrace = 5 * time.Second

// Server wraps the mcp-go server and exposes the document tools over
// stdio or streamable HTTP.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version),
	}
}

// AddTool registers a tool with the server.
func (s *Server) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
}

// ServeStdio serves requests on stdin/stdout until ctx is canceled or
// stdin closes. Cancellation is a clean stop, not an error.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.serveStreams(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serveStreams(ctx context.Context, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeHTTP serves the streamable HTTP transport on addr until ctx is
// canceled, then drains in-flight requests and stops the listener.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcpServer)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return httpServer.Shutdown(stopCtx)
}
