package mcptools

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"fwdctl/pkg/logging"
)

const logSubsystem = "MCP"

// Server exposes the forward tools over MCP, either on stdio for
// editor-spawned processes or as an SSE endpoint for remote clients.
type Server struct {
	tools *ForwardTools

	mu        sync.Mutex
	mcpServer *server.MCPServer
	sseServer *server.SSEServer
}

// NewServer assembles the MCP server and registers every forward tool.
func NewServer(version string, tools *ForwardTools) *Server {
	s := &Server{tools: tools}

	s.mcpServer = server.NewMCPServer(
		"fwdctl",
		version,
		server.WithToolCapabilities(true),
	)

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"forward_start":    tools.HandleForwardStart,
		"forward_stop":     tools.HandleForwardStop,
		"forward_stop_all": tools.HandleForwardStopAll,
		"forward_list":     tools.HandleForwardList,
		"pod_inspect":      tools.HandlePodInspect,
	}

	serverTools := make([]server.ServerTool, 0, len(handlers))
	for _, tool := range tools.GetForwardTools() {
		handler, ok := handlers[tool.Name]
		if !ok {
			continue
		}
		serverTools = append(serverTools, server.ServerTool{Tool: tool, Handler: handler})
	}
	s.mcpServer.AddTools(serverTools...)

	return s
}

// ServeStdio serves MCP on stdin/stdout and blocks until the client
// disconnects. Logging must already be pointed at stderr so stdout stays a
// clean protocol channel.
func (s *Server) ServeStdio() error {
	logging.Info(logSubsystem, "Serving MCP on stdio")
	return server.ServeStdio(s.mcpServer)
}

// StartSSE exposes the server at http://host:port/sse. It does not block;
// use Stop to shut the listener down.
func (s *Server) StartSSE(host string, port int) error {
	s.mu.Lock()
	if s.sseServer != nil {
		s.mu.Unlock()
		return fmt.Errorf("MCP server already started")
	}

	baseURL := fmt.Sprintf("http://%s:%d", host, port)
	sseServer := server.NewSSEServer(
		s.mcpServer,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
	)
	s.sseServer = sseServer
	s.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", host, port)
	logging.Info(logSubsystem, "Starting MCP server on %s", addr)

	go func() {
		if err := sseServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logging.Error(logSubsystem, err, "SSE server error")
		}
	}()

	return nil
}

// Stop shuts the SSE listener down. Safe to call when only stdio was used.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sseServer := s.sseServer
	s.sseServer = nil
	s.mu.Unlock()

	if sseServer == nil {
		return nil
	}

	logging.Info(logSubsystem, "Stopping MCP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sseServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down SSE server: %w", err)
	}
	return nil
}
