// Package server exposes the ecoroute tools over MCP stdio, HTTP+SSE and a
// plain JSON API.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/ecoroute/pkg/tools"
	"github.com/NERVsystems/ecoroute/pkg/version"
)

// ServerName is the name announced to MCP clients
const ServerName = "ecoroute"

// Server encapsulates the MCP server with the route planning tools.
type Server struct {
	srv          *mcpserver.MCPServer
	stdio        *mcpserver.StdioServer
	in           io.Reader
	out          io.Writer
	logger       *slog.Logger
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	mu           sync.Mutex
	once         sync.Once // guards close(stopCh)
	listenCancel context.CancelFunc
	ctxCancel    context.CancelFunc
	ctxGoroutine sync.Once
}

// NewServer creates an MCP server with every tool and prompt of registry.
func NewServer(registry *tools.Registry) *Server {
	logger := slog.Default()
	logger.Info("initializing ecoroute MCP server",
		"name", ServerName,
		"version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)
	registry.RegisterAll(srv)

	stdio := mcpserver.NewStdioServer(srv)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	return &Server{
		srv:    srv,
		stdio:  stdio,
		in:     os.Stdin,
		out:    os.Stdout,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Run serves MCP over stdin/stdout and blocks until the server is stopped
// or the input stream ends.
func (s *Server) Run() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.listenCancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(s.doneCh)
		err := s.stdio.Listen(ctx, s.in, s.out)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			s.logger.Error("server error", "error", err)
		}

		// Unblock Run when the client hangs up
		s.Shutdown()
	}()

	<-s.stopCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	<-s.doneCh
	return nil
}

// RunWithContext is Run that also shuts down when ctx is canceled.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.ctxGoroutine.Do(func() {
		derived, cancel := context.WithCancel(ctx)
		s.ctxCancel = cancel

		go func() {
			select {
			case <-derived.Done():
				s.Shutdown()
			case <-s.stopCh:
			}
		}()
	})

	return s.Run()
}

// Shutdown signals Run to return. It does not block.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.once.Do(func() {
		close(s.stopCh)
	})

	if s.listenCancel != nil {
		s.listenCancel()
	}
	if s.ctxCancel != nil {
		s.ctxCancel()
	}
}

// WaitForShutdown blocks until the server has fully shut down.
func (s *Server) WaitForShutdown() {
	<-s.doneCh
}

// GetMCPServer returns the underlying MCP server for the HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}
