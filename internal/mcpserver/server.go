// Package mcpserver exposes Odoo operations as MCP tools, resources and a
// prompt over stdio, streamable HTTP or SSE.
package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/flemzord/odoo-mcp/internal/security"
	"github.com/mark3labs/mcp-go/server"
)

// Server is an MCP server bound to one Odoo client.
type Server struct {
	config Config
	mcp    *server.MCPServer
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	limiter  *security.RateLimiter
	audit    *security.AuditLogger
	redactor *security.Redactor
	metrics  *Metrics
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRateLimiter enforces the tool_call and write budgets.
func WithRateLimiter(rl *security.RateLimiter) Option {
	return func(o *options) { o.limiter = rl }
}

// WithAuditLogger audits write tool calls.
func WithAuditLogger(al *security.AuditLogger) Option {
	return func(o *options) { o.audit = al }
}

// WithRedactor redacts audited record values.
func WithRedactor(r *security.Redactor) Option {
	return func(o *options) { o.redactor = r }
}

// WithMetrics records per-tool metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New builds the MCP server with every tool, resource and prompt
// registered. cfg must already carry its defaults.
func New(cfg Config, client Odoo, opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(rateLimit(o.limiter, o.audit, o.metrics, o.logger)),
		server.WithToolHandlerMiddleware(instrument(o.metrics, o.logger)),
		server.WithToolHandlerMiddleware(auditWrites(o.audit, o.redactor)),
	}
	if cfg.Instructions != "" {
		serverOpts = append(serverOpts, server.WithInstructions(cfg.Instructions))
	}

	s := server.NewMCPServer(cfg.Name, cfg.Version, serverOpts...)

	ts := &toolset{odoo: client, logger: o.logger}
	s.AddTools(ts.tools()...)
	s.AddResources(resources()...)
	s.AddPrompt(queryAssistantPrompt())

	return &Server{config: cfg, mcp: s, logger: o.logger}
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio serves MCP over in/out until in reaches EOF or ctx is done.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server listening on stdio", "name", s.config.Name, "version", s.config.Version)
	return stdio.Listen(ctx, in, out)
}

// Handler returns the HTTP handler of the configured HTTP transport, or nil
// for stdio. The SSE handler answers on <endpoint>/sse and
// <endpoint>/message; the streamable handler answers on any path it is
// mounted at.
func (s *Server) Handler() http.Handler {
	switch s.config.Transport {
	case TransportHTTP:
		return server.NewStreamableHTTPServer(s.mcp,
			server.WithEndpointPath(s.config.EndpointPath),
		)
	case TransportSSE:
		return server.NewSSEServer(s.mcp,
			server.WithStaticBasePath(s.config.EndpointPath),
		)
	default:
		return nil
	}
}
