package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.metrics.middleware)

	// Public.
	r.Get("/health", g.handleHealth())
	if g.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
	}

	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit))
			r.Get("/status", g.handleStatus())
			g.mountMCP(r)
		})
	} else {
		g.mountMCP(r)
	}

	return r
}

// mountMCP serves the MCP transport handler at its endpoint path. The SSE
// transport also answers below it (/sse, /message).
func (g *Gateway) mountMCP(r chi.Router) {
	if g.mcp == nil {
		return
	}
	path := strings.TrimSuffix(g.mcpPath, "/")
	if path == "" {
		path = "/mcp"
	}
	h := streaming(g.mcp)
	r.Handle(path, h)
	r.Handle(path+"/*", h)
	g.logger.Info("mcp endpoint mounted", "path", path)
}

// streaming lifts the server write deadline for long-lived MCP streams.
func streaming(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
		next.ServeHTTP(w, r)
	})
}
