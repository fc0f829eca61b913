package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/odoo-mcp/internal/monitor"
	"github.com/flemzord/odoo-mcp/internal/odoo"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Session       *odoo.SessionState `json:"session,omitempty"`
	Odoo          *monitor.Status    `json:"odoo,omitempty"`
	Checks        int                `json:"checks"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Version:       g.appCtx.Version,
			UptimeSeconds: int64(g.now().Sub(g.startedAt) / time.Second),
		}

		if g.client != nil {
			state := g.client.Session().State()
			resp.Session = &state
		}

		if g.monitor != nil {
			if st, ok := g.monitor.Last(); ok {
				resp.Odoo = &st
			}
			resp.Checks = g.monitor.Checks()
		}

		writeJSON(w, resp, false)
	}
}
