package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/flemzord/odoo-mcp/internal/monitor"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string          `json:"status"` // "ok" or "degraded"
	Odoo   *monitor.Status `json:"odoo,omitempty"`
}

// handleHealth returns 200 while the last Odoo check succeeded and 503
// otherwise. Before the first scheduled check a live check is run. Without
// a monitor the endpoint only reports liveness.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if g.monitor != nil {
			st, ok := g.monitor.Last()
			if !ok {
				st = g.monitor.Check(r.Context())
			}
			resp.Odoo = &st
			if !st.Connected {
				resp.Status = "degraded"
			}
		}

		writeJSON(w, resp, resp.Status == "degraded")
	}
}

func writeJSON(w http.ResponseWriter, v any, unavailable bool) {
	w.Header().Set("Content-Type", "application/json")
	if unavailable {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(v)
}
