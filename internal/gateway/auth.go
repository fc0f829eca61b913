package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/flemzord/odoo-mcp/internal/security"
)

// authMiddleware validates a Bearer token or Basic credentials in constant
// time. Rejections are written to the audit log when one is given.
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				auditAuthFailure(audit, r, "missing authorization header")
				unauthorized(w, cfg)
				return
			}

			if cfg.BearerToken != "" {
				if token, ok := strings.CutPrefix(auth, "Bearer "); ok && constantTimeEqual(token, cfg.BearerToken) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				// Evaluate both comparisons so timing does not reveal which one failed.
				userOK := constantTimeEqual(user, cfg.BasicUser)
				passOK := constantTimeEqual(pass, cfg.BasicPass)
				if ok && userOK && passOK {
					next.ServeHTTP(w, r)
					return
				}
			}

			auditAuthFailure(audit, r, "invalid credentials")
			unauthorized(w, cfg)
		})
	}
}

func unauthorized(w http.ResponseWriter, cfg AuthConfig) {
	if cfg.BasicUser != "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="odoo-mcp"`)
	} else {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func auditAuthFailure(audit *security.AuditLogger, r *http.Request, detail string) {
	audit.Log(security.AuditEvent{
		Type:   security.EventAuthFailure,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
