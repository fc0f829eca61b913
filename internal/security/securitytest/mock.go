// Package securitytest provides test doubles for the security package.
package securitytest

import (
	"sync"

	"github.com/flemzord/odoo-mcp/internal/security"
)

// NewRedactor returns a Redactor without the default patterns, redacting
// only the given literals.
func NewRedactor(literals ...string) *security.Redactor {
	r := &security.Redactor{}
	for _, l := range literals {
		r.AddLiteral(l)
	}
	return r
}

// AuditRecorder captures audit events in memory.
type AuditRecorder struct {
	mu     sync.Mutex
	events []security.AuditEvent
}

// Logger returns an AuditLogger feeding the recorder. A non-nil redactor
// is applied as in production.
func (a *AuditRecorder) Logger(redactor *security.Redactor) *security.AuditLogger {
	return security.NewAuditLogger(security.AuditLoggerConfig{
		Redactor: redactor,
		OnEvent:  a.record,
	})
}

func (a *AuditRecorder) record(e security.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

// Events returns a copy of the recorded events.
func (a *AuditRecorder) Events() []security.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]security.AuditEvent(nil), a.events...)
}

// OfType returns the recorded events of type t.
func (a *AuditRecorder) OfType(t security.EventType) []security.AuditEvent {
	var out []security.AuditEvent
	for _, e := range a.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
