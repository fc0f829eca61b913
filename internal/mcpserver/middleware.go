package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/flemzord/odoo-mcp/internal/security"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// rateLimit rejects tool calls over the tool_call budget, and write tools
// over the write budget, with a structured RateLimited result.
func rateLimit(limiter *security.RateLimiter, audit *security.AuditLogger, metrics *Metrics, logger *slog.Logger) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if limiter == nil {
				return next(ctx, req)
			}
			tool := req.Params.Name
			kind := security.KindToolCall
			err := limiter.Allow(kind)
			if err == nil && writeTools[tool] {
				kind = security.KindWrite
				err = limiter.Allow(kind)
			}
			if err == nil {
				return next(ctx, req)
			}

			logger.Warn("tool call rate limited", "tool", tool, "bucket", kind)
			metrics.record(tool, resultRateLimited, 0)
			audit.Log(security.AuditEvent{
				Type:   security.EventRateLimit,
				Tool:   tool,
				Model:  req.GetString("model", ""),
				Detail: kind,
			})
			return errorResult(err), nil
		}
	}
}

// instrument logs every tool call and records its metrics.
func instrument(metrics *Metrics, logger *slog.Logger) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			res, err := next(ctx, req)
			elapsed := time.Since(start)

			outcome := resultOK
			if err != nil || res == nil || res.IsError {
				outcome = resultError
			}
			metrics.record(req.Params.Name, outcome, elapsed)
			logger.Debug("tool call",
				"tool", req.Params.Name,
				"result", outcome,
				"duration", elapsed,
			)
			return res, err
		}
	}
}

// auditWrites records one audit event per write tool call. Values are
// redacted by key name before they reach the audit log.
func auditWrites(audit *security.AuditLogger, redactor *security.Redactor) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tool := req.Params.Name
			if audit == nil || !writeTools[tool] {
				return next(ctx, req)
			}

			res, err := next(ctx, req)

			event := security.AuditEvent{
				Type:   security.EventToolCall,
				Tool:   tool,
				Model:  req.GetString("model", ""),
				Method: req.GetString("method", ""),
			}
			if id, ok, idErr := intArg(req, "record_id"); ok && idErr == nil {
				event.RecordID = id
			}
			if values := redactedValues(req.GetString("values", ""), redactor); values != "" {
				event.Metadata = map[string]string{"values": values}
			}
			switch {
			case err != nil:
				event.Detail = err.Error()
			default:
				event.Success, event.Detail = resultOutcome(res)
			}
			audit.Log(event)
			return res, err
		}
	}
}

// resultOutcome reads success and error back from a tool result payload.
func resultOutcome(res *mcp.CallToolResult) (bool, string) {
	if res == nil || len(res.Content) == 0 {
		return false, ""
	}
	text, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		return !res.IsError, ""
	}
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		return !res.IsError, ""
	}
	return out.Success, out.Error
}

func redactedValues(text string, redactor *security.Redactor) string {
	if text == "" {
		return ""
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		return ""
	}
	if redactor != nil {
		redactor.RedactMap(values)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}
