package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/flemzord/odoo-mcp/internal/security"
	"github.com/mark3labs/mcp-go/mcp"
)

// Error types reported in error_type besides the odoo.Kind values.
const (
	errorTypeArgument    = "InvalidArgument"
	errorTypeRateLimited = "RateLimited"
)

// payload is the JSON object returned as tool text.
type payload map[string]any

// textResult renders p as indented JSON. Values json cannot encode fall
// back to their string form.
func textResult(p payload) *mcp.CallToolResult {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		data, err = json.MarshalIndent(stringify(map[string]any(p)), "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf(`{"success": false, "error": %q}`, err.Error()))
		}
	}
	return mcp.NewToolResultText(string(data))
}

func stringify(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = stringify(e)
		}
		return out
	case payload:
		return stringify(map[string]any(t))
	case odoo.Record:
		return stringify(map[string]any(t))
	case odoo.Values:
		return stringify(map[string]any(t))
	case []odoo.Record:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = stringify(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = stringify(e)
		}
		return out
	default:
		if _, err := json.Marshal(v); err != nil {
			return fmt.Sprint(v)
		}
		return v
	}
}

// errorType classifies err for the error_type field.
func errorType(err error) string {
	var argErr *ArgumentError
	switch {
	case errors.As(err, &argErr):
		return errorTypeArgument
	case errors.Is(err, security.ErrRateLimited):
		return errorTypeRateLimited
	default:
		return odoo.Kind(err)
	}
}

// errorResult reports err as a failed tool call.
func errorResult(err error) *mcp.CallToolResult {
	res := textResult(payload{
		"success":    false,
		"error":      err.Error(),
		"error_type": errorType(err),
	})
	res.IsError = true
	return res
}
