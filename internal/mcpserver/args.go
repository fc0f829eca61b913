package mcpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/flemzord/odoo-mcp/internal/security"
	"github.com/mark3labs/mcp-go/mcp"
)

var (
	errNotPositive = errors.New("must be positive")
	errNegative    = errors.New("must not be negative")
)

// ArgumentError is a tool argument that could not be decoded. It becomes a
// structured tool result, never a protocol error.
type ArgumentError struct {
	// Label names the argument in the message, e.g. "domain JSON".
	Label string
	Err   error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("Invalid %s: %v", e.Label, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// decodeJSON parses a JSON argument. Numbers without a fraction become
// int64 so they travel as XML-RPC integers; null becomes false, which is
// how Odoo spells "no value".
func decodeJSON(label, text string) (any, error) {
	data := []byte(text)
	if err := security.ValidateJSONArgument(data); err != nil {
		return nil, &ArgumentError{Label: label, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ArgumentError{Label: label, Err: err}
	}
	if dec.More() {
		return nil, &ArgumentError{Label: label, Err: errors.New("unexpected data after JSON value")}
	}
	return normalize(v), nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return false
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

// decodeDomain parses and validates a domain filter. Empty text is the
// match-all domain.
func decodeDomain(text string) (odoo.Domain, error) {
	if strings.TrimSpace(text) == "" {
		return odoo.Domain{}, nil
	}
	v, err := decodeJSON("domain JSON", text)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, &ArgumentError{Label: "domain JSON", Err: fmt.Errorf("expected an array, got %s", jsonKind(v))}
	}
	domain := odoo.Domain(list)
	if err := domain.Validate(); err != nil {
		return nil, &ArgumentError{Label: "domain", Err: err}
	}
	return domain, nil
}

func decodeObject(label, text string) (map[string]any, error) {
	v, err := decodeJSON(label, text)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ArgumentError{Label: label, Err: fmt.Errorf("expected an object, got %s", jsonKind(v))}
	}
	return m, nil
}

func decodeArray(label, text string) ([]any, error) {
	v, err := decodeJSON(label, text)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, &ArgumentError{Label: label, Err: fmt.Errorf("expected an array, got %s", jsonKind(v))}
	}
	return list, nil
}

// splitFields turns "name, email,,phone" into [name email phone].
func splitFields(text string) []string {
	var fields []string
	for f := range strings.SplitSeq(text, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// requireString returns a non-empty string argument.
func requireString(req mcp.CallToolRequest, key string) (string, error) {
	s, err := req.RequireString(key)
	if err != nil {
		return "", &ArgumentError{Label: key, Err: err}
	}
	if strings.TrimSpace(s) == "" {
		return "", &ArgumentError{Label: key, Err: errors.New("must not be empty")}
	}
	return s, nil
}

// optionalString returns a string argument, tolerating a missing key or a
// JSON null.
func optionalString(req mcp.CallToolRequest, key string) (string, error) {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ArgumentError{Label: key, Err: fmt.Errorf("expected a string, got %T", v)}
	}
	return s, nil
}

// intArg reads an integer argument. Hosts send JSON numbers (float64) or,
// occasionally, numeric strings; fractional values are rejected.
func intArg(req mcp.CallToolRequest, key string) (n int64, present bool, err error) {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, true, &ArgumentError{Label: key, Err: fmt.Errorf("%v is not an integer", t)}
		}
		return int64(t), true, nil
	case int:
		return int64(t), true, nil
	case int64:
		return t, true, nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, true, &ArgumentError{Label: key, Err: err}
		}
		return i, true, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, true, &ArgumentError{Label: key, Err: fmt.Errorf("%q is not an integer", t)}
		}
		return i, true, nil
	default:
		return 0, true, &ArgumentError{Label: key, Err: fmt.Errorf("expected an integer, got %T", v)}
	}
}

func requireInt(req mcp.CallToolRequest, key string) (int64, error) {
	n, ok, err := intArg(req, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &ArgumentError{Label: key, Err: fmt.Errorf("required argument %q not found", key)}
	}
	return n, nil
}
