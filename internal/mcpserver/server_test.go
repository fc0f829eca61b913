package mcpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/odoo-mcp/internal/config"
	"github.com/flemzord/odoo-mcp/internal/mcpserver"
	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/flemzord/odoo-mcp/internal/odoo/odootest"
	"github.com/flemzord/odoo-mcp/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newClient(t *testing.T, srv *odootest.Server) *odoo.Client {
	t.Helper()
	retries := 0
	delay := config.Duration(time.Millisecond)
	client, err := odoo.New(odoo.Config{
		URL:          "https://odoo.test",
		Database:     "db",
		Username:     "admin",
		Password:     "secret",
		MaxRetries:   &retries,
		RetryDelay:   &delay,
		DefaultLimit: 100,
		MaxLimit:     1000,
	}, odoo.WithDialer(srv), odoo.WithExecutor(odoo.InlineExecutor{}))
	if err != nil {
		t.Fatalf("odoo.New() error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newServer(t *testing.T, srv *odootest.Server, opts ...mcpserver.Option) *mcpserver.Server {
	t.Helper()
	cfg := mcpserver.Config{Name: "odoo-mcp", Version: "test", Transport: mcpserver.TransportStdio}
	return mcpserver.New(cfg, newClient(t, srv), opts...)
}

// rpc sends one JSON-RPC request through the server and returns the result
// member of the response.
func rpc(t *testing.T, s *mcpserver.Server, method string, params any) json.RawMessage {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatal(err)
	}
	resp := s.MCP().HandleMessage(t.Context(), msg)
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decoding response: %v\n%s", err, data)
	}
	if envelope.Error != nil {
		t.Fatalf("%s: protocol error %q", method, envelope.Error.Message)
	}
	return envelope.Result
}

func callTool(t *testing.T, s *mcpserver.Server, name string, args map[string]any) map[string]any {
	t.Helper()
	raw := rpc(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &result); err != nil || len(result.Content) != 1 {
		t.Fatalf("unexpected tool result %s (%v)", raw, err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].Text), &out); err != nil {
		t.Fatalf("tool text is not JSON: %v\n%s", err, result.Content[0].Text)
	}
	return out
}

func TestServer_ListsTools(t *testing.T) {
	t.Parallel()

	s := newServer(t, &odootest.Server{})
	raw := rpc(t, s, "tools/list", map[string]any{})
	for _, name := range []string{
		"check_odoo_connection", "search_odoo_records", "create_odoo_record",
		"update_odoo_record", "delete_odoo_record", "get_odoo_model_fields", "call_odoo_method",
	} {
		if !bytes.Contains(raw, []byte(`"`+name+`"`)) {
			t.Errorf("tools/list does not include %s", name)
		}
	}
}

func TestServer_SearchEndToEnd(t *testing.T) {
	t.Parallel()

	srv := &odootest.Server{
		ExecuteKwFunc: func(call odootest.ExecuteKwCall) (any, error) {
			switch call.Method {
			case "search":
				return []any{int64(3), int64(5)}, nil
			case "read":
				return []any{
					map[string]any{"id": int64(3), "name": "Acme"},
					map[string]any{"id": int64(5), "name": "Globex", "parent_id": false},
				}, nil
			}
			return nil, fmt.Errorf("unexpected method %s", call.Method)
		},
	}
	s := newServer(t, srv)

	out := callTool(t, s, "search_odoo_records", map[string]any{
		"model":  "res.partner",
		"domain": `[["is_company", "=", true]]`,
		"fields": "name,parent_id",
		"limit":  5000,
	})
	if out["success"] != true || out["count"] != float64(2) {
		t.Fatalf("result = %v", out)
	}

	calls := srv.ExecuteCalls()
	if len(calls) != 2 {
		t.Fatalf("execute_kw calls = %d, want 2", len(calls))
	}
	search := calls[0]
	if search.UID != 2 || search.Password != "secret" || search.Model != "res.partner" {
		t.Errorf("search call = %+v", search)
	}
	if search.Kwargs["limit"] != 1000 {
		t.Errorf("limit = %v, want clamp to 1000", search.Kwargs["limit"])
	}
	if fields, _ := calls[1].Kwargs["fields"].([]any); len(fields) != 2 {
		t.Errorf("read fields = %#v", calls[1].Kwargs["fields"])
	}
}

func TestServer_InvalidDomainIsAToolResult(t *testing.T) {
	t.Parallel()

	srv := &odootest.Server{}
	s := newServer(t, srv)

	out := callTool(t, s, "search_odoo_records", map[string]any{
		"model":  "res.partner",
		"domain": `[["name", "ilike"`,
	})
	if out["success"] != false {
		t.Errorf("success = %v", out["success"])
	}
	if msg, _ := out["error"].(string); !strings.HasPrefix(msg, "Invalid domain JSON: ") {
		t.Errorf("error = %q", msg)
	}
	if srv.AuthCalls() != 0 {
		t.Errorf("handshake performed for an invalid request")
	}
}

func TestServer_AuthenticationFailure(t *testing.T) {
	t.Parallel()

	srv := &odootest.Server{
		AuthenticateFunc: func(string, string, string) (any, error) { return false, nil },
	}
	s := newServer(t, srv)

	out := callTool(t, s, "create_odoo_record", map[string]any{
		"model":  "res.partner",
		"values": `{"name": "Acme"}`,
	})
	if out["error_type"] != "AuthenticationError" {
		t.Errorf("result = %v", out)
	}
	if msg, _ := out["error"].(string); strings.Contains(msg, "secret") {
		t.Errorf("error leaks the password: %q", msg)
	}
}

func TestServer_CheckConnection(t *testing.T) {
	t.Parallel()

	s := newServer(t, &odootest.Server{})
	out := callTool(t, s, "check_odoo_connection", map[string]any{})
	if out["connected"] != true || out["server_version"] != "17.0" || out["database"] != "db" {
		t.Errorf("result = %v", out)
	}
}

func TestServer_MiddlewareWiring(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := mcpserver.NewMetrics(reg)
	limiter := security.NewRateLimiter(security.RateLimitConfig{ToolCallsPerMin: 1})
	s := newServer(t, &odootest.Server{},
		mcpserver.WithRateLimiter(limiter),
		mcpserver.WithMetrics(metrics),
	)

	first := callTool(t, s, "get_odoo_model_fields", map[string]any{"model": "res.partner"})
	second := callTool(t, s, "get_odoo_model_fields", map[string]any{"model": "res.partner"})

	if first["success"] != true {
		t.Errorf("first call = %v", first)
	}
	if second["error_type"] != "RateLimited" {
		t.Errorf("second call = %v", second)
	}

	const want = `
# HELP odoo_mcp_tool_calls_total MCP tool invocations by tool and outcome.
# TYPE odoo_mcp_tool_calls_total counter
odoo_mcp_tool_calls_total{result="ok",tool="get_odoo_model_fields"} 1
odoo_mcp_tool_calls_total{result="rate_limited",tool="get_odoo_model_fields"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "odoo_mcp_tool_calls_total"); err != nil {
		t.Error(err)
	}
}

func TestServer_Resources(t *testing.T) {
	t.Parallel()

	s := newServer(t, &odootest.Server{})

	for uri, key := range map[string]string{
		"odoo://models/common":    "res.partner",
		"odoo://examples/domains": "logical_operators",
	} {
		raw := rpc(t, s, "resources/read", map[string]any{"uri": uri})
		var result struct {
			Contents []struct {
				URI      string `json:"uri"`
				MIMEType string `json:"mimeType"`
				Text     string `json:"text"`
			} `json:"contents"`
		}
		if err := json.Unmarshal(raw, &result); err != nil || len(result.Contents) != 1 {
			t.Fatalf("%s: unexpected result %s (%v)", uri, raw, err)
		}
		c := result.Contents[0]
		var doc map[string]any
		if err := json.Unmarshal([]byte(c.Text), &doc); err != nil {
			t.Fatalf("%s: text is not JSON: %v", uri, err)
		}
		if _, ok := doc[key]; !ok || c.MIMEType != "application/json" || c.URI != uri {
			t.Errorf("%s: missing %q or wrong metadata: %+v", uri, key, c)
		}
	}
}

func TestServer_QueryAssistantPrompt(t *testing.T) {
	t.Parallel()

	s := newServer(t, &odootest.Server{})

	tests := []struct {
		operation string
		want      string
	}{
		{"", "search_odoo_records"},
		{"create", "create_odoo_record"},
		{"update", "update_odoo_record"},
		{"delete", "deletion is permanent"},
		{"other", "Available operations"},
	}
	for _, tt := range tests {
		args := map[string]any{"model": "sale.order", "requirements": "only confirmed orders"}
		if tt.operation != "" {
			args["operation"] = tt.operation
		}
		raw := rpc(t, s, "prompts/get", map[string]any{"name": "odoo_query_assistant", "arguments": args})
		var result struct {
			Messages []struct {
				Role    string `json:"role"`
				Content struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(raw, &result); err != nil || len(result.Messages) != 1 {
			t.Fatalf("operation %q: unexpected result %s (%v)", tt.operation, raw, err)
		}
		text := result.Messages[0].Content.Text
		if result.Messages[0].Role != "user" {
			t.Errorf("operation %q: role = %s", tt.operation, result.Messages[0].Role)
		}
		for _, want := range []string{tt.want, "sale.order", "only confirmed orders"} {
			if !strings.Contains(text, want) {
				t.Errorf("operation %q: prompt does not mention %q", tt.operation, want)
			}
		}
	}
}
