package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// fakeOdoo is a scripted Odoo implementation. Nil funcs succeed with
// empty results.
type fakeOdoo struct {
	info      odoo.ServerInfo
	searchFn  func(model string, opts odoo.SearchOptions) ([]odoo.Record, error)
	createFn  func(model string, values odoo.Values) (int64, error)
	updateFn  func(model string, id int64, values odoo.Values) (bool, error)
	deleteFn  func(model string, id int64) (bool, error)
	fieldsFn  func(model string) (map[string]any, error)
	callFn    func(model, method string, args []any, kwargs map[string]any) (any, error)
	callCount int
}

func (f *fakeOdoo) CheckConnection(context.Context) odoo.ServerInfo {
	f.callCount++
	return f.info
}

func (f *fakeOdoo) SearchRecords(_ context.Context, model string, opts odoo.SearchOptions) ([]odoo.Record, error) {
	f.callCount++
	if f.searchFn == nil {
		return []odoo.Record{}, nil
	}
	return f.searchFn(model, opts)
}

func (f *fakeOdoo) CreateRecord(_ context.Context, model string, values odoo.Values) (int64, error) {
	f.callCount++
	if f.createFn == nil {
		return 1, nil
	}
	return f.createFn(model, values)
}

func (f *fakeOdoo) UpdateRecord(_ context.Context, model string, id int64, values odoo.Values) (bool, error) {
	f.callCount++
	if f.updateFn == nil {
		return true, nil
	}
	return f.updateFn(model, id, values)
}

func (f *fakeOdoo) DeleteRecord(_ context.Context, model string, id int64) (bool, error) {
	f.callCount++
	if f.deleteFn == nil {
		return true, nil
	}
	return f.deleteFn(model, id)
}

func (f *fakeOdoo) GetModelFields(_ context.Context, model string) (map[string]any, error) {
	f.callCount++
	if f.fieldsFn == nil {
		return map[string]any{}, nil
	}
	return f.fieldsFn(model)
}

func (f *fakeOdoo) CallMethod(_ context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	f.callCount++
	if f.callFn == nil {
		return nil, nil
	}
	return f.callFn(model, method, args, kwargs)
}

func newToolset(f *fakeOdoo) *toolset {
	return &toolset{odoo: f, logger: slog.New(slog.DiscardHandler)}
}

// invoke runs handler and decodes the JSON text it returns.
func invoke(t *testing.T, handler server.ToolHandlerFunc, tool string, args map[string]any) (map[string]any, *mcp.CallToolResult) {
	t.Helper()
	res, err := handler(t.Context(), newRequest(tool, args))
	if err != nil {
		t.Fatalf("%s returned a protocol error: %v", tool, err)
	}
	return decodeResult(t, res), res
}

func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("unexpected result %#v", res)
	}
	text, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("content %T is not text", res.Content[0])
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, text.Text)
	}
	return out
}

func TestTools_Registered(t *testing.T) {
	t.Parallel()

	var names []string
	for _, st := range newToolset(&fakeOdoo{}).tools() {
		names = append(names, st.Tool.Name)
		if st.Handler == nil {
			t.Errorf("tool %s has no handler", st.Tool.Name)
		}
	}
	want := []string{
		ToolCheckConnection, ToolSearchRecords, ToolCreateRecord, ToolUpdateRecord,
		ToolDeleteRecord, ToolGetModelFields, ToolCallMethod,
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("tools = %v, want %v", names, want)
	}
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	t.Run("connected", func(t *testing.T) {
		t.Parallel()
		ts := newToolset(&fakeOdoo{info: odoo.ServerInfo{
			ServerVersion:   "17.0",
			ServerSerie:     "17.0",
			ProtocolVersion: 1,
			Database:        "db",
			Connected:       true,
		}})
		out, res := invoke(t, ts.checkConnection, ToolCheckConnection, nil)
		if res.IsError {
			t.Error("IsError = true for a connected server")
		}
		if out["connected"] != true || out["server_version"] != "17.0" || out["database"] != "db" {
			t.Errorf("result = %v", out)
		}
		if out["protocol_version"] != float64(1) {
			t.Errorf("protocol_version = %v, want 1", out["protocol_version"])
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		ts := newToolset(&fakeOdoo{info: odoo.ServerInfo{Error: "connection refused"}})
		out, res := invoke(t, ts.checkConnection, ToolCheckConnection, nil)
		if !res.IsError {
			t.Error("IsError = false for an unreachable server")
		}
		if out["connected"] != false || out["error"] != "connection refused" {
			t.Errorf("result = %v", out)
		}
		if _, ok := out["server_version"]; ok {
			t.Error("server_version reported while disconnected")
		}
	})
}

func TestSearchRecords_PassesOptions(t *testing.T) {
	t.Parallel()

	var gotModel string
	var gotOpts odoo.SearchOptions
	f := &fakeOdoo{searchFn: func(model string, opts odoo.SearchOptions) ([]odoo.Record, error) {
		gotModel, gotOpts = model, opts
		return []odoo.Record{{"id": int64(1), "name": "Azure"}}, nil
	}}

	out, _ := invoke(t, newToolset(f).searchRecords, ToolSearchRecords, map[string]any{
		"model":  "res.partner",
		"domain": `[["customer_rank", ">", 0]]`,
		"fields": "name, email",
		"limit":  float64(5),
		"offset": float64(10),
		"order":  "name ASC",
	})

	if gotModel != "res.partner" {
		t.Errorf("model = %q", gotModel)
	}
	wantDomain := odoo.Domain{[]any{"customer_rank", ">", int64(0)}}
	if !reflect.DeepEqual(gotOpts.Domain, wantDomain) {
		t.Errorf("domain = %#v, want %#v", gotOpts.Domain, wantDomain)
	}
	if !reflect.DeepEqual(gotOpts.Fields, []string{"name", "email"}) {
		t.Errorf("fields = %v", gotOpts.Fields)
	}
	if gotOpts.Limit == nil || *gotOpts.Limit != 5 {
		t.Errorf("limit = %v, want 5", gotOpts.Limit)
	}
	if gotOpts.Offset != 10 || gotOpts.Order != "name ASC" {
		t.Errorf("offset/order = %d/%q", gotOpts.Offset, gotOpts.Order)
	}

	if out["success"] != true || out["count"] != float64(1) || out["model"] != "res.partner" {
		t.Errorf("result = %v", out)
	}
	records, ok := out["records"].([]any)
	if !ok || len(records) != 1 {
		t.Fatalf("records = %#v", out["records"])
	}
}

func TestSearchRecords_Defaults(t *testing.T) {
	t.Parallel()

	var gotOpts odoo.SearchOptions
	f := &fakeOdoo{searchFn: func(_ string, opts odoo.SearchOptions) ([]odoo.Record, error) {
		gotOpts = opts
		return []odoo.Record{}, nil
	}}
	out, _ := invoke(t, newToolset(f).searchRecords, ToolSearchRecords, map[string]any{"model": "res.partner"})

	if gotOpts.Limit != nil {
		t.Errorf("limit = %d, want nil (client default)", *gotOpts.Limit)
	}
	if len(gotOpts.Domain) != 0 || gotOpts.Fields != nil || gotOpts.Offset != 0 {
		t.Errorf("opts = %+v", gotOpts)
	}
	records, ok := out["records"].([]any)
	if !ok || len(records) != 0 {
		t.Errorf("records = %#v, want empty array", out["records"])
	}
}

func TestSearchRecords_InvalidArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   map[string]any
		prefix string
	}{
		{name: "domain syntax", args: map[string]any{"model": "res.partner", "domain": `[["name"`}, prefix: "Invalid domain JSON: "},
		{name: "domain shape", args: map[string]any{"model": "res.partner", "domain": `[["name", "="]]`}, prefix: "Invalid domain: "},
		{name: "missing model", args: map[string]any{}, prefix: "Invalid model: "},
		{name: "zero limit", args: map[string]any{"model": "res.partner", "limit": float64(0)}, prefix: "Invalid limit: "},
		{name: "negative offset", args: map[string]any{"model": "res.partner", "offset": float64(-1)}, prefix: "Invalid offset: "},
		{name: "fields not string", args: map[string]any{"model": "res.partner", "fields": []any{"name"}}, prefix: "Invalid fields: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := &fakeOdoo{}
			out, res := invoke(t, newToolset(f).searchRecords, ToolSearchRecords, tt.args)
			if !res.IsError {
				t.Error("IsError = false")
			}
			if out["success"] != false || out["error_type"] != errorTypeArgument {
				t.Errorf("result = %v", out)
			}
			if msg, _ := out["error"].(string); !strings.HasPrefix(msg, tt.prefix) {
				t.Errorf("error = %q, want prefix %q", msg, tt.prefix)
			}
			if f.callCount != 0 {
				t.Errorf("odoo called %d times for an invalid request", f.callCount)
			}
		})
	}
}

func TestCreateRecord(t *testing.T) {
	t.Parallel()

	var gotValues odoo.Values
	f := &fakeOdoo{createFn: func(model string, values odoo.Values) (int64, error) {
		gotValues = values
		return 42, nil
	}}
	out, _ := invoke(t, newToolset(f).createRecord, ToolCreateRecord, map[string]any{
		"model":  "res.partner",
		"values": `{"name": "Acme", "customer_rank": 1, "parent_id": null}`,
	})

	want := odoo.Values{"name": "Acme", "customer_rank": int64(1), "parent_id": false}
	if !reflect.DeepEqual(gotValues, want) {
		t.Errorf("values = %#v, want %#v", gotValues, want)
	}
	if out["success"] != true || out["record_id"] != float64(42) {
		t.Errorf("result = %v", out)
	}
}

func TestCreateRecord_InvalidValues(t *testing.T) {
	t.Parallel()

	f := &fakeOdoo{}
	out, _ := invoke(t, newToolset(f).createRecord, ToolCreateRecord, map[string]any{
		"model":  "res.partner",
		"values": `["not", "an", "object"]`,
	})
	if out["error"] != "Invalid values JSON: expected an object, got array" {
		t.Errorf("error = %v", out["error"])
	}
	if f.callCount != 0 {
		t.Error("odoo called for invalid values")
	}
}

func TestUpdateAndDeleteRecord(t *testing.T) {
	t.Parallel()

	var updatedID, deletedID int64
	f := &fakeOdoo{
		updateFn: func(_ string, id int64, _ odoo.Values) (bool, error) {
			updatedID = id
			return false, nil
		},
		deleteFn: func(_ string, id int64) (bool, error) {
			deletedID = id
			return true, nil
		},
	}
	ts := newToolset(f)

	out, res := invoke(t, ts.updateRecord, ToolUpdateRecord, map[string]any{
		"model":     "res.partner",
		"record_id": float64(7),
		"values":    `{"email": "new@example.com"}`,
	})
	if updatedID != 7 {
		t.Errorf("updated id = %d, want 7", updatedID)
	}
	if out["success"] != false || res.IsError {
		t.Errorf("a false write is reported as success=false without a tool error, got %v (IsError %v)", out, res.IsError)
	}

	out, _ = invoke(t, ts.deleteRecord, ToolDeleteRecord, map[string]any{
		"model":     "res.partner",
		"record_id": "9",
	})
	if deletedID != 9 || out["success"] != true || out["record_id"] != float64(9) {
		t.Errorf("delete: id %d, result %v", deletedID, out)
	}

	out, _ = invoke(t, ts.deleteRecord, ToolDeleteRecord, map[string]any{"model": "res.partner"})
	if out["error_type"] != errorTypeArgument {
		t.Errorf("missing record_id: %v", out)
	}
}

func TestGetModelFields(t *testing.T) {
	t.Parallel()

	f := &fakeOdoo{fieldsFn: func(model string) (map[string]any, error) {
		return map[string]any{"name": map[string]any{"type": "char", "required": true}}, nil
	}}
	out, _ := invoke(t, newToolset(f).getModelFields, ToolGetModelFields, map[string]any{"model": "res.partner"})
	fields, ok := out["fields"].(map[string]any)
	if !ok || fields["name"] == nil {
		t.Errorf("fields = %#v", out["fields"])
	}
}

func TestCallMethod(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	var gotKwargs map[string]any
	f := &fakeOdoo{callFn: func(model, method string, args []any, kwargs map[string]any) (any, error) {
		gotArgs, gotKwargs = args, kwargs
		return []any{int64(1), "Acme"}, nil
	}}
	ts := newToolset(f)

	out, _ := invoke(t, ts.callMethod, ToolCallMethod, map[string]any{
		"model":  "res.partner",
		"method": "name_search",
		"args":   `["Acme"]`,
		"kwargs": `{"limit": 5}`,
	})
	if !reflect.DeepEqual(gotArgs, []any{"Acme"}) || !reflect.DeepEqual(gotKwargs, map[string]any{"limit": int64(5)}) {
		t.Errorf("args = %#v, kwargs = %#v", gotArgs, gotKwargs)
	}
	if out["method"] != "name_search" || out["success"] != true {
		t.Errorf("result = %v", out)
	}

	_, _ = invoke(t, ts.callMethod, ToolCallMethod, map[string]any{"model": "res.partner", "method": "check_access_rights"})
	if gotArgs != nil || gotKwargs != nil {
		t.Errorf("omitted args/kwargs = %#v / %#v, want nil", gotArgs, gotKwargs)
	}

	out, _ = invoke(t, ts.callMethod, ToolCallMethod, map[string]any{"model": "res.partner", "method": "x", "kwargs": `[1]`})
	if out["error"] != "Invalid kwargs JSON: expected an object, got array" {
		t.Errorf("error = %v", out["error"])
	}
}

func TestTools_ErrorTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "operation",
			err:  &odoo.OperationError{Op: odoo.OpSearch, Model: "res.partner", Err: errors.New("boom")},
			want: "OdooError",
		},
		{
			name: "authentication",
			err:  &odoo.AuthenticationError{Database: "db", Username: "admin"},
			want: "AuthenticationError",
		},
		{
			name: "connection",
			err:  &odoo.ConnectionError{URL: "https://odoo.test", Err: errors.New("refused")},
			want: "ConnectionError",
		},
		{name: "unexpected", err: errors.New("weird"), want: "UnexpectedError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := &fakeOdoo{searchFn: func(string, odoo.SearchOptions) ([]odoo.Record, error) {
				return nil, tt.err
			}}
			out, res := invoke(t, newToolset(f).searchRecords, ToolSearchRecords, map[string]any{"model": "res.partner"})
			if !res.IsError || out["success"] != false {
				t.Errorf("result = %v (IsError %v)", out, res.IsError)
			}
			if out["error_type"] != tt.want {
				t.Errorf("error_type = %v, want %s", out["error_type"], tt.want)
			}
			if out["error"] != tt.err.Error() {
				t.Errorf("error = %v, want %q", out["error"], tt.err.Error())
			}
		})
	}
}

func TestTextResult_FallsBackToString(t *testing.T) {
	t.Parallel()

	res := textResult(payload{"success": true, "result": map[string]any{"ch": make(chan int), "n": 1}})
	out := decodeResult(t, res)
	inner, ok := out["result"].(map[string]any)
	if !ok {
		t.Fatalf("result = %#v", out["result"])
	}
	if s, ok := inner["ch"].(string); !ok || !strings.HasPrefix(s, "0x") {
		t.Errorf("channel rendered as %#v, want its string form", inner["ch"])
	}
	if inner["n"] != float64(1) {
		t.Errorf("n = %v", inner["n"])
	}
}
