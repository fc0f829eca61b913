package mcpserver

import (
	"context"
	"log/slog"

	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names.
const (
	ToolCheckConnection = "check_odoo_connection"
	ToolSearchRecords   = "search_odoo_records"
	ToolCreateRecord    = "create_odoo_record"
	ToolUpdateRecord    = "update_odoo_record"
	ToolDeleteRecord    = "delete_odoo_record"
	ToolGetModelFields  = "get_odoo_model_fields"
	ToolCallMethod      = "call_odoo_method"
)

// writeTools change Odoo data (call_odoo_method may). They count against
// the write rate limit and are audited.
var writeTools = map[string]bool{
	ToolCreateRecord: true,
	ToolUpdateRecord: true,
	ToolDeleteRecord: true,
	ToolCallMethod:   true,
}

// Odoo is the slice of *odoo.Client the tools use.
type Odoo interface {
	CheckConnection(ctx context.Context) odoo.ServerInfo
	SearchRecords(ctx context.Context, model string, opts odoo.SearchOptions) ([]odoo.Record, error)
	CreateRecord(ctx context.Context, model string, values odoo.Values) (int64, error)
	UpdateRecord(ctx context.Context, model string, id int64, values odoo.Values) (bool, error)
	DeleteRecord(ctx context.Context, model string, id int64) (bool, error)
	GetModelFields(ctx context.Context, model string) (map[string]any, error)
	CallMethod(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error)
}

var _ Odoo = (*odoo.Client)(nil)

const modelDescription = "Odoo model name (e.g. 'res.partner', 'sale.order')"

// toolset binds the tool handlers to one Odoo client.
type toolset struct {
	odoo   Odoo
	logger *slog.Logger
}

func (t *toolset) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool(ToolCheckConnection,
				mcp.WithDescription("Check the connection to the Odoo server and return status information."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.checkConnection,
		},
		{
			Tool: mcp.NewTool(ToolSearchRecords,
				mcp.WithDescription("Search for records in an Odoo model."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("model", mcp.Required(), mcp.Description(modelDescription)),
				mcp.WithString("domain", mcp.Description(`Search domain as JSON (e.g. '[["name", "ilike", "customer"]]')`)),
				mcp.WithString("fields", mcp.Description("Comma-separated list of fields to retrieve (e.g. 'name,email,phone')")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of records to return (default 100, max 1000)")),
				mcp.WithNumber("offset", mcp.Description("Number of records to skip"), mcp.DefaultNumber(0), mcp.Min(0)),
				mcp.WithString("order", mcp.Description("Sort order (e.g. 'name ASC', 'create_date DESC')")),
			),
			Handler: t.searchRecords,
		},
		{
			Tool: mcp.NewTool(ToolCreateRecord,
				mcp.WithDescription("Create a new record in an Odoo model."),
				mcp.WithString("model", mcp.Required(), mcp.Description(modelDescription)),
				mcp.WithString("values", mcp.Required(), mcp.Description(`Record values as a JSON object (e.g. '{"name": "New Customer"}')`)),
			),
			Handler: t.createRecord,
		},
		{
			Tool: mcp.NewTool(ToolUpdateRecord,
				mcp.WithDescription("Update an existing record in an Odoo model."),
				mcp.WithIdempotentHintAnnotation(true),
				mcp.WithString("model", mcp.Required(), mcp.Description(modelDescription)),
				mcp.WithNumber("record_id", mcp.Required(), mcp.Description("ID of the record to update")),
				mcp.WithString("values", mcp.Required(), mcp.Description(`Updated values as a JSON object (e.g. '{"email": "new@example.com"}')`)),
			),
			Handler: t.updateRecord,
		},
		{
			Tool: mcp.NewTool(ToolDeleteRecord,
				mcp.WithDescription("Delete a record from an Odoo model. Deletion is permanent."),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithString("model", mcp.Required(), mcp.Description(modelDescription)),
				mcp.WithNumber("record_id", mcp.Required(), mcp.Description("ID of the record to delete")),
			),
			Handler: t.deleteRecord,
		},
		{
			Tool: mcp.NewTool(ToolGetModelFields,
				mcp.WithDescription("Get field definitions for an Odoo model."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("model", mcp.Required(), mcp.Description(modelDescription)),
			),
			Handler: t.getModelFields,
		},
		{
			Tool: mcp.NewTool(ToolCallMethod,
				mcp.WithDescription("Call a custom method on an Odoo model."),
				mcp.WithString("model", mcp.Required(), mcp.Description(modelDescription)),
				mcp.WithString("method", mcp.Required(), mcp.Description("Method name to call")),
				mcp.WithString("args", mcp.Description("Positional arguments as a JSON array (e.g. '[1, 2, 3]')")),
				mcp.WithString("kwargs", mcp.Description(`Keyword arguments as a JSON object (e.g. '{"context": {"lang": "en_US"}}')`)),
			),
			Handler: t.callMethod,
		},
	}
}

func (t *toolset) checkConnection(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := t.odoo.CheckConnection(ctx)
	p := payload{"connected": info.Connected}
	if info.Connected {
		p["server_version"] = info.ServerVersion
		p["server_serie"] = info.ServerSerie
		p["protocol_version"] = info.ProtocolVersion
		p["database"] = info.Database
	} else {
		p["error"] = info.Error
		p["error_type"] = "ConnectionError"
	}
	res := textResult(p)
	res.IsError = !info.Connected
	return res, nil
}

func (t *toolset) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model, err := requireString(req, "model")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	domainText, err := optionalString(req, "domain")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	domain, err := decodeDomain(domainText)
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	fieldsText, err := optionalString(req, "fields")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	order, err := optionalString(req, "order")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}

	opts := odoo.SearchOptions{
		Domain: domain,
		Fields: splitFields(fieldsText),
		Order:  order,
	}
	limit, ok, err := intArg(req, "limit")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	if ok {
		if limit <= 0 {
			return t.fail(ctx, req, &ArgumentError{Label: "limit", Err: errNotPositive}), nil
		}
		opts.Limit = odoo.Limit(int(limit))
	}
	offset, _, err := intArg(req, "offset")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	if offset < 0 {
		return t.fail(ctx, req, &ArgumentError{Label: "offset", Err: errNegative}), nil
	}
	opts.Offset = int(offset)

	records, err := t.odoo.SearchRecords(ctx, model, opts)
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	return textResult(payload{
		"success": true,
		"model":   model,
		"count":   len(records),
		"records": records,
	}), nil
}

func (t *toolset) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model, err := requireString(req, "model")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	values, err := t.values(req)
	if err != nil {
		return t.fail(ctx, req, err), nil
	}

	id, err := t.odoo.CreateRecord(ctx, model, values)
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	return textResult(payload{
		"success":   true,
		"model":     model,
		"record_id": id,
		"values":    values,
	}), nil
}

func (t *toolset) updateRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model, err := requireString(req, "model")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	id, err := requireInt(req, "record_id")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	values, err := t.values(req)
	if err != nil {
		return t.fail(ctx, req, err), nil
	}

	ok, err := t.odoo.UpdateRecord(ctx, model, id, values)
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	return textResult(payload{
		"success":   ok,
		"model":     model,
		"record_id": id,
		"values":    values,
	}), nil
}

func (t *toolset) deleteRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model, err := requireString(req, "model")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	id, err := requireInt(req, "record_id")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}

	ok, err := t.odoo.DeleteRecord(ctx, model, id)
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	return textResult(payload{
		"success":   ok,
		"model":     model,
		"record_id": id,
	}), nil
}

func (t *toolset) getModelFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model, err := requireString(req, "model")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}

	fields, err := t.odoo.GetModelFields(ctx, model)
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	return textResult(payload{
		"success": true,
		"model":   model,
		"fields":  fields,
	}), nil
}

func (t *toolset) callMethod(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model, err := requireString(req, "model")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	method, err := requireString(req, "method")
	if err != nil {
		return t.fail(ctx, req, err), nil
	}

	var args []any
	if text, err := optionalString(req, "args"); err != nil {
		return t.fail(ctx, req, err), nil
	} else if text != "" {
		if args, err = decodeArray("args JSON", text); err != nil {
			return t.fail(ctx, req, err), nil
		}
	}
	var kwargs map[string]any
	if text, err := optionalString(req, "kwargs"); err != nil {
		return t.fail(ctx, req, err), nil
	} else if text != "" {
		if kwargs, err = decodeObject("kwargs JSON", text); err != nil {
			return t.fail(ctx, req, err), nil
		}
	}

	result, err := t.odoo.CallMethod(ctx, model, method, args, kwargs)
	if err != nil {
		return t.fail(ctx, req, err), nil
	}
	return textResult(payload{
		"success": true,
		"model":   model,
		"method":  method,
		"result":  result,
	}), nil
}

func (t *toolset) values(req mcp.CallToolRequest) (odoo.Values, error) {
	text, err := requireString(req, "values")
	if err != nil {
		return nil, err
	}
	m, err := decodeObject("values JSON", text)
	if err != nil {
		return nil, err
	}
	return odoo.Values(m), nil
}

// fail logs err and turns it into a structured result.
func (t *toolset) fail(ctx context.Context, req mcp.CallToolRequest, err error) *mcp.CallToolResult {
	level := slog.LevelError
	if errorType(err) == errorTypeArgument {
		level = slog.LevelWarn
	}
	t.logger.Log(ctx, level, "tool call failed",
		"tool", req.Params.Name,
		"error_type", errorType(err),
		"error", err,
	)
	return errorResult(err)
}
