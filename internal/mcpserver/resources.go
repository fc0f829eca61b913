package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Resource URIs.
const (
	ResourceCommonModels   = "odoo://models/common"
	ResourceDomainExamples = "odoo://examples/domains"
)

// PromptQueryAssistant is the name of the query guidance prompt.
const PromptQueryAssistant = "odoo_query_assistant"

type modelInfo struct {
	Description   string   `json:"description"`
	KeyFields     []string `json:"key_fields"`
	ExampleDomain string   `json:"example_domain"`
}

var commonModels = map[string]modelInfo{
	"res.partner": {
		Description:   "Customers, vendors, and contacts",
		KeyFields:     []string{"name", "email", "phone", "is_company", "customer_rank", "supplier_rank"},
		ExampleDomain: `[["customer_rank", ">", 0]]`,
	},
	"sale.order": {
		Description:   "Sales orders",
		KeyFields:     []string{"name", "partner_id", "date_order", "amount_total", "state"},
		ExampleDomain: `[["state", "in", ["sale", "done"]]]`,
	},
	"purchase.order": {
		Description:   "Purchase orders",
		KeyFields:     []string{"name", "partner_id", "date_order", "amount_total", "state"},
		ExampleDomain: `[["state", "in", ["purchase", "done"]]]`,
	},
	"product.product": {
		Description:   "Products and variants",
		KeyFields:     []string{"name", "default_code", "list_price", "standard_price", "type"},
		ExampleDomain: `[["sale_ok", "=", true]]`,
	},
	"product.template": {
		Description:   "Product templates",
		KeyFields:     []string{"name", "default_code", "list_price", "standard_price", "type"},
		ExampleDomain: `[["sale_ok", "=", true]]`,
	},
	"account.move": {
		Description:   "Invoices and bills",
		KeyFields:     []string{"name", "partner_id", "invoice_date", "amount_total", "state", "move_type"},
		ExampleDomain: `[["move_type", "=", "out_invoice"]]`,
	},
	"project.project": {
		Description:   "Projects",
		KeyFields:     []string{"name", "partner_id", "date_start", "date", "stage_id"},
		ExampleDomain: `[["active", "=", true]]`,
	},
	"project.task": {
		Description:   "Project tasks",
		KeyFields:     []string{"name", "project_id", "user_ids", "date_deadline", "stage_id"},
		ExampleDomain: `[["active", "=", true]]`,
	},
}

var domainExamples = map[string]map[string]string{
	"basic_filters": {
		"equals":       `[["field_name", "=", "value"]]`,
		"not_equals":   `[["field_name", "!=", "value"]]`,
		"contains":     `[["field_name", "ilike", "partial_value"]]`,
		"in_list":      `[["field_name", "in", ["value1", "value2"]]]`,
		"greater_than": `[["field_name", ">", 100]]`,
		"less_than":    `[["field_name", "<", 100]]`,
	},
	"logical_operators": {
		"and_implicit": `[["field1", "=", "value1"], ["field2", "=", "value2"]]`,
		"and_explicit": `["&", ["field1", "=", "value1"], ["field2", "=", "value2"]]`,
		"or":           `["|", ["field1", "=", "value1"], ["field2", "=", "value2"]]`,
		"not":          `["!", ["field1", "=", "value1"]]`,
	},
	"date_filters": {
		"today":      `[["date_field", "=", "2024-01-15"]]`,
		"this_month": `[["date_field", ">=", "2024-01-01"], ["date_field", "<", "2024-02-01"]]`,
		"relative":   `[["create_date", ">=", "2024-01-01"]]`,
	},
	"common_patterns": {
		"active_records":  `[["active", "=", true]]`,
		"customers_only":  `[["customer_rank", ">", 0]]`,
		"draft_invoices":  `[["state", "=", "draft"], ["move_type", "=", "out_invoice"]]`,
		"confirmed_sales": `[["state", "in", ["sale", "done"]]]`,
	},
}

func resources() []server.ServerResource {
	return []server.ServerResource{
		{
			Resource: mcp.NewResource(ResourceCommonModels, "Common Odoo models",
				mcp.WithResourceDescription("Commonly used Odoo models with their key fields and an example domain."),
				mcp.WithMIMEType("application/json"),
			),
			Handler: jsonResource(ResourceCommonModels, commonModels),
		},
		{
			Resource: mcp.NewResource(ResourceDomainExamples, "Odoo domain examples",
				mcp.WithResourceDescription("Examples of Odoo domain filters."),
				mcp.WithMIMEType("application/json"),
			),
			Handler: jsonResource(ResourceDomainExamples, domainExamples),
		},
	}
}

func jsonResource(uri string, v any) server.ResourceHandlerFunc {
	return func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", uri, err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}

func queryAssistantPrompt() (mcp.Prompt, server.PromptHandlerFunc) {
	prompt := mcp.NewPrompt(PromptQueryAssistant,
		mcp.WithPromptDescription("Guidance for searching, creating, updating or deleting records of an Odoo model."),
		mcp.WithArgument("model",
			mcp.ArgumentDescription("Odoo model name"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("operation",
			mcp.ArgumentDescription("search, create, update or delete (default search)"),
		),
		mcp.WithArgument("requirements",
			mcp.ArgumentDescription("Specific requirements or constraints"),
		),
	)
	handler := func(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		model := req.Params.Arguments["model"]
		if model == "" {
			return nil, fmt.Errorf("%s: argument %q is required", PromptQueryAssistant, "model")
		}
		operation := req.Params.Arguments["operation"]
		if operation == "" {
			operation = "search"
		}
		text := queryGuidance(model, operation, req.Params.Arguments["requirements"])
		return mcp.NewGetPromptResult(
			fmt.Sprintf("Odoo %s guidance for %s", operation, model),
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
			},
		), nil
	}
	return prompt, handler
}

func queryGuidance(model, operation, requirements string) string {
	switch operation {
	case "search":
		return fmt.Sprintf(`I'll help you search for records in the %[1]s model.

1. Use the %[2]s tool with:
   - model: "%[1]s"
   - domain: JSON array of filters (optional)
   - fields: comma-separated field names (optional)
   - limit: number of results (default 100)

2. Common domain examples for %[1]s:
   - All records: []
   - Active records: [["active", "=", true]]
   - Name contains text: [["name", "ilike", "search_text"]]

3. Useful fields to include:
   - Basic info: "id,name,display_name"
   - Timestamps: "create_date,write_date"

Requirements: %[3]s`, model, ToolSearchRecords, requirements)

	case "create":
		return fmt.Sprintf(`I'll help you create a new record in the %[1]s model.

1. Use the %[2]s tool with:
   - model: "%[1]s"
   - values: JSON object with field values

2. Check required fields first with %[3]s; most models need "name".

3. Field value formats:
   - Text: "field_name": "value"
   - Numbers: "field_name": 123
   - Booleans: "field_name": true
   - Relations: "field_name": record_id

Requirements: %[4]s`, model, ToolCreateRecord, ToolGetModelFields, requirements)

	case "update":
		return fmt.Sprintf(`I'll help you update records in the %[1]s model.

1. Find the record first with %[2]s.
2. Use the %[3]s tool with:
   - model: "%[1]s"
   - record_id: ID of the record to update
   - values: JSON object with only the fields to change

Requirements: %[4]s`, model, ToolSearchRecords, ToolUpdateRecord, requirements)

	case "delete":
		return fmt.Sprintf(`I'll help you delete a record from the %[1]s model.

Warning: deletion is permanent.

1. Verify the record first with %[2]s.
2. Use the %[3]s tool with:
   - model: "%[1]s"
   - record_id: ID of the record to delete
3. Consider archiving instead (set active to false) for most models.

Requirements: %[4]s`, model, ToolSearchRecords, ToolDeleteRecord, requirements)

	default:
		return fmt.Sprintf(`I can help you with %[1]s operations.

Available operations:
- search: find and retrieve records
- create: create new records
- update: modify existing records
- delete: remove records (use with caution)
- fields: get model field information
- method: call custom model methods

Use the %[2]s prompt with a specific operation for detailed guidance.

Requirements: %[3]s`, model, PromptQueryAssistant, requirements)
	}
}
