package odoo

import (
	"context"
	"fmt"
)

// effectiveLimit applies the configured default and ceiling to a requested
// page size.
func (c *Client) effectiveLimit(limit *int) int {
	switch {
	case limit == nil:
		return c.defaultLimit
	case *limit > c.maxLimit:
		return c.maxLimit
	default:
		return *limit
	}
}

// SearchRecords finds the records of model matching opts.Domain and reads
// them. A search with no match returns an empty slice without a read.
func (c *Client) SearchRecords(ctx context.Context, model string, opts SearchOptions) ([]Record, error) {
	domain := opts.Domain
	if domain == nil {
		domain = Domain{}
	}

	searchKwargs := map[string]any{
		"offset": opts.Offset,
		"limit":  c.effectiveLimit(opts.Limit),
	}
	if opts.Order != "" {
		searchKwargs["order"] = opts.Order
	}

	res, err := c.ExecuteKw(ctx, model, "search", []any{[]any(domain)}, searchKwargs)
	if err != nil {
		return nil, wrapOp(OpSearch, model, err, nil)
	}
	ids, ok := res.([]any)
	if !ok && res != nil {
		return nil, wrapOp(OpSearch, model, fmt.Errorf("unexpected search result %T", res), nil)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	readKwargs := map[string]any{}
	if len(opts.Fields) > 0 {
		fields := make([]any, len(opts.Fields))
		for i, f := range opts.Fields {
			fields[i] = f
		}
		readKwargs["fields"] = fields
	}

	res, err = c.ExecuteKw(ctx, model, "read", []any{ids}, readKwargs)
	if err != nil {
		return nil, wrapOp(OpSearch, model, err, nil)
	}
	rows, _ := res.([]any)
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(map[string]any); ok {
			records = append(records, Record(m))
		}
	}
	return records, nil
}

// CreateRecord creates a record of model and returns its ID.
func (c *Client) CreateRecord(ctx context.Context, model string, values Values) (int64, error) {
	if values == nil {
		values = Values{}
	}
	res, err := c.ExecuteKw(ctx, model, "create", []any{map[string]any(values)}, nil)
	if err != nil {
		return 0, wrapOp(OpCreate, model, err, nil)
	}
	id, ok := asID(res)
	if !ok {
		return 0, wrapOp(OpCreate, model, fmt.Errorf("unexpected create result %T", res), nil)
	}
	c.logger.Info("created odoo record", "model", model, "id", id)
	return id, nil
}

// UpdateRecord writes values to record id of model.
func (c *Client) UpdateRecord(ctx context.Context, model string, id int64, values Values) (bool, error) {
	if values == nil {
		values = Values{}
	}
	res, err := c.ExecuteKw(ctx, model, "write", []any{[]any{id}, map[string]any(values)}, nil)
	if err != nil {
		return false, wrapOp(OpUpdate, model, err, func(oe *OperationError) { oe.RecordID = id })
	}
	c.logger.Info("updated odoo record", "model", model, "id", id)
	return truthy(res), nil
}

// DeleteRecord unlinks record id of model.
func (c *Client) DeleteRecord(ctx context.Context, model string, id int64) (bool, error) {
	res, err := c.ExecuteKw(ctx, model, "unlink", []any{[]any{id}}, nil)
	if err != nil {
		return false, wrapOp(OpDelete, model, err, func(oe *OperationError) { oe.RecordID = id })
	}
	c.logger.Info("deleted odoo record", "model", model, "id", id)
	return truthy(res), nil
}

// GetModelFields returns the field definitions of model keyed by field
// name.
func (c *Client) GetModelFields(ctx context.Context, model string) (map[string]any, error) {
	res, err := c.ExecuteKw(ctx, model, "fields_get", nil, nil)
	if err != nil {
		return nil, wrapOp(OpFields, model, err, nil)
	}
	fields, ok := res.(map[string]any)
	if !ok {
		if res != nil {
			return nil, wrapOp(OpFields, model, fmt.Errorf("unexpected fields_get result %T", res), nil)
		}
		fields = map[string]any{}
	}
	return fields, nil
}

// CallMethod invokes an arbitrary method of model and returns its raw
// result.
func (c *Client) CallMethod(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	res, err := c.ExecuteKw(ctx, model, method, args, kwargs)
	if err != nil {
		return nil, wrapOp(OpCall, model, err, func(oe *OperationError) { oe.Method = method })
	}
	return res, nil
}

// truthy mirrors XML-RPC boolean results; write and unlink answer true.
func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	default:
		id, ok := asID(v)
		return !ok || id != 0
	}
}
