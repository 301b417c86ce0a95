// Package tools defines the accounting tools the assistant can call: a
// generic record query, an account balance aggregation, and anomaly
// detection. Every tool reads through the store capability and returns a
// JSON-friendly payload with a success flag.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
	"github.com/comptaline/as400-ai-backend/pkg/store"
)

// AllowedTables is the enumerated allow-list of logical record collections
// the query tool may touch.
var AllowedTables = []string{
	"companies",
	"journals",
	"journal_accounts",
	"journal_entries",
	"accounts",
	"company_settings",
	"regles",
}

// QueryDatabase is the generic filtered/paginated read tool.
type QueryDatabase struct {
	store store.Store
}

// NewQueryDatabase builds the tool over a store.
func NewQueryDatabase(s store.Store) *QueryDatabase {
	return &QueryDatabase{store: s}
}

func (q *QueryDatabase) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "query_database",
		Description: "Query the Supabase database to retrieve accounting data. Supports filtering, sorting, and pagination.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"table": map[string]any{
					"type":        "string",
					"enum":        AllowedTables,
					"description": "The table to query.",
				},
				"filters": map[string]any{
					"type":                 "object",
					"additionalProperties": true,
					"description":          "Column filters: a scalar means equality, an object like {\"like\": \"411%\"} applies that operator.",
				},
				"select": map[string]any{
					"type":        "string",
					"description": "Comma-separated columns to return. Defaults to all.",
				},
				"order": map[string]any{
					"type":        "string",
					"description": "Sort key as <column>.<asc|desc>. Direction defaults to asc.",
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Maximum number of rows.",
				},
			},
			"required": []string{"table"},
		},
	}
}

type queryResult struct {
	Success bool        `json:"success"`
	Data    []store.Row `json:"data"`
	Count   int         `json:"count"`
}

func (q *QueryDatabase) Invoke(ctx context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	table, err := stringArg(req.Arguments, "table", true)
	if err != nil {
		return agent.ToolResponse{}, err
	}
	if !tableAllowed(table) {
		return agent.ToolResponse{}, fmt.Errorf("table %q is not allowed", table)
	}

	query := store.SelectQuery{Table: table}

	if sel, err := stringArg(req.Arguments, "select", false); err != nil {
		return agent.ToolResponse{}, err
	} else if sel != "" && sel != "*" {
		for _, col := range strings.Split(sel, ",") {
			col = strings.TrimSpace(col)
			if col != "" {
				query.Columns = append(query.Columns, col)
			}
		}
	}

	filters, err := parseFilters(req.Arguments["filters"])
	if err != nil {
		return agent.ToolResponse{}, err
	}
	query.Filters = filters

	if order, err := stringArg(req.Arguments, "order", false); err != nil {
		return agent.ToolResponse{}, err
	} else if order != "" {
		query.Order = []store.Order{parseOrder(order)}
	}

	if limit, ok, err := numberArg(req.Arguments, "limit"); err != nil {
		return agent.ToolResponse{}, err
	} else if ok {
		query.Limit = int(limit)
	}

	res, err := q.store.Select(ctx, query)
	if err != nil {
		return agent.ToolResponse{}, err
	}

	rows := res.Rows
	if rows == nil {
		rows = []store.Row{}
	}
	return agent.ToolResponse{Payload: queryResult{
		Success: true,
		Data:    rows,
		Count:   len(rows),
	}}, nil
}

func tableAllowed(table string) bool {
	for _, allowed := range AllowedTables {
		if table == allowed {
			return true
		}
	}
	return false
}

// parseFilters maps the model-supplied filter object onto store filters: a
// scalar value means equality, a single-key object names the operator.
func parseFilters(raw any) (map[string]store.Filter, error) {
	if raw == nil {
		return nil, nil
	}
	object, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filters must be an object")
	}

	filters := make(map[string]store.Filter, len(object))
	for col, value := range object {
		spec, ok := value.(map[string]any)
		if !ok {
			filters[col] = store.Eq(value)
			continue
		}
		if len(spec) != 1 {
			return nil, fmt.Errorf("filter for %q must have exactly one operator", col)
		}
		for op, operand := range spec {
			if !store.ValidOp(op) {
				return nil, fmt.Errorf("unsupported filter operator %q", op)
			}
			filters[col] = store.Filter{Op: op, Value: operand}
		}
	}
	return filters, nil
}

func parseOrder(order string) store.Order {
	column, direction, found := strings.Cut(order, ".")
	return store.Order{
		Column:     strings.TrimSpace(column),
		Descending: found && strings.TrimSpace(direction) == "desc",
	}
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("missing %q argument", key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

func numberArg(args map[string]any, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch n := raw.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	default:
		return 0, false, fmt.Errorf("argument %q must be a number", key)
	}
}
