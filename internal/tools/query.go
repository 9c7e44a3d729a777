package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// tableSpec describes an allowlisted table: the columns the model may read
// and the column used for since filtering and ordering.
type tableSpec struct {
	columns    []string
	dateColumn string
}

// queryableTables is the full query surface. Anything not in this map is
// rejected before any SQL is built.
var queryableTables = map[string]tableSpec{
	"tasks": {
		columns:    []string{"id", "title", "status", "priority", "due_date", "created_at", "updated_at"},
		dateColumn: "created_at",
	},
	"meals": {
		columns:    []string{"id", "eaten_at", "description", "calories", "protein_grams", "created_at"},
		dateColumn: "eaten_at",
	},
	"swim_sessions": {
		columns:    []string{"id", "swam_at", "distance_meters", "duration_minutes", "stroke", "notes", "created_at"},
		dateColumn: "swam_at",
	},
}

const defaultQueryLimit = 25
const maxQueryLimit = 100

// QueryTool runs read-only structured queries against the life-tracking
// tables. The model picks a table and optional filters; identifiers are
// validated against the allowlist and values travel as bind parameters, so
// no model-controlled text reaches the SQL.
type QueryTool struct {
	db *sql.DB
}

// NewQueryTool creates the structured query tool
func NewQueryTool(db *sql.DB) *QueryTool {
	return &QueryTool{db: db}
}

// Name returns the tool's unique name
func (t *QueryTool) Name() string {
	return "db_query"
}

// Description returns a description for the model
func (t *QueryTool) Description() string {
	names := make([]string, 0, len(queryableTables))
	for name := range queryableTables {
		names = append(names, name)
	}
	return "Query the life-tracking database (read-only). Tables: " + strings.Join(names, ", ") +
		". Supports column selection, a since date filter, and a row limit."
}

// Schema returns the JSON schema for the tool's input
func (t *QueryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"table": {
				"type": "string",
				"enum": ["tasks", "meals", "swim_sessions"],
				"description": "table to query"
			},
			"columns": {
				"type": "array",
				"items": {"type": "string"},
				"description": "columns to return (all when omitted)"
			},
			"since": {
				"type": "string",
				"description": "ISO date; only rows on or after this date"
			},
			"limit": {
				"type": "integer",
				"description": "max rows, default 25, cap 100"
			}
		},
		"required": ["table"]
	}`)
}

type queryInput struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Since   string   `json:"since"`
	Limit   int      `json:"limit"`
}

// Execute runs the tool with the given input
func (t *QueryTool) Execute(ctx context.Context, input json.RawMessage) (*ToolResult, error) {
	var in queryInput
	if err := json.Unmarshal(input, &in); err != nil {
		return &ToolResult{Content: fmt.Sprintf("invalid input: %v", err), IsError: true}, nil
	}

	spec, ok := queryableTables[in.Table]
	if !ok {
		return &ToolResult{Content: fmt.Sprintf("table %q is not queryable", in.Table), IsError: true}, nil
	}

	columns, err := spec.selectColumns(in.Columns)
	if err != nil {
		return &ToolResult{Content: err.Error(), IsError: true}, nil
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	// Table and column names come from the allowlist above, never from the
	// model's input text.
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), in.Table)
	var args []any
	if in.Since != "" {
		query += fmt.Sprintf(" WHERE %s >= ?", spec.dateColumn)
		args = append(args, in.Since)
	}
	query += fmt.Sprintf(" ORDER BY %s DESC LIMIT ?", spec.dateColumn)
	args = append(args, limit)

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("query failed: %v", err), IsError: true}, nil
	}
	defer rows.Close()

	results, err := scanRows(rows, columns)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("failed to read rows: %v", err), IsError: true}, nil
	}

	out, err := json.Marshal(results)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("failed to encode rows: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: string(out)}, nil
}

// selectColumns validates requested columns against the table's allowlist,
// returning all columns when none are requested.
func (s tableSpec) selectColumns(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return s.columns, nil
	}
	allowed := make(map[string]bool, len(s.columns))
	for _, c := range s.columns {
		allowed[c] = true
	}
	for _, c := range requested {
		if !allowed[c] {
			return nil, fmt.Errorf("column %q is not queryable, available: %s", c, strings.Join(s.columns, ", "))
		}
	}
	return requested, nil
}

func scanRows(rows *sql.Rows, columns []string) ([]map[string]any, error) {
	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
