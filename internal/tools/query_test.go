package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lifeos/lifeosd/internal/db"
	"github.com/lifeos/lifeosd/internal/logging"
)

func newQueryTool(t *testing.T) *QueryTool {
	t.Helper()
	logging.Disable()
	t.Cleanup(logging.Enable)

	store, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.DB().Exec(`
		INSERT INTO tasks (title, status, priority, due_date) VALUES
			('renew passport', 'open', 2, '2026-09-01'),
			('book dentist', 'done', 1, '2026-07-15');
		INSERT INTO swim_sessions (swam_at, distance_meters, duration_minutes, stroke) VALUES
			('2026-08-20', 1500, 32.5, 'freestyle'),
			('2026-08-01', 1000, 24.0, 'breaststroke');
	`)
	require.NoError(t, err)

	return NewQueryTool(store.DB())
}

func runQuery(t *testing.T, tool *QueryTool, input string) *ToolResult {
	t.Helper()
	result, err := tool.Execute(context.Background(), json.RawMessage(input))
	require.NoError(t, err)
	return result
}

func TestQueryToolSelectsAllowlistedTable(t *testing.T) {
	tool := newQueryTool(t)

	result := runQuery(t, tool, `{"table":"tasks"}`)
	require.False(t, result.IsError, result.Content)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &rows))
	require.Len(t, rows, 2)
}

func TestQueryToolRejectsUnknownTable(t *testing.T) {
	tool := newQueryTool(t)

	result := runQuery(t, tool, `{"table":"conversations"}`)
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "not queryable")
}

func TestQueryToolRejectsUnknownColumn(t *testing.T) {
	tool := newQueryTool(t)

	result := runQuery(t, tool, `{"table":"tasks","columns":["title","password"]}`)
	require.True(t, result.IsError)
	require.Contains(t, result.Content, `"password"`)
}

func TestQueryToolSinceFilter(t *testing.T) {
	tool := newQueryTool(t)

	result := runQuery(t, tool, `{"table":"swim_sessions","since":"2026-08-10"}`)
	require.False(t, result.IsError, result.Content)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "freestyle", rows[0]["stroke"])
}

func TestQueryToolColumnSelection(t *testing.T) {
	tool := newQueryTool(t)

	result := runQuery(t, tool, `{"table":"tasks","columns":["title","status"]}`)
	require.False(t, result.IsError, result.Content)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content), &rows))
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Len(t, row, 2)
		require.Contains(t, row, "title")
		require.Contains(t, row, "status")
	}
}

func TestQueryToolMalformedInput(t *testing.T) {
	tool := newQueryTool(t)

	result := runQuery(t, tool, `{"table": 42}`)
	require.True(t, result.IsError)
	require.True(t, strings.HasPrefix(result.Content, "invalid input"))
}
