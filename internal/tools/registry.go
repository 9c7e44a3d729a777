// Package tools holds the tool registry and the executors the model can
// invoke: repository reads and structured queries over the life-tracking
// tables.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lifeos/lifeosd/internal/ai"
	"github.com/lifeos/lifeosd/internal/logging"
	"github.com/lifeos/lifeosd/internal/session"
)

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Tool interface that all tools must implement
type Tool interface {
	// Name returns the tool's unique name
	Name() string

	// Description returns a description for the model
	Description() string

	// Schema returns the JSON schema for the tool's input
	Schema() json.RawMessage

	// Execute runs the tool with the given input
	Execute(ctx context.Context, input json.RawMessage) (*ToolResult, error)
}

// Registry manages available tools
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	if existing, ok := r.tools[tool.Name()]; ok {
		logging.Warnf("[Registry] tool %q already registered (%T), overwritten by %T",
			tool.Name(), existing, tool)
	}
	r.tools[tool.Name()] = tool
	r.mu.Unlock()
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all tools as provider tool definitions
func (r *Registry) List() []ai.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ai.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, ai.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.Schema(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs a tool call and always produces a result for it. Unknown
// tools and executor failures come back as failed results, never as an
// error that would abort the turn.
func (r *Registry) Execute(ctx context.Context, call session.ToolCall) session.ToolResult {
	logging.Infof("[Registry] Executing tool: %s", call.Name)

	tool, ok := r.Get(call.Name)
	if !ok {
		logging.Warnf("[Registry] Unknown tool: %s", call.Name)
		r.mu.RLock()
		available := make([]string, 0, len(r.tools))
		for name := range r.tools {
			available = append(available, name)
		}
		r.mu.RUnlock()
		sort.Strings(available)

		return session.ToolResult{
			ToolCallID: call.ID,
			Content: fmt.Sprintf(
				"TOOL ERROR: %q does not exist. Do NOT call it again. Your available tools are: %s",
				call.Name, strings.Join(available, ", ")),
			IsError: true,
		}
	}

	result, err := tool.Execute(ctx, call.Input)
	if err != nil {
		logging.Warnf("[Registry] Tool %s failed: %v", call.Name, err)
		return session.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("TOOL ERROR: %s failed: %v", call.Name, err),
			IsError:    true,
		}
	}

	return session.ToolResult{
		ToolCallID: call.ID,
		Content:    result.Content,
		IsError:    result.IsError,
	}
}
