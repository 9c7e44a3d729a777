// Package session defines the conversation data model shared by the
// dispatcher, the tool loop, and the persistence layer.
package session

import (
	"encoding/json"
	"time"
)

// Message is one entry in a conversation transcript. A message is immutable
// once appended; the tool loop only ever extends the transcript.
type Message struct {
	ID          int64           `json:"id,omitempty"`
	SessionID   string          `json:"session_id"`
	Role        string          `json:"role"` // user, assistant, tool
	Content     string          `json:"content,omitempty"`
	ToolCalls   json.RawMessage `json:"tool_calls,omitempty"`
	ToolResults json.RawMessage `json:"tool_results,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of executing one ToolCall. Every ToolCall in an
// assistant message must have exactly one ToolResult in the following tool
// message before the conversation is dispatched again.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Conversation is the ordered transcript for one session, owned by a single
// in-flight request at a time.
type Conversation struct {
	SessionID string
	Messages  []Message
	Tier      string // tier used for the most recent turn
}

// Append adds a message to the transcript, stamping the session ID and
// creation time.
func (c *Conversation) Append(msg Message) {
	msg.SessionID = c.SessionID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	c.Messages = append(c.Messages, msg)
}

// LastUserText returns the content of the most recent user message, or ""
// when the transcript has none.
func (c *Conversation) LastUserText() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == "user" && c.Messages[i].Content != "" {
			return c.Messages[i].Content
		}
	}
	return ""
}

// LastAssistantText returns the content of the most recent assistant message
// that carried text, or "" when none exists. The tool loop uses this for the
// degraded response when the iteration bound is hit.
func (c *Conversation) LastAssistantText() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == "assistant" && c.Messages[i].Content != "" {
			return c.Messages[i].Content
		}
	}
	return ""
}

// Sanitize removes orphaned tool results that have no matching tool call.
// Transcripts assembled by clients can arrive with dangling references, and
// providers reject them.
func Sanitize(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}

	seen := make(map[string]bool)
	result := make([]Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			var calls []ToolCall
			if err := json.Unmarshal(msg.ToolCalls, &calls); err == nil {
				for _, call := range calls {
					seen[call.ID] = true
				}
			}
			result = append(result, msg)
			continue
		}

		if msg.Role == "tool" && len(msg.ToolResults) > 0 {
			var results []ToolResult
			if err := json.Unmarshal(msg.ToolResults, &results); err == nil {
				valid := make([]ToolResult, 0, len(results))
				for _, r := range results {
					if seen[r.ToolCallID] {
						valid = append(valid, r)
					}
				}
				if len(valid) == 0 {
					continue // nothing left worth keeping
				}
				if len(valid) < len(results) {
					if raw, err := json.Marshal(valid); err == nil {
						msg.ToolResults = raw
					}
				}
			}
		}

		result = append(result, msg)
	}

	return result
}
