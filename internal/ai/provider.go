// Package ai contains the tier classifier, the provider abstraction, and the
// dispatcher that walks a tier's fallback chain.
package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lifeos/lifeosd/internal/session"
)

// StreamEventType defines the type of streaming event
type StreamEventType string

const (
	EventTypeText     StreamEventType = "text"
	EventTypeToolCall StreamEventType = "tool_call"
	EventTypeError    StreamEventType = "error"
	EventTypeDone     StreamEventType = "done"
)

// StreamEvent represents a streaming response event
type StreamEvent struct {
	Type     StreamEventType   `json:"type"`
	Text     string            `json:"text,omitempty"`
	ToolCall *session.ToolCall `json:"tool_call,omitempty"`
	Error    error             `json:"error,omitempty"`
	// StopReason is set on the done event: end_turn, tool_use, max_tokens.
	StopReason string `json:"stop_reason,omitempty"`
}

// ToolDefinition describes a tool available to the model
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ChatRequest represents a request to an AI provider
type ChatRequest struct {
	Messages    []session.Message `json:"messages"`
	Tools       []ToolDefinition  `json:"tools,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	System      string            `json:"system,omitempty"`
	Model       string            `json:"model,omitempty"`
}

// Provider is one upstream model endpoint.
type Provider interface {
	// ID returns the provider identifier (e.g., "anthropic", "ollama")
	ID() string

	// Stream sends a request and returns a channel of streaming events.
	// The channel always terminates with a done or error event.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)
}

// ContentBlock is one unit of a normalized model response.
type ContentBlock struct {
	Type     string            `json:"type"` // text, tool_use
	Text     string            `json:"text,omitempty"`
	ToolCall *session.ToolCall `json:"tool_call,omitempty"`
}

// NormalizedResponse is a provider response reduced to a common shape. The
// runner and the handler never see provider-specific payloads.
type NormalizedResponse struct {
	ContentBlocks []ContentBlock `json:"content_blocks"`
	StopReason    string         `json:"stop_reason"`
	Provider      string         `json:"provider"`
}

// Text concatenates the text blocks of the response.
func (r *NormalizedResponse) Text() string {
	var sb strings.Builder
	for _, b := range r.ContentBlocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool invocations the model requested, in response
// order.
func (r *NormalizedResponse) ToolCalls() []session.ToolCall {
	var calls []session.ToolCall
	for _, b := range r.ContentBlocks {
		if b.Type == "tool_use" && b.ToolCall != nil {
			calls = append(calls, *b.ToolCall)
		}
	}
	return calls
}

// collect drains a provider's event stream into a NormalizedResponse.
// An error event fails the whole attempt; a stream that closes without a
// done event is malformed and also fails.
func collect(ctx context.Context, providerID string, events <-chan StreamEvent) (*NormalizedResponse, error) {
	resp := &NormalizedResponse{Provider: providerID}
	var text strings.Builder
	done := false

	flushText := func() {
		if text.Len() > 0 {
			resp.ContentBlocks = append(resp.ContentBlocks, ContentBlock{Type: "text", Text: text.String()})
			text.Reset()
		}
	}

	for !done {
		select {
		case <-ctx.Done():
			return nil, &ProviderError{Code: "timeout", Message: providerID + ": " + ctx.Err().Error()}
		case ev, ok := <-events:
			if !ok {
				return nil, &ProviderError{Code: "malformed_response", Message: providerID + ": stream closed without done event"}
			}
			switch ev.Type {
			case EventTypeText:
				text.WriteString(ev.Text)
			case EventTypeToolCall:
				flushText()
				call := *ev.ToolCall
				resp.ContentBlocks = append(resp.ContentBlocks, ContentBlock{Type: "tool_use", ToolCall: &call})
			case EventTypeError:
				return nil, ev.Error
			case EventTypeDone:
				resp.StopReason = ev.StopReason
				done = true
			}
		}
	}

	flushText()
	if resp.StopReason == "" {
		if len(resp.ToolCalls()) > 0 {
			resp.StopReason = "tool_use"
		} else {
			resp.StopReason = "end_turn"
		}
	}
	return resp, nil
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

func (e *ProviderError) Error() string {
	return e.Message
}

// ClassifyErrorReason determines the category of a provider error.
// Returns: "billing", "rate_limit", "auth", "timeout", or "other".
func ClassifyErrorReason(err error) string {
	if err == nil {
		return "other"
	}

	if pe, ok := err.(*ProviderError); ok {
		switch pe.Code {
		case "rate_limit_exceeded":
			return "rate_limit"
		case "authentication_error", "invalid_api_key", "unauthorized":
			return "auth"
		case "insufficient_quota", "billing_error", "payment_required":
			return "billing"
		case "timeout":
			return "timeout"
		}
		switch pe.Type {
		case "rate_limit_error":
			return "rate_limit"
		case "authentication_error":
			return "auth"
		}
	}

	msg := strings.ToLower(err.Error())
	contains := func(patterns ...string) bool {
		for _, p := range patterns {
			if strings.Contains(msg, p) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("billing", "quota", "payment", "credit", "insufficient", "spending limit"):
		return "billing"
	case contains("rate limit", "rate_limit", "too many requests", "429", "throttl"):
		return "rate_limit"
	case contains("authentication", "unauthorized", "api key", "401", "403", "forbidden"):
		return "auth"
	case contains("timeout", "timed out", "deadline exceeded", "context canceled"):
		return "timeout"
	}
	return "other"
}
