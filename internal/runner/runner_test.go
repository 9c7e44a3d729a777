package runner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lifeos/lifeosd/internal/ai"
	"github.com/lifeos/lifeosd/internal/logging"
	"github.com/lifeos/lifeosd/internal/session"
	"github.com/lifeos/lifeosd/internal/tools"
)

// scriptedProvider replays one canned event sequence per Stream call. When
// the script runs out it repeats the last entry, which makes building an
// adversarial always-tool-use model trivial.
type scriptedProvider struct {
	id     string
	script [][]ai.StreamEvent
	calls  int
}

func (p *scriptedProvider) ID() string { return p.id }

func (p *scriptedProvider) Stream(ctx context.Context, req *ai.ChatRequest) (<-chan ai.StreamEvent, error) {
	idx := p.calls
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.calls++

	events := p.script[idx]
	ch := make(chan ai.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func textTurn(text string) []ai.StreamEvent {
	return []ai.StreamEvent{
		{Type: ai.EventTypeText, Text: text},
		{Type: ai.EventTypeDone, StopReason: "end_turn"},
	}
}

func toolTurn(calls ...session.ToolCall) []ai.StreamEvent {
	events := make([]ai.StreamEvent, 0, len(calls)+1)
	for i := range calls {
		call := calls[i]
		events = append(events, ai.StreamEvent{Type: ai.EventTypeToolCall, ToolCall: &call})
	}
	events = append(events, ai.StreamEvent{Type: ai.EventTypeDone, StopReason: "tool_use"})
	return events
}

type echoTool struct{}

func (echoTool) Name() string            { return "echo" }
func (echoTool) Description() string     { return "echoes its input" }
func (echoTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (echoTool) Execute(ctx context.Context, input json.RawMessage) (*tools.ToolResult, error) {
	return &tools.ToolResult{Content: "echo: " + string(input)}, nil
}

func newTestDispatcher(t *testing.T, p ai.Provider) *ai.Dispatcher {
	t.Helper()
	logging.Disable()
	t.Cleanup(logging.Enable)

	path := filepath.Join(t.TempDir(), "routing.yaml")
	body := "default_tier: FREE\nchains:\n  FREE: [\"test/model\", \"ollama/tiny\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	routing, err := ai.NewRoutingStore(path)
	require.NoError(t, err)

	d := ai.NewDispatcher(routing, time.Second)
	d.Register(p)
	return d
}

func newConv(text string) *session.Conversation {
	conv := &session.Conversation{SessionID: "sess-test"}
	conv.Append(session.Message{Role: "user", Content: text})
	return conv
}

func TestRunToolLoop(t *testing.T) {
	provider := &scriptedProvider{
		id: "test",
		script: [][]ai.StreamEvent{
			toolTurn(session.ToolCall{ID: "c1", Name: "echo", Input: []byte(`{"q":"tasks"}`)}),
			textTurn("here are your tasks"),
		},
	}

	registry := tools.NewRegistry()
	registry.Register(echoTool{})

	r := New(newTestDispatcher(t, provider), registry, 5, time.Second)
	conv := newConv("what tasks are open?")

	resp, err := r.Run(context.Background(), conv, ai.TierFree, "")
	require.NoError(t, err)
	require.Equal(t, "here are your tasks", resp.Text())
	require.Equal(t, 2, provider.calls)

	// user, assistant(tool_use), tool, assistant(text)
	require.Len(t, conv.Messages, 4)
	require.Equal(t, "tool", conv.Messages[2].Role)

	var results []session.ToolResult
	require.NoError(t, json.Unmarshal(conv.Messages[2].ToolResults, &results))
	require.Len(t, results, 1)
	require.Equal(t, "c1", results[0].ToolCallID)
	require.False(t, results[0].IsError)
}

func TestRunEveryCallGetsExactlyOneResult(t *testing.T) {
	provider := &scriptedProvider{
		id: "test",
		script: [][]ai.StreamEvent{
			toolTurn(
				session.ToolCall{ID: "c1", Name: "echo", Input: []byte(`{}`)},
				session.ToolCall{ID: "c2", Name: "no_such_tool", Input: []byte(`{}`)},
				session.ToolCall{ID: "c3", Name: "echo", Input: []byte(`{}`)},
			),
			textTurn("done"),
		},
	}

	registry := tools.NewRegistry()
	registry.Register(echoTool{})

	r := New(newTestDispatcher(t, provider), registry, 5, time.Second)
	conv := newConv("do three things")

	resp, err := r.Run(context.Background(), conv, ai.TierFree, "")
	require.NoError(t, err)
	require.Equal(t, "done", resp.Text())

	var results []session.ToolResult
	require.NoError(t, json.Unmarshal(conv.Messages[2].ToolResults, &results))
	require.Len(t, results, 3)

	byID := make(map[string]session.ToolResult, len(results))
	for _, res := range results {
		byID[res.ToolCallID] = res
	}
	require.Len(t, byID, 3)
	require.False(t, byID["c1"].IsError)
	require.True(t, byID["c2"].IsError, "unknown tool must come back as a failed result")
	require.False(t, byID["c3"].IsError)
}

func TestRunAdversarialModelTerminates(t *testing.T) {
	// The model requests a tool on every dispatch, forever.
	provider := &scriptedProvider{
		id: "test",
		script: [][]ai.StreamEvent{
			toolTurn(session.ToolCall{ID: "loop", Name: "echo", Input: []byte(`{}`)}),
		},
	}

	registry := tools.NewRegistry()
	registry.Register(echoTool{})

	maxIterations := 3
	r := New(newTestDispatcher(t, provider), registry, maxIterations, time.Second)
	conv := newConv("never stop")

	resp, err := r.Run(context.Background(), conv, ai.TierFree, "")
	require.NoError(t, err, "iteration bound is not an error")
	require.Equal(t, maxIterations, provider.calls)
	require.Equal(t, degradedFallback, resp.Text())

	for _, block := range resp.ContentBlocks {
		require.Equal(t, "text", block.Type, "degraded response must be text-only")
	}
}

func TestRunDegradedKeepsLastText(t *testing.T) {
	provider := &scriptedProvider{
		id: "test",
		script: [][]ai.StreamEvent{
			{
				{Type: ai.EventTypeText, Text: "still working on it"},
				{Type: ai.EventTypeToolCall, ToolCall: &session.ToolCall{ID: "c1", Name: "echo", Input: []byte(`{}`)}},
				{Type: ai.EventTypeDone, StopReason: "tool_use"},
			},
		},
	}

	registry := tools.NewRegistry()
	registry.Register(echoTool{})

	r := New(newTestDispatcher(t, provider), registry, 2, time.Second)
	conv := newConv("loop with text")

	resp, err := r.Run(context.Background(), conv, ai.TierFree, "")
	require.NoError(t, err)
	require.Equal(t, "still working on it", resp.Text())
}

func TestRunDegradedIgnoresEarlierTurns(t *testing.T) {
	provider := &scriptedProvider{
		id: "test",
		script: [][]ai.StreamEvent{
			toolTurn(session.ToolCall{ID: "loop", Name: "echo", Input: []byte(`{}`)}),
		},
	}

	registry := tools.NewRegistry()
	registry.Register(echoTool{})

	r := New(newTestDispatcher(t, provider), registry, 2, time.Second)

	// Transcript carries text from a previous turn; the current turn only
	// ever requests tools.
	conv := &session.Conversation{SessionID: "sess-test"}
	conv.Append(session.Message{Role: "user", Content: "first question"})
	conv.Append(session.Message{Role: "assistant", Content: "old answer"})
	conv.Append(session.Message{Role: "user", Content: "never stop"})

	resp, err := r.Run(context.Background(), conv, ai.TierFree, "")
	require.NoError(t, err)
	require.Equal(t, degradedFallback, resp.Text(), "a previous turn's text must not become this turn's answer")

	last := conv.Messages[len(conv.Messages)-1]
	require.Equal(t, "assistant", last.Role)
	require.Equal(t, degradedFallback, last.Content)
}

func TestRunNoToolsNeeded(t *testing.T) {
	provider := &scriptedProvider{
		id:     "test",
		script: [][]ai.StreamEvent{textTurn("plain answer")},
	}

	r := New(newTestDispatcher(t, provider), tools.NewRegistry(), 5, time.Second)
	conv := newConv("hello")

	resp, err := r.Run(context.Background(), conv, ai.TierFree, "")
	require.NoError(t, err)
	require.Equal(t, "plain answer", resp.Text())
	require.Equal(t, "test/model", resp.Provider)
	require.Len(t, conv.Messages, 2)
}
