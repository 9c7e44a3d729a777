// Package runner drives the dispatch/tool-use loop for one conversation
// turn.
package runner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lifeos/lifeosd/internal/ai"
	"github.com/lifeos/lifeosd/internal/logging"
	"github.com/lifeos/lifeosd/internal/session"
	"github.com/lifeos/lifeosd/internal/tools"
)

// loopState is the runner's position in the turn state machine.
type loopState int

const (
	stateDispatching loopState = iota
	stateExecuting
)

// degradedFallback is returned when the iteration bound is hit and the model
// never produced any text.
const degradedFallback = "I was unable to complete this request within the allowed number of tool steps."

// Runner executes the bounded tool-use loop: dispatch the conversation,
// execute any requested tools sequentially, feed the results back, repeat.
// Each dispatch/execute round counts one iteration against the bound.
type Runner struct {
	dispatcher    *ai.Dispatcher
	registry      *tools.Registry
	maxIterations int
	toolTimeout   time.Duration
}

// New creates a runner. maxIterations bounds the number of tool rounds per
// turn; toolTimeout bounds a single tool execution.
func New(dispatcher *ai.Dispatcher, registry *tools.Registry, maxIterations int, toolTimeout time.Duration) *Runner {
	if maxIterations <= 0 {
		maxIterations = 5
	}
	if toolTimeout <= 0 {
		toolTimeout = 30 * time.Second
	}
	return &Runner{
		dispatcher:    dispatcher,
		registry:      registry,
		maxIterations: maxIterations,
		toolTimeout:   toolTimeout,
	}
}

// Run executes one turn. The transcript grows as the loop proceeds: an
// assistant message per dispatch, a tool message per executed batch, so
// every tool call has exactly one result before the next dispatch. Only a
// dispatch failure is returned as an error; hitting the iteration bound
// degrades to a text-only response instead.
func (r *Runner) Run(ctx context.Context, conv *session.Conversation, tier ai.Tier, system string) (*ai.NormalizedResponse, error) {
	state := stateDispatching
	iterations := 0

	var resp *ai.NormalizedResponse
	var pending []session.ToolCall
	var turnText string // last text produced by this turn's dispatches

	for {
		switch state {
		case stateDispatching:
			if iterations >= r.maxIterations {
				return r.degrade(conv, resp, turnText), nil
			}

			req := &ai.ChatRequest{
				Messages: conv.Messages,
				Tools:    r.registry.List(),
				System:   system,
			}

			var err error
			resp, err = r.dispatcher.Dispatch(ctx, tier, req)
			if err != nil {
				return nil, err
			}

			r.appendAssistant(conv, resp)
			if text := resp.Text(); text != "" {
				turnText = text
			}

			pending = resp.ToolCalls()
			if len(pending) == 0 {
				return resp, nil
			}
			state = stateExecuting

		case stateExecuting:
			results := make([]session.ToolResult, 0, len(pending))
			for _, call := range pending {
				toolCtx, cancel := context.WithTimeout(ctx, r.toolTimeout)
				results = append(results, r.registry.Execute(toolCtx, call))
				cancel()
			}
			r.appendToolResults(conv, results)

			pending = nil
			iterations++
			state = stateDispatching
		}
	}
}

// appendAssistant records a dispatch response on the transcript.
func (r *Runner) appendAssistant(conv *session.Conversation, resp *ai.NormalizedResponse) {
	msg := session.Message{
		Role:    "assistant",
		Content: resp.Text(),
	}
	if calls := resp.ToolCalls(); len(calls) > 0 {
		if raw, err := json.Marshal(calls); err == nil {
			msg.ToolCalls = raw
		}
	}
	conv.Append(msg)
}

// appendToolResults records an executed batch on the transcript.
func (r *Runner) appendToolResults(conv *session.Conversation, results []session.ToolResult) {
	raw, err := json.Marshal(results)
	if err != nil {
		logging.Errorf("[Runner] failed to marshal tool results: %v", err)
		return
	}
	conv.Append(session.Message{
		Role:        "tool",
		ToolResults: raw,
	})
}

// degrade terminates a turn that hit the iteration bound with a text-only
// response built from the best text this turn produced. Text from earlier
// turns in the transcript is never surfaced as the current answer.
func (r *Runner) degrade(conv *session.Conversation, last *ai.NormalizedResponse, turnText string) *ai.NormalizedResponse {
	logging.Warnf("[Runner] session=%s iteration bound (%d) exceeded, returning degraded response",
		conv.SessionID, r.maxIterations)

	text := turnText
	if text == "" {
		text = degradedFallback
		// This turn's last word was a tool request; the transcript should
		// carry the degraded text instead.
		conv.Append(session.Message{Role: "assistant", Content: text})
	}

	degraded := &ai.NormalizedResponse{
		ContentBlocks: []ai.ContentBlock{{Type: "text", Text: text}},
		StopReason:    "end_turn",
	}
	if last != nil {
		degraded.Provider = last.Provider
	}
	return degraded
}
