package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandboxy-go/sandboxy/internal/agentiface"
	"github.com/sandboxy-go/sandboxy/internal/eval"
	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/tool"
)

// Runner is the synchronous (batch) executor: it walks a bound module's
// steps to completion inline, on the calling goroutine, then runs the
// evaluator and returns a RunResult. Grounded on
// original_source/sandboxy/core/runner.py:Runner.
type Runner struct {
	*core
	module  *mdl.Module
	agent   agentiface.Agent
	agentID string
}

// New constructs a Runner for a bound module and agent. The module MUST
// already be bound (internal/mdl.Bind) — a Runner never resolves
// templates or conditions itself (spec.md §3 invariant 5).
func New(m *mdl.Module, agent agentiface.Agent, agentID string) (*Runner, error) {
	c, err := newCore(m)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	return &Runner{core: c, module: m, agent: agent, agentID: agentID}, nil
}

// Run executes the module to completion and returns the batch RunResult.
// Boundary case: an empty Steps[] produces {events:[], score:0.0,
// status:"ok"} (spec.md §8).
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	steps := r.module.Steps
	stepIndex := 0

loop:
	for stepIndex < len(steps) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := steps[stepIndex]
		nextIndex := stepIndex + 1

		switch step.Action {
		case mdl.ActionInjectUser:
			r.handleInjectUser(step)

		case mdl.ActionAwaitAgent:
			stop, err := r.handleAwaitAgent(ctx, step)
			if err != nil {
				r.emitAgentFailure(step, err)
			} else if stop {
				break loop
			}

		case mdl.ActionBranch:
			newSteps, branched := r.handleBranch(step)
			if branched {
				steps = newSteps
				stepIndex = 0
				continue
			}

		case mdl.ActionToolCall:
			r.handleDirectToolCall(step)

		case mdl.ActionAwaitUser:
			// Undefined for the synchronous executor (spec.md §4.5); the
			// step is skipped rather than treated as a fatal error so a
			// module authored for both executors still runs in batch
			// mode minus its interactive prompts.
		}

		stepIndex = nextIndex
	}

	evaluation := eval.Run(r.module, r.history, r.events, r.envState)
	return &RunResult{
		ModuleID:   r.module.ID,
		AgentID:    r.agentID,
		Events:     r.events,
		Evaluation: evaluation,
	}, nil
}

func (r *Runner) handleInjectUser(step mdl.Step) {
	content, _ := step.Params["content"].(string)
	r.history = append(r.history, Message{Role: RoleUser, Content: content})
	r.events = append(r.events, Event{Type: EventUser, Payload: map[string]any{
		"content": content, "step_id": step.ID,
	}})
}

// handleAwaitAgent drives the agent↔tool sub-loop: the agent is asked
// for its next action given history and the published tool schemas,
// bounded by maxToolCallsPerTurn. Returns stop=true when the agent
// issues ActionStop, except for the first ActionStop after a tool call in
// this sub-loop, which gets one nudge and retry instead (spec.md §4.5).
func (r *Runner) handleAwaitAgent(ctx context.Context, step mdl.Step) (bool, error) {
	toolCallCount := 0
	retriedAfterToolCalls := false

	for toolCallCount < maxToolCallsPerTurn {
		action, err := r.agent.Step(ctx, r.toHistoryTurns(), r.toolSchemas())
		if err != nil {
			return false, err
		}

		switch action.Type {
		case agentiface.ActionMessage:
			r.history = append(r.history, Message{Role: RoleAssistant, Content: action.Content})
			r.events = append(r.events, Event{Type: EventAgent, Payload: map[string]any{
				"content": action.Content, "step_id": step.ID,
			}})
			return false, nil

		case agentiface.ActionToolCall:
			r.handleToolCall(action, step)
			toolCallCount++

		case agentiface.ActionStop:
			if toolCallCount > 0 && !retriedAfterToolCalls {
				retriedAfterToolCalls = true
				r.history = append(r.history, Message{
					Role:    RoleUser,
					Content: "[System: Please respond to the customer based on the information you just retrieved.]",
				})
				continue
			}
			r.events = append(r.events, Event{Type: EventAgentStop, Payload: map[string]any{"step_id": step.ID}})
			return true, nil

		default:
			return false, fmt.Errorf("unknown agent action type: %s", action.Type)
		}
	}

	// Tool-call cap reached: the sub-loop exits without an agent message
	// (spec.md §8 boundary behavior, §9 Open Question — last_agent_message
	// resolves to empty string in this case, see internal/eval).
	return false, nil
}

// handleToolCall executes a tool call requested by the agent, emitting
// the tool_call/tool_result event pair and the matching assistant/tool
// message pair before the agent is stepped again (spec.md §3 invariants
// 2-3).
func (r *Runner) handleToolCall(action agentiface.Action, step mdl.Step) {
	toolName, toolAction, ok := tool.SplitWireName(action.ToolName)
	if !ok {
		toolName, toolAction = action.ToolName, ""
	}
	toolArgs := action.ToolArgs
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}

	toolCallID := action.ToolCallID
	if toolCallID == "" {
		toolCallID = generateToolCallID(toolName, toolAction, len(r.events))
	}

	r.events = append(r.events, Event{Type: EventToolCall, Payload: map[string]any{
		"tool": toolName, "action": toolAction, "args": toolArgs, "step_id": step.ID,
	}})

	r.history = append(r.history, Message{
		Role:    RoleAssistant,
		Content: "",
		ToolCalls: []ToolCallRef{{
			ID:        toolCallID,
			Name:      action.ToolName,
			Arguments: marshalArgs(toolArgs),
		}},
	})

	result := r.invokeTool(toolName, toolAction, toolArgs)
	r.events = append(r.events, Event{Type: EventToolResult, Payload: map[string]any{
		"tool": toolName, "action": toolAction, "result": resultPayload(result),
	}})

	content := result.Error
	if result.Success {
		content = marshalArgs(result.Data)
	}
	r.history = append(r.history, Message{
		Role: RoleTool, Content: content, ToolName: toolName, ToolCallID: toolCallID,
	})
}

// handleDirectToolCall handles a `tool_call` step: the executor invokes
// the tool itself (not via the agent) and emits the paired events, but
// never touches the message history (spec.md §4.5).
func (r *Runner) handleDirectToolCall(step mdl.Step) {
	toolName, _ := step.Params["tool"].(string)
	toolAction, _ := step.Params["action"].(string)
	toolArgs, _ := step.Params["args"].(map[string]any)
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}

	r.events = append(r.events, Event{Type: EventToolCall, Payload: map[string]any{
		"tool": toolName, "action": toolAction, "args": toolArgs, "step_id": step.ID, "direct": true,
	}})

	result := r.invokeTool(toolName, toolAction, toolArgs)
	r.events = append(r.events, Event{Type: EventToolResult, Payload: map[string]any{
		"tool": toolName, "action": toolAction, "result": resultPayload(result),
	}})
}

// handleBranch replaces the active step sequence with the named branch,
// when defined; branch steps never return to the caller sequence
// (spec.md §3, §9).
func (r *Runner) handleBranch(step mdl.Step) ([]mdl.Step, bool) {
	branchName, _ := step.Params["branch_name"].(string)
	r.events = append(r.events, Event{Type: EventBranch, Payload: map[string]any{
		"branch": branchName, "step_id": step.ID,
	}})

	if branchName == "" {
		return nil, false
	}
	steps, ok := r.module.Branches[branchName]
	if !ok {
		return nil, false
	}
	return steps, true
}

// invokeTool dispatches to the registry, returning a structured failure
// (not a Go error) when the tool is absent — the tool_result event and
// history message are still emitted either way (spec.md §7
// ToolInvocationFailure).
func (r *Runner) invokeTool(toolName, toolAction string, args map[string]any) tool.Result {
	t, ok := r.registry.Get(toolName)
	if !ok {
		return tool.Result{Success: false, Error: "Tool not found: " + toolName}
	}
	result, err := t.Invoke(context.Background(), toolAction, args, r.envState)
	if err != nil {
		return tool.Result{Success: false, Error: err.Error()}
	}
	return result
}

// emitAgentFailure implements spec.md §7 AgentFailure: the executor
// emits a human-readable error as an "agent" message and continues —
// one bad agent turn never terminates the session.
func (r *Runner) emitAgentFailure(step mdl.Step, err error) {
	content := fmt.Sprintf("[agent error: %v]", err)
	r.history = append(r.history, Message{Role: RoleAssistant, Content: content})
	r.events = append(r.events, Event{Type: EventAgent, Payload: map[string]any{
		"content": content, "step_id": step.ID, "error": true,
	}})
}

func (r *Runner) toHistoryTurns() []agentiface.Turn {
	turns := make([]agentiface.Turn, len(r.history))
	for i, m := range r.history {
		turns[i] = agentiface.Turn{
			Role:       m.Role,
			Content:    m.Content,
			ToolName:   m.ToolName,
			ToolCallID: m.ToolCallID,
			ToolCalls:  m.ToolCalls,
		}
	}
	return turns
}

func marshalArgs(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func resultPayload(result tool.Result) map[string]any {
	payload := map[string]any{"success": result.Success}
	if result.Data != nil {
		payload["data"] = result.Data
	}
	if result.Error != "" {
		payload["error"] = result.Error
	}
	return payload
}
