// Package runner implements the Session Execution Core: a deterministic
// step interpreter that walks a bound module's steps, drives the nested
// agent↔tool sub-loop, and records an ordered event log — the
// synchronous executor (runner.go, spec.md §4.5) and the suspendable,
// event-streaming interactive executor (async_runner.go, spec.md §4.6)
// share every type and helper in this file.
//
// Both executors are ported from original_source/sandboxy/core/runner.py
// and async_runner.py almost line for line; the teacher's generic
// internal/core.Flow[State]/Node[State,P,R] graph abstraction was
// deliberately NOT reused here — spec.md §1 is explicit that step
// sequences are linear with branch replacement, not an arbitrary graph,
// so a purpose-built stepper replaces the generic action-routed Flow.
//
// Branch steps never return to the caller sequence: selecting a branch
// replaces the active step sequence outright and resets the step index
// to zero (spec.md §3, §9 Open Question — documented here as a settled
// contract, not an oversight).
//
// In the agent↔tool sub-loop, the first ActionStop that follows at least
// one tool call does not end the turn: a synthetic user message asking
// the agent to respond from the tool results is appended to history and
// the agent is stepped once more. The nudge is visible in history; no
// event is emitted for it.
package runner

import (
	"encoding/json"
	"strconv"

	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/tool"
	"github.com/sandboxy-go/sandboxy/internal/transcript"
)

// Re-exported for callers that only need the transcript vocabulary
// through the runner package.
const (
	RoleUser      = transcript.RoleUser
	RoleAssistant = transcript.RoleAssistant
	RoleTool      = transcript.RoleTool

	EventUser          = transcript.EventUser
	EventAgent         = transcript.EventAgent
	EventAgentStop     = transcript.EventAgentStop
	EventToolCall      = transcript.EventToolCall
	EventToolResult    = transcript.EventToolResult
	EventBranch        = transcript.EventBranch
	EventAwaitingInput = transcript.EventAwaitingInput
	EventCompleted     = transcript.EventCompleted
	EventError         = transcript.EventError
)

type (
	Message     = transcript.Message
	Event       = transcript.Event
	ToolCallRef = transcript.ToolCallRef
)

// RunResult is the exit contract of a batch (synchronous) run (spec.md
// §6): serializable to JSON without loss via ToJSON, which is also what
// `sandboxctl run` prints. There is no separate human-readable renderer.
type RunResult struct {
	ModuleID   string         `json:"module_id"`
	AgentID    string         `json:"agent_id"`
	Events     []Event        `json:"events"`
	Evaluation map[string]any `json:"evaluation"`
}

// ToJSON serializes the result, matching RunResult.to_json in the Python
// original.
func (r *RunResult) ToJSON(indent bool) (string, error) {
	if indent {
		b, err := json.MarshalIndent(r, "", "  ")
		return string(b), err
	}
	b, err := json.Marshal(r)
	return string(b), err
}

// core holds the state shared by both executors: the bound module,
// history, the event log, env_state and the constructed tool registry.
// Neither executor retains env_state references inside a tool beyond
// one Invoke call (spec.md §9 design note).
type core struct {
	module   *mdl.Module
	registry *tool.Registry
	history  []Message
	envState map[string]any
	events   []Event
}

func newCore(m *mdl.Module) (*core, error) {
	refs := make([]tool.ToolRef, len(m.Environment.Tools))
	for i, t := range m.Environment.Tools {
		refs[i] = tool.ToolRef{Name: t.Name, Type: t.Type, Description: t.Description, Config: t.Config}
	}
	registry, err := tool.BuildRegistry(refs)
	if err != nil {
		return nil, err
	}
	return &core{
		module:   m,
		registry: registry,
		envState: cloneState(m.Environment.InitialState),
	}, nil
}

func cloneState(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// toolSchemas publishes every registered tool's wire-addressable
// actions to the agent as one flat list (spec.md §6 published_tools
// shape).
func (c *core) toolSchemas() []tool.NamedAction {
	return c.registry.AllActions()
}

// maxToolCallsPerTurn bounds the agent↔tool sub-loop (spec.md §4.5).
const maxToolCallsPerTurn = 10

// generateToolCallID mirrors original_source/sandboxy/core/runner.py's
// fallback `call_{tool}_{action}_{len(events)}` id, used only when the
// agent doesn't supply its own (spec.md §4.6: "use the original
// tool_call_id from the model, or generate one as fallback").
func generateToolCallID(toolName, toolAction string, eventCount int) string {
	return "call_" + toolName + "_" + toolAction + "_" + strconv.Itoa(eventCount)
}
