// Package agentiface defines the external-agent contract a running
// session drives: the module executors (internal/runner) treat the
// agent under test as an opaque collaborator and only ever call Step,
// grounded on original_source/sandboxy/agents/base.go's Agent Protocol
// (step(history, available_tools) -> AgentAction).
package agentiface

import (
	"context"

	"github.com/sandboxy-go/sandboxy/internal/tool"
	"github.com/sandboxy-go/sandboxy/internal/transcript"
)

// ActionType tags the kind of action an agent returned from Step.
type ActionType string

const (
	ActionMessage  ActionType = "message"
	ActionToolCall ActionType = "tool_call"
	ActionStop     ActionType = "stop"
)

// Action is the agent's response to one Step call.
type Action struct {
	Type       ActionType
	Content    string         // set when Type == ActionMessage
	ToolName   string         // set when Type == ActionToolCall (wire name, e.g. "shopify__refund_order")
	ToolArgs   map[string]any // set when Type == ActionToolCall
	ToolCallID string         // optional when Type == ActionToolCall; the executor generates one when empty (spec.md §6)
}

// Turn is one entry of the conversation history an agent steps against.
// Role mirrors internal/runner's Message roles ("user", "assistant",
// "tool"). ToolName/ToolCallID are populated on tool-result turns, and
// ToolCalls on the assistant turn that requested them, so a Function
// Calling-backed agent can round-trip the provider's own tool_call_id
// (spec.md §4.6: "use the original tool_call_id from the model, or
// generate one as fallback").
type Turn struct {
	Role       string
	Content    string
	ToolName   string
	ToolCallID string
	ToolCalls  []transcript.ToolCallRef
}

// Agent is the interface every agent under test implements. The
// executor calls Step once per sub-loop iteration with the full
// conversation-so-far and the module's published tool catalog (wire-
// addressable, e.g. "shopify__refund_order"); Step returns exactly one
// Action.
type Agent interface {
	Step(ctx context.Context, history []Turn, availableTools []tool.NamedAction) (Action, error)
}
