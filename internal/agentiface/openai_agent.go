package agentiface

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandboxy-go/sandboxy/internal/llm"
	"github.com/sandboxy-go/sandboxy/internal/tool"
	"github.com/sandboxy-go/sandboxy/internal/transcript"
)

// OpenAIAgent drives an llm.Provider through Function Calling, adapted
// from the teacher's internal/llm/openai Client usage pattern but
// speaking the agentiface.Agent contract instead of the ReAct decide
// loop: every Step call is one Function-Calling round-trip.
type OpenAIAgent struct {
	provider     llm.Provider
	systemPrompt string
}

// NewOpenAIAgent constructs an agent backed by the given provider.
func NewOpenAIAgent(provider llm.Provider, systemPrompt string) *OpenAIAgent {
	return &OpenAIAgent{provider: provider, systemPrompt: systemPrompt}
}

func (a *OpenAIAgent) Step(ctx context.Context, history []Turn, availableTools []tool.NamedAction) (Action, error) {
	messages := a.buildMessages(history)
	toolDefs := toToolDefinitions(availableTools)

	reply, err := a.provider.CallLLMWithTools(ctx, messages, toolDefs)
	if err != nil {
		return Action{}, fmt.Errorf("agent step: %w", err)
	}

	if len(reply.ToolCalls) > 0 {
		tc := reply.ToolCalls[0]
		var args map[string]any
		if len(tc.Arguments) > 0 {
			if err := json.Unmarshal(tc.Arguments, &args); err != nil {
				return Action{}, fmt.Errorf("agent step: malformed tool call arguments: %w", err)
			}
		}
		return Action{Type: ActionToolCall, ToolName: tc.Name, ToolArgs: args, ToolCallID: tc.ID}, nil
	}

	if reply.Content == "" {
		return Action{Type: ActionStop}, nil
	}
	return Action{Type: ActionMessage, Content: reply.Content}, nil
}

func (a *OpenAIAgent) buildMessages(history []Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	if a.systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	}
	for _, turn := range history {
		msg := llm.Message{Role: turn.Role, Content: turn.Content, Name: turn.ToolName, ToolCallID: turn.ToolCallID}
		if len(turn.ToolCalls) > 0 {
			msg.ToolCalls = toLLMToolCalls(turn.ToolCalls)
		}
		messages = append(messages, msg)
	}
	return messages
}

// toLLMToolCalls mirrors the provider's own ToolCall shape; Arguments is
// carried as the already-serialized string an assistant turn recorded
// (internal/runner's Message.ToolCalls), not re-marshaled.
func toLLMToolCalls(refs []transcript.ToolCallRef) []llm.ToolCall {
	out := make([]llm.ToolCall, len(refs))
	for i, ref := range refs {
		out[i] = llm.ToolCall{ID: ref.ID, Name: ref.Name, Arguments: json.RawMessage(ref.Arguments)}
	}
	return out
}

func toToolDefinitions(actions []tool.NamedAction) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, len(actions))
	for i, a := range actions {
		defs[i] = llm.ToolDefinition{Name: a.WireName, Description: a.Description, Parameters: a.Parameters}
	}
	return defs
}
