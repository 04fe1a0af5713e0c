package agentiface_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sandboxy-go/sandboxy/internal/agentiface"
	"github.com/sandboxy-go/sandboxy/internal/llm"
	"github.com/sandboxy-go/sandboxy/internal/transcript"
)

// fakeProvider records the messages it was last called with and replays a
// scripted reply, standing in for a real llm.Provider.
type fakeProvider struct {
	reply llm.Message
	sent  []llm.Message
}

func (f *fakeProvider) CallLLM(_ context.Context, messages []llm.Message) (llm.Message, error) {
	f.sent = messages
	return f.reply, nil
}

func (f *fakeProvider) CallLLMStream(_ context.Context, messages []llm.Message, _ llm.StreamCallback) (llm.Message, error) {
	f.sent = messages
	return f.reply, nil
}

func (f *fakeProvider) CallLLMWithTools(_ context.Context, messages []llm.Message, _ []llm.ToolDefinition) (llm.Message, error) {
	f.sent = messages
	return f.reply, nil
}

func (f *fakeProvider) GetName() string { return "fake" }

func TestOpenAIAgentRoundTripsToolCallID(t *testing.T) {
	provider := &fakeProvider{reply: llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{
			{ID: "call_abc123", Name: "shopify__get_order", Arguments: json.RawMessage(`{"order_id":"ORD1"}`)},
		},
	}}
	agent := agentiface.NewOpenAIAgent(provider, "be helpful")

	history := []agentiface.Turn{
		{
			Role: transcript.RoleAssistant,
			ToolCalls: []transcript.ToolCallRef{
				{ID: "call_abc123", Name: "shopify__get_order", Arguments: `{"order_id":"ORD1"}`},
			},
		},
		{Role: transcript.RoleTool, Content: `{"status":"shipped"}`, ToolName: "shopify", ToolCallID: "call_abc123"},
	}

	action, err := agent.Step(context.Background(), history, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Type != agentiface.ActionToolCall || action.ToolCallID != "call_abc123" {
		t.Fatalf("expected tool_call with ToolCallID call_abc123, got %+v", action)
	}

	// system + the two history turns.
	if len(provider.sent) != 3 {
		t.Fatalf("expected 3 messages sent, got %d: %+v", len(provider.sent), provider.sent)
	}

	assistantMsg := provider.sent[1]
	if assistantMsg.Role != transcript.RoleAssistant {
		t.Errorf("assistant message role = %q", assistantMsg.Role)
	}
	if len(assistantMsg.ToolCalls) != 1 || assistantMsg.ToolCalls[0].ID != "call_abc123" {
		t.Errorf("assistant message missing tool_calls, got %+v", assistantMsg.ToolCalls)
	}

	toolMsg := provider.sent[2]
	if toolMsg.Role != transcript.RoleTool {
		t.Errorf("tool message role = %q", toolMsg.Role)
	}
	if toolMsg.ToolCallID != "call_abc123" {
		t.Errorf("tool message ToolCallID = %q, want call_abc123", toolMsg.ToolCallID)
	}
}
