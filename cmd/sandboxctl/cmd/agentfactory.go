package cmd

import (
	"fmt"

	"github.com/sandboxy-go/sandboxy/internal/agentiface"
	"github.com/sandboxy-go/sandboxy/internal/llm/openai"
)

// resolveAgent builds an agentiface.Agent from a CLI/wire agent_id.
// "stub" replays no scripted actions (useful for dry-running module
// control flow without a live model); any other id selects the
// OpenAI-compatible agent, configured entirely from the environment
// (the model comes from LLM_MODEL, not from the id), matching the
// teacher's openai.NewClientFromEnv startup path.
func resolveAgent(agentID string) (agentiface.Agent, error) {
	if agentID == "" || agentID == "stub" {
		return agentiface.NewStubAgent(), nil
	}

	client, err := openai.NewClientFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve agent %q: %w", agentID, err)
	}
	return agentiface.NewOpenAIAgent(client, defaultSystemPrompt), nil
}

const defaultSystemPrompt = "You are the agent under test in a sandboxed simulation module. " +
	"Use the available tools to act on behalf of the user, and reply directly when no tool call is needed."
