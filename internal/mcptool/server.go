// Package mcptool exposes a module's tool.Registry as an MCP server: the
// reverse direction of the deleted teacher's client-side
// internal/mcp.MCPToolAdapter (Jint8888-Pocket-Omega/internal/mcp/adapter.go,
// client.go), which let an agent call OUT to external MCP servers. Here an
// external MCP client (an IDE, another agent, a human operator) drives IN to
// this process's sandboxed tools, which is useful for interactively probing a
// module's environment outside of a full agent run.
//
// Built on the same github.com/mark3labs/mcp-go SDK the teacher already
// depends on, using its server subpackage rather than its client subpackage.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sandboxy-go/sandboxy/internal/tool"
)

// Server wraps an MCP server that forwards every call to the underlying
// tool.Registry. One Server corresponds to one sandbox environment instance,
// so calls against it share the same mutable envState (spec.md §3 EnvState).
type Server struct {
	mcp *server.MCPServer

	mu       sync.Mutex
	registry *tool.Registry
	envState map[string]any
}

// New builds an MCP server exposing every action in registry as an MCP
// tool, wire-named exactly as the agent sees it (tool.WireName:
// "<toolName>__<action>"). envState is the live sandbox state all calls
// read and mutate, guarded by an internal mutex since MCP requests may
// arrive concurrently.
func New(name, version string, registry *tool.Registry, envState map[string]any) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(name, version),
		registry: registry,
		envState: envState,
	}
	for _, na := range registry.AllActions() {
		s.mcp.AddTool(buildMCPTool(na), s.handlerFor(na))
	}
	return s
}

// buildMCPTool converts one tool.NamedAction into an mcp.Tool, reusing the
// action's existing JSON-schema-shaped Parameters map verbatim as the MCP
// input schema instead of re-deriving it through the SDK's WithString/
// WithObject builders.
func buildMCPTool(na tool.NamedAction) mcp.Tool {
	schema := na.Parameters
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		raw = []byte(`{"type":"object","properties":{}}`)
	}
	return mcp.NewToolWithRawSchema(na.WireName, na.Description, raw)
}

// handlerFor closes over the action's wire name so the registered
// mcp.server.ToolHandlerFunc knows which tool/action pair to dispatch to
// without re-parsing the name from the inbound request.
func (s *Server) handlerFor(na tool.NamedAction) server.ToolHandlerFunc {
	toolName, actionName, _ := tool.SplitWireName(na.WireName)
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, ok := s.registry.Get(toolName)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("mcptool: unknown tool %q", toolName)), nil
		}

		var args map[string]any
		if req.Params.Arguments != nil {
			m, ok := req.Params.Arguments.(map[string]any)
			if !ok {
				return mcp.NewToolResultError("mcptool: arguments must be a JSON object"), nil
			}
			args = m
		}

		s.mu.Lock()
		result, invokeErr := t.Invoke(ctx, actionName, args, s.envState)
		s.mu.Unlock()
		if invokeErr != nil {
			return mcp.NewToolResultError(invokeErr.Error()), nil
		}
		if !result.Success {
			return mcp.NewToolResultError(result.Error), nil
		}

		payload, err := json.Marshal(result.Data)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("mcptool: marshal result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// ServeStdio runs the MCP server over stdio until the transport closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// EnvState returns a snapshot of the live sandbox state for callers (e.g.
// the session manager) that need to read it alongside MCP-driven calls.
func (s *Server) EnvState() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.envState))
	for k, v := range s.envState {
		out[k] = v
	}
	return out
}
