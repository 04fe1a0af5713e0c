package tool

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Registry manages all tools instantiated for one module's environment,
// with thread-safe access — adapted from the teacher's internal/tool/
// registry.go concurrency shape (short critical sections guarded by a
// single sync.RWMutex), repointed at the new Tool contract and at
// construction from a module's environment.tools[] rather than MCP
// server discovery.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry. A duplicate name overwrites the
// existing entry and logs a warning, matching the teacher's behavior.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		log.Printf("[ToolRegistry] WARNING: overwriting existing tool %q", t.Name())
	}
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// WireSeparator is the literal used to join <tool>__<action> wire names,
// directly grounded on the teacher's internal/mcp/adapter.go
// (fmt.Sprintf("mcp_%s__%s", serverName, toolName)) convention, which
// spec.md adopts verbatim for the executor's wire tool-call format.
const WireSeparator = "__"

// WireName joins a tool name and action into the wire format an agent's
// tool_call uses to address a specific action.
func WireName(toolName, action string) string {
	return toolName + WireSeparator + action
}

// SplitWireName splits a wire-format tool call name on the FIRST
// occurrence of WireSeparator, since tool or action names may themselves
// contain underscores (spec.md §5: "split on the first double
// underscore").
func SplitWireName(wire string) (toolName, action string, ok bool) {
	idx := strings.Index(wire, WireSeparator)
	if idx < 0 {
		return "", "", false
	}
	return wire[:idx], wire[idx+len(WireSeparator):], true
}

// NamedAction pairs an action's schema with its wire-addressable name,
// for injection into an agent's available-tools listing.
type NamedAction struct {
	WireName string
	ActionSchema
}

// AllActions flattens every registered tool's action catalog into wire-
// addressable entries, sorted by tool name; each tool's actions keep the
// order its Actions method returns them in.
func (r *Registry) AllActions() []NamedAction {
	var out []NamedAction
	for _, t := range r.List() {
		for _, a := range t.Actions() {
			out = append(out, NamedAction{WireName: WireName(t.Name(), a.Name), ActionSchema: a})
		}
	}
	return out
}

// UnknownToolError reports a tool reference whose type has no registered
// Factory (spec.md §5 Edge cases: "unknown tool type fails module load";
// SPEC_FULL.md §4.0's typed Kind-tagged error kinds, there named
// UnknownToolType).
type UnknownToolError struct {
	Kind string
	Type string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("%s: unknown tool type: %s", e.Kind, e.Type)
}

func newUnknownToolError(toolType string) *UnknownToolError {
	return &UnknownToolError{Kind: "UnknownToolType", Type: toolType}
}

// builtinFactories is the type -> constructor catalog, mirroring
// original_source/sandboxy/tools/loader.py:BUILTIN_TOOLS.
var builtinFactories = map[string]Factory{}

// RegisterBuiltin adds a tool type to the built-in catalog. Called from
// each builtin tool file's package init.
func RegisterBuiltin(toolType string, factory Factory) {
	builtinFactories[toolType] = factory
}

// ToolRef is the minimal shape BuildRegistry needs out of a module's
// environment.tools[] entry, decoupling this package from internal/mdl.
type ToolRef struct {
	Name        string
	Type        string
	Description string
	Config      map[string]any
}

// BuildRegistry constructs a Registry from a bound module's environment
// tool references, instantiating each against the built-in catalog.
// Grounded on original_source/sandboxy/tools/loader.py:ToolLoader.from_env_config,
// minus the dynamic-spec/importlib path (no plugin loading in this
// port — spec.md's Non-goals exclude a tool plugin system).
func BuildRegistry(refs []ToolRef) (*Registry, error) {
	reg := NewRegistry()
	for _, ref := range refs {
		factory, ok := builtinFactories[ref.Type]
		if !ok {
			return nil, newUnknownToolError(ref.Type)
		}
		reg.Register(factory(ref.Name, ref.Description, ref.Config))
	}
	return reg, nil
}
