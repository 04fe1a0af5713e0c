// Package tool implements the tool contract and registry that scripted
// modules invoke against: a named tool exposes a fixed set of actions,
// each callable with loosely-typed arguments against the live environment
// state. Grounded on original_source/sandboxy/tools/base.py's
// invoke/get_actions Protocol, with the Registry's concurrency shape
// adapted from the teacher's internal/tool/registry.go.
package tool

import "context"

// Result is the outcome of invoking one tool action (spec.md §5).
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ActionSchema documents one invocable action for prompt injection and
// tool-call validation, mirroring get_actions()'s per-action shape.
type ActionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Tool is the interface every built-in tool implements. EnvState is
// passed by reference (a shared map[string]any) so actions such as
// refund_order can mutate it directly, matching the env_state
// dict-mutation contract the original Python tools rely on.
type Tool interface {
	Name() string
	Description() string
	Actions() []ActionSchema
	Invoke(ctx context.Context, action string, args map[string]any, envState map[string]any) (Result, error)
}

// Factory constructs a Tool instance from a module's tool reference
// (name, description, config). Built-in tool types register a Factory
// with the package-level catalog in registry.go.
type Factory func(name, description string, config map[string]any) Tool

// UnknownActionResult is the canned failure a Tool returns for an action
// name it doesn't recognize.
func UnknownActionResult(action string) Result {
	return Result{Success: false, Error: "unknown action: " + action}
}

// ConfigString reads a string field out of a tool's config map, falling
// back to def when absent or of the wrong type.
func ConfigString(config map[string]any, key, def string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return def
}

// ConfigMap reads a map field out of a tool's config map, defaulting to
// an empty map when absent.
func ConfigMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

// Arg reads a required string argument, reporting ok=false when missing
// or the wrong type — action handlers use this to build "X is required"
// errors without repeating the type assertion everywhere.
func Arg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok && v != ""
}

// ArgDefault reads an optional string argument with a default.
func ArgDefault(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}
