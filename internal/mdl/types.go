// Package mdl implements the Module Definition Language: parsing a module
// document into a Module, validating it structurally, and binding it
// against a variable assignment (template interpolation + condition
// filtering) to produce a specialized Module an executor can run without
// ever seeing a template.
package mdl

import "fmt"

// VariableKind enumerates the allowed kinds of a module Variable.
type VariableKind string

const (
	KindString  VariableKind = "string"
	KindNumber  VariableKind = "number"
	KindBoolean VariableKind = "boolean"
	KindSelect  VariableKind = "select"
	KindSlider  VariableKind = "slider"
)

// StepAction enumerates the allowed step actions.
type StepAction string

const (
	ActionInjectUser StepAction = "inject_user"
	ActionAwaitUser  StepAction = "await_user"
	ActionAwaitAgent StepAction = "await_agent"
	ActionBranch     StepAction = "branch"
	ActionToolCall   StepAction = "tool_call"
)

// validStepActions is the allowed set checked by Validate.
var validStepActions = map[StepAction]bool{
	ActionInjectUser: true,
	ActionAwaitUser:  true,
	ActionAwaitAgent: true,
	ActionBranch:     true,
	ActionToolCall:   true,
}

// CheckKind enumerates the recognized evaluation check kinds.
type CheckKind string

const (
	CheckContains      CheckKind = "contains"
	CheckRegex         CheckKind = "regex"
	CheckCount         CheckKind = "count"
	CheckToolCalled    CheckKind = "tool_called"
	CheckEquals        CheckKind = "equals"
	CheckEnvState      CheckKind = "env_state"
	CheckDeterministic CheckKind = "deterministic"
	CheckLLM           CheckKind = "llm"
)

var validCheckKinds = map[CheckKind]bool{
	CheckContains:      true,
	CheckRegex:         true,
	CheckCount:         true,
	CheckToolCalled:    true,
	CheckEquals:        true,
	CheckEnvState:      true,
	CheckDeterministic: true,
	CheckLLM:           true,
}

// VariableOption is one entry of a select-kind Variable.
type VariableOption struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

// Variable is a module-declared, form-generating, template-bindable input.
type Variable struct {
	Name        string           `yaml:"name"`
	Label       string           `yaml:"label"`
	Description string           `yaml:"description"`
	Kind        VariableKind     `yaml:"type"`
	Default     any              `yaml:"default"`
	Options     []VariableOption `yaml:"options,omitempty"`
	Min         *float64         `yaml:"min,omitempty"`
	Max         *float64         `yaml:"max,omitempty"`
	Step        *float64         `yaml:"step,omitempty"`
}

// ToolRef is a reference to a tool within a module's environment.
type ToolRef struct {
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description"`
	Config      map[string]any `yaml:"config"`
}

// Environment describes the sandbox and tool set a module runs against.
type Environment struct {
	SandboxType  string         `yaml:"sandbox_type"`
	Tools        []ToolRef      `yaml:"tools"`
	InitialState map[string]any `yaml:"initial_state"`
}

// Step is one unit of scripted control flow.
type Step struct {
	ID        string         `yaml:"id"`
	Action    StepAction     `yaml:"action"`
	Params    map[string]any `yaml:"params"`
	Condition string         `yaml:"condition,omitempty"`
}

// EvaluationCheck is a tagged-union evaluation rule; Config carries the
// kind-specific fields (target, value, expected, pattern, min, max, tool,
// action, key, expr, pass_if, ...) as a loosely-typed map, mirroring the
// YAML document shape. Accessors in internal/eval read out of Config.
type EvaluationCheck struct {
	Name   string         `yaml:"name"`
	Kind   CheckKind      `yaml:"kind"`
	Config map[string]any `yaml:"config"`
}

// ScoringConfig controls how check results are composed into a final score.
type ScoringConfig struct {
	Formula   string             `yaml:"formula,omitempty"`
	Weights   map[string]float64 `yaml:"weights,omitempty"`
	Normalize bool               `yaml:"normalize,omitempty"`
	MinScore  float64            `yaml:"min_score,omitempty"`
	MaxScore  float64            `yaml:"max_score,omitempty"`
}

// Module is the complete, immutable-after-binding specification of an
// agent-simulation scenario.
type Module struct {
	ID            string              `yaml:"id"`
	Description   string              `yaml:"description"`
	Variables     []Variable          `yaml:"variables"`
	AgentConfig   map[string]any      `yaml:"agent_config"`
	Environment   Environment         `yaml:"environment"`
	Steps         []Step              `yaml:"steps"`
	Branches      map[string][]Step   `yaml:"branches"`
	Evaluation    []EvaluationCheck   `yaml:"evaluation"`
	Scoring       ScoringConfig       `yaml:"scoring"`
}

// ParseError is raised by Load/Parse on malformed module documents
// (SPEC_FULL.md §4.0's typed Kind-tagged error kinds).
type ParseError struct {
	Kind    string
	Message string
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func newParseError(format string, args ...any) *ParseError {
	return &ParseError{Kind: "ParseError", Message: fmt.Sprintf(format, args...)}
}
