package mdl

import "github.com/sandboxy-go/sandboxy/internal/expr"

// Bind specializes a parsed Module against a concrete variable assignment:
// every {{name}} template occurrence (including inside nested
// maps/lists such as environment.initial_state and tool config) is
// substituted, {{#if}}/{{else if}}/{{else}}/{{/if}} blocks are reduced to
// their selected branch, and steps whose condition evaluates false are
// dropped from the output entirely. A {{name}} placeholder that names no
// known variable is left in place as literal text; no step ever retains a
// Condition field — binding is a one-way reduction (spec.md §4.2, grounded on
// original_source/sandboxy/core/mdl_parser.py:apply_variables).
//
// assignment should map variable name to the value chosen for that run;
// variables the caller omits fall back to their declared Default.
func Bind(m *Module, assignment map[string]any) *Module {
	vars := resolvedVariables(m, assignment)

	bound := &Module{
		ID:          m.ID,
		Description: bindString(m.Description, vars),
		Variables:   m.Variables,
		AgentConfig: interpolateValue(m.AgentConfig, vars).(map[string]any),
		Environment: Environment{
			SandboxType:  m.Environment.SandboxType,
			Tools:        bindTools(m.Environment.Tools, vars),
			InitialState: interpolateValue(m.Environment.InitialState, vars).(map[string]any),
		},
		Steps:      bindSteps(m.Steps, vars),
		Branches:   map[string][]Step{},
		Evaluation: bindChecks(m.Evaluation, vars),
		Scoring:    m.Scoring,
	}
	for name, steps := range m.Branches {
		bound.Branches[name] = bindSteps(steps, vars)
	}
	return bound
}

// resolvedVariables merges declared defaults with the caller's assignment,
// so template lookups always see every declared variable.
func resolvedVariables(m *Module, assignment map[string]any) map[string]any {
	vars := make(map[string]any, len(m.Variables))
	for _, v := range m.Variables {
		vars[v.Name] = v.Default
	}
	for k, v := range assignment {
		vars[k] = v
	}
	return vars
}

func bindString(s string, vars map[string]any) string {
	rendered := renderConditionalBlocks(s, vars)
	v := interpolateString(rendered, vars)
	if str, ok := v.(string); ok {
		return str
	}
	return rendered
}

func bindTools(tools []ToolRef, vars map[string]any) []ToolRef {
	out := make([]ToolRef, len(tools))
	for i, t := range tools {
		out[i] = ToolRef{
			Name:        t.Name,
			Type:        t.Type,
			Description: bindString(t.Description, vars),
			Config:      interpolateValue(t.Config, vars).(map[string]any),
		}
	}
	return out
}

// bindSteps interpolates each step's params and drops steps whose
// condition evaluates false, clearing Condition from survivors (spec.md
// §4.2: "the bound step sequence never carries a condition forward").
func bindSteps(steps []Step, vars map[string]any) []Step {
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if s.Condition != "" && !evalStepCondition(s.Condition, vars) {
			continue
		}
		out = append(out, Step{
			ID:     s.ID,
			Action: s.Action,
			Params: interpolateValue(s.Params, vars).(map[string]any),
		})
	}
	return out
}

func evalStepCondition(condition string, vars map[string]any) bool {
	return expr.EvalBool(condition, vars)
}

func bindChecks(checks []EvaluationCheck, vars map[string]any) []EvaluationCheck {
	out := make([]EvaluationCheck, len(checks))
	for i, c := range checks {
		out[i] = EvaluationCheck{
			Name:   bindString(c.Name, vars),
			Kind:   c.Kind,
			Config: interpolateValue(c.Config, vars).(map[string]any),
		}
	}
	return out
}
