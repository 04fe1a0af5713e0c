package mdl

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML module document from disk and parses it.
func Load(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newParseError("read module: %v", err)
	}
	return Parse(data)
}

// Parse parses raw YAML bytes into a Module.
func Parse(data []byte) (*Module, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, newParseError("invalid YAML: %v", err)
	}
	if raw == nil {
		return nil, newParseError("module must be a YAML mapping")
	}
	return ParseMap(raw)
}

// ParseMap parses a raw decoded mapping into a Module. Unknown top-level
// keys are ignored to permit forward-compatibility.
func ParseMap(raw map[string]any) (*Module, error) {
	id, ok := raw["id"].(string)
	if !ok || id == "" {
		return nil, newParseError("module must have an 'id' field")
	}

	m := &Module{
		ID:          id,
		Description: str(raw["description"]),
	}

	m.Variables = parseVariables(asSlice(raw["variables"]))

	envRaw := asMap(raw["environment"])
	m.Environment = Environment{
		SandboxType:  strDefault(envRaw["sandbox_type"], "local"),
		Tools:        parseTools(asSlice(envRaw["tools"])),
		InitialState: asMap(envRaw["initial_state"]),
	}

	m.Steps = parseSteps(asSlice(raw["steps"]))

	m.Branches = map[string][]Step{}
	for name, raw := range asMap(raw["branches"]) {
		m.Branches[name] = parseSteps(asSlice(raw))
	}

	m.Evaluation = parseChecks(asSlice(raw["evaluation"]))

	// agent_config, falling back to the legacy 'agent' key (spec.md §6).
	if ac := asMap(raw["agent_config"]); len(ac) > 0 {
		m.AgentConfig = ac
	} else {
		m.AgentConfig = asMap(raw["agent"])
	}

	m.Scoring = parseScoring(asMap(raw["scoring"]))

	return m, nil
}

func parseVariables(raw []any) []Variable {
	vars := make([]Variable, 0, len(raw))
	for _, item := range raw {
		v := asMap(item)
		name := str(v["name"])
		variable := Variable{
			Name:        name,
			Label:       strDefault(v["label"], name),
			Description: str(v["description"]),
			Kind:        VariableKind(strDefault(v["type"], string(KindString))),
			Default:     v["default"],
			Min:         floatPtr(v["min"]),
			Max:         floatPtr(v["max"]),
			Step:        floatPtr(v["step"]),
		}
		if opts, ok := v["options"].([]any); ok {
			for _, o := range opts {
				om := asMap(o)
				variable.Options = append(variable.Options, VariableOption{
					Value: str(om["value"]),
					Label: str(om["label"]),
				})
			}
		}
		vars = append(vars, variable)
	}
	return vars
}

func parseTools(raw []any) []ToolRef {
	tools := make([]ToolRef, 0, len(raw))
	for _, item := range raw {
		t := asMap(item)
		tools = append(tools, ToolRef{
			Name:        str(t["name"]),
			Type:        str(t["type"]),
			Description: str(t["description"]),
			Config:      asMap(t["config"]),
		})
	}
	return tools
}

func parseSteps(raw []any) []Step {
	steps := make([]Step, 0, len(raw))
	for _, item := range raw {
		s := asMap(item)
		steps = append(steps, Step{
			ID:        str(s["id"]),
			Action:    StepAction(str(s["action"])),
			Params:    asMap(s["params"]),
			Condition: str(s["condition"]),
		})
	}
	return steps
}

func parseChecks(raw []any) []EvaluationCheck {
	checks := make([]EvaluationCheck, 0, len(raw))
	for _, item := range raw {
		c := asMap(item)
		cfg := asMap(c["config"])
		// Convenience: allow top-level fields used by contains/regex/count/
		// tool_called/equals/env_state to live alongside "config" in the
		// YAML document (matches how module authors naturally write
		// checks — see spec.md §3's per-kind field lists).
		for _, key := range []string{
			"target", "value", "expected", "case_sensitive", "pattern",
			"min", "max", "tool", "action", "key", "expr", "pass_if",
		} {
			if v, ok := c[key]; ok {
				if cfg == nil {
					cfg = map[string]any{}
				}
				cfg[key] = v
			}
		}
		checks = append(checks, EvaluationCheck{
			Name:   str(c["name"]),
			Kind:   CheckKind(str(c["kind"])),
			Config: cfg,
		})
	}
	return checks
}

func parseScoring(raw map[string]any) ScoringConfig {
	sc := ScoringConfig{
		Formula:   str(raw["formula"]),
		Normalize: boolDefault(raw["normalize"], false),
		MinScore:  floatDefault(raw["min_score"], 0.0),
		MaxScore:  floatDefault(raw["max_score"], 1.0),
	}
	if w, ok := raw["weights"].(map[string]any); ok {
		sc.Weights = map[string]float64{}
		for k, v := range w {
			sc.Weights[k] = floatDefault(v, 1.0)
		}
	}
	return sc
}

// ── small decode helpers over loosely-typed YAML-decoded values ──

func asMap(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func strDefault(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func boolDefault(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func floatDefault(v any, def float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

func floatPtr(v any) *float64 {
	if f, ok := toFloat(v); ok {
		return &f
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
