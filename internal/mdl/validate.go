package mdl

import "fmt"

// Validate structurally checks a parsed Module and reports problems
// without raising. It does not type-check step params; param shape is
// enforced at interpretation time by the executor (spec.md §4.1).
func Validate(m *Module) []string {
	var errs []string

	for _, step := range m.Steps {
		errs = append(errs, validateStep(m, step)...)
	}
	for _, steps := range m.Branches {
		for _, step := range steps {
			errs = append(errs, validateStep(m, step)...)
		}
	}

	for _, check := range m.Evaluation {
		if !validCheckKinds[check.Kind] {
			errs = append(errs, fmt.Sprintf("evaluation '%s' has invalid kind: %s", check.Name, check.Kind))
		}
	}

	return errs
}

func validateStep(m *Module, step Step) []string {
	var errs []string
	if !validStepActions[step.Action] {
		errs = append(errs, fmt.Sprintf("step '%s' has invalid action: %s", step.ID, step.Action))
	}
	if step.Action == ActionBranch {
		name, _ := step.Params["branch_name"].(string)
		if name != "" {
			if _, ok := m.Branches[name]; !ok {
				errs = append(errs, fmt.Sprintf("step '%s' references unknown branch: %s", step.ID, name))
			}
		}
	}
	return errs
}
