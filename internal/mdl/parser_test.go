package mdl_test

import (
	"testing"

	"github.com/sandboxy-go/sandboxy/internal/mdl"
)

func TestParseRejectsMissingID(t *testing.T) {
	_, err := mdl.Parse([]byte("description: no id here\n"))
	if err == nil {
		t.Fatal("expected error for module missing id")
	}
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := mdl.Parse([]byte("id: [unterminated\n"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestParseAgentConfigFallsBackToLegacyAgentKey(t *testing.T) {
	doc := `
id: legacy-agent
agent:
  model: gpt-4o
  temperature: 0.2
`
	m, err := mdl.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.AgentConfig["model"] != "gpt-4o" {
		t.Errorf("expected legacy 'agent' key to populate AgentConfig, got %#v", m.AgentConfig)
	}
}

func TestParseAgentConfigPrefersNewKey(t *testing.T) {
	doc := `
id: new-agent
agent:
  model: legacy-model
agent_config:
  model: gpt-4o
`
	m, err := mdl.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.AgentConfig["model"] != "gpt-4o" {
		t.Errorf("expected agent_config to take precedence, got %#v", m.AgentConfig)
	}
}

func TestParseChecksPromotesConvenienceFields(t *testing.T) {
	doc := `
id: eval-demo
evaluation:
  - name: mentions-refund
    kind: contains
    target: last_agent_message
    value: refund
    case_sensitive: false
`
	m, err := mdl.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Evaluation) != 1 {
		t.Fatalf("expected 1 check, got %d", len(m.Evaluation))
	}
	cfg := m.Evaluation[0].Config
	if cfg["target"] != "last_agent_message" || cfg["value"] != "refund" {
		t.Errorf("convenience fields not promoted into config: %#v", cfg)
	}
}

func TestValidateCatchesUnknownBranchReference(t *testing.T) {
	doc := `
id: branch-demo
steps:
  - id: go
    action: branch
    params:
      branch_name: nonexistent
`
	m, err := mdl.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	errs := mdl.Validate(m)
	if len(errs) == 0 {
		t.Fatal("expected validation error for unknown branch reference")
	}
}

func TestValidateCatchesInvalidStepAction(t *testing.T) {
	doc := `
id: bad-action
steps:
  - id: s1
    action: not_a_real_action
`
	m, err := mdl.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	errs := mdl.Validate(m)
	if len(errs) == 0 {
		t.Fatal("expected validation error for invalid step action")
	}
}

func TestValidatePassesWellFormedModule(t *testing.T) {
	doc := `
id: good-module
steps:
  - id: s1
    action: inject_user
    params:
      message: hi
  - id: s2
    action: branch
    params:
      branch_name: happy
branches:
  happy:
    - id: s3
      action: await_agent
evaluation:
  - name: check1
    kind: contains
    target: last_agent_message
    value: hi
`
	m, err := mdl.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	errs := mdl.Validate(m)
	if len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}
