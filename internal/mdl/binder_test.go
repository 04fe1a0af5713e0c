package mdl_test

import (
	"testing"

	"github.com/sandboxy-go/sandboxy/internal/mdl"
)

const conditionalModule = `
id: refund-demo
description: "Tier: {{#if tier == \"gold\"}}Gold{{else if tier == \"silver\"}}Silver{{else}}Standard{{/if}} customer"
variables:
  - name: tier
    type: string
    default: standard
  - name: angry
    type: boolean
    default: false
environment:
  sandbox_type: local
  tools:
    - name: shopify
      type: mock_shopify
      config:
        starting_balance: "{{starting_balance}}"
  initial_state:
    cash_balance: "{{starting_balance}}"
steps:
  - id: greet
    action: inject_user
    params:
      message: "Hello, I am a {{tier}} customer"
      discount: "{{#if tier == \"gold\"}}20%{{else}}0%{{/if}}"
  - id: escalate
    action: inject_user
    condition: "angry"
    params:
      message: "This is unacceptable!"
  - id: wait
    action: await_agent
    params: {}
variables_unused: true
`

func TestBindInterpolatesWholeStringPreservesType(t *testing.T) {
	m, err := mdl.Parse([]byte(conditionalModule))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	bound := mdl.Bind(m, map[string]any{"tier": "gold", "angry": false, "starting_balance": 1000.0})

	cfg := bound.Environment.Tools[0].Config
	if cfg["starting_balance"] != 1000.0 {
		t.Errorf("expected whole-string template to preserve numeric type, got %#v (%T)", cfg["starting_balance"], cfg["starting_balance"])
	}
	if bound.Environment.InitialState["cash_balance"] != 1000.0 {
		t.Errorf("expected initial_state template interpolation, got %#v", bound.Environment.InitialState["cash_balance"])
	}
}

func TestBindInlineInterpolationStringifies(t *testing.T) {
	m, err := mdl.Parse([]byte(conditionalModule))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	bound := mdl.Bind(m, map[string]any{"tier": "gold", "angry": false, "starting_balance": 1000.0})

	greet := bound.Steps[0].Params["message"]
	if greet != "Hello, I am a gold customer" {
		t.Errorf("got %q", greet)
	}
}

// TestBindConditionalBlockInStepParams guards against conditional-block
// rendering being wired into only one of interpolateValue/bindString:
// step params is one of spec.md §4.2's named interpolation sites and
// goes through interpolateValue, not bindString.
func TestBindConditionalBlockInStepParams(t *testing.T) {
	m, err := mdl.Parse([]byte(conditionalModule))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	gold := mdl.Bind(m, map[string]any{"tier": "gold", "starting_balance": 1000.0})
	if got := gold.Steps[0].Params["discount"]; got != "20%" {
		t.Errorf("gold branch in step params: got %q, want 20%%", got)
	}

	standard := mdl.Bind(m, map[string]any{"tier": "standard", "starting_balance": 1000.0})
	if got := standard.Steps[0].Params["discount"]; got != "0%" {
		t.Errorf("else branch in step params: got %q, want 0%%", got)
	}
}

func TestBindConditionalBlockSelectsBranch(t *testing.T) {
	m, err := mdl.Parse([]byte(conditionalModule))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	gold := mdl.Bind(m, map[string]any{"tier": "gold", "starting_balance": 1000.0})
	if gold.Description != "Tier: Gold customer" {
		t.Errorf("gold branch: got %q", gold.Description)
	}

	silver := mdl.Bind(m, map[string]any{"tier": "silver", "starting_balance": 1000.0})
	if silver.Description != "Tier: Silver customer" {
		t.Errorf("silver branch: got %q", silver.Description)
	}

	standard := mdl.Bind(m, map[string]any{"tier": "bronze", "starting_balance": 1000.0})
	if standard.Description != "Tier: Standard customer" {
		t.Errorf("else branch: got %q", standard.Description)
	}
}

func TestBindConditionFiltersSteps(t *testing.T) {
	m, err := mdl.Parse([]byte(conditionalModule))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	calm := mdl.Bind(m, map[string]any{"tier": "standard", "angry": false, "starting_balance": 1000.0})
	if len(calm.Steps) != 2 {
		t.Fatalf("expected escalate step dropped when angry=false, got %d steps", len(calm.Steps))
	}
	for _, s := range calm.Steps {
		if s.ID == "escalate" {
			t.Errorf("escalate step should have been filtered out")
		}
	}

	angry := mdl.Bind(m, map[string]any{"tier": "standard", "angry": true, "starting_balance": 1000.0})
	if len(angry.Steps) != 3 {
		t.Fatalf("expected escalate step kept when angry=true, got %d steps", len(angry.Steps))
	}

	for _, s := range angry.Steps {
		if s.Condition != "" {
			t.Errorf("bound steps must never carry a condition forward")
		}
	}
}

func TestBindIsIdempotentOnAlreadyBoundModule(t *testing.T) {
	m, err := mdl.Parse([]byte(conditionalModule))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	once := mdl.Bind(m, map[string]any{"tier": "gold", "angry": true, "starting_balance": 1000.0})
	twice := mdl.Bind(once, map[string]any{"tier": "gold", "angry": true, "starting_balance": 1000.0})

	if once.Description != twice.Description {
		t.Errorf("re-binding an already-bound module changed its description: %q vs %q", once.Description, twice.Description)
	}
	if len(once.Steps) != len(twice.Steps) {
		t.Errorf("re-binding changed step count: %d vs %d", len(once.Steps), len(twice.Steps))
	}
}
