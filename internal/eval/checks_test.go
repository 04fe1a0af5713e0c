package eval_test

import (
	"testing"

	"github.com/sandboxy-go/sandboxy/internal/eval"
	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/transcript"
)

func sampleModule(checks []mdl.EvaluationCheck, scoring mdl.ScoringConfig) *mdl.Module {
	return &mdl.Module{ID: "test-module", Evaluation: checks, Scoring: scoring}
}

func TestRunContainsCheckPassesOnSubstring(t *testing.T) {
	history := []transcript.Message{
		{Role: transcript.RoleAssistant, Content: "Your refund has been processed."},
	}
	m := sampleModule([]mdl.EvaluationCheck{
		{Name: "mentions_refund", Kind: mdl.CheckContains, Config: map[string]any{
			"target": eval.TargetAgentMessages, "value": "refund",
		}},
	}, mdl.ScoringConfig{})

	result := eval.Run(m, history, nil, nil)
	checks := result["checks"].(map[string]any)
	c := checks["mentions_refund"].(map[string]any)
	if c["passed"] != true {
		t.Errorf("expected contains check to pass, got %+v", c)
	}
	if result["score"] != 1.0 {
		t.Errorf("expected score 1.0, got %v", result["score"])
	}
}

func TestRunContainsCheckIsCaseInsensitiveByDefault(t *testing.T) {
	history := []transcript.Message{{Role: transcript.RoleAssistant, Content: "REFUND issued"}}
	m := sampleModule([]mdl.EvaluationCheck{
		{Name: "c", Kind: mdl.CheckContains, Config: map[string]any{"target": eval.TargetAgentMessages, "value": "refund"}},
	}, mdl.ScoringConfig{})

	result := eval.Run(m, history, nil, nil)
	c := result["checks"].(map[string]any)["c"].(map[string]any)
	if c["passed"] != true {
		t.Errorf("expected case-insensitive match to pass, got %+v", c)
	}
}

func TestRunCountCheckEnforcesMinAndMax(t *testing.T) {
	events := []transcript.Event{
		{Type: transcript.EventToolCall, Payload: map[string]any{"tool": "shopify"}},
		{Type: transcript.EventToolCall, Payload: map[string]any{"tool": "shopify"}},
	}
	m := sampleModule([]mdl.EvaluationCheck{
		{Name: "too_many_calls", Kind: mdl.CheckCount, Config: map[string]any{
			"target": eval.TargetToolCalls, "max": 1.0,
		}},
	}, mdl.ScoringConfig{})

	result := eval.Run(m, nil, events, nil)
	c := result["checks"].(map[string]any)["too_many_calls"].(map[string]any)
	if c["passed"] != false {
		t.Errorf("expected count check to fail when over max, got %+v", c)
	}
	if c["count"] != 2 {
		t.Errorf("expected count 2, got %v", c["count"])
	}
}

func TestRunToolCalledCheckMatchesToolAndAction(t *testing.T) {
	events := []transcript.Event{
		{Type: transcript.EventToolCall, Payload: map[string]any{"tool": "shopify", "action": "refund_order"}},
	}
	m := sampleModule([]mdl.EvaluationCheck{
		{Name: "refunded", Kind: mdl.CheckToolCalled, Config: map[string]any{"tool": "shopify", "action": "refund_order"}},
		{Name: "emailed", Kind: mdl.CheckToolCalled, Config: map[string]any{"tool": "email", "expected": false}},
	}, mdl.ScoringConfig{})

	result := eval.Run(m, nil, events, nil)
	checks := result["checks"].(map[string]any)
	if checks["refunded"].(map[string]any)["passed"] != true {
		t.Errorf("expected refunded check to pass, got %+v", checks["refunded"])
	}
	if checks["emailed"].(map[string]any)["passed"] != true {
		t.Errorf("expected emailed check (expected=false, not called) to pass, got %+v", checks["emailed"])
	}
}

func TestRunEnvStateCheckReadsNestedKey(t *testing.T) {
	envState := map[string]any{"order": map[string]any{"status": "refunded"}}
	m := sampleModule([]mdl.EvaluationCheck{
		{Name: "order_refunded", Kind: mdl.CheckEnvState, Config: map[string]any{"key": "order.status", "value": "refunded"}},
	}, mdl.ScoringConfig{})

	result := eval.Run(m, nil, nil, envState)
	c := result["checks"].(map[string]any)["order_refunded"].(map[string]any)
	if c["passed"] != true {
		t.Errorf("expected nested env_state check to pass, got %+v", c)
	}
}

func TestRunDeterministicCheckAppliesPassIfThreshold(t *testing.T) {
	envState := map[string]any{"refund_count": 3.0}
	m := sampleModule([]mdl.EvaluationCheck{
		{Name: "refund_count_ok", Kind: mdl.CheckDeterministic, Config: map[string]any{
			"expr": "env_state.refund_count", "pass_if": ">= 2",
		}},
	}, mdl.ScoringConfig{})

	result := eval.Run(m, nil, nil, envState)
	c := result["checks"].(map[string]any)["refund_count_ok"].(map[string]any)
	if c["passed"] != true {
		t.Errorf("expected deterministic pass_if check to pass, got %+v", c)
	}
}

func TestRunUnknownCheckKindReturnsError(t *testing.T) {
	m := sampleModule([]mdl.EvaluationCheck{
		{Name: "bogus", Kind: mdl.CheckKind("not_a_kind"), Config: nil},
	}, mdl.ScoringConfig{})

	result := eval.Run(m, nil, nil, nil)
	c := result["checks"].(map[string]any)["bogus"].(map[string]any)
	if c["status"] != "error" {
		t.Errorf("expected unknown check kind to report status=error, got %+v", c)
	}
}

func TestRunWithNoChecksScoresZero(t *testing.T) {
	m := sampleModule(nil, mdl.ScoringConfig{})
	result := eval.Run(m, nil, nil, nil)
	if result["score"] != 0.0 {
		t.Errorf("expected score 0.0 for a module with no checks, got %v", result["score"])
	}
	if len(result["checks"].(map[string]any)) != 0 {
		t.Errorf("expected empty checks map, got %+v", result["checks"])
	}
}
