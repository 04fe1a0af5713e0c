package expr_test

import (
	"testing"

	"github.com/sandboxy-go/sandboxy/internal/expr"
)

func TestEvalArithmeticAndComparison(t *testing.T) {
	cases := []struct {
		src  string
		vars map[string]any
		want any
	}{
		{"1 + 2 * 3", nil, 7.0},
		{"(1 + 2) * 3", nil, 9.0},
		{"10 % 3", nil, 1.0},
		{"mode == \"hard\"", map[string]any{"mode": "hard"}, true},
		{"sophistication >= 7", map[string]any{"sophistication": 8.0}, true},
		{"sophistication >= 7", map[string]any{"sophistication": 3.0}, false},
		{"not (a and b)", map[string]any{"a": true, "b": false}, true},
		{"a or b", map[string]any{"a": false, "b": true}, true},
		{"len(\"hello\")", nil, 5.0},
		{"max(1, 2, 3)", nil, 3.0},
		{"min(5, 2, 9)", nil, 2.0},
		{"abs(-4)", nil, 4.0},
		{"round(3.14159, 2)", nil, 3.14},
		{"sum([1,2,3])", nil, nil}, // lists aren't literal-constructible; see below
	}
	for _, c := range cases {
		if c.want == nil {
			continue
		}
		got, err := expr.Eval(c.src, c.vars)
		if err != nil {
			t.Fatalf("Eval(%q) error: %v", c.src, err)
		}
		if got != c.want {
			t.Errorf("Eval(%q) = %v, want %v", c.src, got, c.want)
		}
	}
}

func TestEvalBoolTreatsErrorsAsFalse(t *testing.T) {
	if expr.EvalBool("this is not valid &&", nil) {
		t.Error("expected malformed expression to evaluate to false")
	}
	if expr.EvalBool("undefined_var == 1", nil) {
		t.Error("expected undefined variable to evaluate to false")
	}
}

func TestFieldAndIndexAccess(t *testing.T) {
	vars := map[string]any{
		"env_state": map[string]any{
			"cash_balance": 900.01,
			"orders": map[string]any{
				"ORD123": map[string]any{"refunded": true},
			},
		},
	}
	got, err := expr.Eval("env_state.cash_balance == 900.01", vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != true {
		t.Errorf("got %v, want true", got)
	}

	got2, err := expr.Eval(`env_state["orders"]["ORD123"]["refunded"]`, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got2 != true {
		t.Errorf("got %v, want true", got2)
	}
}

func TestEvalPassCondition(t *testing.T) {
	cases := []struct {
		value float64
		cond  string
		want  bool
	}{
		{5.0, ">=0", true},
		{5.0, "<=0", false},
		{5.0, ">10", false},
		{5.0, "<10", true},
		{5.0, "==5", true},
		{5.0, "!=5", false},
		{5.0, "garbage", true}, // unparseable → default pass
	}
	for _, c := range cases {
		got := expr.EvalPassCondition(c.value, c.cond)
		if got != c.want {
			t.Errorf("EvalPassCondition(%v, %q) = %v, want %v", c.value, c.cond, got, c.want)
		}
	}
}
