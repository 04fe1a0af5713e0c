package eval

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sandboxy-go/sandboxy/internal/expr"
	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/transcript"
)

// runCheck dispatches one evaluation check by kind, recovering a failing
// check into a {status:"error"} record rather than aborting the whole
// run (spec.md §4.7 Failure semantics — "other checks still run").
func runCheck(check mdl.EvaluationCheck, ctx *runContext) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			result = map[string]any{"status": "error", "error": "panic during check evaluation"}
		}
	}()

	switch check.Kind {
	case mdl.CheckContains:
		return checkContains(check, ctx)
	case mdl.CheckRegex:
		return checkRegex(check, ctx)
	case mdl.CheckCount:
		return checkCount(check, ctx)
	case mdl.CheckToolCalled:
		return checkToolCalled(check, ctx)
	case mdl.CheckEquals:
		return checkEquals(check, ctx)
	case mdl.CheckEnvState:
		return checkEnvState(check, ctx)
	case mdl.CheckDeterministic:
		return checkDeterministic(check, ctx)
	case mdl.CheckLLM:
		return map[string]any{"status": "skipped", "reason": "LLM eval not implemented"}
	default:
		return map[string]any{"status": "error", "error": "unknown check kind: " + string(check.Kind)}
	}
}

// runContext bundles the read-only transcript/env-state surface checks
// run against (spec.md §4.7: "resolve target by the accessor table").
type runContext struct {
	history  []transcript.Message
	events   []transcript.Event
	envState map[string]any
}

func configString(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return def
}

func configBool(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}

func configFloatPtr(cfg map[string]any, key string) *float64 {
	switch v := cfg[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

func checkContains(check mdl.EvaluationCheck, ctx *runContext) map[string]any {
	cfg := check.Config
	target := configString(cfg, "target", TargetAgentMessages)
	value := configString(cfg, "value", "")
	expected := configBool(cfg, "expected", true)
	caseSensitive := configBool(cfg, "case_sensitive", false)

	text := targetText(target, ctx.history)
	searchText, searchValue := text, value
	if !caseSensitive {
		searchText = strings.ToLower(text)
		searchValue = strings.ToLower(value)
	}

	found := strings.Contains(searchText, searchValue)
	return map[string]any{
		"passed":       found == expected,
		"found":        found,
		"expected":     expected,
		"searched_for": value,
		"in":           target,
	}
}

func checkRegex(check mdl.EvaluationCheck, ctx *runContext) map[string]any {
	cfg := check.Config
	target := configString(cfg, "target", TargetAgentMessages)
	pattern := configString(cfg, "pattern", "")
	expected := configBool(cfg, "expected", true)
	caseSensitive := configBool(cfg, "case_sensitive", false)

	text := targetText(target, ctx.history)
	compiled := pattern
	if !caseSensitive {
		compiled = "(?i)" + pattern
	}
	re, err := regexp.Compile(compiled)
	if err != nil {
		return map[string]any{"status": "error", "error": "invalid regex: " + err.Error()}
	}
	matched := re.MatchString(text)

	return map[string]any{
		"passed":   matched == expected,
		"matched":  matched,
		"expected": expected,
		"pattern":  pattern,
		"in":       target,
	}
}

func checkCount(check mdl.EvaluationCheck, ctx *runContext) map[string]any {
	cfg := check.Config
	target := configString(cfg, "target", TargetAgentMessages)
	minCount := configFloatPtr(cfg, "min")
	maxCount := configFloatPtr(cfg, "max")

	var count int
	if target == TargetToolCalls {
		count = len(targetToolCallEvents(ctx.events))
	} else {
		count = len(targetMessages(target, ctx.history))
	}

	passed := true
	if minCount != nil && float64(count) < *minCount {
		passed = false
	}
	if maxCount != nil && float64(count) > *maxCount {
		passed = false
	}

	return map[string]any{
		"passed": passed,
		"count":  count,
		"min":    ptrOrNil(minCount),
		"max":    ptrOrNil(maxCount),
		"target": target,
	}
}

func ptrOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func checkToolCalled(check mdl.EvaluationCheck, ctx *runContext) map[string]any {
	cfg := check.Config
	toolName := configString(cfg, "tool", "")
	action := cfg["action"]
	actionName, hasAction := action.(string)
	expected := configBool(cfg, "expected", true)

	called := false
	for _, e := range targetToolCallEvents(ctx.events) {
		if e.Payload["tool"] != toolName {
			continue
		}
		if !hasAction || e.Payload["action"] == actionName {
			called = true
			break
		}
	}

	result := map[string]any{
		"passed":   called == expected,
		"called":   called,
		"expected": expected,
		"tool":     toolName,
	}
	if hasAction {
		result["action"] = actionName
	} else {
		result["action"] = nil
	}
	return result
}

func checkEquals(check mdl.EvaluationCheck, ctx *runContext) map[string]any {
	cfg := check.Config
	target := configString(cfg, "target", "")
	expected := cfg["value"]

	var actual any
	if strings.HasPrefix(target, "env.") {
		path := strings.Split(strings.TrimPrefix(target, "env."), ".")
		actual = nestedValue(ctx.envState, path)
	} else {
		actual = targetText(target, ctx.history)
	}

	return map[string]any{
		"passed":   looseEqual(actual, expected),
		"actual":   actual,
		"expected": expected,
		"target":   target,
	}
}

func checkEnvState(check mdl.EvaluationCheck, ctx *runContext) map[string]any {
	cfg := check.Config
	key := configString(cfg, "key", "")
	expected := cfg["value"]

	var actual any
	if strings.Contains(key, ".") {
		actual = nestedValue(ctx.envState, strings.Split(key, "."))
	} else {
		actual = ctx.envState[key]
	}

	return map[string]any{
		"passed":   looseEqual(actual, expected),
		"actual":   actual,
		"expected": expected,
		"key":      key,
	}
}

// checkDeterministic evaluates a restricted expression (C4) over
// env_state/history/events, with an optional pass_if threshold applied
// to a numeric result (spec.md §4.7 "legacy" deterministic check kind).
func checkDeterministic(check mdl.EvaluationCheck, ctx *runContext) map[string]any {
	cfg := check.Config
	expression := configString(cfg, "expr", "")
	if expression == "" || expression == "TODO" {
		return map[string]any{"status": "skipped", "reason": "No expression defined"}
	}

	vars := map[string]any{
		"env_state": ctx.envState,
		"history":   historyAsMaps(ctx.history),
		"events":    eventsAsMaps(ctx.events),
	}

	result, err := expr.Eval(expression, vars)
	if err != nil {
		return map[string]any{"status": "error", "error": err.Error()}
	}

	passIf := configString(cfg, "pass_if", "")
	if num, ok := toFloat(result); ok && passIf != "" {
		passed, ok := evalPassCondition(num, passIf)
		if !ok {
			passed = true
		}
		return map[string]any{"passed": passed, "value": result, "condition": passIf}
	}
	if b, ok := result.(bool); ok {
		return map[string]any{"passed": b}
	}
	return map[string]any{"value": result}
}

// evalPassCondition evaluates a "pass_if" comparison of the form
// "<op> <number>" (e.g. ">= 0.5", "== 3", "< 10") against a deterministic
// check's numeric result — ported from
// original_source/sandboxy/core/async_runner.py:_evaluate_pass_condition.
// The second return is false when the condition string doesn't parse, in
// which case the caller treats the check as passing.
func evalPassCondition(value float64, condition string) (bool, bool) {
	condition = strings.TrimSpace(condition)
	ops := []string{">=", "<=", "==", "!=", ">", "<"}
	for _, op := range ops {
		if strings.HasPrefix(condition, op) {
			rest := strings.TrimSpace(strings.TrimPrefix(condition, op))
			threshold, err := strconv.ParseFloat(rest, 64)
			if err != nil {
				return false, false
			}
			switch op {
			case ">=":
				return value >= threshold, true
			case "<=":
				return value <= threshold, true
			case "==":
				return value == threshold, true
			case "!=":
				return value != threshold, true
			case ">":
				return value > threshold, true
			case "<":
				return value < threshold, true
			}
		}
	}
	return false, false
}

func historyAsMaps(history []transcript.Message) []any {
	out := make([]any, len(history))
	for i, m := range history {
		out[i] = map[string]any{
			"role": m.Role, "content": m.Content,
			"tool_name": m.ToolName, "tool_call_id": m.ToolCallID,
		}
	}
	return out
}

func eventsAsMaps(events []transcript.Event) []any {
	out := make([]any, len(events))
	for i, e := range events {
		out[i] = map[string]any{"type": e.Type, "payload": e.Payload}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// looseEqual compares two decoded-YAML/JSON values for equality,
// tolerating int/float64 mismatches that arise from YAML vs. Go literal
// decoding of the same number.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return a == b
}
