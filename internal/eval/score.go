package eval

import (
	"fmt"

	"github.com/sandboxy-go/sandboxy/internal/expr"
	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/transcript"
)

// Run executes every evaluation check a bound module declares against the
// final transcript and env_state, then composes the per-check results
// into a scalar score. Ported from
// original_source/sandboxy/core/async_runner.py's `_evaluate` entry
// point (spec.md §4.7): checks never abort each other, and a module
// with no checks at all scores 0.0 with an empty checks map (spec.md §8
// boundary case). Status is always "ok" — a malformed score formula
// falls back to a weighted average rather than failing the run.
func Run(module *mdl.Module, history []transcript.Message, events []transcript.Event, envState map[string]any) map[string]any {
	ctx := &runContext{history: history, events: events, envState: envState}

	results := make(map[string]any, len(module.Evaluation))
	for _, check := range module.Evaluation {
		results[check.Name] = runCheck(check, ctx)
	}

	return map[string]any{
		"checks": results,
		"score":  computeScore(module.Scoring, results, envState),
		"status": "ok",
	}
}

// checkValues extracts a numeric pass/fail (or raw numeric "value") per
// check name, matching async_runner.py:_compute_score's check_values
// extraction — a check with neither a boolean "passed" nor a numeric
// "value" (e.g. a skipped or errored check) contributes nothing and is
// excluded from scoring entirely.
func checkValues(results map[string]any) map[string]float64 {
	values := make(map[string]float64, len(results))
	for name, r := range results {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if passed, ok := m["passed"].(bool); ok {
			values[name] = boolToFloat(passed)
			continue
		}
		if v, ok := toFloat(m["value"]); ok {
			values[name] = v
		}
	}
	return values
}

// computeScore picks one of three composition modes, in priority order
// matching async_runner.py:_compute_score: a custom formula (falling
// back to weighted average on evaluation error), a weighted average (the
// default mode too, since an unweighted check still contributes with
// weight 1.0), then an optional final normalize-to-[0,1] pass.
func computeScore(cfg mdl.ScoringConfig, results map[string]any, envState map[string]any) float64 {
	values := checkValues(results)

	var score float64
	if cfg.Formula != "" {
		if s, err := evalScoreFormula(cfg.Formula, values, envState); err == nil {
			score = s
		} else {
			score = weightedAverage(values, cfg.Weights)
		}
	} else {
		score = weightedAverage(values, cfg.Weights)
	}

	if cfg.Normalize && cfg.MaxScore != cfg.MinScore {
		score = (score - cfg.MinScore) / (cfg.MaxScore - cfg.MinScore)
		score = clamp01(score)
	}
	return score
}

// evalScoreFormula evaluates the module's custom restricted expression
// (internal/expr, C4) with every check's numeric value exposed as a
// top-level variable by its check name, plus env_state — mirroring
// async_runner.py:_eval_score_formula's flat variable namespace.
func evalScoreFormula(formula string, values map[string]float64, envState map[string]any) (float64, error) {
	vars := make(map[string]any, len(values)+1)
	for name, v := range values {
		vars[name] = v
	}
	vars["env_state"] = envState

	result, err := expr.Eval(formula, vars)
	if err != nil {
		return 0, err
	}
	n, ok := toFloat(result)
	if !ok {
		if b, isBool := result.(bool); isBool {
			return boolToFloat(b), nil
		}
		return 0, fmt.Errorf("score formula produced a non-numeric result: %v", result)
	}
	return n, nil
}

// weightedAverage sums each check's numeric value weighted by the
// module's configured weight, defaulting an unweighted check to weight
// 1.0 — matching async_runner.py:_weighted_average's weights.get(name,
// 1.0). With no weights configured at all this reduces to a plain mean,
// which is the default scoring behavior.
func weightedAverage(values map[string]float64, weights map[string]float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total, totalWeight float64
	for name, value := range values {
		weight := 1.0
		if w, ok := weights[name]; ok {
			weight = w
		}
		total += value * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return total / totalWeight
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
