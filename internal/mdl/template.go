package mdl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sandboxy-go/sandboxy/internal/expr"
)

// wholeTemplatePattern matches a string that consists of exactly one
// {{name}} substitution and nothing else — these preserve the bound
// value's original type instead of stringifying it (spec.md §4.2).
var wholeTemplatePattern = regexp.MustCompile(`^\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}$`)

// inlineTemplatePattern matches any {{name}} occurrence for the general
// (stringifying) substitution pass.
var inlineTemplatePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// interpolateValue recursively substitutes {{name}} references throughout
// a loosely-typed value tree (strings, []any, map[string]any pass through
// unchanged otherwise), grounded on
// original_source/sandboxy/core/mdl_parser.py:interpolate_template and
// generalized here to operate over arbitrary YAML-decoded trees so it also
// covers environment.initial_state and tool config (SPEC_FULL.md §4.2).
func interpolateValue(v any, vars map[string]any) any {
	switch x := v.(type) {
	case string:
		return interpolateString(renderConditionalBlocks(x, vars), vars)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = interpolateValue(item, vars)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = interpolateValue(item, vars)
		}
		return out
	default:
		return v
	}
}

// interpolateString substitutes {{name}} references within s. A string
// that is entirely one {{name}} reference returns the referenced value
// with its original type preserved; any other occurrence is stringified
// in place.
func interpolateString(s string, vars map[string]any) any {
	if m := wholeTemplatePattern.FindStringSubmatch(s); m != nil {
		if val, ok := lookupTemplatePath(m[1], vars); ok {
			return val
		}
		return s
	}
	return inlineTemplatePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := wholeTemplatePattern.FindStringSubmatch(match)
		if name == nil {
			sub := inlineTemplatePattern.FindStringSubmatch(match)
			if sub == nil {
				return match
			}
			val, ok := lookupTemplatePath(sub[1], vars)
			if !ok {
				return match
			}
			return stringifyTemplateValue(val)
		}
		val, ok := lookupTemplatePath(name[1], vars)
		if !ok {
			return match
		}
		return stringifyTemplateValue(val)
	})
}

// lookupTemplatePath resolves a dotted path ("customer.name") against vars.
func lookupTemplatePath(path string, vars map[string]any) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = vars
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func stringifyTemplateValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// conditionalBlockPattern recognizes a {{#if expr}}...{{/if}} block, with
// interior {{else if expr}} / {{else}} markers split out separately since
// regexp (RE2) cannot match arbitrarily nested/balanced constructs — module
// authors are not expected to nest conditional blocks (spec.md §4.2 treats
// them as a flat if/else-if/else chain, mirroring
// original_source/sandboxy/core/mdl_parser.py's single-pass block handling).
var conditionalBlockPattern = regexp.MustCompile(`(?s)\{\{#if\s+(.+?)\}\}(.*?)\{\{/if\}\}`)
var elseIfPattern = regexp.MustCompile(`(?s)\{\{else if\s+(.+?)\}\}`)
var elsePattern = regexp.MustCompile(`(?s)\{\{else\}\}`)

// renderConditionalBlocks evaluates every {{#if}}...{{/if}} block in s
// against vars and replaces it with whichever branch's body is selected.
func renderConditionalBlocks(s string, vars map[string]any) string {
	return conditionalBlockPattern.ReplaceAllStringFunc(s, func(block string) string {
		m := conditionalBlockPattern.FindStringSubmatch(block)
		if m == nil {
			return block
		}
		firstCond, body := m[1], m[2]
		return selectConditionalBranch(firstCond, body, vars)
	})
}

// selectConditionalBranch splits body on {{else if expr}} / {{else}}
// markers and returns the body of the first branch whose condition is
// true, falling back to the else branch or "" if none match.
func selectConditionalBranch(firstCond, body string, vars map[string]any) string {
	type branch struct {
		cond string // empty means unconditional (the else branch)
		text string
	}

	cond := firstCond
	rest := body
	var branches []branch

	for {
		elseIfLoc := elseIfPattern.FindStringSubmatchIndex(rest)
		elseLoc := elsePattern.FindStringIndex(rest)

		switch {
		case elseIfLoc != nil && (elseLoc == nil || elseIfLoc[0] < elseLoc[0]):
			branches = append(branches, branch{cond: cond, text: rest[:elseIfLoc[0]]})
			cond = rest[elseIfLoc[2]:elseIfLoc[3]]
			rest = rest[elseIfLoc[1]:]
		case elseLoc != nil:
			branches = append(branches, branch{cond: cond, text: rest[:elseLoc[0]]})
			branches = append(branches, branch{cond: "", text: rest[elseLoc[1]:]})
			rest = ""
		default:
			branches = append(branches, branch{cond: cond, text: rest})
			rest = ""
		}

		if rest == "" {
			break
		}
	}

	for _, b := range branches {
		if b.cond == "" {
			return b.text
		}
		if expr.EvalBool(strings.TrimSpace(b.cond), vars) {
			return b.text
		}
	}
	return ""
}
