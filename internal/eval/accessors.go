// Package eval implements the Evaluator (C7): it runs a bound module's
// evaluation checks over the final transcript and env_state, then
// composes a scalar score from the per-check results. Ported from
// original_source/sandboxy/core/async_runner.py's `_run_check`/
// `_check_*`/`_compute_score` family — this is the authoritative
// version of the evaluator (the earlier runner.py._evaluate only had
// deterministic/llm; async_runner's is what spec.md §4.7 specifies and
// is what's implemented here for both the synchronous and the
// interactive executor's results).
package eval

import "github.com/sandboxy-go/sandboxy/internal/transcript"

// Target names a message-or-event accessor a check's `target` field may
// select (spec.md §3).
const (
	TargetAgentMessages    = "agent_messages"
	TargetUserMessages     = "user_messages"
	TargetAllMessages      = "all_messages"
	TargetLastAgentMessage = "last_agent_message"
	TargetLastUserMessage  = "last_user_message"
	TargetToolCalls        = "tool_calls"
)

// targetText resolves a string-producing target to its joined text.
//
// Open Question (spec.md §9) resolved: when an await_agent sub-loop
// exits at the tool-call cap without ever appending an assistant
// message, last_agent_message returns empty string — it only scans
// messages already in history, matching
// original_source/sandboxy/core/async_runner.py:_get_target_text
// exactly (a cap-exit never appends one).
func targetText(target string, history []transcript.Message) string {
	switch target {
	case TargetAgentMessages:
		return joinByRole(history, transcript.RoleAssistant)
	case TargetUserMessages:
		return joinByRole(history, transcript.RoleUser)
	case TargetAllMessages:
		return joinAll(history)
	case TargetLastAgentMessage:
		return lastByRole(history, transcript.RoleAssistant)
	case TargetLastUserMessage:
		return lastByRole(history, transcript.RoleUser)
	default:
		return ""
	}
}

func joinByRole(history []transcript.Message, role string) string {
	out := ""
	first := true
	for _, m := range history {
		if m.Role != role {
			continue
		}
		if !first {
			out += " "
		}
		out += m.Content
		first = false
	}
	return out
}

func joinAll(history []transcript.Message) string {
	out := ""
	for i, m := range history {
		if i > 0 {
			out += " "
		}
		out += m.Content
	}
	return out
}

func lastByRole(history []transcript.Message, role string) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == role {
			return history[i].Content
		}
	}
	return ""
}

// targetMessages resolves a list-producing message target.
func targetMessages(target string, history []transcript.Message) []transcript.Message {
	switch target {
	case TargetAgentMessages:
		return filterByRole(history, transcript.RoleAssistant)
	case TargetUserMessages:
		return filterByRole(history, transcript.RoleUser)
	case TargetAllMessages:
		return history
	default:
		return nil
	}
}

func filterByRole(history []transcript.Message, role string) []transcript.Message {
	var out []transcript.Message
	for _, m := range history {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// targetToolCallEvents returns every tool_call event, used by the
// `count` check's `tool_calls` target.
func targetToolCallEvents(events []transcript.Event) []transcript.Event {
	var out []transcript.Event
	for _, e := range events {
		if e.Type == transcript.EventToolCall {
			out = append(out, e)
		}
	}
	return out
}

// nestedValue reads a dotted path ("a.b.c") out of a decoded
// map[string]any tree, returning nil when any segment is absent or not
// a mapping — mirrors
// original_source/sandboxy/core/async_runner.py:_get_nested_value.
func nestedValue(obj any, path []string) any {
	current := obj
	for _, key := range path {
		if current == nil {
			return nil
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}
