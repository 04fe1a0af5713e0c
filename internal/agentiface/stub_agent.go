package agentiface

import (
	"context"

	"github.com/sandboxy-go/sandboxy/internal/tool"
)

// StubAgent returns a fixed, pre-scripted sequence of Actions regardless
// of history — used by internal/runner's tests to drive deterministic
// scenarios without a live LLM. Actions are consumed in order; once
// exhausted, Step always returns ActionStop.
type StubAgent struct {
	Actions []Action
	calls   int
}

func NewStubAgent(actions ...Action) *StubAgent {
	return &StubAgent{Actions: actions}
}

func (s *StubAgent) Step(_ context.Context, _ []Turn, _ []tool.NamedAction) (Action, error) {
	s.calls++
	if s.calls > len(s.Actions) {
		return Action{Type: ActionStop}, nil
	}
	return s.Actions[s.calls-1], nil
}

// CallCount reports how many Step calls have been made so far, including
// those answered with ActionStop after the script ran out.
func (s *StubAgent) CallCount() int { return s.calls }
