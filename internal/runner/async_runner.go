package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandboxy-go/sandboxy/internal/agentiface"
	"github.com/sandboxy-go/sandboxy/internal/eval"
	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/tool"
)

// SessionState is the lifecycle state of an interactive session, mirroring
// original_source/sandboxy/core/state.py:SessionState.
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateRunning       SessionState = "running"
	StateAwaitingUser  SessionState = "awaiting_user"
	StateAwaitingAgent SessionState = "awaiting_agent"
	StatePaused        SessionState = "paused"
	StateCompleted     SessionState = "completed"
	StateError         SessionState = "error"
)

// BadState is returned by ProvideInput/Pause/Resume when the operation
// doesn't apply to the session's current lifecycle state — provide_input
// with no await_user suspended, pause/resume from a state the transition
// doesn't allow (spec.md §6/§7's "invalid operation for current session
// state" condition; SPEC_FULL.md §4.0's typed `Kind`-tagged error kinds).
type BadState struct {
	Kind string
	From SessionState
	Op   string
}

func (e *BadState) Error() string {
	return fmt.Sprintf("%s: cannot %s from state %s", e.Kind, e.Op, e.From)
}

func newBadState(from SessionState, op string) *BadState {
	return &BadState{Kind: "BadState", From: from, Op: op}
}

// AsyncRunner is the suspendable, event-streaming interactive executor
// (spec.md §4.6). Unlike Runner, it never blocks its caller: Start spawns
// the step loop on its own goroutine and streams ordered events over a
// channel, suspending at await_user steps until ProvideInput (or the
// step's timeout) resumes it. Ported from
// original_source/sandboxy/core/async_runner.py:AsyncRunner, with the
// Python async-generator/Future suspension pattern replaced by Go
// channels and a mutex-guarded state machine.
type AsyncRunner struct {
	*core
	module  *mdl.Module
	agent   agentiface.Agent
	agentID string

	// envMu serializes every access to core.envState once the session is
	// live: InjectEvent (§6, out-of-band) may run concurrently with the
	// step loop's own tool invocations, unlike the Python original's
	// single-threaded asyncio event loop which needed no such guard.
	envMu sync.Mutex

	stateMu  sync.RWMutex
	state    SessionState
	resumeCh chan struct{}

	eventCh chan Event

	inputMu       sync.Mutex
	awaitingInput bool
	inputCh       chan string
}

// NewAsync constructs an AsyncRunner for a bound module and agent. As with
// Runner, the module MUST already be bound.
func NewAsync(m *mdl.Module, agent agentiface.Agent, agentID string) (*AsyncRunner, error) {
	c, err := newCore(m)
	if err != nil {
		return nil, fmt.Errorf("async runner: %w", err)
	}
	return &AsyncRunner{
		core:     c,
		module:   m,
		agent:    agent,
		agentID:  agentID,
		state:    StateIdle,
		resumeCh: make(chan struct{}),
		eventCh:  make(chan Event, 16),
	}, nil
}

// State reports the session's current lifecycle state.
func (r *AsyncRunner) State() SessionState {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

func (r *AsyncRunner) setState(s SessionState) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
}

// Events returns the ordered event stream; it is closed once Start's
// goroutine returns (after the terminal "completed" or "error" event).
func (r *AsyncRunner) Events() <-chan Event { return r.eventCh }

// Start runs the module on a new goroutine, streaming events onto
// Events() until the module completes, errors, or ctx is canceled.
func (r *AsyncRunner) Start(ctx context.Context) {
	r.setState(StateRunning)
	go r.run(ctx)
}

// ProvideInput delivers user input to a suspended await_user step. It is
// an error to call this when the session isn't awaiting input (spec.md
// §6).
func (r *AsyncRunner) ProvideInput(content string) error {
	r.inputMu.Lock()
	defer r.inputMu.Unlock()
	if !r.awaitingInput {
		return newBadState(r.State(), "provide_input")
	}
	r.awaitingInput = false
	r.inputCh <- content
	return nil
}

// InjectEvent calls a tool's trigger_event action out of band — the
// mechanism chaos-injection and scenario-event UIs use (spec.md §6
// inject_event). Unlike every other tool invocation this isn't driven by
// a module step or the agent, so it may be called at any point in the
// session's lifetime, including mid-await_user.
func (r *AsyncRunner) InjectEvent(ctx context.Context, toolName, eventType string, args map[string]any) (map[string]any, error) {
	t, ok := r.registry.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", toolName)
	}

	eventArgs := map[string]any{"event": eventType}
	for k, v := range args {
		eventArgs[k] = v
	}

	r.envMu.Lock()
	result, err := t.Invoke(ctx, "trigger_event", eventArgs, r.envState)
	r.envMu.Unlock()
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("event trigger failed: %s", result.Error)
	}
	return result.Data, nil
}

// Pause suspends the step loop before its next step. During an
// await_agent step it also takes effect inside the agent↔tool sub-loop,
// before the agent's next turn. Only valid while running or awaiting the
// agent.
func (r *AsyncRunner) Pause() error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state != StateRunning && r.state != StateAwaitingAgent {
		return newBadState(r.state, "pause")
	}
	r.state = StatePaused
	return nil
}

// Resume wakes a paused step loop.
func (r *AsyncRunner) Resume() error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	if r.state != StatePaused {
		return newBadState(r.state, "resume")
	}
	r.state = StateRunning
	close(r.resumeCh)
	r.resumeCh = make(chan struct{})
	return nil
}

func (r *AsyncRunner) waitIfPaused(ctx context.Context) error {
	for {
		r.stateMu.RLock()
		st, ch := r.state, r.resumeCh
		r.stateMu.RUnlock()
		if st != StatePaused {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// emit records an event in the session's history and streams it.
func (r *AsyncRunner) emit(e Event) {
	r.events = append(r.events, e)
	r.eventCh <- e
}

// run is the goroutine body Start launches: it walks the module's steps
// exactly like Runner.Run, plus await_user suspension, closing eventCh on
// exit. A panic during a step is recovered into an "error" event
// (spec.md §7 ExecutorFatal) rather than crashing the host process.
func (r *AsyncRunner) run(ctx context.Context) {
	defer close(r.eventCh)
	defer func() {
		if rec := recover(); rec != nil {
			r.setState(StateError)
			r.emit(Event{Type: EventError, Payload: map[string]any{"message": fmt.Sprintf("%v", rec)}})
		}
	}()

	steps := r.module.Steps
	stepIndex := 0

	for stepIndex < len(steps) {
		if err := r.waitIfPaused(ctx); err != nil {
			r.setState(StateError)
			r.emit(Event{Type: EventError, Payload: map[string]any{"message": err.Error()}})
			return
		}
		if err := ctx.Err(); err != nil {
			r.setState(StateError)
			r.emit(Event{Type: EventError, Payload: map[string]any{"message": err.Error()}})
			return
		}

		step := steps[stepIndex]
		nextIndex := stepIndex + 1

		switch step.Action {
		case mdl.ActionInjectUser:
			r.handleInjectUser(step)

		case mdl.ActionAwaitUser:
			if err := r.handleAwaitUser(ctx, step); err != nil {
				r.setState(StateError)
				r.emit(Event{Type: EventError, Payload: map[string]any{"message": err.Error()}})
				return
			}

		case mdl.ActionAwaitAgent:
			r.setState(StateAwaitingAgent)
			stop, err := r.handleAwaitAgentAsync(ctx, step)
			// A Pause that arrived during the last agent turn stays in effect.
			r.stateMu.Lock()
			if r.state == StateAwaitingAgent {
				r.state = StateRunning
			}
			r.stateMu.Unlock()
			if err != nil {
				r.emitAgentFailure(step, err)
			} else if stop {
				stepIndex = len(steps)
				continue
			}

		case mdl.ActionBranch:
			newSteps, branched := r.handleBranchAsync(step)
			if branched {
				steps = newSteps
				stepIndex = 0
				continue
			}

		case mdl.ActionToolCall:
			r.handleDirectToolCallAsync(step)
		}

		stepIndex = nextIndex
	}

	envState := r.snapshotEnvState()
	evaluation := eval.Run(r.module, r.history, r.events, envState)
	r.setState(StateCompleted)
	r.emit(Event{Type: EventCompleted, Payload: map[string]any{
		"evaluation": evaluation, "num_events": len(r.events),
	}})
}

func (r *AsyncRunner) snapshotEnvState() map[string]any {
	r.envMu.Lock()
	defer r.envMu.Unlock()
	return cloneState(r.envState)
}

func (r *AsyncRunner) handleInjectUser(step mdl.Step) {
	content, _ := step.Params["content"].(string)
	r.history = append(r.history, Message{Role: RoleUser, Content: content})
	r.emit(Event{Type: EventUser, Payload: map[string]any{
		"content": content, "step_id": step.ID, "scripted": true,
	}})
}

// handleAwaitUser suspends the step loop until ProvideInput delivers
// content, the step's timeout elapses (falling back to its configured
// default, or "[timeout - no input]"), or ctx is canceled (spec.md §4.6).
func (r *AsyncRunner) handleAwaitUser(ctx context.Context, step mdl.Step) error {
	prompt, _ := step.Params["prompt"].(string)
	timeoutSeconds, hasTimeout := toSeconds(step.Params["timeout"])

	r.setState(StateAwaitingUser)
	r.inputMu.Lock()
	r.inputCh = make(chan string, 1)
	r.awaitingInput = true
	inputCh := r.inputCh
	r.inputMu.Unlock()

	r.emit(Event{Type: EventAwaitingInput, Payload: map[string]any{
		"prompt": prompt, "step_id": step.ID, "timeout": step.Params["timeout"],
	}})

	var content string
	if hasTimeout {
		timer := time.NewTimer(time.Duration(timeoutSeconds * float64(time.Second)))
		defer timer.Stop()
		select {
		case content = <-inputCh:
		case <-timer.C:
			r.clearAwaitingInput()
			def, ok := step.Params["default"].(string)
			if !ok {
				def = "[timeout - no input]"
			}
			content = def
		case <-ctx.Done():
			r.clearAwaitingInput()
			return ctx.Err()
		}
	} else {
		select {
		case content = <-inputCh:
		case <-ctx.Done():
			r.clearAwaitingInput()
			return ctx.Err()
		}
	}

	r.setState(StateRunning)
	r.history = append(r.history, Message{Role: RoleUser, Content: content})
	r.emit(Event{Type: EventUser, Payload: map[string]any{
		"content": content, "step_id": step.ID, "scripted": false,
	}})
	return nil
}

func (r *AsyncRunner) clearAwaitingInput() {
	r.inputMu.Lock()
	r.awaitingInput = false
	r.inputMu.Unlock()
}

func toSeconds(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, n > 0
	case int:
		return float64(n), n > 0
	}
	return 0, false
}

// handleAwaitAgentAsync is handleAwaitAgent's event-streaming twin.
func (r *AsyncRunner) handleAwaitAgentAsync(ctx context.Context, step mdl.Step) (bool, error) {
	toolCallCount := 0
	retriedAfterToolCalls := false

	for toolCallCount < maxToolCallsPerTurn {
		if err := r.waitIfPaused(ctx); err != nil {
			return false, err
		}

		action, err := r.agent.Step(ctx, r.toHistoryTurns(), r.toolSchemas())
		if err != nil {
			return false, err
		}

		switch action.Type {
		case agentiface.ActionMessage:
			r.history = append(r.history, Message{Role: RoleAssistant, Content: action.Content})
			r.emit(Event{Type: EventAgent, Payload: map[string]any{
				"content": action.Content, "step_id": step.ID,
			}})
			return false, nil

		case agentiface.ActionToolCall:
			r.handleToolCallAsync(action, step)
			toolCallCount++

		case agentiface.ActionStop:
			if toolCallCount > 0 && !retriedAfterToolCalls {
				retriedAfterToolCalls = true
				r.history = append(r.history, Message{
					Role:    RoleUser,
					Content: "[System: Please respond to the customer based on the information you just retrieved.]",
				})
				continue
			}
			r.emit(Event{Type: EventAgentStop, Payload: map[string]any{"step_id": step.ID}})
			return true, nil

		default:
			return false, fmt.Errorf("unknown agent action type: %s", action.Type)
		}
	}

	return false, nil
}

func (r *AsyncRunner) handleToolCallAsync(action agentiface.Action, step mdl.Step) {
	toolName, toolAction, ok := tool.SplitWireName(action.ToolName)
	if !ok {
		toolName, toolAction = action.ToolName, ""
	}
	toolArgs := action.ToolArgs
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}

	toolCallID := action.ToolCallID
	if toolCallID == "" {
		toolCallID = generateToolCallID(toolName, toolAction, len(r.events))
	}

	r.emit(Event{Type: EventToolCall, Payload: map[string]any{
		"tool": toolName, "action": toolAction, "args": toolArgs, "step_id": step.ID,
	}})

	r.history = append(r.history, Message{
		Role:    RoleAssistant,
		Content: "",
		ToolCalls: []ToolCallRef{{
			ID:        toolCallID,
			Name:      action.ToolName,
			Arguments: marshalArgs(toolArgs),
		}},
	})

	result := r.invokeToolLocked(toolName, toolAction, toolArgs)
	r.emit(Event{Type: EventToolResult, Payload: map[string]any{
		"tool": toolName, "action": toolAction, "result": resultPayload(result),
	}})

	content := result.Error
	if result.Success {
		content = marshalArgs(result.Data)
	}
	r.history = append(r.history, Message{
		Role: RoleTool, Content: content, ToolName: toolName, ToolCallID: toolCallID,
	})
}

func (r *AsyncRunner) handleDirectToolCallAsync(step mdl.Step) {
	toolName, _ := step.Params["tool"].(string)
	toolAction, _ := step.Params["action"].(string)
	toolArgs, _ := step.Params["args"].(map[string]any)
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}

	r.emit(Event{Type: EventToolCall, Payload: map[string]any{
		"tool": toolName, "action": toolAction, "args": toolArgs, "step_id": step.ID, "direct": true,
	}})

	result := r.invokeToolLocked(toolName, toolAction, toolArgs)
	r.emit(Event{Type: EventToolResult, Payload: map[string]any{
		"tool": toolName, "action": toolAction, "result": resultPayload(result),
	}})
}

func (r *AsyncRunner) handleBranchAsync(step mdl.Step) ([]mdl.Step, bool) {
	branchName, _ := step.Params["branch_name"].(string)
	r.emit(Event{Type: EventBranch, Payload: map[string]any{
		"branch": branchName, "step_id": step.ID,
	}})

	if branchName == "" {
		return nil, false
	}
	steps, ok := r.module.Branches[branchName]
	if !ok {
		return nil, false
	}
	return steps, true
}

// invokeToolLocked is invokeTool with envMu held, since the async
// executor's tool invocations race against InjectEvent calls arriving on
// another goroutine.
func (r *AsyncRunner) invokeToolLocked(toolName, toolAction string, args map[string]any) tool.Result {
	t, ok := r.registry.Get(toolName)
	if !ok {
		return tool.Result{Success: false, Error: "Tool not found: " + toolName}
	}
	r.envMu.Lock()
	result, err := t.Invoke(context.Background(), toolAction, args, r.envState)
	r.envMu.Unlock()
	if err != nil {
		return tool.Result{Success: false, Error: err.Error()}
	}
	return result
}

func (r *AsyncRunner) emitAgentFailure(step mdl.Step, err error) {
	content := fmt.Sprintf("[agent error: %v]", err)
	r.history = append(r.history, Message{Role: RoleAssistant, Content: content})
	r.emit(Event{Type: EventAgent, Payload: map[string]any{
		"content": content, "step_id": step.ID, "error": true,
	}})
}
