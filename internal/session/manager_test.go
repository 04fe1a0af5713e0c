package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/sandboxy-go/sandboxy/internal/agentiface"
	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/session"
)

func emptyModule(id string) *mdl.Module {
	return &mdl.Module{
		ID:          id,
		Environment: mdl.Environment{InitialState: map[string]any{}},
		Branches:    map[string][]mdl.Step{},
	}
}

func TestManagerCreateGetDelete(t *testing.T) {
	m := session.NewManager()

	s, err := m.Create(emptyModule("mod-1"), agentiface.NewStubAgent(), "agent-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected a generated session ID")
	}

	got, ok := m.Get(s.ID)
	if !ok || got.ID != s.ID {
		t.Fatalf("expected to retrieve the created session, got %+v, %v", got, ok)
	}

	if !m.Delete(s.ID) {
		t.Fatal("expected Delete to report true for an existing session")
	}
	if _, ok := m.Get(s.ID); ok {
		t.Error("expected session to be gone after Delete")
	}
	if m.Delete(s.ID) {
		t.Error("expected Delete to report false for an already-deleted session")
	}
}

// TestManagerCreateBindsVariablesBeforeRunning guards against Create
// handing the raw, unbound module straight to the runner: every session
// created through Create must run on a module already bound against the
// caller-supplied variables (spec.md §3's Session is typed as {id,
// bound_module, agent, variables, ...}).
func TestManagerCreateBindsVariablesBeforeRunning(t *testing.T) {
	m := session.NewManager()
	mod := emptyModule("mod-1")
	mod.Environment.Tools = nil
	mod.Variables = []mdl.Variable{{Name: "customer_name", Kind: mdl.KindString, Default: "Guest"}}
	mod.Steps = []mdl.Step{
		{ID: "greet", Action: mdl.ActionInjectUser, Params: map[string]any{"content": "{{customer_name}}"}},
	}

	s, err := m.Create(mod, agentiface.NewStubAgent(), "agent-1", map[string]any{"customer_name": "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	events, err := m.Start(s.ID)
	if err != nil {
		t.Fatal(err)
	}

	var sawGreeting bool
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				if !sawGreeting {
					t.Fatal("channel closed before observing the bound greeting")
				}
				return
			}
			if e.Type == "user" {
				if content, _ := e.Payload["content"].(string); content != "Ada" {
					t.Errorf("expected the template bound to the caller's variable, got %q", content)
				}
				sawGreeting = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for the user event")
		}
	}
}

func TestManagerGetUnknownSessionNotOK(t *testing.T) {
	m := session.NewManager()
	if _, ok := m.Get("nonexistent"); ok {
		t.Error("expected ok=false for an unknown session ID")
	}
}

func TestManagerListReturnsAllSessions(t *testing.T) {
	m := session.NewManager()
	if _, err := m.Create(emptyModule("a"), agentiface.NewStubAgent(), "agent-1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(emptyModule("b"), agentiface.NewStubAgent(), "agent-1", nil); err != nil {
		t.Fatal(err)
	}
	if len(m.List()) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(m.List()))
	}
}

func TestManagerStartStreamsEventsToCompletion(t *testing.T) {
	m := session.NewManager()
	mod := emptyModule("mod-1")
	mod.Environment.Tools = nil

	s, err := m.Create(mod, agentiface.NewStubAgent(), "agent-1", nil)
	if err != nil {
		t.Fatal(err)
	}

	events, err := m.Start(s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	var sawCompleted bool
	for {
		select {
		case e, ok := <-events:
			if !ok {
				if !sawCompleted {
					t.Fatal("channel closed before a completed event")
				}
				return
			}
			if e.Type == "completed" {
				sawCompleted = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for session completion")
		}
	}
}

func TestManagerOperationsOnUnknownSessionReturnNotFound(t *testing.T) {
	m := session.NewManager()
	const bogus = "does-not-exist"

	if err := m.ProvideInput(bogus, "hi"); err == nil {
		t.Error("expected NotFoundError from ProvideInput")
	}
	if _, err := m.InjectEvent(context.Background(), bogus, "tool", "event", nil); err == nil {
		t.Error("expected NotFoundError from InjectEvent")
	}
	if err := m.Pause(bogus); err == nil {
		t.Error("expected NotFoundError from Pause")
	}
	if err := m.Resume(bogus); err == nil {
		t.Error("expected NotFoundError from Resume")
	}
	if _, ok := m.Get(bogus); ok {
		t.Error("expected Get to report false")
	}
}

func TestManagerDeleteCancelsInFlightSession(t *testing.T) {
	m := session.NewManager()
	mod := emptyModule("mod-1")
	mod.Steps = []mdl.Step{
		{ID: "s1", Action: mdl.ActionAwaitUser, Params: map[string]any{"prompt": "?"}},
	}

	s, err := m.Create(mod, agentiface.NewStubAgent(), "agent-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	events, err := m.Start(s.ID)
	if err != nil {
		t.Fatal(err)
	}

	// Wait for the session to actually suspend before deleting it, so the
	// cancellation races a real await_user instead of an unstarted runner.
	deadline := time.After(2 * time.Second)
	select {
	case <-events:
	case <-deadline:
		t.Fatal("timed out waiting for awaiting_input event")
	}

	if !m.Delete(s.ID) {
		t.Fatal("expected Delete to succeed")
	}

	// Draining to closure should not hang: canceling the context must
	// unblock the suspended await_user step.
	for range events {
	}
}

func TestManagerWithTTLReapsCompletedSessionsOnly(t *testing.T) {
	m := session.NewManagerWithTTL(minTestTTL)
	defer m.Close()

	mod := emptyModule("mod-1")
	mod.Environment.Tools = nil
	completed, err := m.Create(mod, agentiface.NewStubAgent(), "agent-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	events, err := m.Start(completed.ID)
	if err != nil {
		t.Fatal(err)
	}
	for range events {
	}

	awaiting := emptyModule("mod-2")
	awaiting.Steps = []mdl.Step{
		{ID: "s1", Action: mdl.ActionAwaitUser, Params: map[string]any{"prompt": "?"}},
	}
	inFlight, err := m.Create(awaiting, agentiface.NewStubAgent(), "agent-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(inFlight.ID); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		// Poll through List, not Get: Get counts as activity and would keep
		// the completed session from ever going idle.
		present := false
		for _, s := range m.List() {
			if s.ID == completed.ID {
				present = true
			}
		}
		if !present {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the reaper to evict the completed session")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, ok := m.Get(inFlight.ID); !ok {
		t.Error("expected the in-flight session to survive the reaper regardless of age")
	}
}

const minTestTTL = 50 * time.Millisecond
