// Package session implements the Session Manager (C8): an in-memory
// registry of live interactive sessions, each wrapping one
// internal/runner.AsyncRunner. Grounded on
// original_source/sandboxy/session/manager.py's SessionManager, with the
// single-threaded-asyncio session map replaced by a sync.RWMutex-guarded
// map following internal/tool/registry.go's concurrency shape (short
// critical sections around a plain map).
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandboxy-go/sandboxy/internal/agentiface"
	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/runner"
)

// minReapInterval keeps a degenerate TTL (e.g. 0 from a misconfigured
// SESSION_TTL_MINUTES) from spinning a zero-period ticker, mirroring the
// teacher's internal/session/store.go minCleanupInterval guard exactly.
const minReapInterval = time.Millisecond

// NotFoundError is returned by every Manager operation given an unknown
// session ID (spec.md §7 NotFound; SPEC_FULL.md §4.0's typed Kind-tagged
// error kinds).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: session not found: %s", e.Kind, e.ID)
}

func newNotFoundError(id string) *NotFoundError {
	return &NotFoundError{Kind: "NotFound", ID: id}
}

// Session is one active interactive run: a bound module, the agent under
// test, and the AsyncRunner driving them. Mirrors the Session dataclass
// of original_source/sandboxy/session/manager.py, minus the
// Python-specific _event_queue/_run_task plumbing the Go channel/context
// already provide.
type Session struct {
	ID        string
	ModuleID  string
	AgentID   string
	Variables map[string]any
	Runner    *runner.AsyncRunner

	cancel   context.CancelFunc
	lastUsed time.Time
}

// State reports the session's current lifecycle state.
func (s *Session) State() runner.SessionState {
	return s.Runner.State()
}

// Manager owns every live session for this process. It never persists
// sessions across a restart (spec.md §1 Non-goals).
//
// A background reaper evicts sessions that finished (Completed/Error)
// more than ttl ago, adapted from the teacher's
// internal/session/store.go TTL-eviction Store — in-flight sessions are
// never evicted regardless of age, since spec.md has no notion of a
// session timing out mid-run.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  *Metrics

	ttl  time.Duration
	done chan struct{}
}

// NewManager constructs a session manager with no TTL reaper; sessions
// live until explicitly Deleted. Suitable for tests and for CLI-only
// (non-serve) use.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		metrics:  NewMetrics(),
	}
}

// NewManagerWithTTL constructs a session manager whose background
// reaper deletes finished sessions idle longer than ttl (`sandboxctl
// serve`'s SESSION_TTL_MINUTES). ttl below minReapInterval is clamped
// up, matching the teacher's store.go guard against degenerate ticker
// intervals.
func NewManagerWithTTL(ttl time.Duration) *Manager {
	if ttl < minReapInterval {
		ttl = minReapInterval
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		metrics:  NewMetrics(),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// Close stops the background reaper, if one is running. Safe to call on
// a Manager built with NewManager (no-op).
func (m *Manager) Close() {
	if m.done == nil {
		return
	}
	select {
	case <-m.done:
	default:
		close(m.done)
	}
}

func (m *Manager) reapLoop() {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.reapOnce()
		}
	}
}

func (m *Manager) reapOnce() {
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.lastUsed.After(cutoff) {
			continue
		}
		switch s.State() {
		case runner.StateCompleted, runner.StateError:
			if s.cancel != nil {
				s.cancel()
			}
			delete(m.sessions, id)
			m.metrics.SessionDeleted()
		}
	}
}

// touch records activity on a session for TTL purposes. Callers must
// hold no lock; touch takes its own.
func (m *Manager) touch(s *Session) {
	m.mu.Lock()
	s.lastUsed = time.Now()
	m.mu.Unlock()
}

// Create binds mod against variables (spec.md §4.2) and builds a new
// interactive session from the result, but does not start it — the
// caller must call Start to begin streaming events (spec.md §3's Session
// is typed as {id, bound_module, agent, variables, ...}; §4.8).
func (m *Manager) Create(mod *mdl.Module, agent agentiface.Agent, agentID string, variables map[string]any) (*Session, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	bound := mdl.Bind(mod, variables)

	r, err := runner.NewAsync(bound, agent, agentID)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		ModuleID:  bound.ID,
		AgentID:   agentID,
		Variables: variables,
		Runner:    r,
		lastUsed:  time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.metrics.SessionCreated()
	return s, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		m.touch(s)
	}
	return s, ok
}

// List returns every live session.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Delete removes a session, canceling its run if still in flight.
// Reports false when the session doesn't exist.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	if s.cancel != nil {
		s.cancel()
	}
	delete(m.sessions, id)
	m.metrics.SessionDeleted()
	return true
}

// Start launches the session's AsyncRunner on its own goroutine and
// returns its event stream. The session's context is owned by the
// manager and canceled on Delete (spec.md §4.8, §7 ExecutorFatal on
// cancellation).
func (m *Manager) Start(id string) (<-chan runner.Event, error) {
	s, ok := m.Get(id)
	if !ok {
		return nil, newNotFoundError(id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	s.cancel = cancel
	m.mu.Unlock()

	s.Runner.Start(ctx)
	m.metrics.SessionStarted()
	return s.Runner.Events(), nil
}

// ProvideInput delivers user input to a session suspended on await_user.
func (m *Manager) ProvideInput(id, content string) error {
	s, ok := m.Get(id)
	if !ok {
		return newNotFoundError(id)
	}
	return s.Runner.ProvideInput(content)
}

// InjectEvent triggers a chaos/scenario event in one of the session's
// tools, out of band (spec.md §6 inject_event).
func (m *Manager) InjectEvent(ctx context.Context, id, toolName, eventType string, args map[string]any) (map[string]any, error) {
	s, ok := m.Get(id)
	if !ok {
		return nil, newNotFoundError(id)
	}
	return s.Runner.InjectEvent(ctx, toolName, eventType, args)
}

// Pause suspends a running session before its next step.
func (m *Manager) Pause(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return newNotFoundError(id)
	}
	return s.Runner.Pause()
}

// Resume wakes a paused session.
func (m *Manager) Resume(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return newNotFoundError(id)
	}
	return s.Runner.Resume()
}
