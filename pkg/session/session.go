// Package session implements the per-user session stack and priority
// preemption described in spec.md §4.4, grounded on
// original_source/src/core/session_manager.py's SessionManager/AgentSession.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carline-ai/carline/pkg/logging"
)

// State is one of an AgentSession's lifecycle states.
type State string

const (
	Running      State = "running"
	WaitingInput State = "waiting_input"
	Paused       State = "paused"
	Completed    State = "completed"
	Error        State = "error"
)

func isTerminal(s State) bool { return s == Completed || s == Error }

// ErrSessionNotFound is returned by operations that name an unknown session id.
var ErrSessionNotFound = errors.New("session: not found")

// AgentSession is a logical conversation with one agent, possibly spanning
// multiple turns.
type AgentSession struct {
	SessionID         string
	AgentName         string
	State             State
	Priority          int
	Context           map[string]interface{}
	PendingPrompt     string
	ExpectedInputType string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Interruptible reports whether this session may be paused by a higher
// priority one (priority 3 sessions never are).
func (s *AgentSession) Interruptible() bool { return s.Priority < 3 }

// Manager guards a per-user stack of AgentSessions with a single mutex, per
// spec.md §4.4's "operations on a user's stack are serialized" contract.
type Manager struct {
	mu     sync.Mutex
	stacks map[string][]string // userID -> session ids, top = last element
	byID   map[string]*AgentSession
	logger logging.Logger
}

// New constructs an empty Manager.
func New(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Manager{
		stacks: make(map[string][]string),
		byID:   make(map[string]*AgentSession),
		logger: logger,
	}
}

// CreateSession implements spec.md §4.4's create_session algorithm.
func (m *Manager) CreateSession(agentName, userID string, priority int) *AgentSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.activeLocked(userID)
	if current != nil {
		if priority > current.Priority {
			if current.Priority >= 3 {
				return nil
			}
			current.State = Paused
			current.UpdatedAt = time.Now()
		} else {
			return nil
		}
	}

	now := time.Now()
	s := &AgentSession{
		SessionID: uuid.NewString(),
		AgentName: agentName,
		State:     Running,
		Priority:  priority,
		Context:   make(map[string]interface{}),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.byID[s.SessionID] = s
	m.stacks[userID] = append(m.stacks[userID], s.SessionID)
	return s
}

// GetActiveSession lazily pops terminal sessions off the top of the user's
// stack and returns the first non-terminal one, or nil.
func (m *Manager) GetActiveSession(userID string) *AgentSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(userID)
}

// activeLocked must be called with m.mu held.
func (m *Manager) activeLocked(userID string) *AgentSession {
	stack := m.stacks[userID]
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		s, ok := m.byID[top]
		if !ok || isTerminal(s.State) {
			stack = stack[:len(stack)-1]
			continue
		}
		m.stacks[userID] = stack
		return s
	}
	m.stacks[userID] = stack
	return nil
}

// WaitForInput transitions a running session to waiting_input.
func (m *Manager) WaitForInput(sessionID, prompt, expectedType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.State = WaitingInput
	s.PendingPrompt = prompt
	s.ExpectedInputType = expectedType
	s.UpdatedAt = time.Now()
	return nil
}

// ResumeSession transitions waiting_input back to running, recording the
// user's reply in context.
func (m *Manager) ResumeSession(sessionID, userInput string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.State = Running
	s.PendingPrompt = ""
	s.ExpectedInputType = ""
	s.Context["last_user_input"] = userInput
	s.UpdatedAt = time.Now()
	return nil
}

// CompleteSession marks a session completed, removes it from the user's
// stack, and auto-resumes a paused session now at the top. Completing an
// already-terminal session is a no-op (spec.md §8 idempotence property).
func (m *Manager) CompleteSession(sessionID, userID string) error {
	return m.finish(sessionID, userID, Completed)
}

// ErrorSession marks a session as errored; same stack bookkeeping as
// CompleteSession (spec.md §4.7: "sessions in error are likewise removed").
func (m *Manager) ErrorSession(sessionID, userID string) error {
	return m.finish(sessionID, userID, Error)
}

func (m *Manager) finish(sessionID, userID string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if isTerminal(s.State) {
		return nil
	}
	s.State = state
	s.UpdatedAt = time.Now()

	stack := m.stacks[userID]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == sessionID {
			stack = append(stack[:i], stack[i+1:]...)
			break
		}
	}
	m.stacks[userID] = stack

	if len(stack) > 0 {
		top := m.byID[stack[len(stack)-1]]
		if top != nil && top.State == Paused {
			top.State = Running
			top.UpdatedAt = time.Now()
			m.logger.Info("auto-resumed paused session", "session_id", top.SessionID, "agent", top.AgentName)
		}
	}
	return nil
}

// PauseCurrentSession pauses the active session for userID, if interruptible.
func (m *Manager) PauseCurrentSession(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.activeLocked(userID)
	if s == nil {
		return ErrSessionNotFound
	}
	if !s.Interruptible() {
		return nil
	}
	s.State = Paused
	s.UpdatedAt = time.Now()
	return nil
}

// GetSession returns the session by id, if any.
func (m *Manager) GetSession(sessionID string) (*AgentSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	return s, ok
}

// GetSessionStack returns a copy of the user's stack, bottom to top.
func (m *Manager) GetSessionStack(userID string) []*AgentSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.stacks[userID]
	out := make([]*AgentSession, 0, len(stack))
	for _, id := range stack {
		if s, ok := m.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ClearUserSessions drops all sessions belonging to userID.
func (m *Manager) ClearUserSessions(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.stacks[userID] {
		delete(m.byID, id)
	}
	delete(m.stacks, userID)
}

// Stats is a small snapshot used for status reporting/metrics.
type Stats struct {
	TotalSessions int
	ActiveUsers   int
}

// GetStats returns a point-in-time summary of the manager's state.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		TotalSessions: len(m.byID),
		ActiveUsers:   len(m.stacks),
	}
}
