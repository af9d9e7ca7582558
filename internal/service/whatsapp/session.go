package whatsapp

import (
	"sync"
	"time"

	"github.com/mamadbah2/orchard/pkg/clients/anthropic"
)

// DefaultSessionTTL is how long an unfinished movement conversation is kept.
const DefaultSessionTTL = 30 * time.Minute

type session struct {
	state   anthropic.ConversationState
	touched time.Time
}

// SessionManager keeps the in-progress movement conversation of each sender. Sessions
// idle for longer than the TTL start over.
type SessionManager struct {
	sessions map[string]session
	ttl      time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewSessionManager creates a session manager with DefaultSessionTTL.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]session),
		ttl:      DefaultSessionTTL,
		now:      time.Now,
	}
}

// GetSession returns the sender's live conversation or a fresh one.
func (sm *SessionManager) GetSession(userID string) anthropic.ConversationState {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[userID]
	if !ok {
		return anthropic.ConversationState{Step: anthropic.StepCollecting}
	}
	if sm.now().Sub(s.touched) > sm.ttl {
		delete(sm.sessions, userID)
		return anthropic.ConversationState{Step: anthropic.StepCollecting}
	}
	return s.state
}

// UpdateSession stores the state and refreshes its idle timer.
func (sm *SessionManager) UpdateSession(userID string, state anthropic.ConversationState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[userID] = session{state: state, touched: sm.now()}
}

// ClearSession removes a user's session.
func (sm *SessionManager) ClearSession(userID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, userID)
}
