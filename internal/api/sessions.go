package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zenoccaz/chatlead/internal/engine"
	"github.com/zenoccaz/chatlead/internal/leads"
	"github.com/zenoccaz/chatlead/internal/util"
)

// EngineFactory builds the dialogue engine and lead recorder for a new
// widget session.
type EngineFactory func(sessionID string) (*engine.Engine, *leads.Recorder)

// Session is one live widget conversation.
type Session struct {
	ID        string
	Engine    *engine.Engine
	Recorder  *leads.Recorder
	CreatedAt time.Time

	lastActive time.Time // guarded by the manager's mutex
}

// SessionManager tracks live widget sessions in memory. Sessions do not
// survive a restart; the widget starts a fresh conversation on reload.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  EngineFactory
}

// NewSessionManager creates a session manager using the given factory.
func NewSessionManager(factory EngineFactory) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// Create starts a new session: fresh ID, fresh engine, greeting played.
func (m *SessionManager) Create() *Session {
	id := util.GenerateSessionID()
	eng, rec := m.factory(id)
	now := time.Now()
	session := &Session{
		ID:         id,
		Engine:     eng,
		Recorder:   rec,
		CreatedAt:  now,
		lastActive: now,
	}
	eng.Start()

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	slog.Debug("SessionManager.Create started session", "sessionID", id)
	return session
}

// Get returns the session with the given ID, or nil if unknown. A hit
// refreshes the session's idle timer.
func (m *SessionManager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[id]
	if session != nil {
		session.lastActive = time.Now()
	}
	return session
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupIdle removes sessions whose last activity is older than maxIdle,
// stopping their recorders so buffered lead writes are flushed. It returns
// the number of sessions removed.
func (m *SessionManager) CleanupIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var expired []*Session
	for id, session := range m.sessions {
		if session.lastActive.Before(cutoff) {
			expired = append(expired, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		session.Engine.Stop()
		session.Recorder.Stop()
		slog.Debug("SessionManager.CleanupIdle expired session", "sessionID", session.ID)
	}
	if len(expired) > 0 {
		slog.Info("SessionManager.CleanupIdle removed idle sessions", "count", len(expired))
	}
	return len(expired)
}

// Shutdown stops every session's recorder, flushing queued lead writes.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Engine.Stop()
		session.Recorder.Stop()
	}
	slog.Debug("SessionManager.Shutdown stopped sessions", "count", len(sessions))
}
