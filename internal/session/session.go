// Package session tracks open editor sessions for the HTTP facade. A
// session pairs one uploaded document with its edit state and expires
// after a period of inactivity.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdfpage/editkit/editor"
	"github.com/pdfpage/editkit/observability"
)

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 30 * time.Minute

// Session is one open document on the server. The embedded editor
// session is single-threaded; Mutex serializes handler access.
type Session struct {
	ID        string
	Editor    *editor.Session
	Filename  string
	CreatedAt time.Time
	LastUsed  time.Time
	Mutex     sync.Mutex
}

// Touch marks the session as recently used.
func (s *Session) Touch() { s.LastUsed = time.Now() }

// Manager owns all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	log      observability.Logger
}

// NewManager returns an empty manager with the given idle TTL. A zero
// ttl uses DefaultTTL.
func NewManager(ttl time.Duration, log observability.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
	}
}

// Create registers a new empty session and returns it.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		LastUsed:  now,
	}
	m.sessions[s.ID] = s
	m.log.Info("session created", observability.String("id", s.ID))
	return s
}

// Get returns the session for id, refreshing its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if ok {
		s.Touch()
	}
	return s, ok
}

// Delete removes the session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle past the TTL and returns how many were
// removed. The server runs this on a ticker.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var evicted int
	cutoff := time.Now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.LastUsed.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
			m.log.Info("session expired", observability.String("id", id))
		}
	}
	return evicted
}
