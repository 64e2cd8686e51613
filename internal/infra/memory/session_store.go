package memory

import (
	"sync"
	"time"

	"github.com/Legit-prep/live-quiz-socket/internal/app"
	"github.com/jonboulle/clockwork"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	clock    clockwork.Clock
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(clock clockwork.Clock) *SessionStore {
	return &SessionStore{
		clock:    clock,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(pin string) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[pin]; ok {
		return session
	}
	session := app.NewSession(pin, s.clock)
	s.sessions[pin] = session
	return session
}

func (s *SessionStore) Get(pin string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[pin]
	return session, ok
}

func (s *SessionStore) EvictIdle(now time.Time, idle time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted []string
	for pin, session := range s.sessions {
		if now.Sub(session.IdleSince()) >= idle {
			delete(s.sessions, pin)
			evicted = append(evicted, pin)
		}
	}
	return evicted
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
