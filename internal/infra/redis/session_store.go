package redis

import (
	"context"
	"sync"
	"time"

	"github.com/Legit-prep/live-quiz-socket/internal/app"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Session state still lives in a local map; live state is process-local.
//   - Redis holds a liveness marker per pin with a TTL so operators can see
//     which pins are live on this instance.
//   - Redis is never called while the session map lock is held, and a marker
//     is refreshed at most once per quarter TTL.
//   - Eviction drops both the local session and its marker.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	clock    clockwork.Clock
	mu       sync.RWMutex
	sessions map[string]*app.Session

	touchMu sync.Mutex
	touched map[string]time.Time
}

func NewSessionStore(client *redis.Client, ttl time.Duration, clock clockwork.Clock) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		clock:    clock,
		sessions: make(map[string]*app.Session),
		touched:  make(map[string]time.Time),
	}
}

func (s *SessionStore) GetOrCreate(pin string) *app.Session {
	s.mu.Lock()
	session, ok := s.sessions[pin]
	if !ok {
		session = app.NewSession(pin, s.clock)
		s.sessions[pin] = session
	}
	s.mu.Unlock()

	if ok {
		s.touch(pin)
		return session
	}
	s.mark(pin)
	return session
}

func (s *SessionStore) Get(pin string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[pin]
	s.mu.RUnlock()
	if ok {
		s.touch(pin)
	}
	return session, ok
}

func (s *SessionStore) EvictIdle(now time.Time, idle time.Duration) []string {
	s.mu.Lock()
	var evicted []string
	for pin, session := range s.sessions {
		if now.Sub(session.IdleSince()) < idle {
			continue
		}
		delete(s.sessions, pin)
		evicted = append(evicted, pin)
	}
	s.mu.Unlock()
	if len(evicted) == 0 {
		return nil
	}

	keys := make([]string, 0, len(evicted))
	s.touchMu.Lock()
	for _, pin := range evicted {
		delete(s.touched, pin)
		keys = append(keys, s.key(pin))
	}
	s.touchMu.Unlock()
	if err := s.client.Del(context.Background(), keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("pins", evicted).Msg("redis: delete session markers failed")
	}
	return evicted
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// mark writes a fresh marker for a new session. Best effort.
func (s *SessionStore) mark(pin string) {
	now := s.clock.Now()
	s.touchMu.Lock()
	s.touched[pin] = now
	s.touchMu.Unlock()

	if err := s.client.Set(context.Background(), s.key(pin), now.UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("pin", pin).Msg("redis: set session marker failed")
	}
}

// touch extends the marker TTL unless it was refreshed within the last
// quarter TTL.
func (s *SessionStore) touch(pin string) {
	if s.ttl <= 0 {
		return
	}
	now := s.clock.Now()
	s.touchMu.Lock()
	if last, ok := s.touched[pin]; ok && now.Sub(last) < s.ttl/4 {
		s.touchMu.Unlock()
		return
	}
	s.touched[pin] = now
	s.touchMu.Unlock()

	if err := s.client.Expire(context.Background(), s.key(pin), s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("pin", pin).Msg("redis: refresh session marker failed")
	}
}

func (s *SessionStore) key(pin string) string {
	return "live:session:" + pin
}
