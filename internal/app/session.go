package app

import (
	"sync"
	"time"

	"github.com/Legit-prep/live-quiz-socket/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Session is the in-memory state of one live quiz identified by its pin.
// All mutation happens under mu; the service emits outbound events while
// still holding it so delivery order follows mutation order.
type Session struct {
	pin          string
	clock        clockwork.Clock
	mu           sync.Mutex
	participants map[string]*domain.Participant
	round        *domain.Round
	instructor   string
	createdAt    time.Time
	lastActivity time.Time
}

// NewSession is exported for infrastructure layers that own the session map.
func NewSession(pin string, clock clockwork.Clock) *Session {
	now := clock.Now()
	return &Session{
		pin:          pin,
		clock:        clock,
		participants: make(map[string]*domain.Participant),
		createdAt:    now,
		lastActivity: now,
	}
}

// Pin returns the session code.
func (s *Session) Pin() string {
	return s.pin
}

// Headcount returns the number of distinct participant names.
func (s *Session) Headcount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// Participant returns a copy of the named participant.
func (s *Session) Participant(name string) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[name]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// Round returns a copy of the current round, if any.
func (s *Session) Round() (domain.Round, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round == nil {
		return domain.Round{}, false
	}
	return *s.round, true
}

// IdleSince reports the time of the last processed event.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.clock.Now()
	fn()
}

// joinLocked registers name or refreshes its connection id. Score and the
// current answer survive a rejoin.
func (s *Session) joinLocked(name, connID string) (domain.Participant, bool) {
	if p, ok := s.participants[name]; ok {
		p.ConnectionID = connID
		return *p, false
	}
	p := &domain.Participant{
		Name:         name,
		ConnectionID: connID,
		JoinedAt:     s.clock.Now(),
	}
	s.participants[name] = p
	return *p, true
}

func (s *Session) startRoundLocked(q domain.Question, buffer time.Duration) domain.Round {
	now := s.clock.Now()
	s.round = &domain.Round{
		Question:  q,
		StartedAt: now,
		Deadline:  now.Add(time.Duration(q.Time)*time.Second + buffer),
		Active:    true,
	}
	for _, p := range s.participants {
		p.ClearAnswer()
	}
	return *s.round
}

func (s *Session) submitAnswerLocked(name, choice string) error {
	p, ok := s.participants[name]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if s.round == nil || !s.round.Active {
		return domain.ErrNoActiveRound
	}
	p.Answer = choice
	p.Answered = true
	return nil
}

// expireLocked closes the active round. It reports false when there is no
// round or it was already closed.
func (s *Session) expireLocked() (domain.Round, bool) {
	if s.round == nil || !s.round.Active {
		return domain.Round{}, false
	}
	s.round.Active = false
	return *s.round, true
}
