package app

import (
	"context"
	"time"

	"github.com/Legit-prep/live-quiz-socket/internal/domain"
	"github.com/Legit-prep/live-quiz-socket/internal/telemetry"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// SessionRepository abstracts how live sessions are held (in-memory, Redis-aware).
type SessionRepository interface {
	GetOrCreate(pin string) *Session
	Get(pin string) (*Session, bool)
	// EvictIdle drops sessions with no activity since now-idle and returns their pins.
	EvictIdle(now time.Time, idle time.Duration) []string
	Len() int
}

// ReportRepository persists exported final snapshots.
type ReportRepository interface {
	SaveReport(ctx context.Context, report domain.Report) error
	GetReport(ctx context.Context, pin string) (domain.Report, error)
}

// Gateway delivers named events to a single connection or to every
// connection in a session's room. Implementations must not block.
type Gateway interface {
	JoinRoom(connID, pin string)
	Send(connID, event string, payload any)
	Broadcast(pin, event string, payload any)
}

// Options tunes scoring and round behaviour.
type Options struct {
	PointsPerCorrect  int
	LeaderboardSize   int
	LatencyBuffer     time.Duration
	SessionIdleTTL    time.Duration
	HideCorrectOption bool
	EnforceInstructor bool
	Clock             clockwork.Clock
}

// DefaultOptions returns the classroom defaults: 10 points, top 5, 1s buffer.
func DefaultOptions() Options {
	return Options{
		PointsPerCorrect: 10,
		LeaderboardSize:  5,
		LatencyBuffer:    time.Second,
		SessionIdleTTL:   2 * time.Hour,
		Clock:            clockwork.NewRealClock(),
	}
}

// QuizService contains the live session use cases.
type QuizService struct {
	sessions SessionRepository
	reports  ReportRepository
	gateway  Gateway
	opts     Options
}

// NewQuizService wires the service. reports may be nil, in which case final
// snapshots are delivered but not exported.
func NewQuizService(store SessionRepository, reports ReportRepository, gateway Gateway, opts Options) *QuizService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &QuizService{sessions: store, reports: reports, gateway: gateway, opts: opts}
}

// CreateSession puts the instructor connection in the room and creates the
// session if needed. The sender becomes the session's instructor.
func (s *QuizService) CreateSession(_ context.Context, connID, pin string) error {
	if pin == "" {
		return domain.ErrInvalidPayload
	}
	s.gateway.JoinRoom(connID, pin)
	session := s.sessions.GetOrCreate(pin)
	telemetry.ActiveSessions.Set(float64(s.sessions.Len()))

	session.locked(func() {
		session.instructor = connID
	})
	log.Info().Str("pin", pin).Str("conn", connID).Msg("session created")
	return nil
}

// JoinSession registers or refreshes a participant, broadcasts the new
// headcount and, when a round is running, sends the sender a catch-up
// question with the remaining time.
func (s *QuizService) JoinSession(_ context.Context, connID, pin, name string) (domain.Participant, bool, error) {
	if pin == "" || name == "" {
		return domain.Participant{}, false, domain.ErrInvalidPayload
	}
	s.gateway.JoinRoom(connID, pin)
	session := s.sessions.GetOrCreate(pin)
	telemetry.ActiveSessions.Set(float64(s.sessions.Len()))

	var (
		participant domain.Participant
		isNew       bool
	)
	session.locked(func() {
		participant, isNew = session.joinLocked(name, connID)
		s.gateway.Broadcast(pin, domain.EventUpdateCount, len(session.participants))

		if q, ok := CatchUp(session.round, session.clock.Now()); ok {
			s.gateway.Send(connID, domain.EventQuestionStarted, s.outboundQuestion(q))
		}
	})
	log.Info().Str("pin", pin).Str("name", name).Bool("new", isNew).Msg("participant joined")
	return participant, isNew, nil
}

// StartQuestion opens a new round, clears every answer and broadcasts the
// question with its full duration.
func (s *QuizService) StartQuestion(_ context.Context, connID, pin string, q domain.Question) (domain.Round, error) {
	if err := q.Validate(); err != nil {
		return domain.Round{}, err
	}
	session, ok := s.sessions.Get(pin)
	if !ok {
		return domain.Round{}, domain.ErrSessionNotFound
	}

	var (
		round domain.Round
		err   error
	)
	session.locked(func() {
		if err = s.authorize(session, connID); err != nil {
			return
		}
		round = session.startRoundLocked(q, s.opts.LatencyBuffer)
		s.gateway.Broadcast(pin, domain.EventQuestionStarted, s.outboundQuestion(q))
	})
	if err != nil {
		return domain.Round{}, err
	}
	telemetry.RoundsStarted.Inc()
	log.Info().Str("pin", pin).Int("seconds", q.Time).Time("deadline", round.Deadline).Msg("round started")
	return round, nil
}

// SubmitAnswer records the participant's choice for the active round and
// tells the room a choice arrived without saying who sent it.
func (s *QuizService) SubmitAnswer(_ context.Context, pin, name, choice string) error {
	session, ok := s.sessions.Get(pin)
	if !ok {
		return domain.ErrSessionNotFound
	}

	var err error
	session.locked(func() {
		if err = session.submitAnswerLocked(name, choice); err != nil {
			return
		}
		s.gateway.Broadcast(pin, domain.EventReceiveAnswer, choice)
	})
	if err != nil {
		return err
	}
	telemetry.AnswersSubmitted.Inc()
	return nil
}

// TimeUp closes the active round, scores it, sends each participant their
// private result and broadcasts the top of the leaderboard. Calling it again
// for a closed round returns ErrNoActiveRound and changes nothing.
func (s *QuizService) TimeUp(_ context.Context, connID, pin string) ([]domain.LeaderboardEntry, error) {
	session, ok := s.sessions.Get(pin)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	var (
		leaderboard []domain.LeaderboardEntry
		err         error
	)
	session.locked(func() {
		if err = s.authorize(session, connID); err != nil {
			return
		}
		round, ok := session.expireLocked()
		if !ok {
			err = domain.ErrNoActiveRound
			return
		}
		results := ScoreRound(round, session.participants, s.opts.PointsPerCorrect)
		for name, result := range results {
			s.gateway.Send(session.participants[name].ConnectionID, domain.EventQuestionResult, result)
		}
		leaderboard = Rank(session.participants, s.opts.LeaderboardSize)
		s.gateway.Broadcast(pin, domain.EventLeaderboardUpdate, leaderboard)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("pin", pin).Int("ranked", len(leaderboard)).Msg("round expired")
	return leaderboard, nil
}

// RequestFinalData sends the full standings to the requester only and
// exports them as a report. Export failures are logged, not returned.
func (s *QuizService) RequestFinalData(ctx context.Context, connID, pin string) ([]domain.LeaderboardEntry, error) {
	session, ok := s.sessions.Get(pin)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	var (
		entries []domain.LeaderboardEntry
		err     error
	)
	session.locked(func() {
		if err = s.authorize(session, connID); err != nil {
			return
		}
		entries = Rank(session.participants, 0)
		s.gateway.Send(connID, domain.EventFinalDataSent, entries)
	})
	if err != nil {
		return nil, err
	}

	if s.reports != nil {
		report := domain.Report{Pin: pin, Entries: entries, ExportedAt: s.opts.Clock.Now().UTC()}
		if err := s.reports.SaveReport(ctx, report); err != nil {
			log.Error().Err(err).Str("pin", pin).Msg("export report failed")
		}
	}
	return entries, nil
}

// Report returns the last exported report for pin.
func (s *QuizService) Report(ctx context.Context, pin string) (domain.Report, error) {
	if s.reports == nil {
		return domain.Report{}, domain.ErrReportNotFound
	}
	return s.reports.GetReport(ctx, pin)
}

func (s *QuizService) authorize(session *Session, connID string) error {
	if s.opts.EnforceInstructor && session.instructor != connID {
		return domain.ErrNotInstructor
	}
	return nil
}

func (s *QuizService) outboundQuestion(q domain.Question) domain.Question {
	if s.opts.HideCorrectOption {
		return q.Redacted()
	}
	return q
}
