package app

import (
	"context"
	"time"

	"github.com/Legit-prep/live-quiz-socket/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// EvictIdle drops sessions that saw no event for the configured idle TTL.
func (s *QuizService) EvictIdle(_ context.Context) []string {
	if s.opts.SessionIdleTTL <= 0 {
		return nil
	}
	evicted := s.sessions.EvictIdle(s.opts.Clock.Now(), s.opts.SessionIdleTTL)
	if len(evicted) > 0 {
		telemetry.ActiveSessions.Set(float64(s.sessions.Len()))
		log.Info().Strs("pins", evicted).Msg("evicted idle sessions")
	}
	return evicted
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (s *QuizService) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := s.opts.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			s.EvictIdle(ctx)
		}
	}
}
