package app

import (
	"time"

	"github.com/Legit-prep/live-quiz-socket/internal/domain"
)

// CatchUp returns the question a participant joining at now should see, with
// its time replaced by the whole seconds left until the deadline (rounded
// up). Closed or elapsed rounds yield nothing.
func CatchUp(round *domain.Round, now time.Time) (domain.Question, bool) {
	if round == nil || !round.Active || !round.Deadline.After(now) {
		return domain.Question{}, false
	}
	remaining := round.Deadline.Sub(now)
	seconds := int((remaining + time.Second - 1) / time.Second)
	return round.Question.WithTime(seconds), true
}
