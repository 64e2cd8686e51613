package app

import (
	"sort"

	"github.com/Legit-prep/live-quiz-socket/internal/domain"
)

// ScoreRound awards points to every participant whose answer matches the
// round's correct option and returns each participant's private result.
// Scores are updated in place.
func ScoreRound(round domain.Round, participants map[string]*domain.Participant, points int) map[string]domain.QuestionResult {
	results := make(map[string]domain.QuestionResult, len(participants))
	for name, p := range participants {
		correct := p.Answered && p.Answer == round.Question.CorrectOption
		if correct {
			p.Score += points
		}
		results[name] = domain.QuestionResult{
			IsCorrect:     correct,
			NewScore:      p.Score,
			CorrectOption: round.Question.CorrectOption,
		}
	}
	return results
}

// Rank orders participants by score descending, then by name, and keeps the
// first limit entries. A limit of zero or less keeps everyone.
func Rank(participants map[string]*domain.Participant, limit int) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, domain.LeaderboardEntry{Name: p.Name, Score: p.Score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
