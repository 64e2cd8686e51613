package memory

import (
	"context"
	"sync"

	"github.com/Legit-prep/live-quiz-socket/internal/domain"
)

// ReportStore keeps exported reports in a map (useful for tests/demos and
// when no database is configured).
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]domain.Report
}

func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string]domain.Report)}
}

func (s *ReportStore) SaveReport(_ context.Context, report domain.Report) error {
	entries := make([]domain.LeaderboardEntry, len(report.Entries))
	copy(entries, report.Entries)
	report.Entries = entries

	s.mu.Lock()
	s.reports[report.Pin] = report
	s.mu.Unlock()
	return nil
}

func (s *ReportStore) GetReport(_ context.Context, pin string) (domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if report, ok := s.reports[pin]; ok {
		return report, nil
	}
	return domain.Report{}, domain.ErrReportNotFound
}

// LoadReport lets the store back a cache as its loader.
func (s *ReportStore) LoadReport(ctx context.Context, pin string) (domain.Report, error) {
	return s.GetReport(ctx, pin)
}
