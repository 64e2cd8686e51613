package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Legit-prep/live-quiz-socket/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ReportStore persists exported session reports as JSONB in Postgres.
type ReportStore struct {
	pool *pgxpool.Pool
}

func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// SaveReport upserts the report; a later export for the same pin replaces it.
func (s *ReportStore) SaveReport(ctx context.Context, report domain.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	const stmt = `
INSERT INTO session_reports (pin, data, exported_at)
VALUES ($1, $2::jsonb, $3)
ON CONFLICT (pin) DO UPDATE SET data = EXCLUDED.data, exported_at = EXCLUDED.exported_at`
	if _, err := s.pool.Exec(ctx, stmt, report.Pin, string(data), report.ExportedAt); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *ReportStore) LoadReport(ctx context.Context, pin string) (domain.Report, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM session_reports WHERE pin=$1`, pin).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Report{}, domain.ErrReportNotFound
	}
	if err != nil {
		return domain.Report{}, fmt.Errorf("load report: %w", err)
	}
	var report domain.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return domain.Report{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return report, nil
}

// GetReport satisfies app.ReportRepository when no cache is configured.
func (s *ReportStore) GetReport(ctx context.Context, pin string) (domain.Report, error) {
	return s.LoadReport(ctx, pin)
}
