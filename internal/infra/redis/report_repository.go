package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Legit-prep/live-quiz-socket/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ReportBackend is the durable store behind the cache (e.g., Postgres).
type ReportBackend interface {
	SaveReport(ctx context.Context, report domain.Report) error
	LoadReport(ctx context.Context, pin string) (domain.Report, error)
}

// ReportRepository caches exported reports in Redis and writes through to a
// backend. Reports are stored as JSON: SET report:{pin} {json} EX ttl.
type ReportRepository struct {
	client  *redis.Client
	backend ReportBackend
	ttl     time.Duration
	sf      singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewReportRepository(client *redis.Client, backend ReportBackend, ttl time.Duration) *ReportRepository {
	return &ReportRepository{
		client:  client,
		backend: backend,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ReportRepository) SaveReport(ctx context.Context, report domain.Report) error {
	if err := r.backend.SaveReport(ctx, report); err != nil {
		return err
	}
	r.cache(ctx, report)
	return nil
}

func (r *ReportRepository) GetReport(ctx context.Context, pin string) (domain.Report, error) {
	if report, ok := r.cached(ctx, pin); ok {
		return report, nil
	}

	result, err, _ := r.sf.Do(pin, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if report, ok := r.cached(ctx, pin); ok {
			return report, nil
		}
		report, err := r.backend.LoadReport(ctx, pin)
		if err != nil {
			return domain.Report{}, err
		}
		r.cache(ctx, report)
		return report, nil
	})
	if err != nil {
		return domain.Report{}, err
	}
	return result.(domain.Report), nil
}

func (r *ReportRepository) cached(ctx context.Context, pin string) (domain.Report, bool) {
	raw, err := r.client.Get(ctx, r.key(pin)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("pin", pin).Msg("redis: read report cache failed")
		}
		return domain.Report{}, false
	}
	var report domain.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		log.Warn().Err(err).Str("pin", pin).Msg("redis: corrupt report cache entry")
		return domain.Report{}, false
	}
	return report, true
}

func (r *ReportRepository) cache(ctx context.Context, report domain.Report) {
	data, err := json.Marshal(report)
	if err != nil {
		log.Warn().Err(fmt.Errorf("marshal report: %w", err)).Str("pin", report.Pin).Msg("redis: skip report cache")
		return
	}
	if err := r.client.Set(ctx, r.key(report.Pin), data, r.ttlWithJitter()).Err(); err != nil {
		log.Warn().Err(err).Str("pin", report.Pin).Msg("redis: write report cache failed")
	}
}

func (r *ReportRepository) key(pin string) string {
	return "report:" + pin
}

func (r *ReportRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
