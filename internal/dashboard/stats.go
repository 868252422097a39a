// internal/dashboard/stats.go
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"internship-portal/internal/common/logger"
	"internship-portal/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "dashboard:payment-stats"

type StatsSource interface {
	Stats(ctx context.Context) ([]models.PaymentStats, error)
}

// Summary is the admin payment overview.
type Summary struct {
	ByStatus      []models.PaymentStats `json:"byStatus"`
	Pending       int64                 `json:"pending"`
	VerifiedTotal int64                 `json:"verifiedTotal"`
	Attempts      int64                 `json:"attempts"`
	GeneratedAt   time.Time             `json:"generatedAt"`
}

// Service serves the summary cache-aside from Redis. Redis failures fall
// back to the database.
type Service struct {
	source StatsSource
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewService(source StatsSource, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		source: source,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "dashboard"}),
		now:    time.Now,
	}
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			var cached Summary
			if jerr := json.Unmarshal([]byte(val), &cached); jerr == nil {
				return &cached, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("Stats cache read failed", map[string]interface{}{"error": err})
		}
	}

	stats, err := s.source.Stats(ctx)
	if err != nil {
		return nil, err
	}
	sum := summarize(stats, s.now().UTC())

	if s.redis != nil {
		data, _ := json.Marshal(sum)
		if err := s.redis.Set(ctx, cacheKey, data, s.ttl).Err(); err != nil {
			s.logger.Warn("Stats cache write failed", map[string]interface{}{"error": err})
		}
	}
	return sum, nil
}

// Invalidate drops the cached summary. It is registered on payment events so
// decisions show up before the TTL expires.
func (s *Service) Invalidate(ctx context.Context, ev models.OutboxEvent) error {
	if s.redis == nil {
		return nil
	}
	switch ev.EventType {
	case models.EventApplicationCreated, models.EventApplicationStatus:
		return nil
	}
	return s.redis.Del(ctx, cacheKey).Err()
}

var allStatuses = []models.PaymentRecordStatus{
	models.PaymentRecordPending,
	models.PaymentRecordVerified,
	models.PaymentRecordRejected,
	models.PaymentRecordDuplicate,
}

func summarize(stats []models.PaymentStats, at time.Time) *Summary {
	byStatus := make(map[models.PaymentRecordStatus]models.PaymentStats, len(stats))
	for _, st := range stats {
		byStatus[st.Status] = st
	}
	sum := &Summary{GeneratedAt: at, ByStatus: make([]models.PaymentStats, 0, len(allStatuses))}
	for _, status := range allStatuses {
		st, ok := byStatus[status]
		if !ok {
			st = models.PaymentStats{Status: status}
		}
		sum.ByStatus = append(sum.ByStatus, st)
		sum.Attempts += st.Count
	}
	sum.Pending = byStatus[models.PaymentRecordPending].Count
	sum.VerifiedTotal = byStatus[models.PaymentRecordVerified].TotalAmount
	return sum
}
