// internal/outbox/relay.go
package outbox

import (
	"context"
	"database/sql"
	"time"

	"internship-portal/internal/common/database"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/metrics"
	"internship-portal/internal/models"
)

// Publisher delivers one event downstream. Delivery is at-least-once, so
// consumers must tolerate repeats.
type Publisher interface {
	Publish(ctx context.Context, e models.OutboxEvent) error
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
}

// Relay drains outbox_events into a Publisher.
type Relay struct {
	db        *sql.DB
	publisher Publisher
	cfg       RelayConfig
	logger    logger.Logger
	now       func() time.Time
}

func NewRelay(db *sql.DB, publisher Publisher, cfg RelayConfig, log logger.Logger) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Relay{
		db:        db,
		publisher: publisher,
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "outbox-relay"}),
		now:       time.Now,
	}
}

func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Outbox relay poll failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// RunOnce relays one batch and returns how many events were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	published := 0
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		store := NewStore(tx)
		now := r.now().UTC()

		events, err := store.FetchDue(ctx, now, r.cfg.BatchSize)
		if err != nil {
			return err
		}
		metrics.OutboxBacklog.Set(float64(len(events)))

		for _, e := range events {
			if pubErr := r.publisher.Publish(ctx, e); pubErr != nil {
				attempt := e.Attempts + 1
				dead := attempt >= r.cfg.MaxAttempts
				if err := store.MarkFailed(ctx, e.ID, pubErr.Error(), now.Add(Backoff(r.cfg.BaseBackoff, attempt)), dead); err != nil {
					return err
				}
				result := "retry"
				if dead {
					result = "dead"
				}
				metrics.OutboxPublished.WithLabelValues(string(e.EventType), result).Inc()
				r.logger.Warn("Outbox publish failed", map[string]interface{}{
					"eventId":   e.ID,
					"eventType": e.EventType,
					"attempt":   attempt,
					"dead":      dead,
					"error":     pubErr.Error(),
				})
				continue
			}
			if err := store.MarkPublished(ctx, e.ID, now); err != nil {
				return err
			}
			metrics.OutboxPublished.WithLabelValues(string(e.EventType), "ok").Inc()
			published++
		}
		return nil
	})
	return published, err
}

// Backoff doubles base per attempt, capped at one hour.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= time.Hour {
			return time.Hour
		}
	}
	return d
}
