// internal/opportunities/closer.go
package opportunities

import (
	"context"
	"time"

	"internship-portal/internal/common/database"
	"internship-portal/internal/common/logger"
	"internship-portal/internal/common/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sweepLockKey = "lock:opportunities:sweep"

// Sweeper closes expired opportunities.
type Sweeper interface {
	CloseExpired(ctx context.Context, now time.Time) ([]string, error)
}

// Closer periodically runs the sweep. When a Redis client is configured only
// the replica holding the sweep lock runs a given tick; the sweep itself is
// idempotent, so a lost lock only costs a redundant UPDATE.
type Closer struct {
	sweeper  Sweeper
	redis    redis.Cmdable
	interval time.Duration
	lockTTL  time.Duration
	logger   logger.Logger
	now      func() time.Time
	instance string
}

func NewCloser(sweeper Sweeper, rdb redis.Cmdable, interval, lockTTL time.Duration, log logger.Logger) *Closer {
	return &Closer{
		sweeper:  sweeper,
		redis:    rdb,
		interval: interval,
		lockTTL:  lockTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "opportunity-closer"}),
		now:      time.Now,
		instance: uuid.NewString(),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (c *Closer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Closer) tick(ctx context.Context) {
	if _, err := c.SweepOnce(ctx); err != nil {
		c.logger.Error("Opportunity sweep failed", map[string]interface{}{"error": err.Error()})
	}
}

// SweepOnce closes expired opportunities and returns how many it closed.
func (c *Closer) SweepOnce(ctx context.Context) (int, error) {
	if c.redis != nil {
		lock, err := database.TryLock(ctx, c.redis, sweepLockKey, c.instance, c.lockTTL)
		if err != nil {
			c.logger.Warn("Sweep lock unavailable, sweeping without it", map[string]interface{}{"error": err.Error()})
		} else if lock == nil {
			c.logger.Debug("Another replica holds the sweep lock", nil)
			return 0, nil
		} else {
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					c.logger.Warn("Failed to release sweep lock", map[string]interface{}{"error": err.Error()})
				}
			}()
		}
	}

	ids, err := c.sweeper.CloseExpired(ctx, c.now().UTC())
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		metrics.OpportunitiesClosed.Add(float64(len(ids)))
		c.logger.Info("Closed expired opportunities", map[string]interface{}{
			"count": len(ids),
			"ids":   ids,
		})
	}
	return len(ids), nil
}
