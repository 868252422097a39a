// internal/api/middleware/ratelimit.go
package middleware

import (
	"context"
	"net/http"
	"time"

	"internship-portal/internal/api/response"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/database"
	"internship-portal/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

// RedisLimiter is a fixed-window limiter shared by every API replica. It
// fails open when Redis is unavailable.
type RedisLimiter struct {
	client redis.Cmdable
	logger logger.Logger
}

func NewRedisLimiter(client redis.Cmdable, log logger.Logger) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{client: client, logger: log}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if l == nil || l.client == nil {
		return true
	}
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	allowed, err := database.Allow(ctx, l.client, "ratelimit:"+key, limit, window)
	if err != nil {
		l.logger.Warn("Rate limiter unavailable, allowing request", map[string]interface{}{"key": key, "error": err.Error()})
		return true
	}
	return allowed
}

// RateLimit keys requests with keyFn; an empty key is not limited.
func RateLimit(limiter Limiter, keyFn func(*http.Request) string, limit int, window time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(r.Context(), key, limit, window) {
				response.Error(w, apperrors.NewRateLimitedError(limit))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalKey builds a per-user limiter key under prefix.
func PrincipalKey(prefix string) func(*http.Request) string {
	return func(r *http.Request) string {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			return ""
		}
		return prefix + ":" + p.UserID
	}
}
