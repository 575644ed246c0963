package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"robocomp/internal/common"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter kept in Redis.
type RateLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter counts up to limit hits per window. Windows are whole
// seconds; anything shorter than a second is rejected.
func NewRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) (*RateLimiter, error) {
	if window < time.Second {
		return nil, fmt.Errorf("rate limit window %s is shorter than one second", window)
	}
	return &RateLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window.Truncate(time.Second), now: time.Now}, nil
}

// Allow counts one hit against key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := rl.now()
	bucket := now.Unix() / int64(rl.window.Seconds())
	reset := time.Unix((bucket+1)*int64(rl.window.Seconds()), 0)
	windowKey := fmt.Sprintf("%sratelimit:%s:%d", rl.prefix, key, bucket)

	pipe := rl.rdb.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, reset, err
	}
	count := int(incr.Val())
	return count <= rl.limit, count, reset, nil
}

// RateLimit throttles each authenticated user on the wrapped routes. It must
// run after Identity. A nil limiter or a non-positive limit disables it.
// Redis failures let the request through.
func RateLimit(rl *RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil || rl.rdb == nil || rl.limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":anonymous"
			if user := UserFromContext(r.Context()); user != nil {
				key = scope + ":" + user.Email
			}
			allowed, count, reset, err := rl.Allow(r.Context(), key)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limit check failed, allowing request", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining := rl.limit - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(reset.Sub(rl.now()).Seconds())+1))
				common.RespondWithDomainError(w, r, common.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
