package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/perkclaims/utils"
)

const limiterIdleTTL = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

var (
	limiters   = map[string]*rateLimiter{}
	limitersMu sync.Mutex
)

// RateLimitMiddleware applies a per client token bucket allowing perMinute
// requests. scope separates budgets, e.g. submissions from general API use.
// Authenticated callers are keyed by user ID, others by IP.
func RateLimitMiddleware(scope string, perMinute int) gin.HandlerFunc {
	perMinute = max(perMinute, 1)
	r := rate.Every(time.Minute / time.Duration(perMinute))
	burst := max(perMinute/2, 1)

	return func(ctx *gin.Context) {
		key := scope + ":ip:" + ctx.ClientIP()
		if uid := ctx.GetString(utils.ContextUserIDKey); uid != "" {
			key = scope + ":user:" + uid
		}

		if !getLimiter(key, r, burst).Allow() {
			ctx.Header("Retry-After", "60")
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

func getLimiter(key string, limit rate.Limit, burst int) *rate.Limiter {
	limitersMu.Lock()
	defer limitersMu.Unlock()

	cleanupExpiredLimitersLocked()

	if l, ok := limiters[key]; ok {
		l.expires = time.Now().Add(limiterIdleTTL)
		return l.limiter
	}

	l := &rateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		expires: time.Now().Add(limiterIdleTTL),
	}
	limiters[key] = l
	return l.limiter
}

func cleanupExpiredLimitersLocked() {
	now := time.Now()
	for key, l := range limiters {
		if now.After(l.expires) {
			delete(limiters, key)
		}
	}
}
