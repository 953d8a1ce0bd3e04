package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/server/auth"
)

// DefaultIdleTTL is how long a key's limiter survives without requests.
const DefaultIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter provides per-key rate limiting. Keys idle for longer than the
// idle TTL are evicted so the table stays bounded by active clients.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[string]*limiterEntry
	every     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter allowing perSecond requests per key
// with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 2
	}
	if burst <= 0 {
		burst = 5
	}
	return &RateLimiter{
		limits:  make(map[string]*limiterEntry),
		every:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	if entry, ok := rl.limits[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(rl.every, rl.burst)
	rl.limits[key] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// sweep drops idle keys at most once per idle TTL. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idleTTL {
		return
	}
	rl.lastSweep = now
	for key, entry := range rl.limits {
		if now.Sub(entry.lastSeen) >= rl.idleTTL {
			delete(rl.limits, key)
		}
	}
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// ActorKey keys requests by authenticated actor, falling back to the client IP.
func ActorKey(c echo.Context) string {
	if actor, ok := auth.GetActor(c.Request().Context()); ok {
		return fmt.Sprintf("user:%d", actor.UserID)
	}
	return "ip:" + c.RealIP()
}

// Middleware rejects requests over the limit with a RATE_LIMIT_EXCEEDED error
// written by respond.
func (rl *RateLimiter) Middleware(key func(echo.Context) string, respond func(echo.Context, error) error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(key(c)) {
				return respond(c, errors.RateLimitExceeded("too many requests, please slow down"))
			}
			return next(c)
		}
	}
}
