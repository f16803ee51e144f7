package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused per-submitter limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type submitterLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SubmitterRateLimiter hands out one token bucket per submitter id.
type SubmitterRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*submitterLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewSubmitterRateLimiter allows perMinute requests per submitter, with a burst of the same size.
// A non-positive perMinute disables limiting.
func NewSubmitterRateLimiter(perMinute int) *SubmitterRateLimiter {
	rl := &SubmitterRateLimiter{
		limiters: make(map[string]*submitterLimiter),
		limit:    rate.Inf,
		burst:    1,
		now:      time.Now,
	}
	if perMinute > 0 {
		rl.limit = rate.Limit(float64(perMinute) / 60)
		rl.burst = perMinute
	}
	return rl
}

// Allow reports whether the submitter may make another request now.
func (rl *SubmitterRateLimiter) Allow(submitter string) bool {
	if rl.limit == rate.Inf {
		return true
	}

	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterIdleTTL {
		for id, l := range rl.limiters {
			if now.Sub(l.lastSeen) > limiterIdleTTL {
				delete(rl.limiters, id)
			}
		}
		rl.lastSweep = now
	}
	l, ok := rl.limiters[submitter]
	if !ok {
		l = &submitterLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[submitter] = l
	}
	l.lastSeen = now
	rl.mu.Unlock()

	return l.limiter.AllowN(now, 1)
}

// RateLimitSubmitter returns middleware limiting requests per submitter.
// It must run after RequireSubmitter.
func RateLimitSubmitter(rl *SubmitterRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(GetSubmitterFromContext(r.Context())) {
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.retryAfter().Seconds())))
				writeError(w, http.StatusTooManyRequests, "too many submissions, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfter is the time until one token is refilled, at least one second.
func (rl *SubmitterRateLimiter) retryAfter() time.Duration {
	d := time.Duration(float64(time.Second) / float64(rl.limit))
	if d < time.Second {
		return time.Second
	}
	return d.Round(time.Second)
}
