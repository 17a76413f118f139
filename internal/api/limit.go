package api

import (
	"sync"
	"time"

	"github.com/warpdl/warpcas/internal/cache"
	"golang.org/x/time/rate"
)

// Limiter allows each id a fixed number of login attempts per minute. A nil
// Limiter allows everything.
type Limiter struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	window time.Duration
	users  *cache.TTL[string, *rate.Limiter]
}

// NewLimiter returns a limiter for perMinute attempts, or nil when perMinute
// is not positive.
func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		return nil
	}
	return &Limiter{
		limit:  rate.Every(time.Minute / time.Duration(perMinute)),
		burst:  perMinute,
		window: time.Minute,
		// an id idle for a whole window has its burst refilled anyway
		users: cache.NewTTL[string, *rate.Limiter](time.Minute),
	}
}

// Allow reports whether id may attempt a login now and consumes a token.
func (l *Limiter) Allow(id string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.users.Get(id)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	l.users.Set(id, lim)
	return lim.Allow()
}
