package httpserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterPruneAt  = 4096
	limiterIdleTime = 2 * time.Hour
)

// ipLimiter throttles one kind of action per client IP.
type ipLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*limitedClient
}

type limitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter allows n events per period per IP. n <= 0 disables the limit.
func newIPLimiter(n int, period time.Duration, now func() time.Time) *ipLimiter {
	if n <= 0 || period <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &ipLimiter{
		limit:   rate.Limit(float64(n) / period.Seconds()),
		burst:   n,
		now:     now,
		clients: make(map[string]*limitedClient),
	}
}

// Allow reports whether ip may act now. A nil limiter allows everything.
func (l *ipLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.clients) >= limiterPruneAt {
		for key, c := range l.clients {
			if now.Sub(c.lastSeen) > limiterIdleTime {
				delete(l.clients, key)
			}
		}
	}
	c, ok := l.clients[ip]
	if !ok {
		c = &limitedClient{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}
