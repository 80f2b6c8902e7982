package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a set of token buckets keyed by name: one per alert channel,
// per manual-cycle caller and per symbol in the bar pipeline.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

// bucket remembers the configured rate; a zero-rate limiter spends its burst.
type bucket struct {
	lim    *rate.Limiter
	burst  int
	perSec float64
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{m: make(map[string]*bucket), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow returns true if one token can be consumed for key.
// A non-positive capacity disables limiting for that call.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	if capacity <= 0 {
		return true
	}
	burst := int(capacity)
	if burst < 1 {
		burst = 1
	}
	now := l.now()

	l.mu.Lock()
	b, ok := l.m[key]
	if !ok || b.burst != burst || b.perSec != refillPerSec {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(refillPerSec), burst), burst: burst, perSec: refillPerSec}
		l.m[key] = b
	}
	l.mu.Unlock()

	return b.lim.AllowN(now, 1)
}
