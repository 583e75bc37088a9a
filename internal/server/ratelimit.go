package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepEvery is how many Allow calls pass between idle-bucket sweeps.
const sweepEvery = 256

// identityLimiter keeps one token bucket per identity. Buckets idle for
// longer than idleTTL are dropped on the next sweep. A nil limiter allows
// everything.
type identityLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	buckets map[string]*bucket
	calls   uint64
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIdentityLimiter(rps float64, burst int, idleTTL time.Duration) *identityLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &identityLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one token from identity's bucket at now.
func (l *identityLimiter) Allow(identity string, now time.Time) bool {
	if l == nil || identity == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[identity] = b
	}
	b.seen = now
	ok = b.lim.AllowN(now, 1)

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}
	return ok
}

func (l *identityLimiter) sweep(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for id, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}

func (l *identityLimiter) size() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
