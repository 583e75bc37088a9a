package api

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxRetryDelay = 30 * time.Second
	retryJitter   = 0.2
)

// backoff spaces the attempts of an idempotent request: the wait doubles
// from base up to max and is spread by ±jitter of itself.
type backoff struct {
	base   time.Duration
	max    time.Duration
	jitter float64
}

func newBackoff(base time.Duration) backoff {
	return backoff{base: base, max: maxRetryDelay, jitter: retryJitter}
}

// delay returns the wait before retry n, counting from zero.
func (b backoff) delay(n int) time.Duration {
	d := b.base
	for i := 0; i < n && d < b.max; i++ {
		d *= 2
	}
	d = min(d, b.max)

	if b.jitter > 0 {
		spread := float64(d) * b.jitter
		d = time.Duration(float64(d) - spread + rand.Float64()*2*spread)
	}
	return d
}

// sleep waits out delay(n) unless ctx ends first.
func (b backoff) sleep(ctx context.Context, n int) error {
	timer := time.NewTimer(b.delay(n))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shouldRetry reports whether a failed attempt with status gets another
// try. Only idempotent requests are retried, and only on the configured
// status codes.
func (c *Client) shouldRetry(idempotent bool, attempt, status int) bool {
	return idempotent && attempt < c.maxRetries && c.retryOn[status]
}
