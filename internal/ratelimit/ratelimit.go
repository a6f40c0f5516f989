// Package ratelimit provides the shared outbound rate limiter every
// injection (whether from inject, passive, or active) passes through
// before its payload is sent.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"ricochet.dev/ricochet/internal/rerrors"
)

// Limiter wraps golang.org/x/time/rate.Limiter with the single blocking
// Acquire method ricochet's senders need; there is exactly one shared
// limiter per process, since outbound pace toward the target is a global
// budget, not a per-vector one.
type Limiter struct {
	rl *rate.Limiter
}

// New builds a token-bucket limiter allowing requestsPerSecond steady
// state with burst headroom of burst.
func New(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Acquire blocks until a token is available or ctx is done. A context
// cancellation or deadline is surfaced as rerrors.ErrTimeout so callers can
// distinguish "the limiter would have blocked forever" from a store or
// network failure.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.rl.Wait(ctx); err != nil {
		return rerrors.TimeoutError(err, "waiting for rate limiter")
	}
	return nil
}
