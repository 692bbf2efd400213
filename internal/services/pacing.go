package services

import (
	"context"
	"time"
)

// Pacer enforces a fixed inter-request delay for one tenant's
// upstream budget. Tenants run concurrently, each with its own
// pacer; within a tenant every upstream call goes through Wait
// first.
type Pacer struct {
	delay time.Duration
	last  time.Time
}

func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay}
}

// Wait blocks until at least the configured delay has passed since
// the previous call, honoring context cancellation. The first call
// never waits.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay <= 0 || p.last.IsZero() {
		p.last = time.Now()
		return nil
	}

	elapsed := time.Since(p.last)
	if remaining := p.delay - elapsed; remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	p.last = time.Now()
	return nil
}
