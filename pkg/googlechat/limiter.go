package googlechat

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter bounds outbound Google API calls across every account:
// at most `concurrency` in flight, at most `qps` started per second,
// each call cut off after `timeout`.
type Limiter struct {
	slots   *semaphore.Weighted
	rate    *rate.Limiter
	timeout time.Duration
}

func NewLimiter(concurrency int, qps float64, timeout time.Duration) *Limiter {
	if concurrency <= 0 {
		concurrency = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := &Limiter{
		slots:   semaphore.NewWeighted(int64(concurrency)),
		timeout: timeout,
	}
	if qps > 0 {
		l.rate = rate.NewLimiter(rate.Limit(qps), concurrency)
	}
	return l
}

// Do runs fn holding one slot, with a per-call deadline
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.slots.Release(1)

	if l.rate != nil {
		if err := l.rate.Wait(ctx); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return fn(callCtx)
}
