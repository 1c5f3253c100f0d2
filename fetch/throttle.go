package fetch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// throttle bounds how many requests are in flight and how often a new one
// may start.
type throttle struct {
	tokens  chan struct{}
	limiter *rate.Limiter
}

func newThrottle(perMinute, concurrency int) *throttle {
	perMinute = max(perMinute, 1)
	concurrency = max(concurrency, 1)
	t := &throttle{
		tokens:  make(chan struct{}, concurrency),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
	for i := 0; i < concurrency; i++ {
		t.tokens <- struct{}{}
	}
	return t
}

// acquire takes a concurrency token. The returned func gives it back.
func (t *throttle) acquire(ctx context.Context) (func(), error) {
	select {
	case <-t.tokens:
		return func() { t.tokens <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *throttle) wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
