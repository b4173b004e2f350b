package flows

import (
	"context"
	"time"
)

// boundedContext applies the store operation timeout, if any.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// mutate runs a store write detached from the caller's cancellation, so a
// client that disconnects mid-request still has its failure recorded.
func mutate(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	c, cancel := boundedContext(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return fn(c)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
