package jobs

import (
	"context"
	"time"
)

type softDeadlineKey struct{}

// WithSoftDeadline marks the point after which a sweep should stop
// starting new outbound work and wind down. The hard limit is enforced
// separately through context cancellation.
func WithSoftDeadline(ctx context.Context, limit time.Duration) context.Context {
	return context.WithValue(ctx, softDeadlineKey{}, time.Now().Add(limit))
}

// SoftExpired reports whether the sweep passed its soft deadline.
func SoftExpired(ctx context.Context) bool {
	deadline, ok := ctx.Value(softDeadlineKey{}).(time.Time)
	if !ok {
		return false
	}
	return time.Now().After(deadline)
}

// pause sleeps for d unless the context ends first. Reports whether
// the full pause elapsed.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
