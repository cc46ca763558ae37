package domain

import "context"

// InsightBroadcaster pushes a change to every connection in the industry's room.
// Delivery is best-effort per connection.
type InsightBroadcaster interface {
	BroadcastInsight(ctx context.Context, change *InsightChange) error
}

// InsightComputer recomputes the change for one industry.
type InsightComputer interface {
	Compute(ctx context.Context, industry string) (*InsightChange, error)
}

// SweepLock lets a single instance own a sweep when several run side by side.
type SweepLock interface {
	TryAcquire(ctx context.Context) (bool, error)
}
