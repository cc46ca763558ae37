package domain

import (
	"context"
	"time"
)

// SnapshotTTL is how long a computed change stays visible to joining clients.
const SnapshotTTL = 1 * time.Hour

// SnapshotCache holds the latest InsightChange per industry.
// A miss is reported as ok=false, never as an error.
type SnapshotCache interface {
	Set(ctx context.Context, change *InsightChange, ttl time.Duration) error
	Get(ctx context.Context, industry string) (*InsightChange, bool, error)
}
