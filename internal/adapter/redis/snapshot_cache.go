package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pscheid92/insightpulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "insight:"

// SnapshotCache implements domain.SnapshotCache. Each entry is one JSON value
// written with SET EX, so readers never see a partial record.
type SnapshotCache struct {
	rdb goredis.Cmdable
}

func NewSnapshotCache(rdb goredis.Cmdable) *SnapshotCache {
	return &SnapshotCache{rdb: rdb}
}

func snapshotKey(industry string) string {
	return snapshotKeyPrefix + industry
}

func (c *SnapshotCache) Set(ctx context.Context, change *domain.InsightChange, ttl time.Duration) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal insight change: %w", err)
	}
	if err := c.rdb.Set(ctx, snapshotKey(change.Industry), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache insight for %s: %w", change.Industry, err)
	}
	return nil
}

func (c *SnapshotCache) Get(ctx context.Context, industry string) (*domain.InsightChange, bool, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(industry)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached insight for %s: %w", industry, err)
	}

	var change domain.InsightChange
	if err := json.Unmarshal(data, &change); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached insight for %s: %w", industry, err)
	}
	return &change, true, nil
}
