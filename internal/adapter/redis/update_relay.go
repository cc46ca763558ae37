package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/insightpulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	updatesChannel = "insights:updates"
	publishTimeout = 2 * time.Second
)

// UpdateRelay implements domain.InsightBroadcaster across instances: a broadcast
// is published once and every subscribed instance delivers it to its local rooms.
type UpdateRelay struct {
	rdb   *goredis.Client
	local domain.InsightBroadcaster
}

func NewUpdateRelay(rdb *goredis.Client, local domain.InsightBroadcaster) *UpdateRelay {
	return &UpdateRelay{rdb: rdb, local: local}
}

func (r *UpdateRelay) BroadcastInsight(ctx context.Context, change *domain.InsightChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal insight change: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, updatesChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish insight update: %w", err)
	}
	return nil
}

// Run delivers relayed updates to the local broadcaster. Blocks until ctx is
// cancelled. ready, if non-nil, is closed once the subscription is confirmed.
func (r *UpdateRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := r.rdb.Subscribe(ctx, updatesChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", updatesChannel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *UpdateRelay) deliver(ctx context.Context, payload string) {
	var change domain.InsightChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		slog.WarnContext(ctx, "Invalid insight update on relay", "error", err)
		return
	}
	if err := r.local.BroadcastInsight(ctx, &change); err != nil {
		slog.WarnContext(ctx, "Local delivery of relayed update failed", "industry", change.Industry, "error", err)
	}
}
