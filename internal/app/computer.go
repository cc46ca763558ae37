package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/insightpulse/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	storeTimeout = 5 * time.Second
	cacheTimeout = 2 * time.Second
)

// Computer implements domain.InsightComputer. Concurrent calls for the same
// industry share one computation.
type Computer struct {
	insights domain.InsightRepository
	cache    domain.SnapshotCache
	clock    clockwork.Clock
	group    singleflight.Group
}

func NewComputer(insights domain.InsightRepository, cache domain.SnapshotCache, clock clockwork.Clock) *Computer {
	return &Computer{insights: insights, cache: cache, clock: clock}
}

// Compute diffs the current insight against the newest history row, caches the
// change and appends the current values to the history.
// Returns domain.ErrUnknownIndustry without side effects when the industry has no insight.
//
// The shared computation runs detached from the caller's cancellation and is
// bounded by the store and cache timeouts alone. A caller whose context ends
// returns early while the computation completes for the others.
func (c *Computer) Compute(ctx context.Context, industry string) (*domain.InsightChange, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(industry, func() (any, error) {
		return c.compute(detached, industry)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		change := *res.Val.(*domain.InsightChange)
		return &change, nil
	}
}

func (c *Computer) compute(ctx context.Context, industry string) (*domain.InsightChange, error) {
	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	insight, err := c.insights.GetInsight(storeCtx, industry)
	if err != nil {
		return nil, fmt.Errorf("get insight %q: %w", industry, err)
	}

	// First observation has no baseline: the diff is the growth rate itself.
	diff := insight.GrowthRate
	previous, err := c.insights.GetLatestHistory(storeCtx, industry)
	switch {
	case err == nil:
		diff = insight.GrowthRate - previous.GrowthRate
	case !errors.Is(err, domain.ErrNoHistory):
		return nil, fmt.Errorf("get latest history %q: %w", industry, err)
	}

	change := &domain.InsightChange{
		Industry:       insight.Industry,
		GrowthRateDiff: diff,
		DemandLevel:    insight.DemandLevel,
		MarketOutlook:  insight.MarketOutlook,
		Message:        FormatMessage(insight.Industry, diff, insight.DemandLevel, insight.MarketOutlook),
	}

	cacheCtx, cancelCache := context.WithTimeout(ctx, cacheTimeout)
	defer cancelCache()
	if err := c.cache.Set(cacheCtx, change, domain.SnapshotTTL); err != nil {
		return nil, fmt.Errorf("cache change %q: %w", industry, err)
	}

	if err := c.insights.AppendHistory(storeCtx, industry, insight.Snapshot(c.clock.Now())); err != nil {
		return nil, fmt.Errorf("append history %q: %w", industry, err)
	}

	return change, nil
}

// FormatMessage renders the human-readable update line sent to subscribers.
func FormatMessage(industry string, diff float64, demand domain.DemandLevel, outlook string) string {
	direction := "decreased"
	if diff > 0 {
		direction = "increased"
	}
	return fmt.Sprintf("Industry Update for %s: Growth rate %s by %.2f%%. Demand is %s, outlook is %s.",
		industry, direction, math.Abs(diff), demand, outlook)
}
