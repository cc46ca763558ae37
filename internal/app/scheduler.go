package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/insightpulse/internal/adapter/metrics"
	"github.com/pscheid92/insightpulse/internal/domain"
	"github.com/pscheid92/insightpulse/internal/platform/correlation"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSweepInterval    = 60 * time.Minute
	defaultSweepConcurrency = 4
	industryTimeout         = 30 * time.Second
)

type SchedulerConfig struct {
	Interval    time.Duration
	Concurrency int
}

// Scheduler recomputes every known industry on a fixed interval and pushes
// each change to the industry's room.
type Scheduler struct {
	insights    domain.InsightRepository
	computer    domain.InsightComputer
	broadcaster domain.InsightBroadcaster
	lock        domain.SweepLock
	clock       clockwork.Clock
	metrics     *metrics.SchedulerMetrics
	interval    time.Duration
	concurrency int
}

// NewScheduler creates a scheduler. lock may be nil when a single instance runs.
func NewScheduler(
	insights domain.InsightRepository,
	computer domain.InsightComputer,
	broadcaster domain.InsightBroadcaster,
	lock domain.SweepLock,
	clock clockwork.Clock,
	m *metrics.SchedulerMetrics,
	cfg SchedulerConfig,
) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSweepConcurrency
	}
	return &Scheduler{
		insights:    insights,
		computer:    computer,
		broadcaster: broadcaster,
		lock:        lock,
		clock:       clock,
		metrics:     m,
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
	}
}

// Run sweeps once per interval. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Scheduler started", "interval", s.interval, "concurrency", s.concurrency)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduler stopped")
			return
		case <-ticker.Chan():
			if err := s.Sweep(ctx); err != nil {
				slog.WarnContext(ctx, "Sweep failed", "error", err)
			}
		}
	}
}

// Sweep recomputes all industries. Per-industry failures are logged and skipped;
// an error is returned only when the sweep could not start.
func (s *Scheduler) Sweep(ctx context.Context) error {
	ctx, sweepID := correlation.WithNewID(ctx)
	start := s.clock.Now()

	if s.lock != nil {
		acquired, err := s.lock.TryAcquire(ctx)
		if err != nil {
			s.metrics.Sweeps.WithLabelValues("lock_error").Inc()
			return fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !acquired {
			s.metrics.Sweeps.WithLabelValues("skipped").Inc()
			slog.DebugContext(ctx, "Sweep owned by another instance")
			return nil
		}
	}

	listCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	industries, err := s.insights.ListIndustries(listCtx)
	cancel()
	if err != nil {
		s.metrics.Sweeps.WithLabelValues("error").Inc()
		return fmt.Errorf("list industries: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, industry := range industries {
		g.Go(func() error {
			s.sweepIndustry(ctx, sweepID, industry)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := s.clock.Since(start)
	s.metrics.Sweeps.WithLabelValues("completed").Inc()
	s.metrics.SweepDuration.Observe(elapsed.Seconds())
	slog.InfoContext(ctx, "Sweep completed", "industries", len(industries), "duration", elapsed)
	return nil
}

func (s *Scheduler) sweepIndustry(ctx context.Context, sweepID, industry string) {
	ctx, cancel := context.WithTimeout(correlation.WithID(ctx, correlation.NewID()), industryTimeout)
	defer cancel()

	change, err := s.computer.Compute(ctx, industry)
	if errors.Is(err, domain.ErrUnknownIndustry) {
		s.metrics.Computations.WithLabelValues("unknown").Inc()
		slog.DebugContext(ctx, "Industry vanished during sweep", "sweep_id", sweepID, "industry", industry)
		return
	}
	if err != nil {
		s.metrics.Computations.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "Compute failed", "sweep_id", sweepID, "industry", industry, "error", err)
		return
	}

	if err := s.broadcaster.BroadcastInsight(ctx, change); err != nil {
		s.metrics.Computations.WithLabelValues("broadcast_error").Inc()
		slog.WarnContext(ctx, "Broadcast failed", "sweep_id", sweepID, "industry", industry, "error", err)
		return
	}

	s.metrics.Computations.WithLabelValues("broadcast").Inc()
	slog.DebugContext(ctx, "Industry refreshed", "sweep_id", sweepID, "industry", industry, "growthRateDiff", change.GrowthRateDiff)
}

// Refresh recomputes one industry immediately and broadcasts the result.
// A failed broadcast is logged; the computed change is still returned.
func (s *Scheduler) Refresh(ctx context.Context, industry string) (*domain.InsightChange, error) {
	change, err := s.computer.Compute(ctx, industry)
	if err != nil {
		return nil, err
	}

	if err := s.broadcaster.BroadcastInsight(ctx, change); err != nil {
		slog.WarnContext(ctx, "Refresh broadcast failed", "industry", industry, "error", err)
	}
	return change, nil
}
