package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/insightpulse/internal/domain"
)

type InsightRepo struct {
	pool *pgxpool.Pool
}

var _ domain.InsightRepository = (*InsightRepo)(nil)

func NewInsightRepo(pool *pgxpool.Pool) *InsightRepo {
	return &InsightRepo{pool: pool}
}

const getInsightSQL = `
SELECT id, industry, growth_rate, demand_level, market_outlook, updated_at
FROM industry_insights
WHERE industry = $1`

func (r *InsightRepo) GetInsight(ctx context.Context, industry string) (*domain.Insight, error) {
	var (
		insight domain.Insight
		demand  string
	)
	err := r.pool.QueryRow(ctx, getInsightSQL, industry).Scan(
		&insight.ID, &insight.Industry, &insight.GrowthRate, &demand, &insight.MarketOutlook, &insight.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUnknownIndustry
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get insight: %w", err)
	}

	insight.DemandLevel = domain.DemandLevel(demand)
	return &insight, nil
}

// History rows tie on recorded_at when written within the same microsecond; id breaks the tie.
const getLatestHistorySQL = `
SELECT h.growth_rate, h.demand_level, h.market_outlook, h.recorded_at
FROM industry_insight_history h
JOIN industry_insights i ON i.id = h.industry_insight_id
WHERE i.industry = $1
ORDER BY h.recorded_at DESC, h.id DESC
LIMIT 1`

func (r *InsightRepo) GetLatestHistory(ctx context.Context, industry string) (*domain.InsightSnapshot, error) {
	var (
		snapshot domain.InsightSnapshot
		demand   string
	)
	err := r.pool.QueryRow(ctx, getLatestHistorySQL, industry).Scan(
		&snapshot.GrowthRate, &demand, &snapshot.MarketOutlook, &snapshot.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest history: %w", err)
	}

	snapshot.DemandLevel = domain.DemandLevel(demand)
	return &snapshot, nil
}

const appendHistorySQL = `
INSERT INTO industry_insight_history (industry_insight_id, growth_rate, demand_level, market_outlook, recorded_at)
SELECT id, $2, $3, $4, $5
FROM industry_insights
WHERE industry = $1`

func (r *InsightRepo) AppendHistory(ctx context.Context, industry string, snapshot domain.InsightSnapshot) error {
	tag, err := r.pool.Exec(ctx, appendHistorySQL,
		industry, snapshot.GrowthRate, string(snapshot.DemandLevel), snapshot.MarketOutlook, snapshot.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUnknownIndustry
	}
	return nil
}

func (r *InsightRepo) ListIndustries(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT industry FROM industry_insights ORDER BY industry")
	if err != nil {
		return nil, fmt.Errorf("failed to list industries: %w", err)
	}

	industries, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan industries: %w", err)
	}
	return industries, nil
}

const upsertInsightSQL = `
INSERT INTO industry_insights (industry, growth_rate, demand_level, market_outlook, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (industry) DO UPDATE SET
    growth_rate = EXCLUDED.growth_rate,
    demand_level = EXCLUDED.demand_level,
    market_outlook = EXCLUDED.market_outlook,
    updated_at = NOW()
RETURNING id, updated_at`

// UpsertInsight writes the current values for an industry, as the ingestion job does.
func (r *InsightRepo) UpsertInsight(ctx context.Context, insight *domain.Insight) error {
	err := r.pool.QueryRow(ctx, upsertInsightSQL,
		insight.Industry, insight.GrowthRate, string(insight.DemandLevel), insight.MarketOutlook,
	).Scan(&insight.ID, &insight.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert insight: %w", err)
	}
	return nil
}
