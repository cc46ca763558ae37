package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/insightpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertUser(t *testing.T, pool *pgxpool.Pool, externalID string, industry *string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		"INSERT INTO users (external_auth_id, email, industry) VALUES ($1, $2, $3) RETURNING id",
		externalID, externalID+"@example.com", industry,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedInsight(t *testing.T, repo *InsightRepo, industry string, growth float64) *domain.Insight {
	t.Helper()
	insight := &domain.Insight{Industry: industry, GrowthRate: growth, DemandLevel: domain.DemandHigh, MarketOutlook: "Positive"}
	require.NoError(t, repo.UpsertInsight(context.Background(), insight))
	require.NotEqual(t, uuid.Nil, insight.ID)
	return insight
}

func TestInsightRepo_GetInsight(t *testing.T) {
	repo := NewInsightRepo(setupTestDB(t))
	ctx := context.Background()

	seeded := seedInsight(t, repo, "Tech", 5.5)

	got, err := repo.GetInsight(ctx, "Tech")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)
	assert.InDelta(t, 5.5, got.GrowthRate, 1e-9)
	assert.Equal(t, domain.DemandHigh, got.DemandLevel)
	assert.Equal(t, "Positive", got.MarketOutlook)

	_, err = repo.GetInsight(ctx, "Nonexistent")
	assert.ErrorIs(t, err, domain.ErrUnknownIndustry)
}

func TestInsightRepo_UpsertKeepsIdentity(t *testing.T) {
	repo := NewInsightRepo(setupTestDB(t))

	first := seedInsight(t, repo, "Tech", 5)
	second := seedInsight(t, repo, "Tech", 3)

	assert.Equal(t, first.ID, second.ID)
	got, err := repo.GetInsight(context.Background(), "Tech")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got.GrowthRate, 1e-9)
}

func TestInsightRepo_History(t *testing.T) {
	repo := NewInsightRepo(setupTestDB(t))
	ctx := context.Background()
	seedInsight(t, repo, "Tech", 5)

	_, err := repo.GetLatestHistory(ctx, "Tech")
	assert.ErrorIs(t, err, domain.ErrNoHistory)

	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AppendHistory(ctx, "Tech", domain.InsightSnapshot{GrowthRate: 5, DemandLevel: domain.DemandHigh, MarketOutlook: "Positive", RecordedAt: at}))
	require.NoError(t, repo.AppendHistory(ctx, "Tech", domain.InsightSnapshot{GrowthRate: 3, DemandLevel: domain.DemandLow, MarketOutlook: "Negative", RecordedAt: at.Add(time.Hour)}))

	latest, err := repo.GetLatestHistory(ctx, "Tech")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, latest.GrowthRate, 1e-9)
	assert.Equal(t, domain.DemandLow, latest.DemandLevel)
	assert.True(t, latest.RecordedAt.Equal(at.Add(time.Hour)))
}

func TestInsightRepo_HistoryTieBrokenByInsertOrder(t *testing.T) {
	repo := NewInsightRepo(setupTestDB(t))
	ctx := context.Background()
	seedInsight(t, repo, "Tech", 5)

	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AppendHistory(ctx, "Tech", domain.InsightSnapshot{GrowthRate: 1, DemandLevel: domain.DemandHigh, RecordedAt: at}))
	require.NoError(t, repo.AppendHistory(ctx, "Tech", domain.InsightSnapshot{GrowthRate: 2, DemandLevel: domain.DemandHigh, RecordedAt: at}))

	latest, err := repo.GetLatestHistory(ctx, "Tech")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, latest.GrowthRate, 1e-9)
}

func TestInsightRepo_AppendHistoryUnknownIndustry(t *testing.T) {
	repo := NewInsightRepo(setupTestDB(t))

	err := repo.AppendHistory(context.Background(), "Nonexistent", domain.InsightSnapshot{DemandLevel: domain.DemandLow, RecordedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrUnknownIndustry)
}

func TestInsightRepo_ListIndustries(t *testing.T) {
	repo := NewInsightRepo(setupTestDB(t))

	industries, err := repo.ListIndustries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, industries)

	seedInsight(t, repo, "Tech", 1)
	seedInsight(t, repo, "Finance", 2)

	industries, err = repo.ListIndustries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Finance", "Tech"}, industries)
}

func TestUserRepo_Lookups(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()

	tech := "Tech"
	withIndustry := insertUser(t, pool, "ext-1", &tech)
	without := insertUser(t, pool, "ext-2", nil)

	user, err := repo.GetByID(ctx, withIndustry)
	require.NoError(t, err)
	assert.Equal(t, "ext-1", user.ExternalAuthID)
	assert.Equal(t, "ext-1@example.com", user.Email)
	require.NotNil(t, user.Industry)
	assert.Equal(t, "Tech", *user.Industry)

	user, err = repo.GetByExternalID(ctx, "ext-2")
	require.NoError(t, err)
	assert.Equal(t, without, user.ID)
	assert.Nil(t, user.Industry)

	industry, err := repo.GetUserIndustry(ctx, withIndustry)
	require.NoError(t, err)
	assert.Equal(t, "Tech", industry)

	_, err = repo.GetUserIndustry(ctx, without)
	assert.ErrorIs(t, err, domain.ErrNoIndustryAssigned)

	_, err = repo.GetUserIndustry(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.GetByExternalID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
