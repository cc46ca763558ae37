package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/insightpulse/internal/domain"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

var _ domain.UserRepository = (*UserRepo)(nil)

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = "id, external_auth_id, email, name, industry, created_at, updated_at"

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.ExternalAuthID, &u.Email, &u.Name, &u.Industry, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID))
}

func (r *UserRepo) GetByExternalID(ctx context.Context, externalAuthID string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE external_auth_id = $1", externalAuthID))
}

func (r *UserRepo) GetUserIndustry(ctx context.Context, userID uuid.UUID) (string, error) {
	var industry *string
	err := r.pool.QueryRow(ctx, "SELECT industry FROM users WHERE id = $1", userID).Scan(&industry)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user industry: %w", err)
	}
	if industry == nil || *industry == "" {
		return "", domain.ErrNoIndustryAssigned
	}
	return *industry, nil
}
