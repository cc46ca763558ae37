package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	ExternalAuthID string
	Email          string
	Name           *string
	Industry       *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserRepository is read-only: users are created by the external login sync.
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByExternalID(ctx context.Context, externalAuthID string) (*User, error)

	// GetUserIndustry returns ErrUserNotFound or ErrNoIndustryAssigned when
	// the user cannot be placed in a room.
	GetUserIndustry(ctx context.Context, userID uuid.UUID) (string, error)
}
