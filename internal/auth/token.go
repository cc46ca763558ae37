package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/insightpulse/internal/domain"
)

const TokenTTL = 1 * time.Hour

var validMethods = []string{jwt.SigningMethodHS256.Alg()}

type Verifier struct {
	secret []byte
	clock  clockwork.Clock
}

func NewVerifier(secret string, clock clockwork.Clock) *Verifier {
	return &Verifier{secret: []byte(secret), clock: clock}
}

// Verify returns the user ID carried by token. Failures map onto
// domain.ErrAuthRequired, domain.ErrTokenExpired and domain.ErrTokenInvalid.
func (v *Verifier) Verify(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, domain.ErrAuthRequired
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, v.key,
		jwt.WithValidMethods(validMethods),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, domain.ErrTokenExpired
	default:
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject: %v", domain.ErrTokenInvalid, err)
	}
	return userID, nil
}

func (v *Verifier) key(*jwt.Token) (any, error) {
	return v.secret, nil
}

type Issuer struct {
	secret []byte
	clock  clockwork.Clock
}

func NewIssuer(secret string, clock clockwork.Clock) *Issuer {
	return &Issuer{secret: []byte(secret), clock: clock}
}

func (i *Issuer) Issue(userID uuid.UUID) (string, error) {
	now := i.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
