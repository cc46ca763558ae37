package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/insightpulse/internal/domain"
	apperrors "github.com/pscheid92/insightpulse/internal/platform/errors"
)

type loginRequest struct {
	ExternalUserID string `json:"externalUserId"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) registerAuthRoutes(limiter echo.MiddlewareFunc) {
	s.echo.POST("/login", s.handleLogin, limiter)
}

// handleLogin exchanges an external auth ID, already verified by the identity
// provider in front of this service, for a short-lived websocket token.
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	externalID := strings.TrimSpace(req.ExternalUserID)
	if externalID == "" {
		return apperrors.ValidationError("externalUserId is required")
	}

	user, err := s.users.GetByExternalID(c.Request().Context(), externalID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return apperrors.NotFoundError("User not found")
	}
	if err != nil {
		return apperrors.InternalError("failed to load user", err)
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return apperrors.InternalError("failed to issue token", err).WithField("user_id", user.ID.String())
	}

	if err := c.JSON(http.StatusOK, loginResponse{Token: token}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
