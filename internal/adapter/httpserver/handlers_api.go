package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/insightpulse/internal/domain"
	apperrors "github.com/pscheid92/insightpulse/internal/platform/errors"
)

type refreshResponse struct {
	Status  string                `json:"status"`
	Changes *domain.InsightChange `json:"changes"`
}

func (s *Server) registerAPIRoutes(limiter echo.MiddlewareFunc) {
	s.echo.POST("/api/insights/:industry/refresh", s.handleRefreshInsights, limiter)
}

// handleRefreshInsights recomputes one industry outside the schedule and
// broadcasts the result to its room.
func (s *Server) handleRefreshInsights(c echo.Context) error {
	industry := strings.TrimSpace(c.Param("industry"))
	if industry == "" {
		return apperrors.ValidationError("Industry is required")
	}

	change, err := s.refresher.Refresh(c.Request().Context(), industry)
	if errors.Is(err, domain.ErrUnknownIndustry) {
		return apperrors.NotFoundError("Industry not found").WithField("industry", industry)
	}
	if err != nil {
		return apperrors.InternalError("failed to refresh insights", err).WithField("industry", industry)
	}

	slog.InfoContext(c.Request().Context(), "Insights refreshed on demand", "industry", industry, "growth_rate_diff", change.GrowthRateDiff)

	if err := c.JSON(http.StatusOK, refreshResponse{Status: "success", Changes: change}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
