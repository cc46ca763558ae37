package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/insightpulse/internal/platform/errors"
	"golang.org/x/time/rate"
)

const (
	visitorExpiry  = 5 * time.Minute
	typeRateLimit  = apperrors.ErrorType("rate_limited")
	rateLimitedMsg = "Too many requests"
)

// newRateLimiter throttles per client IP with a token bucket. Denied requests
// get a 429 in the usual error shape and a Retry-After hint.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(1 / ratePerSecond)))

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(ratePerSecond),
		Burst:     burst,
		ExpiresIn: visitorExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			slog.WarnContext(c.Request().Context(), "Rate limit exceeded", "ip", identifier, "path", c.Path())
			c.Response().Header().Set("Retry-After", retryAfter)
			return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{Error: rateLimitedMsg, Type: typeRateLimit})
		},
	})
}
