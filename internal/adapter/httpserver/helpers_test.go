package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/insightpulse/internal/adapter/memory"
	"github.com/pscheid92/insightpulse/internal/domain"
	"github.com/pscheid92/insightpulse/internal/platform/config"
)

type mockRefresher struct {
	refreshFn func(ctx context.Context, industry string) (*domain.InsightChange, error)
	calls     []string
}

func (m *mockRefresher) Refresh(ctx context.Context, industry string) (*domain.InsightChange, error) {
	m.calls = append(m.calls, industry)
	if m.refreshFn != nil {
		return m.refreshFn(ctx, industry)
	}
	return &domain.InsightChange{Industry: industry}, nil
}

type mockIssuer struct {
	token string
	err   error
	got   uuid.UUID
}

func (m *mockIssuer) Issue(userID uuid.UUID) (string, error) {
	m.got = userID
	return m.token, m.err
}

type serverOption func(*Deps)

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(d *Deps) { d.HealthChecks = checks }
}

func withRefresher(r insightRefresher) serverOption {
	return func(d *Deps) { d.Refresher = r }
}

func withIssuer(i tokenIssuer) serverOption {
	return func(d *Deps) { d.Issuer = i }
}

func withUsers(u domain.UserRepository) serverOption {
	return func(d *Deps) { d.Users = u }
}

func newTestServer(t *testing.T, opts ...serverOption) *Server {
	t.Helper()

	deps := Deps{
		Users:     memory.NewStore(),
		Issuer:    &mockIssuer{token: "signed"},
		Refresher: &mockRefresher{},
		Clock:     clockwork.NewFakeClock(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return NewServer(&config.Config{Port: "0"}, deps)
}

func newContext(srv *Server, method, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return srv.echo.NewContext(req, rec), rec
}

func doJSON(srv http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
