package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func decodeHealth(t *testing.T, body []byte) healthResponse {
	t.Helper()
	var resp healthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantBody   healthResponse
	}{
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "postgres", Check: healthOK},
				{Name: "redis", Check: healthOK},
			},
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ready", Checks: map[string]string{"postgres": "ok", "redis": "ok"}},
		},
		{
			name: "redis down",
			checks: []HealthCheck{
				{Name: "postgres", Check: healthOK},
				{Name: "redis", Check: healthErr("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   healthResponse{Status: "unhealthy", Checks: map[string]string{"postgres": "ok", "redis": "connection refused"}},
		},
		{
			name: "both down",
			checks: []HealthCheck{
				{Name: "postgres", Check: healthErr("database unreachable")},
				{Name: "redis", Check: healthErr("redis circuit breaker open: circuit breaker is open")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody: healthResponse{Status: "unhealthy", Checks: map[string]string{
				"postgres": "database unreachable",
				"redis":    "redis circuit breaker open: circuit breaker is open",
			}},
		},
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ready"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, withHealthChecks(tt.checks...))
			c, rec := newContext(srv, http.MethodGet, "/health/ready")

			require.NoError(t, srv.handleReadiness(c))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, decodeHealth(t, rec.Body.Bytes()))
		})
	}
}

func TestHandleStartup_UsesDeadline(t *testing.T) {
	var deadline time.Time
	check := func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}
	srv := newTestServer(t, withHealthChecks(HealthCheck{Name: "postgres", Check: check}))
	c, rec := newContext(srv, http.MethodGet, "/health/startup")

	require.NoError(t, srv.handleStartup(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(startupProbeTimeout), deadline, time.Second)
}

func TestHandleLiveness(t *testing.T) {
	clock := clockwork.NewFakeClock()
	failing := HealthCheck{Name: "redis", Check: healthErr("down")}
	srv := newTestServer(t, withHealthChecks(failing), func(d *Deps) { d.Clock = clock })
	clock.Advance(90 * time.Second)

	c, rec := newContext(srv, http.MethodGet, "/health/live")
	require.NoError(t, srv.handleLiveness(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","uptime":90}`, rec.Body.String())
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(t)
	c, rec := newContext(srv, http.MethodGet, "/version")

	require.NoError(t, srv.handleVersion(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "insightpulse", info["service"])
	for _, key := range []string{"version", "commit", "build_time", "go_version"} {
		assert.Contains(t, info, key)
	}
}

func TestHealthRoutesAreRegistered(t *testing.T) {
	srv := newTestServer(t, withHealthChecks(HealthCheck{Name: "postgres", Check: healthOK}))

	for _, path := range []string{"/health/startup", "/health/live", "/health/ready", "/version"} {
		rec := doJSON(srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
