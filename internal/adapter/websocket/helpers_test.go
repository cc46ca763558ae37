package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/insightpulse/internal/adapter/memory"
	"github.com/pscheid92/insightpulse/internal/adapter/metrics"
	"github.com/pscheid92/insightpulse/internal/auth"
	"github.com/pscheid92/insightpulse/internal/domain"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16"

func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(func() { srv.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(clockwork.NewRealClock(), metrics.NewWebSocketMetrics(prometheus.NewRegistry()))
	t.Cleanup(r.Stop)
	return r
}

// newTestClient returns a registry-ready Client and the peer connection that reads its frames.
func newTestClient(t *testing.T) (*Client, *ws.Conn) {
	t.Helper()
	server, peer := newTestConnPair(t)
	client := NewClient(server, clockwork.NewRealClock())
	t.Cleanup(client.stop)
	return client, peer
}

type envelope struct {
	Event          string  `json:"event"`
	Industry       string  `json:"industry"`
	Message        string  `json:"message"`
	GrowthRateDiff float64 `json:"growthRateDiff"`
	DemandLevel    string  `json:"demandLevel"`
	MarketOutlook  string  `json:"marketOutlook"`
}

func readEnvelope(t *testing.T, conn *ws.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

// expectSilence asserts that nothing arrives on conn within a short window.
func expectSilence(t *testing.T, conn *ws.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", data)
}

type testEnv struct {
	store    *memory.Store
	cache    *memory.Cache
	registry *Registry
	issuer   *auth.Issuer
	clock    clockwork.Clock
	metrics  *metrics.WebSocketMetrics
	handler  *Handler
	server   *httptest.Server
}

type envOption func(*SessionDeps)

func withComputer(c domain.InsightComputer) envOption {
	return func(d *SessionDeps) { d.Computer = c }
}

func withSnapshots(c domain.SnapshotCache) envOption {
	return func(d *SessionDeps) { d.Snapshots = c }
}

// withRoomBroadcast broadcasts join-time computations through the local registry.
func withRoomBroadcast() envOption {
	return func(d *SessionDeps) { d.Broadcaster = d.Registry }
}

func newTestEnv(t *testing.T, limits *ConnectionLimits, opts ...envOption) *testEnv {
	t.Helper()
	clock := clockwork.NewRealClock()
	reg := prometheus.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(reg)

	env := &testEnv{
		store:   memory.NewStore(),
		cache:   memory.NewCache(clock),
		issuer:  auth.NewIssuer(testSecret, clock),
		clock:   clock,
		metrics: wsMetrics,
	}
	env.registry = NewRegistry(clock, wsMetrics)
	t.Cleanup(env.registry.Stop)

	deps := SessionDeps{
		Verifier:     auth.NewVerifier(testSecret, clock),
		Users:        env.store,
		Snapshots:    env.cache,
		Registry:     env.registry,
		Metrics:      wsMetrics,
		CacheMetrics: metrics.NewCacheMetrics(reg),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	env.handler = NewHandler(deps, limits, func(*http.Request) bool { return true }, clock)
	env.server = httptest.NewServer(env.handler)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) dial(t *testing.T) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *testEnv) userWithIndustry(t *testing.T, industry string) string {
	t.Helper()
	user := domain.User{ExternalAuthID: uuid.NewString()}
	if industry != "" {
		user.Industry = &industry
	}
	user = e.store.PutUser(user)

	token, err := e.issuer.Issue(user.ID)
	require.NoError(t, err)
	return token
}

func sendJoin(t *testing.T, conn *ws.Conn, token string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"event": EventJoinInsights, "token": token}))
}

func waitForRoomSize(r *Registry, industry string, expected int) bool {
	for range 200 {
		if r.RoomSize(industry) == expected {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func cacheChange(t *testing.T, cache domain.SnapshotCache, change domain.InsightChange) {
	t.Helper()
	require.NoError(t, cache.Set(context.Background(), &change, domain.SnapshotTTL))
}
