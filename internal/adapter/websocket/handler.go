package websocket

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/insightpulse/internal/platform/correlation"
)

// Handler upgrades requests to WebSocket connections and runs one Session per connection.
type Handler struct {
	upgrader websocket.Upgrader
	clock    clockwork.Clock
	limits   *ConnectionLimits
	deps     SessionDeps
}

// NewHandler creates the handler. limits may be nil to accept every connection.
func NewHandler(deps SessionDeps, limits *ConnectionLimits, checkOrigin func(*http.Request) bool, clock clockwork.Clock) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clock:  clock,
		limits: limits,
		deps:   deps,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := remoteIP(r)
	if h.limits != nil {
		ok, reason := h.limits.Acquire(ip)
		if !ok {
			h.deps.Metrics.ConnectionsDenied.WithLabelValues(string(reason)).Inc()
			slog.Warn("WebSocket connection rejected", "ip", ip, "reason", reason)
			status := http.StatusTooManyRequests
			if reason == LimitReasonGlobal {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, http.StatusText(status), status)
			return
		}
		defer h.limits.Release(ip)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		slog.Debug("WebSocket upgrade failed", "ip", ip, "error", err)
		return
	}

	client := NewClient(conn, h.clock)
	if err := h.deps.Registry.Register(client); err != nil {
		slog.Warn("WebSocket registration failed", "error", err)
		client.stop()
		return
	}

	h.deps.Metrics.ActiveConnections.Inc()
	defer h.deps.Metrics.ActiveConnections.Dec()

	ctx, _ := correlation.WithNewID(context.WithoutCancel(r.Context()))
	session := NewSession(client, h.deps)
	defer session.Close(ctx)

	slog.DebugContext(ctx, "WebSocket connected", "client", client.ID(), "ip", ip)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "WebSocket read failed", "client", client.ID(), "error", err)
			}
			return
		}
		session.HandleMessage(ctx, data)
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
