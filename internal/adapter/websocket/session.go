package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/insightpulse/internal/adapter/metrics"
	"github.com/pscheid92/insightpulse/internal/domain"
)

const (
	lookupTimeout = 5 * time.Second
	cacheTimeout  = 2 * time.Second
)

type State int

const (
	StateConnected State = iota
	StateAuthenticating
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Client-facing error texts.
const (
	msgAuthRequired = "Authentication required"
	msgTokenExpired = "Token has expired"
	msgInvalidToken = "Invalid token"
	msgNoIndustry   = "No industry specified"
	msgJoinFailed   = "Join failed, please retry"
)

// TokenVerifier resolves a bearer credential to an internal user id.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// SessionDeps are shared by every session of a handler.
type SessionDeps struct {
	Verifier     TokenVerifier
	Users        domain.UserRepository
	Snapshots    domain.SnapshotCache
	Registry     *Registry
	Metrics      *metrics.WebSocketMetrics
	CacheMetrics *metrics.CacheMetrics
	// Computer, when set, fills a cache miss on join with a fresh computation.
	Computer domain.InsightComputer
	// Broadcaster, when set, sends a change computed on join to the whole room.
	Broadcaster domain.InsightBroadcaster
}

// Session is the join protocol of one connection:
// Connected -> Authenticating -> Joined -> Disconnected.
// A failed join returns to the state the session was in before the attempt.
type Session struct {
	deps   SessionDeps
	client *Client

	mu         sync.Mutex
	state      State
	userID     uuid.UUID
	industries []string
}

func NewSession(client *Client, deps SessionDeps) *Session {
	return &Session{deps: deps, client: client, state: StateConnected}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Industries returns the rooms this session has joined, in join order.
func (s *Session) Industries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.industries...)
}

// HandleMessage processes one inbound frame. Frames after Close are ignored.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) {
	if s.State() == StateDisconnected {
		return
	}

	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.DebugContext(ctx, "Ignoring malformed frame", "client", s.client.ID(), "error", err)
		return
	}

	switch msg.Event {
	case EventJoinInsights, "":
		s.join(ctx, msg.Token)
	default:
		slog.DebugContext(ctx, "Ignoring unknown event", "client", s.client.ID(), "event", msg.Event)
	}
}

func (s *Session) join(ctx context.Context, rawToken json.RawMessage) {
	previous := s.transition(StateAuthenticating)

	token, err := decodeToken(rawToken)
	if err != nil {
		s.fail(ctx, previous, "auth_failed", msgInvalidToken, err)
		return
	}

	userID, err := s.deps.Verifier.Verify(token)
	if err != nil {
		s.fail(ctx, previous, "auth_failed", clientMessage(err), err)
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	industry, err := s.deps.Users.GetUserIndustry(lookupCtx, userID)
	cancel()
	if err != nil {
		result := "no_industry"
		if clientMessage(err) == msgJoinFailed {
			result = "error"
		}
		s.fail(ctx, previous, result, clientMessage(err), err)
		return
	}

	if err := s.deps.Registry.Join(s.client, industry); err != nil {
		s.fail(ctx, previous, "error", msgJoinFailed, err)
		return
	}

	s.mu.Lock()
	s.state = StateJoined
	s.userID = userID
	if !slices.Contains(s.industries, industry) {
		s.industries = append(s.industries, industry)
	}
	s.mu.Unlock()

	s.sendCurrentInsight(ctx, industry)
	s.send(ctx, encodeJoined(industry))

	s.deps.Metrics.Joins.WithLabelValues("success").Inc()
	slog.InfoContext(ctx, "Client joined insights", "client", s.client.ID(), "user_id", userID, "industry", industry)
}

// sendCurrentInsight unicasts the industry's latest change to the client, which
// is already a room member. The room is joined before the cache is read so no
// broadcast can fall between the two; the registry drops the unicast when a
// broadcast overtook it.
func (s *Session) sendCurrentInsight(ctx context.Context, industry string) {
	change, computed := s.currentInsight(ctx, industry)
	if change == nil {
		return
	}

	if computed && s.deps.Broadcaster != nil {
		if err := s.deps.Broadcaster.BroadcastInsight(ctx, change); err != nil {
			slog.WarnContext(ctx, "Broadcast of change computed on join failed", "industry", industry, "error", err)
		}
	}

	payload, err := encodeInsightUpdate(change)
	if err != nil {
		slog.WarnContext(ctx, "Encoding insight update failed", "industry", industry, "error", err)
		return
	}
	if _, err := s.deps.Registry.SendSnapshot(s.client, industry, payload); err != nil {
		slog.WarnContext(ctx, "Snapshot not delivered", "client", s.client.ID(), "industry", industry, "error", err)
	}
}

// currentInsight returns the cached change for the industry, or a freshly computed
// one when the cache is empty and on-demand computation is enabled. computed
// reports the latter.
func (s *Session) currentInsight(ctx context.Context, industry string) (change *domain.InsightChange, computed bool) {
	cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	change, ok, err := s.deps.Snapshots.Get(cacheCtx, industry)
	cancel()
	if err != nil {
		s.deps.CacheMetrics.Errors.WithLabelValues("get").Inc()
		slog.WarnContext(ctx, "Snapshot cache read failed, treating as miss", "industry", industry, "error", err)
	}
	if ok {
		s.deps.CacheMetrics.Hits.Inc()
		return change, false
	}
	s.deps.CacheMetrics.Misses.Inc()

	if s.deps.Computer == nil {
		return nil, false
	}
	change, err = s.deps.Computer.Compute(ctx, industry)
	if err != nil {
		slog.DebugContext(ctx, "No insight computed on join", "industry", industry, "error", err)
		return nil, false
	}
	return change, true
}

func (s *Session) fail(ctx context.Context, previous State, result, message string, err error) {
	s.transition(previous)
	s.deps.Metrics.Joins.WithLabelValues(result).Inc()
	slog.DebugContext(ctx, "Join rejected", "client", s.client.ID(), "reason", message, "error", err)
	s.send(ctx, encodeError(message))
}

func (s *Session) send(ctx context.Context, payload []byte) {
	if !s.client.Send(payload) {
		slog.WarnContext(ctx, "Unicast to client failed", "client", s.client.ID(), "error", domain.ErrDeliveryFailed)
	}
}

// transition moves to next unless the session is already disconnected and
// returns the state it left.
func (s *Session) transition(next State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.state
	if previous != StateDisconnected {
		s.state = next
	}
	return previous
}

// Close leaves every room. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	if s.transition(StateDisconnected) == StateDisconnected {
		return
	}
	s.deps.Registry.Leave(s.client)
	slog.DebugContext(ctx, "Session closed", "client", s.client.ID(), "industries", s.Industries())
}

func clientMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return msgAuthRequired
	case errors.Is(err, domain.ErrTokenExpired):
		return msgTokenExpired
	case errors.Is(err, domain.ErrTokenInvalid):
		return msgInvalidToken
	case errors.Is(err, domain.ErrNoIndustryAssigned), errors.Is(err, domain.ErrUserNotFound):
		return msgNoIndustry
	default:
		return msgJoinFailed
	}
}
