package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/insightpulse/internal/adapter/metrics"
	"github.com/pscheid92/insightpulse/internal/domain"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

var ErrRegistryStopped = errors.New("registry stopped")

type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type registerCmd struct {
	baseRegistryCmd
	client *Client
	reply  chan struct{}
}

type joinCmd struct {
	baseRegistryCmd
	client   *Client
	industry string
	reply    chan struct{}
}

type leaveCmd struct {
	baseRegistryCmd
	client *Client
	reply  chan struct{}
}

type broadcastCmd struct {
	baseRegistryCmd
	industry string
	payload  []byte
	reply    chan int
}

type snapshotCmd struct {
	baseRegistryCmd
	client   *Client
	industry string
	payload  []byte
	reply    chan bool
}

type roomSizeCmd struct {
	baseRegistryCmd
	industry string
	reply    chan int
}

type clientCountCmd struct {
	baseRegistryCmd
	reply chan int
}

type stopCmd struct {
	baseRegistryCmd
}

// room maps each member to whether a broadcast has reached it since it joined.
type room map[*Client]bool

// Registry maps industries to the connections subscribed to them. All state is
// owned by one goroutine; callers talk to it through commands.
type Registry struct {
	cmdCh   chan registryCmd
	clock   clockwork.Clock
	metrics *metrics.WebSocketMetrics
	rooms   map[string]room
	// memberships is the reverse index used by leave and eviction.
	memberships map[*Client]map[string]struct{}
	done        chan struct{}
}

var _ domain.InsightBroadcaster = (*Registry)(nil)

func NewRegistry(clock clockwork.Clock, m *metrics.WebSocketMetrics) *Registry {
	r := &Registry{
		cmdCh:       make(chan registryCmd, 256),
		clock:       clock,
		metrics:     m,
		rooms:       make(map[string]room),
		memberships: make(map[*Client]map[string]struct{}),
		done:        make(chan struct{}),
	}
	go r.run()
	return r
}

// Register tracks a connection that has not joined any room yet, so that Stop can close it.
func (r *Registry) Register(client *Client) error {
	reply := make(chan struct{}, 1)
	return r.do(registerCmd{client: client, reply: reply}, reply)
}

// Join adds the client to an industry room. Joining is additive: rooms joined
// earlier are kept.
func (r *Registry) Join(client *Client, industry string) error {
	reply := make(chan struct{}, 1)
	return r.do(joinCmd{client: client, industry: industry, reply: reply}, reply)
}

// Leave removes the client from every room and stops its writer.
func (r *Registry) Leave(client *Client) {
	reply := make(chan struct{}, 1)
	if err := r.do(leaveCmd{client: client, reply: reply}, reply); err != nil {
		slog.Debug("Leave not processed by registry", "client", client.ID(), "error", err)
		client.stop()
	}
}

// Broadcast enqueues payload for every member of the room and returns the number
// of clients it was delivered to. Clients whose buffer is full are evicted.
func (r *Registry) Broadcast(industry string, payload []byte) (int, error) {
	reply := make(chan int, 1)
	cmd := broadcastCmd{industry: industry, payload: payload, reply: reply}
	if err := r.send(cmd); err != nil {
		return 0, err
	}
	return r.await(reply)
}

func (r *Registry) BroadcastInsight(_ context.Context, change *domain.InsightChange) error {
	payload, err := encodeInsightUpdate(change)
	if err != nil {
		return fmt.Errorf("failed to encode insight update: %w", err)
	}

	delivered, err := r.Broadcast(change.Industry, payload)
	if err != nil {
		return err
	}
	slog.Debug("Insight broadcast", "industry", change.Industry, "delivered", delivered)
	return nil
}

// SendSnapshot delivers the industry's current state to a member that has just
// joined. It reports false without sending when the client is not in the room
// or a broadcast already reached it after the join, since that broadcast is at
// least as new as the snapshot.
func (r *Registry) SendSnapshot(client *Client, industry string, payload []byte) (bool, error) {
	reply := make(chan bool, 1)
	if err := r.send(snapshotCmd{client: client, industry: industry, payload: payload, reply: reply}); err != nil {
		return false, err
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case sent := <-reply:
		return sent, nil
	case <-r.done:
		return false, ErrRegistryStopped
	case <-timer.Chan():
		return false, fmt.Errorf("registry command timed out after %v", commandTimeout)
	}
}

// RoomSize returns the number of clients in the room, or -1 if the registry did not answer.
func (r *Registry) RoomSize(industry string) int {
	reply := make(chan int, 1)
	if err := r.send(roomSizeCmd{industry: industry, reply: reply}); err != nil {
		return -1
	}
	n, err := r.await(reply)
	if err != nil {
		return -1
	}
	return n
}

// ClientCount returns the number of registered connections, or -1 if the registry did not answer.
func (r *Registry) ClientCount() int {
	reply := make(chan int, 1)
	if err := r.send(clientCountCmd{reply: reply}); err != nil {
		return -1
	}
	n, err := r.await(reply)
	if err != nil {
		return -1
	}
	return n
}

// Stop closes every connection and waits for the actor to exit.
func (r *Registry) Stop() {
	if err := r.send(stopCmd{}); err != nil {
		return
	}

	timeout := r.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-r.done:
		slog.Info("Registry stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Registry stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (r *Registry) do(cmd registryCmd, reply chan struct{}) error {
	if err := r.send(cmd); err != nil {
		return err
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case <-reply:
		return nil
	case <-r.done:
		return ErrRegistryStopped
	case <-timer.Chan():
		return fmt.Errorf("registry command timed out after %v", commandTimeout)
	}
}

func (r *Registry) send(cmd registryCmd) error {
	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case r.cmdCh <- cmd:
		return nil
	case <-r.done:
		return ErrRegistryStopped
	case <-timer.Chan():
		return fmt.Errorf("registry command timed out after %v", commandTimeout)
	}
}

func (r *Registry) await(reply chan int) (int, error) {
	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-reply:
		return n, nil
	case <-r.done:
		return 0, ErrRegistryStopped
	case <-timer.Chan():
		return 0, fmt.Errorf("registry command timed out after %v", commandTimeout)
	}
}

func (r *Registry) run() {
	defer close(r.done)
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Registry panic recovered", "panic", rec)
			r.closeAllClients("registry failure")
		}
	}()

	for cmd := range r.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			r.track(c.client)
			c.reply <- struct{}{}
		case joinCmd:
			r.handleJoin(c)
		case leaveCmd:
			r.remove(c.client)
			c.reply <- struct{}{}
		case broadcastCmd:
			c.reply <- r.handleBroadcast(c)
		case snapshotCmd:
			c.reply <- r.handleSnapshot(c)
		case roomSizeCmd:
			c.reply <- len(r.rooms[c.industry])
		case clientCountCmd:
			c.reply <- len(r.memberships)
		case stopCmd:
			slog.Info("Registry shutting down", "rooms", len(r.rooms), "clients", len(r.memberships))
			r.closeAllClients("Server shutting down")
			return
		default:
			slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (r *Registry) track(client *Client) map[string]struct{} {
	joined, ok := r.memberships[client]
	if !ok {
		joined = make(map[string]struct{})
		r.memberships[client] = joined
	}
	return joined
}

func (r *Registry) handleJoin(c joinCmd) {
	joined := r.track(c.client)
	joined[c.industry] = struct{}{}

	members, ok := r.rooms[c.industry]
	if !ok {
		members = make(room)
		r.rooms[c.industry] = members
	}
	if _, ok := members[c.client]; !ok {
		members[c.client] = false
	}

	slog.Debug("Client joined room", "client", c.client.ID(), "industry", c.industry, "room_size", len(members), "rooms_joined", len(joined))
	c.reply <- struct{}{}
}

func (r *Registry) handleBroadcast(c broadcastCmd) int {
	members := r.rooms[c.industry]

	var slow []*Client
	delivered := 0
	for client := range members {
		if client.Send(c.payload) {
			members[client] = true
			delivered++
			continue
		}
		slow = append(slow, client)
	}

	for _, client := range slow {
		slog.Warn("Evicting client after failed delivery", "client", client.ID(), "industry", c.industry, "error", domain.ErrDeliveryFailed)
		r.metrics.DeliveryFailures.Inc()
		r.remove(client)
	}

	r.metrics.MessagesPublished.Add(float64(delivered))
	return delivered
}

func (r *Registry) handleSnapshot(c snapshotCmd) bool {
	updated, ok := r.rooms[c.industry][c.client]
	if !ok || updated {
		slog.Debug("Snapshot skipped", "client", c.client.ID(), "industry", c.industry, "member", ok)
		return false
	}
	if !c.client.Send(c.payload) {
		slog.Warn("Snapshot to client failed", "client", c.client.ID(), "industry", c.industry, "error", domain.ErrDeliveryFailed)
		return false
	}
	return true
}

// remove drops the client from all rooms and stops it. Unknown clients are ignored.
func (r *Registry) remove(client *Client) {
	joined, ok := r.memberships[client]
	if !ok {
		client.stop()
		return
	}

	for industry := range joined {
		members := r.rooms[industry]
		delete(members, client)
		if len(members) == 0 {
			delete(r.rooms, industry)
		}
	}
	delete(r.memberships, client)
	client.stop()
}

func (r *Registry) closeAllClients(reason string) {
	for client := range r.memberships {
		client.stopGraceful(reason)
	}
	clear(r.memberships)
	clear(r.rooms)
}
