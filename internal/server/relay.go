package server

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Tyrowin/auction-relay/internal/history"
)

// Relay interprets join and message events. It replays room history to
// joining clients and fans chat messages out through the Registry.
//
// mu serializes the effects of every event, so all clients observe messages
// in the order they were stored and a joining client never receives a
// message both in its history replay and as a later broadcast. Lock order is
// always Relay.mu before Registry.mu.
type Relay struct {
	mu       sync.Mutex
	registry *Registry
	store    *history.Store
	scope    string
	logger   *zap.Logger
}

// NewRelay wires a Relay to its registry and history store. scope is
// ScopeAll or ScopeRoom.
func NewRelay(registry *Registry, store *history.Store, scope string, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scope != ScopeRoom {
		scope = ScopeAll
	}
	return &Relay{
		registry: registry,
		store:    store,
		scope:    scope,
		logger:   logger,
	}
}

// Registry returns the registry the relay delivers through.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Store returns the room history store.
func (r *Relay) Store() *history.Store {
	return r.store
}

// HandleFrame decodes one inbound payload from c and dispatches it.
// Malformed payloads are logged and dropped; c stays open and nothing is
// sent to anyone.
func (r *Relay) HandleFrame(c *Client, raw []byte) {
	ev, err := DecodeEvent(raw)
	if err != nil {
		c.logger.Warn("Dropping inbound payload", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}

	switch ev := ev.(type) {
	case *JoinEvent:
		r.HandleJoin(c, ev)
	case *MessageEvent:
		r.HandleMessage(c, ev)
	}
}

// HandleJoin records c's room and participant and sends c exactly one
// history frame with the room's stored messages, oldest first.
func (r *Relay) HandleJoin(c *Client, ev *JoinEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry.DeclareMembership(c, ev.AuctionID, ev.Address)
	msgs := r.store.GetOrCreate(ev.AuctionID)

	payload, err := encodeHistory(msgs)
	if err != nil {
		c.logger.Error("Error encoding history", zap.String("auction", ev.AuctionID), zap.Error(err))
		return
	}

	if !r.registry.Deliver(c, payload) {
		c.logger.Warn("Could not deliver history; dropping client", zap.String("auction", ev.AuctionID))
		r.registry.Unregister(c)
		return
	}

	c.logger.Info("Client joined auction",
		zap.String("auction", ev.AuctionID),
		zap.String("address", ev.Address),
		zap.Int("history", len(msgs)))
}

// HandleMessage stores the chat message and delivers it to every open
// client (or, with ScopeRoom, to clients that joined its auction). Clients
// whose queue is full are unregistered after the loop without affecting
// delivery to the others. It returns the number of clients reached.
func (r *Relay) HandleMessage(c *Client, ev *MessageEvent) int {
	msg := ev.ChatMessage()

	payload, err := encodeMessage(msg)
	if err != nil {
		c.logger.Error("Error encoding message", zap.String("auction", msg.RoomID), zap.Error(err))
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.store.Append(msg.RoomID, msg)

	delivered := 0
	var failed []*Client
	r.registry.ForEachOpen(func(target *Client) {
		if r.scope == ScopeRoom && (!target.joined || target.room != msg.RoomID) {
			return
		}
		if target.enqueue(payload) {
			delivered++
			return
		}
		failed = append(failed, target)
	})

	for _, target := range failed {
		target.logger.Warn("Client removed due to full send buffer")
		r.registry.Unregister(target)
	}

	c.logger.Debug("Broadcast message",
		zap.String("auction", msg.RoomID),
		zap.Int("delivered", delivered),
		zap.Int("dropped", len(failed)))
	return delivered
}
