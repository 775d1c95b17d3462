// Package server tracks every open WebSocket client and the auction room it
// most recently joined via the Registry type.
package server

import (
	"sync"

	"go.uber.org/zap"
)

// Registry owns the set of open clients. All membership changes and the
// closed flag of every client are guarded by mu.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a newly accepted client, making it eligible for broadcasts.
func (r *Registry) Register(c *Client) {
	if c == nil {
		r.logger.Warn("Received nil client registration; skipping")
		return
	}

	r.mu.Lock()
	if c.closed {
		r.mu.Unlock()
		c.logger.Warn("Refusing to register a closed client")
		return
	}
	r.clients[c] = struct{}{}
	count := len(r.clients)
	r.mu.Unlock()

	c.logger.Info("Client registered", zap.Int("clients", count))
}

// DeclareMembership records the room and participant c most recently joined
// as, replacing any earlier declaration. Unknown clients are ignored.
func (r *Registry) DeclareMembership(c *Client, roomID, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}
	c.joined = true
	c.room = roomID
	c.participant = participantID
}

// Membership returns c's declared room and participant. joined is false
// until c has sent a join event.
func (r *Registry) Membership(c *Client) (roomID, participantID string, joined bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return c.room, c.participant, c.joined
}

// Unregister removes c, clears its membership and closes its outbound queue
// so the write pump can finish. Calling it again is a no-op.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	if _, ok := r.clients[c]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.clients, c)
	c.closed = true
	c.joined = false
	c.room = ""
	c.participant = ""
	count := len(r.clients)
	r.mu.Unlock()

	// Senders only write to c.send while holding the read lock and after
	// checking c.closed, so closing here cannot race with a send.
	close(c.send)
	c.logger.Info("Client unregistered", zap.Int("clients", count))
}

// ForEachOpen calls fn for every registered client that is not closing.
// The read lock is held while fn runs, so fn must not call back into the
// Registry.
func (r *Registry) ForEachOpen(fn func(c *Client)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.clients {
		if c.closed {
			continue
		}
		fn(c)
	}
}

// Deliver queues payload for c without blocking. It reports false if c is no
// longer open or its queue is full.
func (r *Registry) Deliver(c *Client, payload []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.clients[c]; !ok {
		return false
	}
	return c.enqueue(payload)
}

// enqueue must be called with the registry read lock held.
func (c *Client) enqueue(payload []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Count returns the number of open clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// beginClose marks c as closing so deliveries and broadcasts skip it while
// its transport shuts down. c stays registered until its read pump calls
// Unregister.
func (r *Registry) beginClose(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c]; !ok || c.closed {
		return false
	}
	c.closed = true
	return true
}

// CloseAll marks every open client closing and closes its transport. The
// read pumps then observe the failure and unregister themselves.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	closed := 0
	for _, c := range clients {
		if !r.beginClose(c) {
			continue
		}
		closed++
		if c.conn == nil {
			r.Unregister(c)
			continue
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("Error closing client connection", zap.Error(err))
		}
	}

	r.logger.Info("Closed client connections", zap.Int("count", closed))
	return closed
}
