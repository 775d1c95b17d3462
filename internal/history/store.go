// Package history keeps a bounded, ordered record of recent chat messages for
// every auction room the relay has seen.
package history

import "sync"

// DefaultLimit is the number of messages retained per room.
const DefaultLimit = 100

// Message is a single chat line. Values are never mutated after creation.
type Message struct {
	RoomID    string
	Sender    string
	Content   string
	Timestamp string
}

// Store maps room identifiers to their message history. Rooms are created
// lazily and live for the lifetime of the Store; messages only leave a room
// through FIFO eviction once the limit is exceeded.
type Store struct {
	mu    sync.RWMutex
	rooms map[string][]Message
	limit int
}

// NewStore creates an empty Store keeping at most limit messages per room.
// A non-positive limit selects DefaultLimit.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		rooms: make(map[string][]Message),
		limit: limit,
	}
}

// Limit returns the per-room cap.
func (s *Store) Limit() int {
	return s.limit
}

// GetOrCreate returns the history for roomID, creating an empty one if the
// room is unknown.
func (s *Store) GetOrCreate(roomID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.rooms[roomID]
	if !ok {
		msgs = make([]Message, 0, s.limit)
		s.rooms[roomID] = msgs
	}
	return clone(msgs)
}

// Append adds msg to the end of roomID's history and evicts the oldest
// entries until the room is back within the limit.
func (s *Store) Append(roomID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.rooms[roomID]
	if !ok {
		msgs = make([]Message, 0, s.limit)
	}
	msgs = append(msgs, msg)
	if over := len(msgs) - s.limit; over > 0 {
		// Shift in place so the backing array does not creep forward.
		n := copy(msgs, msgs[over:])
		for i := n; i < len(msgs); i++ {
			msgs[i] = Message{}
		}
		msgs = msgs[:n]
	}
	s.rooms[roomID] = msgs
}

// Snapshot returns a copy of roomID's history, oldest first. Unknown rooms
// yield an empty, non-nil slice and are not created.
func (s *Store) Snapshot(roomID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return clone(s.rooms[roomID])
}

// Len reports how many messages roomID currently holds.
func (s *Store) Len(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms[roomID])
}

// Rooms reports how many rooms have been created.
func (s *Store) Rooms() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rooms)
}

func clone(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
